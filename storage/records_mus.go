// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"errors"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/quarry/core"
)

// MUS serializers for the stored records. Fields are written in declaration
// order; timestamps are Unix microseconds behind a presence flag.
var (
	SourceMUS        = recordMUS[core.Source]{fields: (*codec).source}
	RawContentMUS    = recordMUS[core.RawContent]{fields: (*codec).rawContent}
	QuoteMUS         = recordMUS[core.Quote]{fields: (*codec).quote}
	NodeMUS          = recordMUS[core.Node]{fields: (*codec).node}
	EdgeMUS          = recordMUS[core.Edge]{fields: (*codec).edge}
	QuoteNodeLinkMUS = recordMUS[core.QuoteNodeLink]{fields: (*codec).quoteNodeLink}
	IdeaMUS          = recordMUS[core.Idea]{fields: (*codec).idea}
)

var errBadLength = errors.New("length prefix exceeds data")

// recordMUS serializes T with one field walk shared by Size, Marshal and
// Unmarshal.
type recordMUS[T any] struct {
	fields func(c *codec, v *T)
}

func (s recordMUS[T]) Size(v T) (size int) {
	c := codec{mode: sizing}
	s.fields(&c, &v)
	return c.n
}

// Marshal writes v to bs, which must hold at least Size(v) bytes.
func (s recordMUS[T]) Marshal(v T, bs []byte) (n int) {
	c := codec{mode: writing, bs: bs}
	s.fields(&c, &v)
	return c.n
}

func (s recordMUS[T]) Unmarshal(bs []byte) (v T, n int, err error) {
	c := codec{mode: reading, bs: bs}
	s.fields(&c, &v)
	return v, c.n, c.err
}

func (s recordMUS[T]) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}

type codecMode int

const (
	sizing codecMode = iota
	writing
	reading
)

// codec walks a record's fields in one of three modes. After the first read
// error every further read is a no-op.
type codec struct {
	mode codecMode
	bs   []byte
	n    int
	err  error
}

func (c *codec) failed() bool {
	return c.mode == reading && c.err != nil
}

func (c *codec) id(v *core.ID) {
	u := uint64(*v)
	c.uint64(&u)
	*v = core.ID(u)
}

func (c *codec) uint64(v *uint64) {
	switch c.mode {
	case sizing:
		c.n += varint.Uint64.Size(*v)
	case writing:
		c.n += varint.Uint64.Marshal(*v, c.bs[c.n:])
	case reading:
		if c.failed() {
			return
		}
		var n int
		*v, n, c.err = varint.Uint64.Unmarshal(c.bs[c.n:])
		c.n += n
	}
}

func (c *codec) checksum(v *uint64) {
	switch c.mode {
	case sizing:
		c.n += raw.Uint64.Size(*v)
	case writing:
		c.n += raw.Uint64.Marshal(*v, c.bs[c.n:])
	case reading:
		if c.failed() {
			return
		}
		var n int
		*v, n, c.err = raw.Uint64.Unmarshal(c.bs[c.n:])
		c.n += n
	}
}

func (c *codec) int(v *int) {
	switch c.mode {
	case sizing:
		c.n += varint.Int.Size(*v)
	case writing:
		c.n += varint.Int.Marshal(*v, c.bs[c.n:])
	case reading:
		if c.failed() {
			return
		}
		var n int
		*v, n, c.err = varint.Int.Unmarshal(c.bs[c.n:])
		c.n += n
	}
}

func (c *codec) int64(v *int64) {
	switch c.mode {
	case sizing:
		c.n += varint.Int64.Size(*v)
	case writing:
		c.n += varint.Int64.Marshal(*v, c.bs[c.n:])
	case reading:
		if c.failed() {
			return
		}
		var n int
		*v, n, c.err = varint.Int64.Unmarshal(c.bs[c.n:])
		c.n += n
	}
}

func (c *codec) float32(v *float32) {
	switch c.mode {
	case sizing:
		c.n += raw.Float32.Size(*v)
	case writing:
		c.n += raw.Float32.Marshal(*v, c.bs[c.n:])
	case reading:
		if c.failed() {
			return
		}
		var n int
		*v, n, c.err = raw.Float32.Unmarshal(c.bs[c.n:])
		c.n += n
	}
}

func (c *codec) bool(v *bool) {
	switch c.mode {
	case sizing:
		c.n += ord.Bool.Size(*v)
	case writing:
		c.n += ord.Bool.Marshal(*v, c.bs[c.n:])
	case reading:
		if c.failed() {
			return
		}
		var n int
		*v, n, c.err = ord.Bool.Unmarshal(c.bs[c.n:])
		c.n += n
	}
}

func (c *codec) string(v *string) {
	switch c.mode {
	case sizing:
		c.n += ord.String.Size(*v)
	case writing:
		c.n += ord.String.Marshal(*v, c.bs[c.n:])
	case reading:
		if c.failed() {
			return
		}
		var n int
		*v, n, c.err = ord.String.Unmarshal(c.bs[c.n:])
		c.n += n
	}
}

// length writes or reads a collection length. A decoded length is rejected
// when the remaining data could not hold that many elements of minSize bytes.
func (c *codec) length(l *int, minSize int) {
	c.int(l)
	if c.mode == reading && c.err == nil && (*l < 0 || *l > (len(c.bs)-c.n)/minSize) {
		c.err = errBadLength
	}
}

// present writes or reads the nil flag for an optional value.
func (c *codec) present(isSet bool) bool {
	c.bool(&isSet)
	return isSet && !c.failed()
}

func (c *codec) timestamp(v *time.Time) {
	micros := v.UnixMicro()
	if !c.present(!v.IsZero()) {
		if c.mode == reading {
			*v = time.Time{}
		}
		return
	}
	c.int64(&micros)
	if c.mode == reading && c.err == nil {
		*v = time.UnixMicro(micros).UTC()
	}
}

func (c *codec) timestampPtr(v **time.Time) {
	if !c.present(*v != nil) {
		return
	}
	if c.mode == reading {
		*v = new(time.Time)
	}
	c.timestamp(*v)
}

func (c *codec) intPtr(v **int) {
	if !c.present(*v != nil) {
		return
	}
	if c.mode == reading {
		*v = new(int)
	}
	c.int(*v)
}

func (c *codec) strings(v *[]string) {
	l := len(*v)
	c.length(&l, 1)
	if c.failed() {
		return
	}
	if c.mode == reading {
		if l == 0 {
			*v = nil
			return
		}
		*v = make([]string, l)
	}
	for i := range *v {
		c.string(&(*v)[i])
	}
}

func (c *codec) float32s(v *[]float32) {
	l := len(*v)
	c.length(&l, 4)
	if c.failed() {
		return
	}
	if c.mode == reading {
		if l == 0 {
			*v = nil
			return
		}
		*v = make([]float32, l)
	}
	for i := range *v {
		c.float32(&(*v)[i])
	}
}

// stringMap writes entries in key order so equal maps encode identically.
func (c *codec) stringMap(v *map[string]string) {
	l := len(*v)
	c.length(&l, 2)
	if c.failed() {
		return
	}
	if c.mode == reading {
		if l == 0 {
			*v = nil
			return
		}
		m := make(map[string]string, l)
		for range l {
			var key, value string
			c.string(&key)
			c.string(&value)
			if c.failed() {
				return
			}
			m[key] = value
		}
		*v = m
		return
	}
	keys := make([]string, 0, l)
	for k := range *v {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		value := (*v)[k]
		c.string(&k)
		c.string(&value)
	}
}

func (c *codec) review(v *core.Review) {
	c.string(&v.ReviewedBy)
	c.timestampPtr(&v.ReviewedAt)
}

func (c *codec) source(v *core.Source) {
	c.id(&v.Id)
	c.string(&v.Owner)
	c.string((*string)(&v.Kind))
	c.string(&v.URL)
	c.stringMap(&v.Metadata)
	c.timestamp(&v.CreatedAt)
}

func (c *codec) rawContent(v *core.RawContent) {
	c.id(&v.Id)
	c.string(&v.Owner)
	c.id(&v.SourceId)
	c.string(&v.Text)
	c.checksum(&v.Checksum)
	c.timestamp(&v.CreatedAt)
	c.timestampPtr(&v.ProcessedAt)
}

func (c *codec) quote(v *core.Quote) {
	c.id(&v.Id)
	c.string(&v.Owner)
	c.id(&v.RawContentId)
	c.string(&v.Text)
	c.intPtr(&v.StartIndex)
	c.intPtr(&v.EndIndex)
	c.string(&v.Sentiment)
	c.strings(&v.Emotions)
	c.bool(&v.IsSuggestion)
	c.review(&v.Review)
	c.timestamp(&v.CreatedAt)
}

func (c *codec) node(v *core.Node) {
	c.id(&v.Id)
	c.string(&v.Owner)
	c.id(&v.RawContentId)
	c.string((*string)(&v.Type))
	c.string(&v.Label)
	c.string(&v.Description)
	c.float32s(&v.Vector)
	c.bool(&v.IsSuggestion)
	c.review(&v.Review)
	c.timestamp(&v.CreatedAt)
}

func (c *codec) edge(v *core.Edge) {
	c.id(&v.Id)
	c.string(&v.Owner)
	c.id(&v.RawContentId)
	c.id(&v.FromNodeId)
	c.id(&v.ToNodeId)
	c.string(&v.Type)
	c.string(&v.Description)
	c.bool(&v.IsSuggestion)
	c.review(&v.Review)
	c.timestamp(&v.CreatedAt)
}

func (c *codec) quoteNodeLink(v *core.QuoteNodeLink) {
	c.id(&v.Id)
	c.string(&v.Owner)
	c.id(&v.RawContentId)
	c.id(&v.QuoteId)
	c.id(&v.NodeId)
	c.string(&v.Type)
	c.bool(&v.IsSuggestion)
	c.review(&v.Review)
	c.timestamp(&v.CreatedAt)
}

func (c *codec) idea(v *core.Idea) {
	c.id(&v.Id)
	c.string(&v.Owner)
	c.id(&v.NodeId)
	c.id(&v.QuoteId)
	c.string(&v.Text)
	c.string(&v.Type)
	c.string((*string)(&v.Status))
	c.stringMap(&v.Metadata)
	c.timestamp(&v.CreatedAt)
}
