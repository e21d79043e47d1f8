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
	"encoding/binary"
	"fmt"

	"github.com/poiesic/quarry/core"
)

// MarshalID serializes an ID to 8 big-endian bytes, so encoded ids sort
// in numeric order inside keys.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: id is %d bytes", ErrSerializationFailed, len(data))
	}
	return core.ID(binary.BigEndian.Uint64(data)), nil
}

// Record is any value a backend persists as an opaque blob.
type Record interface {
	core.Source | core.RawContent | core.Quote | core.Node | core.Edge | core.QuoteNodeLink | core.Idea
}

// serializerFor returns the MUS serializer for a record type.
func serializerFor[T Record]() recordMUS[T] {
	var ser any
	switch any((*T)(nil)).(type) {
	case *core.Source:
		ser = SourceMUS
	case *core.RawContent:
		ser = RawContentMUS
	case *core.Quote:
		ser = QuoteMUS
	case *core.Node:
		ser = NodeMUS
	case *core.Edge:
		ser = EdgeMUS
	case *core.QuoteNodeLink:
		ser = QuoteNodeLinkMUS
	case *core.Idea:
		ser = IdeaMUS
	}
	return ser.(recordMUS[T])
}

// MarshalRecord serializes a record to bytes.
func MarshalRecord[T Record](record *T) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("%w: nil record", ErrSerializationFailed)
	}
	ser := serializerFor[T]()
	buf := make([]byte, ser.Size(*record))
	ser.Marshal(*record, buf)
	return buf, nil
}

// UnmarshalRecord deserializes a record from bytes.
// The whole of data must be consumed.
func UnmarshalRecord[T Record](data []byte) (*T, error) {
	record, n, err := serializerFor[T]().Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return &record, nil
}
