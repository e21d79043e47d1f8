package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/poiesic/quarry/core"
)

// LocalID is an identifier scoped to a single model response.
// Models emit these as numbers or strings; 1 and "1" decode to the same LocalID.
type LocalID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *LocalID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = LocalID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number, got %s", data)
	}
	if i, err := n.Int64(); err == nil {
		*id = LocalID(strconv.FormatInt(i, 10))
		return nil
	}
	// 2.0 and 2 name the same node.
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		*id = LocalID(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*id = LocalID(n.String())
	return nil
}

// Quote is an extracted excerpt.
type Quote struct {
	ID         LocalID  `json:"id,omitempty"`
	Text       string   `json:"text" validate:"required"`
	StartIndex *int     `json:"start_index,omitempty" validate:"omitempty,min=0"`
	EndIndex   *int     `json:"end_index,omitempty" validate:"omitempty,min=0"`
	Sentiment  string   `json:"sentiment,omitempty"`
	Emotions   []string `json:"emotions,omitempty"`
}

// Node is an extracted concept.
type Node struct {
	ID          LocalID       `json:"id,omitempty"`
	Type        core.NodeType `json:"type" validate:"required"`
	Label       string        `json:"label" validate:"required"`
	Description string        `json:"description,omitempty"`
}

// Edge is a directed relationship between two extracted nodes.
type Edge struct {
	FromNodeID  LocalID `json:"from_node_id" validate:"required"`
	ToNodeID    LocalID `json:"to_node_id" validate:"required"`
	Type        string  `json:"type,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Link connects an extracted quote to an extracted node.
type Link struct {
	QuoteID LocalID `json:"quote_id" validate:"required"`
	NodeID  LocalID `json:"node_id" validate:"required"`
	Type    string  `json:"type,omitempty"`
}

// Result is a decoded model reply. Every slice is non-nil after Parse and
// keeps the order the model emitted.
type Result struct {
	Quotes []Quote `json:"quotes" validate:"dive"`
	Nodes  []Node  `json:"nodes" validate:"dive"`
	Edges  []Edge  `json:"edges" validate:"dive"`
	Links  []Link  `json:"quote_node_links" validate:"dive"`
}

// Empty reports whether the result carries nothing to materialize.
func (r *Result) Empty() bool {
	return len(r.Quotes) == 0 && len(r.Nodes) == 0 && len(r.Edges) == 0 && len(r.Links) == 0
}

// DropOffsetsOutside clears the offsets of every quote whose span does not
// fit in a text of length characters. It returns the number of quotes changed.
func (r *Result) DropOffsetsOutside(length int) int {
	dropped := 0
	for i := range r.Quotes {
		q := &r.Quotes[i]
		if (q.StartIndex != nil && *q.StartIndex > length) || (q.EndIndex != nil && *q.EndIndex > length) {
			q.StartIndex, q.EndIndex = nil, nil
			dropped++
		}
	}
	return dropped
}
