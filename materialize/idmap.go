package materialize

import (
	"strconv"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/extraction"
)

// IDMap resolves extraction-local references to durable ids.
//
// Explicit ids and array positions are kept in separate tables. A reference
// resolves to the last entry that carried it as an explicit id; only when no
// entry did is it read as the array index of an entry without an id. An
// unnamed entry therefore never shadows a named one.
type IDMap struct {
	byID    map[extraction.LocalID]core.ID
	byIndex map[extraction.LocalID]core.ID
}

func newIDMap() IDMap {
	return IDMap{
		byID:    make(map[extraction.LocalID]core.ID),
		byIndex: make(map[extraction.LocalID]core.ID),
	}
}

// add records the durable id of the entry at index.
// Later entries with the same explicit id replace earlier ones.
func (m IDMap) add(local extraction.LocalID, index int, durable core.ID) {
	if local != "" {
		m.byID[local] = durable
		return
	}
	m.byIndex[extraction.LocalID(strconv.Itoa(index))] = durable
}

// Resolve returns the durable id a reference points at.
func (m IDMap) Resolve(ref extraction.LocalID) (core.ID, bool) {
	if id, ok := m.byID[ref]; ok {
		return id, true
	}
	id, ok := m.byIndex[ref]
	return id, ok
}

// Len returns the number of resolvable keys.
func (m IDMap) Len() int {
	return len(m.byID) + len(m.byIndex)
}

func (m IDMap) reset() {
	clear(m.byID)
	clear(m.byIndex)
}
