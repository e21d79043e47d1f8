package badger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeOwnerPrefix_NoOwnerShadowsAnother(t *testing.T) {
	a := makeOwnerPrefix(nodePrefix, "a")
	ab := makeOwnerPrefix(nodePrefix, "a:b")
	assert.False(t, bytes.HasPrefix(ab, a))
	assert.False(t, bytes.HasPrefix(makeRecordKey(nodePrefix, "a:b", 1), a))
}

func TestMakeRecordKey_OrdersByID(t *testing.T) {
	k9 := makeRecordKey(quotePrefix, "u", 9)
	k10 := makeRecordKey(quotePrefix, "u", 10)
	assert.Equal(t, -1, bytes.Compare(k9, k10))
	assert.True(t, bytes.HasPrefix(k9, makeOwnerPrefix(quotePrefix, "u")))
}

func TestPrefixesDoNotOverlap(t *testing.T) {
	link := makeOwnerPrefix(linkPrefix, "u")
	pair := makeLinkPairKey("u", 1, 2)
	assert.False(t, bytes.HasPrefix(pair, link))
}
