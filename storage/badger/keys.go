package badger

import (
	"encoding/binary"

	"github.com/poiesic/quarry/core"
)

// Key prefixes for different data types
const (
	sourcePrefix     = "src"
	rawContentPrefix = "raw"
	quotePrefix      = "quo"
	nodePrefix       = "nod"
	edgePrefix       = "edg"
	linkPrefix       = "qnl"
	linkPairPrefix   = "qnlp"
	ideaPrefix       = "ida"
)

// Sequence keys for ID generation
const (
	sourceIDSeq     = "seq:src"
	rawContentIDSeq = "seq:raw"
	quoteIDSeq      = "seq:quo"
	nodeIDSeq       = "seq:nod"
	edgeIDSeq       = "seq:edg"
	linkIDSeq       = "seq:qnl"
	ideaIDSeq       = "seq:ida"
)

// makeOwnerPrefix generates the key prefix shared by all of an owner's
// records of one kind.
// Format: prefix:len(owner):owner:
// The length is 4 big-endian bytes, so no owner's prefix is a prefix of another's.
func makeOwnerPrefix(prefix, owner string) []byte {
	buf := make([]byte, 0, len(prefix)+len(owner)+6)
	buf = append(buf, prefix...)
	buf = append(buf, ':')
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(owner)))
	buf = append(buf, owner...)
	return append(buf, ':')
}

// makeRecordKey generates the key for one record.
// Format: prefix:len(owner):owner:id
// IDs are written BigEndian so a prefix scan returns insertion order.
func makeRecordKey(prefix, owner string, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(makeOwnerPrefix(prefix, owner), uint64(id))
}

// makeLinkPairKey generates the uniqueness key for a (quote, node) link.
// Format: qnlp:len(owner):owner:quoteID:nodeID
func makeLinkPairKey(owner string, quoteID, nodeID core.ID) []byte {
	buf := makeRecordKey(linkPairPrefix, owner, quoteID)
	return binary.BigEndian.AppendUint64(buf, uint64(nodeID))
}
