package chunkcache

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// objectNameMax bounds the object-name portion of a cache identity. Longer
// names are truncated; shorter ones are zero-padded by the array zero value
// so that whole-struct comparison is byte-for-byte exact.
const objectNameMax = 50

// hashID is the identity key of a chunk chain. hashID is comparable; two
// identities are equal iff their raw bytes are equal.
type hashID struct {
	objectName [objectNameMax]byte
	objectID   uint32
}

func newHashID(name string, objectID uint32) hashID {
	var id hashID
	copy(id.objectName[:], name)
	id.objectID = objectID
	return id
}

// sum hashes the identity's raw bytes.
func (id hashID) sum() uint64 {
	var raw [objectNameMax + 4]byte
	copy(raw[:], id.objectName[:])
	binary.LittleEndian.PutUint32(raw[objectNameMax:], id.objectID)
	return xxhash.Sum64(raw[:])
}
