package util

import (
	"crypto/rand"
	"encoding/hex"
)

const idBytes = 16

// NewID returns a random identifier namespaced by a short type prefix, e.g.
// "tsk_3f9c...". Prefixes in use: usr, wks, mbr, prj, tsk, rft, jti. An empty
// prefix yields bare hex.
func NewID(prefix string) string {
	buf := make([]byte, idBytes)
	_, _ = rand.Read(buf)
	id := hex.EncodeToString(buf)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
