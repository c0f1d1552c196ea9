package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a prefixed random id, e.g. "sess_3f2a…". Sessions,
// documents and uploads all share this scheme.
func NewID(prefix string) string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	if prefix == "" {
		return hex.EncodeToString(buf)
	}
	return prefix + "_" + hex.EncodeToString(buf)
}
