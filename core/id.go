package core

import (
	"crypto/rand"
	"encoding/hex"

	"pkt.systems/wheelhouse/schema"
)

func newTabID() schema.TabID {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return schema.TabID("tab-unknown")
	}
	return schema.TabID(hex.EncodeToString(buf[:]))
}
