// Package cryptorand provides a math/rand Source backed by crypto/rand.
package cryptorand

import (
	"crypto/rand"
	"encoding/binary"
)

func NewSource() Source {
	return Source{}
}

// Source is stateless, so a single value is safe for concurrent use.
type Source struct{}

func (Source) Int63() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) &^ (1 << 63))
}

func (Source) Seed(int64) {}
