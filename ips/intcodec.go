// Package ips implements the International Patching System format: a
// simple offset+payload record stream with optional run-length encoding,
// bounded by a 24-bit offset space.
package ips

import "github.com/qalle2/qromp/patcherr"

const maxOffset = 1<<24 - 1
const maxRecordLen = 1<<16 - 1

// encodeU24 big-endian-encodes a 24-bit unsigned offset. It fails if n
// does not fit.
func encodeU24(n int) ([]byte, error) {
	if n < 0 || n > maxOffset {
		return nil, patcherr.New(patcherr.BadPatch, "IPS offset does not fit in 24 bits")
	}
	return []byte{byte(n >> 16), byte(n >> 8), byte(n)}, nil
}

func decodeU24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}

// encodeU16 big-endian-encodes a 16-bit unsigned length or count. It
// fails if n does not fit.
func encodeU16(n int) ([]byte, error) {
	if n < 0 || n > maxRecordLen {
		return nil, patcherr.New(patcherr.BadPatch, "IPS length does not fit in 16 bits")
	}
	return []byte{byte(n >> 8), byte(n)}, nil
}

func decodeU16(b []byte) int {
	return int(b[0])<<8 | int(b[1])
}
