package ips

import (
	"bytes"
	"fmt"
	"hash/crc32"

	"github.com/qalle2/qromp/patcherr"
)

var header = []byte("PATCH")
var eofMarker = []byte("EOF")

// DecodeOptions carries the optional user-supplied CRC32 checks the CLI
// exposes for IPS (the format itself carries no checksum).
type DecodeOptions struct {
	// HasInputCRC32/InputCRC32 and HasOutputCRC32/OutputCRC32 gate an
	// optional CRC check against the source/output, reported as a
	// warning on mismatch.
	HasInputCRC32  bool
	InputCRC32     uint32
	HasOutputCRC32 bool
	OutputCRC32    uint32
}

// DecodeResult is the output of a successful Decode.
type DecodeResult struct {
	Target   []byte
	Warnings []string
}

// Decode applies an IPS patch to source and returns the patched bytes.
// It inherits the format's known EOF-address collision: a record whose
// offset is exactly 0x454F46 is indistinguishable from the terminator
// and is never applied. This is accepted, not worked around.
func Decode(source []byte, patch []byte, opts DecodeOptions) (*DecodeResult, error) {
	if len(patch) < len(header)+len(eofMarker) {
		return nil, patcherr.New(patcherr.BadPatch, "patch too short to contain header and terminator")
	}
	if !bytes.Equal(patch[:len(header)], header) {
		return nil, patcherr.New(patcherr.BadPatch, "not an IPS file")
	}

	var warnings []string
	warn := func(msg string) { warnings = append(warnings, msg) }

	data := make([]byte, len(source))
	copy(data, source)

	pos := len(header)
	for {
		if pos+3 > len(patch) {
			return nil, patcherr.New(patcherr.BadPatch, "patch truncated while reading record offset")
		}
		offsetBytes := patch[pos : pos+3]
		if bytes.Equal(offsetBytes, eofMarker) {
			pos += 3
			break
		}
		offset := decodeU24(offsetBytes)
		pos += 3

		if pos+2 > len(patch) {
			return nil, patcherr.New(patcherr.BadPatch, "patch truncated while reading record length")
		}
		length := decodeU16(patch[pos : pos+2])
		pos += 2

		var payload []byte
		if length == 0 {
			if pos+2 > len(patch) {
				return nil, patcherr.New(patcherr.BadPatch, "patch truncated while reading RLE count")
			}
			count := decodeU16(patch[pos : pos+2])
			pos += 2
			if pos+1 > len(patch) {
				return nil, patcherr.New(patcherr.BadPatch, "patch truncated while reading RLE byte")
			}
			b := patch[pos]
			pos++
			if count < 3 {
				warn(fmt.Sprintf("RLE record at offset %d has suspiciously small count %d", offset, count))
			}
			payload = bytes.Repeat([]byte{b}, count)
		} else {
			if pos+length > len(patch) {
				return nil, patcherr.New(patcherr.BadPatch, "patch truncated while reading record payload")
			}
			payload = patch[pos : pos+length]
			pos += length
		}

		if offset > len(data) {
			return nil, patcherr.New(patcherr.PastEnd, "IPS record offset exceeds current output length")
		}
		end := offset + len(payload)
		if end > len(data) {
			grown := make([]byte, end)
			copy(grown, data)
			data = grown
		}
		copy(data[offset:end], payload)
	}

	if opts.HasInputCRC32 && crc32.ChecksumIEEE(source) != opts.InputCRC32 {
		warn("input file CRC mismatch")
	}
	if opts.HasOutputCRC32 && crc32.ChecksumIEEE(data) != opts.OutputCRC32 {
		warn("output file CRC mismatch")
	}

	return &DecodeResult{Target: data, Warnings: warnings}, nil
}
