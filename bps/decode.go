package bps

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/qalle2/qromp/patcherr"
)

// Action identifies the four kinds of BPS block.
type Action int

const (
	SourceRead Action = iota
	TargetRead
	SourceCopy
	TargetCopy
)

var magic = []byte("BPS1")

const footerLen = 12 // three little-endian uint32 CRCs

// DecodeResult is the output of a successful Decode: the patched bytes,
// any metadata carried opaquely in the patch header, and any non-fatal
// warnings encountered along the way.
type DecodeResult struct {
	Target   []byte
	Metadata []byte
	Warnings []string
}

// Decode applies a BPS patch to source and returns the patched bytes.
// Structural problems (truncation, out-of-range copies, integer overflow)
// are fatal and returned as a *patcherr.Error. Header size and footer CRC
// disagreements are reported as warnings; the result is still delivered.
func Decode(source, patch []byte) (*DecodeResult, error) {
	if len(patch) < len(magic)+footerLen {
		return nil, patcherr.New(patcherr.BadPatch, "patch file too short to contain header and footer")
	}

	var warnings []string
	warn := func(msg string) { warnings = append(warnings, msg) }

	r := newByteSliceReader(patch)

	id, err := r.readN(len(magic))
	if err != nil {
		return nil, patcherr.Wrap(patcherr.BadPatch, "reading magic", err)
	}
	if string(id[:3]) != "BPS" {
		return nil, patcherr.New(patcherr.BadPatch, "not a BPS file")
	}
	if id[3] != '1' {
		warn("possibly unsupported version of BPS")
	}

	hdrSrcSize, err := decodeUint(r)
	if err != nil {
		return nil, patcherr.Wrap(patcherr.BadPatch, "reading source size", err)
	}
	hdrDstSize, err := decodeUint(r)
	if err != nil {
		return nil, patcherr.Wrap(patcherr.BadPatch, "reading target size", err)
	}
	metadataSize, err := decodeUint(r)
	if err != nil {
		return nil, patcherr.Wrap(patcherr.BadPatch, "reading metadata size", err)
	}
	if hdrSrcSize != uint64(len(source)) {
		warn(fmt.Sprintf("input file size should be %d, is %d", hdrSrcSize, len(source)))
	}

	metadata, err := r.readN(int(metadataSize))
	if err != nil {
		return nil, patcherr.Wrap(patcherr.BadPatch, "reading metadata", err)
	}

	// The header's target size is only a capacity hint; it is bounded so
	// that a bogus declared size cannot make the allocation itself fail.
	capHint := hdrDstSize
	if limit := uint64(len(source)) + uint64(len(patch)); capHint > limit {
		capHint = limit
	}
	out := make([]byte, 0, capHint)
	var srcOff, dstOff int64

	for r.pos < len(patch)-footerLen {
		code, err := decodeUint(r)
		if err != nil {
			return nil, patcherr.Wrap(patcherr.BadPatch, "reading block header", err)
		}
		length := int((code >> 2) + 1)
		action := Action(code & 3)

		switch action {
		case SourceRead:
			if len(out)+length > len(source) {
				return nil, patcherr.New(patcherr.InvalidRead, "SourceRead reads past end of source")
			}
			out = append(out, source[len(out):len(out)+length]...)

		case TargetRead:
			chunk, err := r.readN(length)
			if err != nil {
				return nil, patcherr.Wrap(patcherr.BadPatch, "TargetRead payload truncated", err)
			}
			out = append(out, chunk...)

		case SourceCopy:
			delta, err := decodeSignedInt(r)
			if err != nil {
				return nil, patcherr.Wrap(patcherr.BadPatch, "reading SourceCopy delta", err)
			}
			srcOff += delta
			if srcOff < 0 || int64(length) < 0 || srcOff > int64(len(source))-int64(length) {
				return nil, patcherr.New(patcherr.InvalidRead, "SourceCopy reads outside source")
			}
			out = append(out, source[srcOff:srcOff+int64(length)]...)
			srcOff += int64(length)

		case TargetCopy:
			delta, err := decodeSignedInt(r)
			if err != nil {
				return nil, patcherr.Wrap(patcherr.BadPatch, "reading TargetCopy delta", err)
			}
			dstOff += delta
			if dstOff < 0 || dstOff >= int64(len(out)) {
				return nil, patcherr.New(patcherr.InvalidRead, "TargetCopy reads unready output position")
			}
			// Copied byte-at-a-time: a TargetCopy block may reference
			// bytes it is itself in the middle of writing (the canonical
			// use is RLE via dstOff == len(out)-1).
			for i := 0; i < length; i++ {
				out = append(out, out[dstOff])
				dstOff++
			}
		}
	}

	if uint64(len(out)) != hdrDstSize {
		warn(fmt.Sprintf("output file size should be %d, is %d", hdrDstSize, len(out)))
	}

	footer, err := r.readN(footerLen)
	if err != nil {
		return nil, patcherr.Wrap(patcherr.BadPatch, "reading footer", err)
	}
	expectedSrcCRC := binary.LittleEndian.Uint32(footer[0:4])
	expectedDstCRC := binary.LittleEndian.Uint32(footer[4:8])
	expectedPatchCRC := binary.LittleEndian.Uint32(footer[8:12])

	if crc32.ChecksumIEEE(source) != expectedSrcCRC {
		warn("input file CRC mismatch")
	}
	if crc32.ChecksumIEEE(out) != expectedDstCRC {
		warn("output file CRC mismatch")
	}
	if crc32.ChecksumIEEE(patch[:len(patch)-4]) != expectedPatchCRC {
		warn("patch file CRC mismatch")
	}

	return &DecodeResult{Target: out, Metadata: metadata, Warnings: warnings}, nil
}
