package bps

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/qalle2/qromp/patcherr"
)

// DefaultMinCopyLen is used when EncodeOptions.MinCopyLen is zero.
const DefaultMinCopyLen = 4

// EncodeOptions configures the BPS encoder.
type EncodeOptions struct {
	// MinCopyLen is the minimum substring length worth copying from the
	// source or already-emitted target instead of storing literally.
	// Range [1, 32]; zero means DefaultMinCopyLen.
	MinCopyLen int
	// Metadata is opaque data stored in the patch header.
	Metadata []byte
}

// EncodeStats tallies the blocks and bytes emitted by action, for verbose
// CLI reporting.
type EncodeStats struct {
	SourceReadBlocks, TargetReadBlocks, SourceCopyBlocks, TargetCopyBlocks int
	SourceReadBytes, TargetReadBytes, SourceCopyBytes, TargetCopyBytes     int
}

// EncodeResult is the output of a successful Encode/EncodeEasy.
type EncodeResult struct {
	Patch []byte
	Stats EncodeStats
}

// patchWriter accumulates emitted patch bytes and their running CRC32 in
// one pass, the "emit(bytes)" shape the format's body naturally wants
// since the patch CRC covers every byte that precedes it.
type patchWriter struct {
	buf []byte
	crc uint32
}

func (w *patchWriter) writeBytes(b []byte) {
	w.buf = append(w.buf, b...)
	w.crc = crc32.Update(w.crc, crc32.IEEETable, b)
}

func (w *patchWriter) blockHeader(length int, action Action) {
	code := uint64(length-1)<<2 | uint64(action)
	w.writeBytes(encodeUint(code))
}

func (w *patchWriter) writeHeader(sourceLen, modifiedLen int, metadata []byte) {
	w.writeBytes(magic)
	w.writeBytes(encodeUint(uint64(sourceLen)))
	w.writeBytes(encodeUint(uint64(modifiedLen)))
	w.writeBytes(encodeUint(uint64(len(metadata))))
	if len(metadata) > 0 {
		w.writeBytes(metadata)
	}
}

// finish appends the source/target CRCs and the patch's own streaming CRC
// (computed over every byte emitted so far) and returns the full patch.
func (w *patchWriter) finish(source, modified []byte) []byte {
	var buf4 [4]byte
	binary.LittleEndian.PutUint32(buf4[:], crc32.ChecksumIEEE(source))
	w.writeBytes(buf4[:])
	binary.LittleEndian.PutUint32(buf4[:], crc32.ChecksumIEEE(modified))
	w.writeBytes(buf4[:])
	binary.LittleEndian.PutUint32(buf4[:], w.crc)
	return append(w.buf, buf4[:]...)
}

func resolveMinCopyLen(n int) (int, error) {
	if n == 0 {
		n = DefaultMinCopyLen
	}
	if n < 1 || n > 32 {
		return 0, patcherr.New(patcherr.BadPatch, "min-copy-len must be in [1, 32]")
	}
	return n, nil
}

// longestPrefix returns the length of the longest prefix of a that occurs
// anywhere in b, found by binary search on the prefix length using
// bytes.Contains as the membership oracle.
func longestPrefix(a, b []byte) int {
	lo, hi := 0, min(len(a), len(b))
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if bytes.Contains(b, a[:mid]) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

func buildSubstringSet(data []byte, minLen int) map[string]struct{} {
	set := make(map[string]struct{}, max(len(data)-minLen+1, 0))
	for i := 0; i+minLen <= len(data); i++ {
		set[string(data[i:i+minLen])] = struct{}{}
	}
	return set
}

// EncodeEasy produces a valid, if larger, BPS patch using only SourceRead
// and TargetRead blocks. It requires source and modified to be the same
// length.
func EncodeEasy(source, modified []byte, opts EncodeOptions) (*EncodeResult, error) {
	if len(source) != len(modified) {
		return nil, patcherr.New(patcherr.SizeMismatch, "easy-path BPS encode requires source and modified to be the same size")
	}

	w := &patchWriter{}
	w.writeHeader(len(source), len(modified), opts.Metadata)

	var stats EncodeStats
	pos := 0
	for pos < len(modified) {
		start := pos
		if source[pos] == modified[pos] {
			for pos < len(modified) && source[pos] == modified[pos] {
				pos++
			}
			length := pos - start
			w.blockHeader(length, SourceRead)
			stats.SourceReadBlocks++
			stats.SourceReadBytes += length
		} else {
			for pos < len(modified) && source[pos] != modified[pos] {
				pos++
			}
			length := pos - start
			w.blockHeader(length, TargetRead)
			w.writeBytes(modified[start:pos])
			stats.TargetReadBlocks++
			stats.TargetReadBytes += length
		}
	}

	return &EncodeResult{Patch: w.finish(source, modified), Stats: stats}, nil
}

// Encode produces a BPS patch from source to modified using the full
// substring-search path: for each position in modified it finds the
// longest prefix that occurs anywhere in source and anywhere in the
// already-emitted prefix of modified, then emits the cheapest of
// SourceRead, SourceCopy, TargetCopy or TargetRead.
func Encode(source, modified []byte, opts EncodeOptions) (*EncodeResult, error) {
	minCopyLen, err := resolveMinCopyLen(opts.MinCopyLen)
	if err != nil {
		return nil, err
	}

	w := &patchWriter{}
	w.writeHeader(len(source), len(modified), opts.Metadata)

	sourceSet := buildSubstringSet(source, minCopyLen)
	modifiedSet := make(map[string]struct{})

	var stats EncodeStats
	pos := 0
	prevPos := 0
	trgReadStart := -1
	srcCopyOff := int64(0)
	trgCopyOff := int64(0)

	flushTargetRead := func() {
		if trgReadStart == -1 {
			return
		}
		length := pos - trgReadStart
		w.blockHeader(length, TargetRead)
		w.writeBytes(modified[trgReadStart:pos])
		stats.TargetReadBlocks++
		stats.TargetReadBytes += length
		trgReadStart = -1
	}

	for pos < len(modified) {
		// The decoder can only read bytes it has already produced, so
		// TargetCopy matches may only reference prefixes of modified
		// already emitted. Grow modifiedSet with the windows that became
		// visible since the previous iteration.
		lo := max(prevPos-minCopyLen+1, 0)
		hi := max(pos-minCopyLen+1, 0)
		for i := lo; i < hi; i++ {
			modifiedSet[string(modified[i:i+minCopyLen])] = struct{}{}
		}
		prevPos = pos

		var srcLen, trgLen int
		if pos+minCopyLen <= len(modified) {
			key := string(modified[pos : pos+minCopyLen])
			if _, ok := sourceSet[key]; ok {
				srcLen = longestPrefix(modified[pos:], source)
			}
			if _, ok := modifiedSet[key]; ok {
				trgLen = longestPrefix(modified[pos:], modified[:pos])
			}
		}

		switch {
		case srcLen >= minCopyLen && srcLen >= trgLen:
			flushTargetRead()
			if pos+srcLen <= len(source) && bytes.Equal(source[pos:pos+srcLen], modified[pos:pos+srcLen]) {
				w.blockHeader(srcLen, SourceRead)
				stats.SourceReadBlocks++
				stats.SourceReadBytes += srcLen
			} else {
				p := bytes.Index(source, modified[pos:pos+srcLen])
				w.blockHeader(srcLen, SourceCopy)
				w.writeBytes(encodeSignedInt(int64(p) - srcCopyOff))
				srcCopyOff = int64(p) + int64(srcLen)
				stats.SourceCopyBlocks++
				stats.SourceCopyBytes += srcLen
			}
			pos += srcLen

		case trgLen >= minCopyLen:
			flushTargetRead()
			p := bytes.Index(modified[:pos], modified[pos:pos+trgLen])
			w.blockHeader(trgLen, TargetCopy)
			w.writeBytes(encodeSignedInt(int64(p) - trgCopyOff))
			trgCopyOff = int64(p) + int64(trgLen)
			stats.TargetCopyBlocks++
			stats.TargetCopyBytes += trgLen
			pos += trgLen

		default:
			if trgReadStart == -1 {
				trgReadStart = pos
			}
			pos++
		}
	}
	flushTargetRead()

	return &EncodeResult{Patch: w.finish(source, modified), Stats: stats}, nil
}
