package ips

import "github.com/qalle2/qromp/patcherr"

// DefaultMinRleLen and DefaultMaxUnchangedLen are used when the
// corresponding EncodeOptions field is left at its zero value by a
// caller that means "unset" rather than literally zero.
const (
	DefaultMinRleLen       = 9
	DefaultMaxUnchangedLen = 1
	maxSourceSize          = 1 << 24 // the format's 24-bit offset ceiling
)

// EncodeOptions configures the IPS encoder.
type EncodeOptions struct {
	// MinRleLen is the minimum run length worth encoding as an RLE
	// record instead of literal bytes. Range [1, 16]; zero means
	// DefaultMinRleLen.
	MinRleLen int
	// MaxUnchangedLen is the largest gap of unchanged bytes the encoder
	// will fold into a surrounding differing run rather than emit as a
	// separate record. Range [0, 16].
	MaxUnchangedLen int
	// MaxUnchangedLenSet distinguishes an explicit --max-unchg-len 0 from a
	// caller that left the field unset; without it, a real request for
	// zero would be silently promoted to DefaultMaxUnchangedLen.
	MaxUnchangedLenSet bool
}

// EncodeStats tallies the records emitted by kind, for verbose CLI
// reporting.
type EncodeStats struct {
	LiteralRecords, RLERecords int
	LiteralBytes, RLEBytes     int
}

// EncodeResult is the output of a successful Encode.
type EncodeResult struct {
	Patch []byte
	Stats EncodeStats
}

type diffRun struct {
	start, length int
}

func (r diffRun) end() int { return r.start + r.length }

// diffRuns walks source and modified in parallel and yields (start,
// length) of every maximal differing run, chunked at maxRecordLen, plus
// any trailing bytes of modified beyond len(source).
func diffRuns(source, modified []byte) []diffRun {
	var runs []diffRun
	n := min(len(source), len(modified))
	start := -1
	for pos := 0; pos < n; pos++ {
		differs := source[pos] != modified[pos]
		switch {
		case start == -1 && differs:
			start = pos
		case start != -1 && !differs:
			runs = append(runs, diffRun{start, pos - start})
			start = -1
		case start != -1 && pos-start == maxRecordLen:
			runs = append(runs, diffRun{start, pos - start})
			start = pos
		}
	}
	if start != -1 {
		runs = append(runs, diffRun{start, n - start})
	}
	for s := n; s < len(modified); s += maxRecordLen {
		runs = append(runs, diffRun{s, min(len(modified)-s, maxRecordLen)})
	}
	return runs
}

// mergeGaps fuses differing runs separated by a short unchanged gap into
// one larger run (spanning the unchanged bytes, which will be re-copied
// from modified), as long as the fused run still fits in maxRecordLen.
func mergeGaps(runs []diffRun, maxGap int) []diffRun {
	var out []diffRun
	var buf []diffRun
	for _, r := range runs {
		buf = append(buf, r)
		if len(buf) >= 2 {
			last, prev := buf[len(buf)-1], buf[len(buf)-2]
			gap := last.start - prev.end()
			span := last.end() - buf[0].start
			if gap > maxGap || span > maxRecordLen {
				out = append(out, diffRun{buf[0].start, prev.end() - buf[0].start})
				buf = buf[len(buf)-1:]
			}
		}
	}
	if len(buf) > 0 {
		out = append(out, diffRun{buf[0].start, buf[len(buf)-1].end() - buf[0].start})
	}
	return out
}

type subBlock struct {
	start, length int
	rle           bool
}

// stripTrailingRun returns the length of b with any trailing run of
// value v removed.
func stripTrailingRun(b []byte, v byte) int {
	i := len(b)
	for i > 0 && b[i-1] == v {
		i--
	}
	return i
}

// splitSubBlocks splits each merged run into alternating non-RLE and RLE
// subblocks, e.g. "ABBCCCCDDDDDEF" -> "ABB", 4*C, 5*D, "EF" (the trailing
// run only becomes its own RLE subblock once it reaches minRleLen).
func splitSubBlocks(runs []diffRun, modified []byte, minRleLen int) []subBlock {
	var out []subBlock
	for _, run := range runs {
		block := modified[run.start : run.start+run.length]
		subStart := 0

		emit := func(subPos int) {
			nonRleLen := stripTrailingRun(block[subStart:subPos], block[subPos-1])
			rleLen := (subPos - subStart) - nonRleLen
			if rleLen < minRleLen {
				return
			}
			if nonRleLen > 0 {
				out = append(out, subBlock{run.start + subStart, nonRleLen, false})
			}
			out = append(out, subBlock{run.start + subStart + nonRleLen, rleLen, true})
			subStart = subPos
		}

		for subPos := 1; subPos < run.length; subPos++ {
			if block[subPos] != block[subPos-1] {
				emit(subPos)
			}
		}

		nonRleLen := stripTrailingRun(block[subStart:], block[run.length-1])
		rleLen := run.length - subStart - nonRleLen
		if rleLen < minRleLen {
			nonRleLen += rleLen
			rleLen = 0
		}
		if nonRleLen > 0 {
			out = append(out, subBlock{run.start + subStart, nonRleLen, false})
		}
		if rleLen > 0 {
			out = append(out, subBlock{run.start + subStart + nonRleLen, rleLen, true})
		}
	}
	return out
}

// Encode diffs source against modified and produces an IPS patch:
// maximal differing runs, merged across small unchanged gaps, split into
// RLE and literal subblocks. It inherits the format's known EOF-address
// (0x454F46) collision and does not work around it.
func Encode(source, modified []byte, opts EncodeOptions) (*EncodeResult, error) {
	if len(modified) < len(source) {
		return nil, patcherr.New(patcherr.SizeMismatch, "IPS encode requires modified to be at least as large as the original")
	}
	if len(source) > maxSourceSize {
		return nil, patcherr.New(patcherr.SizeMismatch, "IPS encode does not support sources larger than 16 MiB")
	}

	minRleLen := opts.MinRleLen
	if minRleLen == 0 {
		minRleLen = DefaultMinRleLen
	}
	if minRleLen < 1 || minRleLen > 16 {
		return nil, patcherr.New(patcherr.BadPatch, "min-rle-len must be in [1, 16]")
	}

	maxUnchangedLen := DefaultMaxUnchangedLen
	if opts.MaxUnchangedLenSet {
		maxUnchangedLen = opts.MaxUnchangedLen
	}
	if maxUnchangedLen < 0 || maxUnchangedLen > 16 {
		return nil, patcherr.New(patcherr.BadPatch, "max-unchg-len must be in [0, 16]")
	}

	runs := mergeGaps(diffRuns(source, modified), maxUnchangedLen)
	subBlocks := splitSubBlocks(runs, modified, minRleLen)

	buf := append([]byte{}, header...)
	var stats EncodeStats
	for _, sb := range subBlocks {
		offsetBytes, err := encodeU24(sb.start)
		if err != nil {
			return nil, err
		}
		buf = append(buf, offsetBytes...)

		if sb.rle {
			zero, _ := encodeU16(0)
			count, err := encodeU16(sb.length)
			if err != nil {
				return nil, err
			}
			buf = append(buf, zero...)
			buf = append(buf, count...)
			buf = append(buf, modified[sb.start])
			stats.RLERecords++
			stats.RLEBytes += sb.length
		} else {
			length, err := encodeU16(sb.length)
			if err != nil {
				return nil, err
			}
			buf = append(buf, length...)
			buf = append(buf, modified[sb.start:sb.start+sb.length]...)
			stats.LiteralRecords++
			stats.LiteralBytes += sb.length
		}
	}
	buf = append(buf, eofMarker...)

	return &EncodeResult{Patch: buf, Stats: stats}, nil
}
