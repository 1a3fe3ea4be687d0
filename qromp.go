// Package qromp ties the bps and ips packages together behind a single
// apply/create API, dispatching on file extension the way the original
// qromp tool does.
package qromp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qalle2/qromp/bps"
	"github.com/qalle2/qromp/ips"
	"github.com/qalle2/qromp/patcherr"
)

// Format identifies a patch file format.
type Format int

const (
	BPS Format = iota
	IPS
)

func (f Format) String() string {
	switch f {
	case BPS:
		return "BPS"
	case IPS:
		return "IPS"
	default:
		return "unknown"
	}
}

// FormatFromExt maps a patch file's extension to a Format.
func FormatFromExt(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bps":
		return BPS, nil
	case ".ips":
		return IPS, nil
	default:
		return 0, patcherr.New(patcherr.BadPatch, fmt.Sprintf("unrecognized patch extension: %q", filepath.Ext(path)))
	}
}

// ApplyOptions carries the CLI-level knobs for Apply that the core
// codecs don't need for their own sake (CRC checks IPS has no built-in
// room for).
type ApplyOptions struct {
	HasInputCRC32  bool
	InputCRC32     uint32
	HasOutputCRC32 bool
	OutputCRC32    uint32
}

// ApplyResult is the common shape both formats' apply operations return.
type ApplyResult struct {
	Target   []byte
	Warnings []string
}

// Apply patches source with patch, dispatching on format.
func Apply(format Format, source, patch []byte, opts ApplyOptions) (*ApplyResult, error) {
	switch format {
	case BPS:
		res, err := bps.Decode(source, patch)
		if err != nil {
			return nil, err
		}
		return &ApplyResult{Target: res.Target, Warnings: res.Warnings}, nil
	case IPS:
		res, err := ips.Decode(source, patch, ips.DecodeOptions{
			HasInputCRC32:  opts.HasInputCRC32,
			InputCRC32:     opts.InputCRC32,
			HasOutputCRC32: opts.HasOutputCRC32,
			OutputCRC32:    opts.OutputCRC32,
		})
		if err != nil {
			return nil, err
		}
		return &ApplyResult{Target: res.Target, Warnings: res.Warnings}, nil
	default:
		return nil, patcherr.New(patcherr.BadPatch, "unknown patch format")
	}
}

// CreateOptions carries every format-specific encoder knob the CLI
// exposes; fields belonging to the format not chosen are ignored.
type CreateOptions struct {
	BPSMinCopyLen int
	BPSMetadata   []byte

	IPSMinRleLen          int
	IPSMaxUnchangedLen    int
	IPSMaxUnchangedLenSet bool
}

// CreateStats is a format-tagged union of the two encoders' stats, for
// verbose CLI reporting.
type CreateStats struct {
	BPS *bps.EncodeStats
	IPS *ips.EncodeStats
}

// CreateResult is the common shape both formats' create operations
// return.
type CreateResult struct {
	Patch []byte
	Stats CreateStats
}

// Create diffs source against modified and produces a patch, dispatching
// on format.
func Create(format Format, source, modified []byte, opts CreateOptions) (*CreateResult, error) {
	switch format {
	case BPS:
		res, err := bps.Encode(source, modified, bps.EncodeOptions{
			MinCopyLen: opts.BPSMinCopyLen,
			Metadata:   opts.BPSMetadata,
		})
		if err != nil {
			return nil, err
		}
		return &CreateResult{Patch: res.Patch, Stats: CreateStats{BPS: &res.Stats}}, nil
	case IPS:
		res, err := ips.Encode(source, modified, ips.EncodeOptions{
			MinRleLen:          opts.IPSMinRleLen,
			MaxUnchangedLen:    opts.IPSMaxUnchangedLen,
			MaxUnchangedLenSet: opts.IPSMaxUnchangedLenSet,
		})
		if err != nil {
			return nil, err
		}
		return &CreateResult{Patch: res.Patch, Stats: CreateStats{IPS: &res.Stats}}, nil
	default:
		return nil, patcherr.New(patcherr.BadPatch, "unknown patch format")
	}
}

// ApplyFile reads sourcePath and patchPath, applies the patch (format
// chosen by patchPath's extension), and writes the result to
// outputPath. It refuses to overwrite an existing output file.
func ApplyFile(sourcePath, patchPath, outputPath string, opts ApplyOptions) (*ApplyResult, error) {
	if _, err := os.Stat(outputPath); err == nil {
		return nil, patcherr.New(patcherr.IoError, "output file already exists: "+outputPath)
	}

	format, err := FormatFromExt(patchPath)
	if err != nil {
		return nil, err
	}

	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, patcherr.Wrap(patcherr.IoError, "reading original file", err)
	}
	patch, err := os.ReadFile(patchPath)
	if err != nil {
		return nil, patcherr.Wrap(patcherr.IoError, "reading patch file", err)
	}

	result, err := Apply(format, source, patch, opts)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(outputPath, result.Target, 0o644); err != nil {
		return nil, patcherr.Wrap(patcherr.IoError, "writing output file", err)
	}
	return result, nil
}

// CreateFile reads sourcePath and modifiedPath, encodes a patch (format
// chosen by patchPath's extension), and writes it to patchPath. It
// refuses to overwrite an existing patch file.
func CreateFile(sourcePath, modifiedPath, patchPath string, opts CreateOptions) (*CreateResult, error) {
	if _, err := os.Stat(patchPath); err == nil {
		return nil, patcherr.New(patcherr.IoError, "patch file already exists: "+patchPath)
	}

	format, err := FormatFromExt(patchPath)
	if err != nil {
		return nil, err
	}

	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, patcherr.Wrap(patcherr.IoError, "reading original file", err)
	}
	modified, err := os.ReadFile(modifiedPath)
	if err != nil {
		return nil, patcherr.Wrap(patcherr.IoError, "reading modified file", err)
	}

	result, err := Create(format, source, modified, opts)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(patchPath, result.Patch, 0o644); err != nil {
		return nil, patcherr.Wrap(patcherr.IoError, "writing patch file", err)
	}
	return result, nil
}
