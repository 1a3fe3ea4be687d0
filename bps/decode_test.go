package bps

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecodeScenarioS3NoOp covers spec scenario S3: S == T, the encoder
// emits a single SourceRead, and every footer CRC agrees.
func TestDecodeScenarioS3NoOp(t *testing.T) {
	source := []byte{0x01, 0x02, 0x03, 0x04}
	target := []byte{0x01, 0x02, 0x03, 0x04}

	result, err := Encode(source, target, EncodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.SourceReadBlocks)
	assert.Zero(t, result.Stats.TargetReadBlocks+result.Stats.SourceCopyBlocks+result.Stats.TargetCopyBlocks)

	decoded, err := Decode(source, result.Patch)
	require.NoError(t, err)
	assert.Equal(t, target, decoded.Target)
	assert.Empty(t, decoded.Warnings)
}

// TestDecodeScenarioS4TargetCopySelfReference covers spec scenario S4: a
// hand-built TargetCopy block that reads a byte it is itself in the
// process of writing.
func TestDecodeScenarioS4TargetCopySelfReference(t *testing.T) {
	source := []byte{0xAB}
	target := []byte{0xAB, 0xCD, 0xCD, 0xCD, 0xCD, 0xCD}

	w := &patchWriter{}
	w.writeHeader(len(source), len(target), nil)
	w.blockHeader(1, SourceRead)
	w.blockHeader(1, TargetRead)
	w.writeBytes([]byte{0xCD})
	w.blockHeader(4, TargetCopy)
	w.writeBytes(encodeSignedInt(1)) // cursor starts at 0; point at index 1
	patch := w.finish(source, target)

	decoded, err := Decode(source, patch)
	require.NoError(t, err)
	assert.Equal(t, target, decoded.Target)
	assert.Empty(t, decoded.Warnings)
}

// TestDecodeTargetCopyRLE covers the testable-properties §8.5 scenario:
// an empty source and a 256-byte run of one value, produced entirely by a
// single TargetRead seeding the first byte and a self-referential
// TargetCopy for the rest.
func TestDecodeTargetCopyRLE(t *testing.T) {
	var source []byte
	target := bytes.Repeat([]byte{0x5A}, 256)

	w := &patchWriter{}
	w.writeHeader(len(source), len(target), nil)
	w.blockHeader(1, TargetRead)
	w.writeBytes(target[:1])
	w.blockHeader(255, TargetCopy)
	w.writeBytes(encodeSignedInt(0)) // cursor starts at 0; point at index 0
	patch := w.finish(source, target)

	decoded, err := Decode(source, patch)
	require.NoError(t, err)
	assert.Equal(t, target, decoded.Target)
}

func TestDecodeRejectsTruncatedPatch(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3}, []byte("short"))
	require.Error(t, err)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	patch := make([]byte, 4+12)
	copy(patch, "XPS1")
	_, err := Decode(nil, patch)
	require.Error(t, err)
}

func TestDecodeWarnsOnWrongFourthMagicByte(t *testing.T) {
	w := &patchWriter{}
	w.writeBytes([]byte("BPS2"))
	w.writeBytes(encodeUint(0))
	w.writeBytes(encodeUint(0))
	w.writeBytes(encodeUint(0))
	patch := w.finish(nil, nil)

	decoded, err := Decode(nil, patch)
	require.NoError(t, err)
	assert.NotEmpty(t, decoded.Warnings)
}

func TestDecodeRejectsSourceReadPastEnd(t *testing.T) {
	source := []byte{1, 2}
	w := &patchWriter{}
	w.writeHeader(len(source), 10, nil)
	w.blockHeader(10, SourceRead)
	patch := w.finish(source, make([]byte, 10))

	_, err := Decode(source, patch)
	require.Error(t, err)
}

func TestDecodeRejectsSourceCopyOutOfRange(t *testing.T) {
	source := []byte{1, 2, 3}
	w := &patchWriter{}
	w.writeHeader(len(source), 2, nil)
	w.blockHeader(2, SourceCopy)
	w.writeBytes(encodeSignedInt(5)) // points past end of a 3-byte source
	patch := w.finish(source, []byte{0, 0})

	_, err := Decode(source, patch)
	require.Error(t, err)
}

func TestDecodeRejectsTargetCopyUnready(t *testing.T) {
	w := &patchWriter{}
	w.writeHeader(0, 2, nil)
	w.blockHeader(2, TargetCopy)
	w.writeBytes(encodeSignedInt(0)) // nothing written yet; dstOff 0 is not < len(out)==0
	patch := w.finish(nil, []byte{0, 0})

	_, err := Decode(nil, patch)
	require.Error(t, err)
}
