package ips

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode(nil, []byte("NOPE1234"), DecodeOptions{})
	require.Error(t, err)
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	_, err := Decode(nil, []byte("PA"), DecodeOptions{})
	require.Error(t, err)
}

func TestDecodeEmptyPatchIsNoOp(t *testing.T) {
	source := []byte{1, 2, 3}
	patch := append(append([]byte{}, header...), eofMarker...)

	decoded, err := Decode(source, patch, DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, source, decoded.Target)
	assert.Empty(t, decoded.Warnings)
}

func TestDecodeRejectsOffsetPastEnd(t *testing.T) {
	source := []byte{1, 2, 3}
	patch := append([]byte{}, header...)
	offset, _ := encodeU24(10)
	patch = append(patch, offset...)
	length, _ := encodeU16(1)
	patch = append(patch, length...)
	patch = append(patch, 0xFF)
	patch = append(patch, eofMarker...)

	_, err := Decode(source, patch, DecodeOptions{})
	require.Error(t, err)
}

func TestDecodeRecordCanExtendOutput(t *testing.T) {
	source := []byte{1, 2, 3}
	patch := append([]byte{}, header...)
	offset, _ := encodeU24(3)
	patch = append(patch, offset...)
	length, _ := encodeU16(2)
	patch = append(patch, length...)
	patch = append(patch, 0xAA, 0xBB)
	patch = append(patch, eofMarker...)

	decoded, err := Decode(source, patch, DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 0xAA, 0xBB}, decoded.Target)
}

func TestDecodeWarnsOnSmallRLECount(t *testing.T) {
	source := []byte{0, 0, 0}
	patch := append([]byte{}, header...)
	offset, _ := encodeU24(0)
	patch = append(patch, offset...)
	patch = append(patch, 0x00, 0x00) // length 0 => RLE record
	count, _ := encodeU16(2)
	patch = append(patch, count...)
	patch = append(patch, 0x7E)
	patch = append(patch, eofMarker...)

	decoded, err := Decode(source, patch, DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7E, 0x7E, 0}, decoded.Target)
	assert.NotEmpty(t, decoded.Warnings)
}

func TestDecodeChecksInputAndOutputCRC(t *testing.T) {
	source := []byte{1, 2, 3}
	patch := append(append([]byte{}, header...), eofMarker...)

	decoded, err := Decode(source, patch, DecodeOptions{
		HasInputCRC32: true, InputCRC32: crc32.ChecksumIEEE(source) + 1,
		HasOutputCRC32: true, OutputCRC32: crc32.ChecksumIEEE(source),
	})
	require.NoError(t, err)
	assert.Len(t, decoded.Warnings, 1)
}
