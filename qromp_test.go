package qromp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFromExt(t *testing.T) {
	f, err := FormatFromExt("patches/rom.BPS")
	require.NoError(t, err)
	assert.Equal(t, BPS, f)

	f, err = FormatFromExt("rom.ips")
	require.NoError(t, err)
	assert.Equal(t, IPS, f)

	_, err = FormatFromExt("rom.xyz")
	require.Error(t, err)
}

func TestCreateThenApplyBPS(t *testing.T) {
	source := []byte("the quick brown fox")
	modified := []byte("the slow brown fox ")

	created, err := Create(BPS, source, modified, CreateOptions{})
	require.NoError(t, err)
	require.NotNil(t, created.Stats.BPS)

	applied, err := Apply(BPS, source, created.Patch, ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, modified, applied.Target)
	assert.Empty(t, applied.Warnings)
}

func TestCreateThenApplyIPS(t *testing.T) {
	source := make([]byte, 32)
	modified := append([]byte{}, source...)
	modified[10] = 0xAB

	created, err := Create(IPS, source, modified, CreateOptions{})
	require.NoError(t, err)
	require.NotNil(t, created.Stats.IPS)

	applied, err := Apply(IPS, source, created.Patch, ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, modified, applied.Target)
}

func TestApplyUnknownFormatRejected(t *testing.T) {
	_, err := Apply(Format(99), nil, nil, ApplyOptions{})
	require.Error(t, err)
}
