package objfile

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectFormatByExtension(t *testing.T) {
	f, name, err := SelectFormat("out.hex")
	require.NoError(t, err)
	assert.Equal(t, IntelHex, f)
	assert.Equal(t, "out.hex", name)

	f, _, _ = SelectFormat("out.srec")
	assert.Equal(t, SRecord, f)

	f, _, _ = SelectFormat("out.bin")
	assert.Equal(t, Binary, f)
}

func TestSelectFormatByPrefix(t *testing.T) {
	f, name, err := SelectFormat("ihex:out.rom")
	require.NoError(t, err)
	assert.Equal(t, IntelHex, f)
	assert.Equal(t, "out.rom", name)
}

// TestBasicProgramIntelHexEncoding reproduces the Intel HEX envelope for a
// tiny 6-byte program at origin 0xC000 with start address 0xC000.
func TestBasicProgramIntelHexEncoding(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/out.hex"

	e, err := Open(path, IntelHex, false, 0)
	require.NoError(t, err)
	require.NoError(t, e.SetAddress(0xC000, 2))
	for _, b := range []byte{0xA9, 0x41, 0x8D, 0x00, 0x04, 0x60} {
		require.NoError(t, e.EmitByte(b, 2))
	}
	e.SetStart(0xC000, 2)
	require.NoError(t, e.Finish(2))
	require.NoError(t, e.Close(true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, ":06C00000A9418D0004605F", lines[0])
	assert.Equal(t, ":040000050000C00037", lines[1])
	assert.Equal(t, ":00000001FF", lines[2])
}

// TestScenarioS3IntelHexEnvelope reproduces the two-byte program at origin
// 0x0100 with start address 0x0100: exactly the data/start/EOF record triple
// the Intel HEX format section specifies, checksums included.
func TestScenarioS3IntelHexEnvelope(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/out.hex"

	e, err := Open(path, IntelHex, false, 0)
	require.NoError(t, err)
	require.NoError(t, e.SetAddress(0x0100, 2))
	require.NoError(t, e.EmitByte(0xAA, 2))
	require.NoError(t, e.EmitByte(0xBB, 2))
	e.SetStart(0x0100, 2)
	require.NoError(t, e.Finish(2))
	require.NoError(t, e.Close(true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, ":02010000AABB98", lines[0])
	assert.Equal(t, ":0400000500000100F6", lines[1])
	assert.Equal(t, ":00000001FF", lines[2])
}

func TestBinaryAutofill(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/out.bin"
	e, err := Open(path, Binary, true, 0xFF)
	require.NoError(t, err)
	require.NoError(t, e.SetAddress(0x10, 2))
	_ = e.EmitByte(0x01, 2)
	require.NoError(t, e.SetAddress(0x14, 2))
	_ = e.EmitByte(0x02, 2)
	require.NoError(t, e.Finish(2))
	require.NoError(t, e.Close(true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0xFF, 0xFF, 0xFF, 0x02}, data)
}

func TestCloseDiscardsOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/out.bin"
	e, err := Open(path, Binary, false, 0)
	require.NoError(t, err)
	_ = e.EmitByte(0x01, 2)
	require.NoError(t, e.Close(false))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "expected output file to be removed on failed close")
}
