package mifare_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barnettlynn/nfctools/pkg/mifare"
)

func TestParseDumpExtractsTrailers(t *testing.T) {
	img := testImage(t)
	ka, kb := sectorKeys()

	sectors, err := mifare.ParseDump(img)
	require.NoError(t, err)
	require.Len(t, sectors, mifare.Sectors)
	for i, sk := range sectors {
		assert.Equal(t, i, sk.Sector)
		assert.Equal(t, ka[i], sk.KeyA)
		assert.Equal(t, kb[i], sk.KeyB)
		assert.Equal(t, [4]byte{0xFF, 0x07, 0x80, 0x69}, sk.Access)
	}
}

func TestParseDumpRawOffsets(t *testing.T) {
	img := make([]byte, mifare.DumpSize)
	// sector 3: key A at 3*64+48, access at +54, key B at +58
	copy(img[3*64+48:], []byte{1, 2, 3, 4, 5, 6})
	copy(img[3*64+54:], []byte{7, 8, 9, 10})
	copy(img[3*64+58:], []byte{11, 12, 13, 14, 15, 16})

	sectors, err := mifare.ParseDump(img)
	require.NoError(t, err)
	assert.Equal(t, mifare.Key{1, 2, 3, 4, 5, 6}, sectors[3].KeyA)
	assert.Equal(t, [4]byte{7, 8, 9, 10}, sectors[3].Access)
	assert.Equal(t, mifare.Key{11, 12, 13, 14, 15, 16}, sectors[3].KeyB)
}

func TestParseDumpAcceptsMultipleOf1024(t *testing.T) {
	img := append(testImage(t), make([]byte, mifare.DumpSize)...)
	sectors, err := mifare.ParseDump(img)
	require.NoError(t, err)
	ka, _ := sectorKeys()
	assert.Equal(t, ka[15], sectors[15].KeyA)
}

func TestParseDumpRejectsBadLength(t *testing.T) {
	for _, n := range []int{0, 1, 63, 1023, 1025, 2047} {
		_, err := mifare.ParseDump(make([]byte, n))
		require.Error(t, err, "length %d", n)
		assert.True(t, mifare.IsParseError(err))
	}
}

func TestSectorGeometry(t *testing.T) {
	assert.Equal(t, 0, mifare.SectorOf(3))
	assert.Equal(t, 11, mifare.SectorOf(45))
	assert.Equal(t, 15, mifare.SectorOf(63))
	assert.Equal(t, 3, mifare.TrailerBlock(0))
	assert.Equal(t, 47, mifare.TrailerBlock(11))
}
