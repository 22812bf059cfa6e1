package mifare_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barnettlynn/nfctools/pkg/mifare"
)

func TestDecodeMoney(t *testing.T) {
	payload := make([]byte, mifare.BlockSize)
	payload[9], payload[10] = 0x00, 0x64

	cents, ok := mifare.DecodeMoney(mifare.HexUpper(payload))
	require.True(t, ok)
	assert.Equal(t, uint16(100), cents)
}

func TestDecodeMoneyTooShort(t *testing.T) {
	_, ok := mifare.DecodeMoney("")
	assert.False(t, ok)
	_, ok = mifare.DecodeMoney("000000000000000000001") // 21 chars
	assert.False(t, ok)

	cents, ok := mifare.DecodeMoney("0000000000000000000102") // exactly 22
	require.True(t, ok)
	assert.Equal(t, uint16(0x0102), cents)
}

func TestEncodeMoneyTouchesOnlyBalanceBytes(t *testing.T) {
	payload := blockFill(45)
	out, err := mifare.EncodeMoney(payload, 250)
	require.NoError(t, err)

	for i := range payload {
		switch i {
		case 9:
			assert.Equal(t, byte(0x00), out[i])
		case 10:
			assert.Equal(t, byte(0xFA), out[i])
		default:
			assert.Equal(t, payload[i], out[i], "byte %d", i)
		}
	}
	// input untouched
	assert.Equal(t, blockFill(45), payload)
}

func TestEncodeDecodeAddressSameBytes(t *testing.T) {
	for _, cents := range []int{0, 1, 100, 250, 0x1234, 0xFFFF} {
		out, err := mifare.EncodeMoney(make([]byte, mifare.BlockSize), cents)
		require.NoError(t, err)
		got, ok := mifare.DecodeMoney(mifare.HexUpper(out))
		require.True(t, ok)
		assert.Equal(t, uint16(cents), got)
	}
}

func TestEncodeMoneyTruncatesTo16Bits(t *testing.T) {
	out, err := mifare.EncodeMoney(make([]byte, mifare.BlockSize), 0x12345)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x23, 0x45}, out[9:11])
}

func TestEncodeMoneyBadLength(t *testing.T) {
	_, err := mifare.EncodeMoney(make([]byte, 10), 1)
	require.Error(t, err)
}
