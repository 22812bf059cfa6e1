package mifare

import "fmt"

// MoneyBlock holds the stored balance.
const MoneyBlock = 45

// The balance is a big-endian uint16 count of cents at bytes 9..10 of the
// block, i.e. characters 18..21 of its hex form.
const (
	moneyByteOffset = 9
	moneyHexOffset  = moneyByteOffset * 2
	moneyHexLen     = 4
)

// DecodeMoney reads the balance from the hex form of block 45.
// ok is false when the string is too short to reach the field or the
// field is not valid hex.
func DecodeMoney(blockHex string) (cents uint16, ok bool) {
	if len(blockHex) < moneyHexOffset+moneyHexLen {
		return 0, false
	}
	b, err := FromHex(blockHex[moneyHexOffset : moneyHexOffset+moneyHexLen])
	if err != nil {
		return 0, false
	}
	return uint16(b[0])<<8 | uint16(b[1]), true
}

// EncodeMoney returns a copy of payload with the balance set to target.
// Only bytes 9 and 10 change: byte 9 = (target>>8)&0xFF, byte 10 = target&0xFF.
// Values outside 0..65535 are truncated to their low 16 bits.
func EncodeMoney(payload []byte, target int) ([]byte, error) {
	if len(payload) != BlockSize {
		return nil, fmt.Errorf("money block must be %d bytes, got %d", BlockSize, len(payload))
	}
	out := make([]byte, BlockSize)
	copy(out, payload)
	out[moneyByteOffset] = byte((target >> 8) & 0xFF)
	out[moneyByteOffset+1] = byte(target & 0xFF)
	return out, nil
}
