package mifare

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// HexUpper encodes b as uppercase hex with no separators.
func HexUpper(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// FromHex decodes a hex string of either case. Odd length or a non-hex
// character yields a *ParseError.
func FromHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, &ParseError{Source: "hex", Offset: len(s) - 1, Msg: fmt.Sprintf("odd length %d", len(s))}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		offset := -1
		var inv hex.InvalidByteError
		if errors.As(err, &inv) {
			offset = strings.IndexByte(s, byte(inv))
		}
		return nil, &ParseError{Source: "hex", Offset: offset, Msg: "invalid hex", Cause: err}
	}
	return b, nil
}
