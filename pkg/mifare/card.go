package mifare

import (
	"errors"
	"fmt"
)

// Card abstracts card transmit behavior for real PC/SC cards and test doubles.
type Card interface {
	Transmit(apdu []byte) ([]byte, error)
}

// Transmit sends an APDU to the card and extracts the status word.
// Returns (response_data, status_word, error).
// The response data does NOT include the trailing SW bytes.
func Transmit(card Card, apdu []byte) ([]byte, uint16, error) {
	resp, err := card.Transmit(apdu)
	if err != nil {
		return nil, 0, err
	}
	if len(resp) < 2 {
		return nil, 0, fmt.Errorf("short response: %d bytes", len(resp))
	}
	sw := uint16(resp[len(resp)-2])<<8 | uint16(resp[len(resp)-1])
	return resp[:len(resp)-2], sw, nil
}

// GetUID retrieves the card UID via the PC/SC GET DATA pseudo-APDU (FF CA 00 00 00).
// No key or authentication is needed. A single exchange is made; Le=0x00 asks
// the reader for the full UID whatever its length.
func GetUID(card Card) ([]byte, error) {
	apdu := []byte{claPCSC, insGetData, 0x00, 0x00, 0x00}
	data, sw, err := Transmit(card, apdu)
	if err != nil {
		return nil, &Failure{Kind: FailureTransport, Block: -1, Cause: err}
	}
	if !SwOK(sw) {
		return nil, &Failure{Kind: FailureRead, Block: -1, Cause: &SWError{Cmd: insGetData, SW: sw}}
	}
	if len(data) == 0 {
		return nil, &Failure{Kind: FailureRead, Block: -1, Cause: errors.New("empty UID")}
	}
	return data, nil
}
