package mifare

import (
	"errors"
	"fmt"
)

// ReadBlock reads one 16-byte block with READ BINARY (FF B0 00 <block> 10).
// The block must have been authenticated immediately before.
//
// Fail states:
//   - non-9000 SW (not authenticated, access bits deny read): FailureRead
//   - 9000 with no data: FailureRead
//   - reader error: FailureTransport
func ReadBlock(card Card, block int) ([]byte, error) {
	if err := checkBlock(block, FailureRead); err != nil {
		return nil, err
	}
	apdu := []byte{claPCSC, insReadBinary, 0x00, byte(block), BlockSize}
	data, sw, err := Transmit(card, apdu)
	if err != nil {
		return nil, &Failure{Kind: FailureTransport, Block: block, Cause: err}
	}
	if !SwOK(sw) {
		return nil, &Failure{Kind: FailureRead, Block: block, Cause: &SWError{Cmd: insReadBinary, SW: sw}}
	}
	if len(data) == 0 {
		return nil, &Failure{Kind: FailureRead, Block: block, Cause: errors.New("empty payload")}
	}
	return data, nil
}

// WriteBlock writes exactly 16 bytes with UPDATE BINARY (FF D6 00 <block> 10 <data>).
// The block must have been authenticated immediately before.
func WriteBlock(card Card, block int, data []byte) error {
	if err := checkBlock(block, FailureWrite); err != nil {
		return err
	}
	if len(data) != BlockSize {
		return &Failure{Kind: FailureWrite, Block: block, Cause: fmt.Errorf("data must be %d bytes, got %d", BlockSize, len(data))}
	}
	apdu := make([]byte, 0, 5+BlockSize)
	apdu = append(apdu, claPCSC, insUpdateBinary, 0x00, byte(block), BlockSize)
	apdu = append(apdu, data...)
	_, sw, err := Transmit(card, apdu)
	if err != nil {
		return &Failure{Kind: FailureTransport, Block: block, Cause: err}
	}
	if !SwOK(sw) {
		return &Failure{Kind: FailureWrite, Block: block, Cause: &SWError{Cmd: insUpdateBinary, SW: sw}}
	}
	return nil
}

// ErrBlockRange is the cause of a Failure for a block number outside 0..63.
var ErrBlockRange = errors.New("block out of range")

func checkBlock(block int, kind FailureKind) error {
	if block < 0 || block >= Blocks {
		return &Failure{Kind: kind, Block: block, Cause: fmt.Errorf("%w: %d (0..%d)", ErrBlockRange, block, Blocks-1)}
	}
	return nil
}
