package mifare

import (
	"errors"
	"log/slog"
)

// PC/SC pseudo-APDU class and instructions for contactless storage cards.
const (
	claPCSC         = 0xFF
	insLoadKey      = 0x82
	insAuthenticate = 0x86
	insReadBinary   = 0xB0
	insUpdateBinary = 0xD6
	insGetData      = 0xCA

	loadKeyVolatile  = 0x20 // P1: key goes to reader volatile memory
	readerKeySlot    = 0x00 // reader key slot used for every block
	authBlockVersion = 0x01
)

// LoadKey loads a 6-byte key into reader key slot 0 (FF 82 20 00 06 <key>).
func LoadKey(card Card, key Key) error {
	apdu := make([]byte, 0, 5+KeySize)
	apdu = append(apdu, claPCSC, insLoadKey, loadKeyVolatile, readerKeySlot, KeySize)
	apdu = append(apdu, key[:]...)
	_, sw, err := Transmit(card, apdu)
	if err != nil {
		return err
	}
	if !SwOK(sw) {
		return &SWError{Cmd: insLoadKey, SW: sw}
	}
	return nil
}

// Authenticate runs GENERAL AUTHENTICATE for block with the key in slot 0.
//
//	FF 86 00 00 05 | 01 00 <block> <60|61> 00
//
// The authenticated state covers this block only as far as this package is
// concerned: callers authenticate again before touching another block.
func Authenticate(card Card, block int, t KeyType) error {
	if err := checkBlock(block, FailureAuth); err != nil {
		return err
	}
	apdu := []byte{claPCSC, insAuthenticate, 0x00, 0x00, 0x05,
		authBlockVersion, 0x00, byte(block), byte(t), readerKeySlot}
	_, sw, err := Transmit(card, apdu)
	if err != nil {
		return err
	}
	if !SwOK(sw) {
		return &SWError{Cmd: insAuthenticate, SW: sw}
	}
	return nil
}

// AuthenticateForRead authenticates block for a following ReadBlock.
// See authenticateBlock for the key order.
func AuthenticateForRead(card Card, keys *KeyStore, block int) (KeyType, error) {
	return authenticateBlock(card, keys, block, "read")
}

// AuthenticateForWrite authenticates block for a following WriteBlock.
// See authenticateBlock for the key order.
func AuthenticateForWrite(card Card, keys *KeyStore, block int) (KeyType, error) {
	return authenticateBlock(card, keys, block, "write")
}

// AuthenticateKey loads the stored key of type t for block and
// authenticates with it: one LoadKey and one Authenticate, no fallback.
func AuthenticateKey(card Card, keys *KeyStore, block int, t KeyType) error {
	if err := checkBlock(block, FailureAuth); err != nil {
		return err
	}
	key, ok := keys.Lookup(block, t)
	if !ok {
		return &Failure{Kind: FailureNoKey, Block: block, KeyType: t}
	}
	err := LoadKey(card, key)
	if err == nil {
		err = Authenticate(card, block, t)
	}
	if err == nil {
		return nil
	}
	kind := FailureAuth
	var swErr *SWError
	if !errors.As(err, &swErr) {
		kind = FailureTransport
	}
	return &Failure{Kind: kind, Block: block, KeyType: t, Cause: err}
}

// authenticateBlock tries, in this order and once each:
//  1. Key A: LoadKey then Authenticate
//  2. Key B: LoadKey then Authenticate
//
// A key missing from the store is skipped without sending anything. When
// no key is registered at all the Failure kind is FailureNoKey; otherwise
// the Failure of the last key tried is returned.
func authenticateBlock(card Card, keys *KeyStore, block int, op string) (KeyType, error) {
	var lastErr error
	for _, t := range []KeyType{KeyA, KeyB} {
		err := AuthenticateKey(card, keys, block, t)
		if err == nil {
			slog.Debug("authenticated", "op", op, "block", block, "key", t)
			return t, nil
		}
		if IsNoKey(err) {
			continue
		}
		slog.Debug("authentication failed", "op", op, "block", block, "key", t, "error", err)
		lastErr = err
	}
	if lastErr == nil {
		return 0, &Failure{Kind: FailureNoKey, Block: block}
	}
	return 0, lastErr
}
