package mifare

import (
	"bytes"
	"fmt"

	"github.com/spf13/afero"
)

// KeySize is the length of a MIFARE Classic key.
const KeySize = 6

// KeyType selects Key A or Key B. The values are the key type bytes of the
// PC/SC GENERAL AUTHENTICATE control block.
type KeyType byte

const (
	KeyA KeyType = 0x60
	KeyB KeyType = 0x61
)

func (t KeyType) String() string {
	switch t {
	case KeyA:
		return "A"
	case KeyB:
		return "B"
	default:
		return fmt.Sprintf("KeyType(0x%02X)", byte(t))
	}
}

// ParseKeyType accepts "A" or "B" in either case.
func ParseKeyType(s string) (KeyType, bool) {
	switch s {
	case "A", "a":
		return KeyA, true
	case "B", "b":
		return KeyB, true
	}
	return 0, false
}

// Key is a 6-byte MIFARE Classic sector key.
type Key [KeySize]byte

func (k Key) String() string {
	return HexUpper(k[:])
}

type keySlot struct {
	block int
	typ   KeyType
}

// KeyStore maps (block, key type) to a key. Keys are physically per sector,
// but the store is expanded so every block has its own entry.
//
// A KeyStore is never modified after construction and is safe for
// concurrent readers. The nil and zero values behave as an empty store.
type KeyStore struct {
	keys map[keySlot]Key
}

// EmptyKeyStore returns a store with no keys. Every lookup fails.
func EmptyKeyStore() *KeyStore {
	return &KeyStore{keys: map[keySlot]Key{}}
}

// KeyStoreFromSectors expands sector trailer keys to all 4 blocks of each sector.
// A store built from ParseDump output holds exactly 128 entries.
func KeyStoreFromSectors(sectors []SectorKey) *KeyStore {
	ks := &KeyStore{keys: make(map[keySlot]Key, len(sectors)*BlocksPerSector*2)}
	for _, sk := range sectors {
		for off := 0; off < BlocksPerSector; off++ {
			block := sk.Sector*BlocksPerSector + off
			ks.keys[keySlot{block, KeyA}] = sk.KeyA
			ks.keys[keySlot{block, KeyB}] = sk.KeyB
		}
	}
	return ks
}

// Lookup returns the key registered for block and key type.
func (ks *KeyStore) Lookup(block int, t KeyType) (Key, bool) {
	if ks == nil {
		return Key{}, false
	}
	k, ok := ks.keys[keySlot{block, t}]
	return k, ok
}

// Len returns the number of (block, key type) entries.
func (ks *KeyStore) Len() int {
	if ks == nil {
		return 0
	}
	return len(ks.keys)
}

// KeyFormat selects the on-disk key source.
type KeyFormat int

const (
	KeyFormatDump KeyFormat = iota // raw 1K card image
	KeyFormatLog                   // mfoc-style text key log
)

func (f KeyFormat) String() string {
	switch f {
	case KeyFormatDump:
		return "dump"
	case KeyFormatLog:
		return "keylog"
	default:
		return fmt.Sprintf("KeyFormat(%d)", int(f))
	}
}

// LoadKeyStore reads a key source from fs.
//
// On any failure the returned store is empty (never nil) together with the
// error, so the caller can log and keep running; every block will then fail
// authentication. A key log is partially loaded when some lines are malformed;
// that is not an error.
func LoadKeyStore(fs afero.Fs, path string, format KeyFormat) (*KeyStore, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return EmptyKeyStore(), fmt.Errorf("read %s %s: %w", format, path, err)
	}

	switch format {
	case KeyFormatDump:
		sectors, err := ParseDump(data)
		if err != nil {
			return EmptyKeyStore(), fmt.Errorf("load keys from %s: %w", path, err)
		}
		return KeyStoreFromSectors(sectors), nil
	case KeyFormatLog:
		ks, _, err := ParseKeyLog(bytes.NewReader(data))
		if err != nil {
			return EmptyKeyStore(), fmt.Errorf("load keys from %s: %w", path, err)
		}
		return ks, nil
	default:
		return EmptyKeyStore(), fmt.Errorf("unsupported key format: %s", format)
	}
}
