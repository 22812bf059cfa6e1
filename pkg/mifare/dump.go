package mifare

import "fmt"

// Card geometry for MIFARE Classic 1K.
const (
	Sectors         = 16
	BlocksPerSector = 4
	Blocks          = Sectors * BlocksPerSector
	BlockSize       = 16
	SectorSize      = BlocksPerSector * BlockSize
	DumpSize        = Sectors * SectorSize

	trailerOffset = 3 * BlockSize // sector trailer is the last block of each sector
	keyAOffset    = trailerOffset
	accessOffset  = trailerOffset + 6
	keyBOffset    = trailerOffset + 10
)

// SectorKey is the key material held in one sector trailer of a dump.
type SectorKey struct {
	Sector int
	KeyA   Key
	Access [4]byte // access bits + general purpose byte
	KeyB   Key
}

// SectorOf returns the sector that contains block.
func SectorOf(block int) int {
	return block / BlocksPerSector
}

// TrailerBlock returns the trailer block index of sector.
func TrailerBlock(sector int) int {
	return sector*BlocksPerSector + BlocksPerSector - 1
}

// ParseDump extracts the 16 sector trailers from a raw card image.
//
// The image must be a non-zero multiple of 1024 bytes. Only the first 1024
// bytes are read; larger images (for example tool dumps with a trailing
// copy) are accepted for compatibility with mfoc output.
//
// Trailer layout per sector i (byte offsets into the image):
//   - i*64+48: Key A (6 bytes)
//   - i*64+54: access conditions (4 bytes)
//   - i*64+58: Key B (6 bytes)
func ParseDump(data []byte) ([]SectorKey, error) {
	if len(data) < DumpSize || len(data)%DumpSize != 0 {
		return nil, &ParseError{
			Source: "dump",
			Offset: len(data),
			Msg:    fmt.Sprintf("length %d is not a non-zero multiple of %d", len(data), DumpSize),
		}
	}

	keys := make([]SectorKey, 0, Sectors)
	for i := 0; i < Sectors; i++ {
		base := i * SectorSize
		sk := SectorKey{Sector: i}
		copy(sk.KeyA[:], data[base+keyAOffset:base+keyAOffset+KeySize])
		copy(sk.Access[:], data[base+accessOffset:base+accessOffset+4])
		copy(sk.KeyB[:], data[base+keyBOffset:base+keyBOffset+KeySize])
		keys = append(keys, sk)
	}
	return keys, nil
}
