// Package cardsim emulates a MIFARE Classic 1K card sitting on a PC/SC
// reader. It answers the same pseudo-APDUs a real reader does and is
// initialised from a raw card image, so a dump file can stand in for the
// physical card.
package cardsim

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/barnettlynn/nfctools/pkg/mifare"
)

// Status words the simulator answers with.
var (
	swOK     = []byte{0x90, 0x00}
	swFailed = []byte{0x63, 0x00}
	swDenied = []byte{0x69, 0x82}
	swBadP   = []byte{0x6B, 0x00}
	swBadLen = []byte{0x67, 0x00}
	swBadIns = []byte{0x6D, 0x00}
	swBadCla = []byte{0x6E, 0x00}
)

type keyRef struct {
	block int
	typ   mifare.KeyType
}

// Sim is a simulated card. It is not safe for concurrent use.
type Sim struct {
	mem     [mifare.Blocks][mifare.BlockSize]byte
	sectors []mifare.SectorKey
	uid     []byte

	loaded    *mifare.Key
	authBlock int
	authType  mifare.KeyType

	rejectKey  map[keyRef]bool
	denyRead   map[keyRef]bool
	denyWrite  map[keyRef]bool
	emptyRead  map[int]bool
	transport  error
	noUID      bool
	sent       [][]byte
	writeCount int
}

// New builds a simulator from a raw 1K card image. Keys come from the
// sector trailers; the UID is bytes 0..3 of block 0.
func New(image []byte) (*Sim, error) {
	sectors, err := mifare.ParseDump(image)
	if err != nil {
		return nil, err
	}
	s := &Sim{
		sectors:   sectors,
		authBlock: -1,
		rejectKey: map[keyRef]bool{},
		denyRead:  map[keyRef]bool{},
		denyWrite: map[keyRef]bool{},
		emptyRead: map[int]bool{},
	}
	for b := 0; b < mifare.Blocks; b++ {
		copy(s.mem[b][:], image[b*mifare.BlockSize:(b+1)*mifare.BlockSize])
	}
	s.uid = append([]byte(nil), s.mem[0][:4]...)
	return s, nil
}

// RejectKey makes authentication of block with key type t fail even when the
// loaded key is correct, as access bits or a wrong dump would.
func (s *Sim) RejectKey(block int, t mifare.KeyType) { s.rejectKey[keyRef{block, t}] = true }

// DenyRead makes READ BINARY of block answer 6982 whichever key authenticated it.
func (s *Sim) DenyRead(block int) {
	s.DenyReadWith(block, mifare.KeyA)
	s.DenyReadWith(block, mifare.KeyB)
}

// DenyReadWith makes READ BINARY of block answer 6982 when it was
// authenticated with key type t, as access bits that reserve reads for the
// other key do.
func (s *Sim) DenyReadWith(block int, t mifare.KeyType) { s.denyRead[keyRef{block, t}] = true }

// DenyWrite makes UPDATE BINARY of block answer 6982 whichever key authenticated it.
func (s *Sim) DenyWrite(block int) {
	s.DenyWriteWith(block, mifare.KeyA)
	s.DenyWriteWith(block, mifare.KeyB)
}

// DenyWriteWith makes UPDATE BINARY of block answer 6982 when it was
// authenticated with key type t.
func (s *Sim) DenyWriteWith(block int, t mifare.KeyType) { s.denyWrite[keyRef{block, t}] = true }

// EmptyRead makes READ BINARY of block answer 9000 with no data.
func (s *Sim) EmptyRead(block int) { s.emptyRead[block] = true }

// FailTransport makes every following Transmit return err. nil restores the card.
func (s *Sim) FailTransport(err error) { s.transport = err }

// HideUID makes GET DATA fail.
func (s *Sim) HideUID() { s.noUID = true }

// UID returns the card UID.
func (s *Sim) UID() []byte { return append([]byte(nil), s.uid...) }

// Block returns a copy of the stored block.
func (s *Sim) Block(block int) []byte {
	out := make([]byte, mifare.BlockSize)
	copy(out, s.mem[block][:])
	return out
}

// SetBlock overwrites a block without any authentication.
func (s *Sim) SetBlock(block int, data []byte) {
	copy(s.mem[block][:], data)
}

// Sent returns every APDU received so far.
func (s *Sim) Sent() [][]byte { return s.sent }

// Writes returns how many UPDATE BINARY commands were accepted.
func (s *Sim) Writes() int { return s.writeCount }

// CountINS returns how many received APDUs carried instruction ins.
func (s *Sim) CountINS(ins byte) int {
	n := 0
	for _, apdu := range s.sent {
		if len(apdu) > 1 && apdu[1] == ins {
			n++
		}
	}
	return n
}

// Transmit implements mifare.Card.
func (s *Sim) Transmit(apdu []byte) ([]byte, error) {
	s.sent = append(s.sent, append([]byte(nil), apdu...))
	if s.transport != nil {
		return nil, s.transport
	}
	if len(apdu) < 5 {
		return swBadLen, nil
	}
	if apdu[0] != 0xFF {
		return swBadCla, nil
	}
	switch apdu[1] {
	case 0xCA:
		return s.getData()
	case 0x82:
		return s.loadKey(apdu)
	case 0x86:
		return s.authenticate(apdu)
	case 0xB0:
		return s.read(apdu)
	case 0xD6:
		return s.write(apdu)
	default:
		return swBadIns, nil
	}
}

func (s *Sim) getData() ([]byte, error) {
	if s.noUID {
		return swFailed, nil
	}
	return append(s.UID(), swOK...), nil
}

func (s *Sim) loadKey(apdu []byte) ([]byte, error) {
	if apdu[4] != mifare.KeySize || len(apdu) != 5+mifare.KeySize {
		return swBadLen, nil
	}
	var k mifare.Key
	copy(k[:], apdu[5:])
	s.loaded = &k
	return swOK, nil
}

func (s *Sim) authenticate(apdu []byte) ([]byte, error) {
	if apdu[4] != 0x05 || len(apdu) != 10 {
		return swBadLen, nil
	}
	block := int(apdu[7])
	typ := mifare.KeyType(apdu[8])
	s.authBlock = -1
	if block >= mifare.Blocks {
		return swBadP, nil
	}
	if s.loaded == nil || s.rejectKey[keyRef{block, typ}] {
		return swFailed, nil
	}
	sk := s.sectors[mifare.SectorOf(block)]
	var want mifare.Key
	switch typ {
	case mifare.KeyA:
		want = sk.KeyA
	case mifare.KeyB:
		want = sk.KeyB
	default:
		return swBadP, nil
	}
	if !bytes.Equal(want[:], s.loaded[:]) {
		return swFailed, nil
	}
	s.authBlock = block
	s.authType = typ
	return swOK, nil
}

func (s *Sim) read(apdu []byte) ([]byte, error) {
	block := int(apdu[3])
	if block >= mifare.Blocks {
		return swBadP, nil
	}
	if s.authBlock != block || s.denyRead[keyRef{block, s.authType}] {
		return swDenied, nil
	}
	if s.emptyRead[block] {
		return swOK, nil
	}
	data := s.Block(block)
	if block == mifare.TrailerBlock(mifare.SectorOf(block)) {
		// Key A never reads back.
		for i := 0; i < mifare.KeySize; i++ {
			data[i] = 0
		}
	}
	return append(data, swOK...), nil
}

func (s *Sim) write(apdu []byte) ([]byte, error) {
	block := int(apdu[3])
	if block >= mifare.Blocks {
		return swBadP, nil
	}
	if int(apdu[4]) != mifare.BlockSize || len(apdu) != 5+mifare.BlockSize {
		return swBadLen, nil
	}
	if s.authBlock != block || s.denyWrite[keyRef{block, s.authType}] {
		return swDenied, nil
	}
	copy(s.mem[block][:], apdu[5:])
	s.writeCount++
	return swOK, nil
}

// Image builds a raw 1K card image whose sector trailers hold the given
// keys (ka[i], kb[i] for sector i) and whose data blocks are filled with
// fill(block). fill may be nil.
func Image(ka, kb []mifare.Key, fill func(block int) []byte) ([]byte, error) {
	if len(ka) != mifare.Sectors || len(kb) != mifare.Sectors {
		return nil, errors.New("need one key A and one key B per sector")
	}
	img := make([]byte, mifare.DumpSize)
	for b := 0; b < mifare.Blocks; b++ {
		off := b * mifare.BlockSize
		sector := mifare.SectorOf(b)
		if b == mifare.TrailerBlock(sector) {
			copy(img[off:], ka[sector][:])
			copy(img[off+6:], []byte{0xFF, 0x07, 0x80, 0x69})
			copy(img[off+10:], kb[sector][:])
			continue
		}
		if fill != nil {
			data := fill(b)
			if len(data) != mifare.BlockSize {
				return nil, fmt.Errorf("fill(%d) returned %d bytes", b, len(data))
			}
			copy(img[off:], data)
		}
	}
	return img, nil
}
