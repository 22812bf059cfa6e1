// Package session runs the card use cases (full memory dump, balance read,
// balance update) against one presented card.
package session

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/barnettlynn/nfctools/pkg/mifare"
)

// ConfirmFunc is asked before the balance is written. Returning false
// cancels the write.
type ConfirmFunc func(uid string, current uint16, target int) bool

// Option configures a Session.
type Option func(*Session)

// WithOutput sends report lines to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Session) { s.out = w }
}

// WithConfirm installs a confirmation hook for balance writes.
func WithConfirm(fn ConfirmFunc) Option {
	return func(s *Session) { s.confirm = fn }
}

// Session performs block operations on one card. Each block is
// authenticated right before it is read or written; nothing carries over
// from one block to the next.
type Session struct {
	card    mifare.Card
	keys    *mifare.KeyStore
	out     io.Writer
	confirm ConfirmFunc

	transportErr error
}

// New creates a session. keys is only read.
func New(card mifare.Card, keys *mifare.KeyStore, opts ...Option) *Session {
	s := &Session{card: card, keys: keys, out: os.Stdout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TransportErr returns the first reader-level error seen by this session, if any.
func (s *Session) TransportErr() error {
	return s.transportErr
}

func (s *Session) note(err error) {
	if s.transportErr != nil {
		return
	}
	if kind, ok := mifare.KindOf(err); ok && kind == mifare.FailureTransport {
		s.transportErr = err
	}
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// UID returns the card UID as uppercase hex, or "" if it cannot be read.
func (s *Session) UID() string {
	uid, err := mifare.GetUID(s.card)
	if err != nil {
		s.note(err)
		slog.Debug("read UID failed", "error", err)
		return ""
	}
	return mifare.HexUpper(uid)
}

// Read returns block as uppercase hex, or "" when the block has no usable
// key, authentication is rejected, or the read fails.
func (s *Session) Read(block int) string {
	data, err := s.readBlock(block)
	if err != nil {
		return ""
	}
	return mifare.HexUpper(data)
}

func (s *Session) readBlock(block int) ([]byte, error) {
	t, err := mifare.AuthenticateForRead(s.card, s.keys, block)
	if err != nil {
		s.note(err)
		return nil, err
	}
	data, err := mifare.ReadBlock(s.card, block)
	if err != nil && t == mifare.KeyA && s.retryWithKeyB(block, err) {
		data, err = mifare.ReadBlock(s.card, block)
	}
	if err != nil {
		s.note(err)
		slog.Debug("read block failed", "block", block, "error", err)
		return nil, err
	}
	return data, nil
}

// Write stores 16 bytes in block and reports whether the card accepted them.
func (s *Session) Write(block int, data []byte) bool {
	t, err := mifare.AuthenticateForWrite(s.card, s.keys, block)
	if err != nil {
		s.note(err)
		return false
	}
	err = mifare.WriteBlock(s.card, block, data)
	if err != nil && t == mifare.KeyA && s.retryWithKeyB(block, err) {
		err = mifare.WriteBlock(s.card, block, data)
	}
	if err != nil {
		s.note(err)
		slog.Debug("write block failed", "block", block, "error", err)
		return false
	}
	return true
}

// retryWithKeyB handles a block whose access bits let Key A authenticate
// but reserve the operation for Key B. It re-authenticates with B, once,
// when the operation was refused by the card.
func (s *Session) retryWithKeyB(block int, opErr error) bool {
	if kind, _ := mifare.KindOf(opErr); kind == mifare.FailureTransport {
		return false
	}
	if err := mifare.AuthenticateKey(s.card, s.keys, block, mifare.KeyB); err != nil {
		s.note(err)
		return false
	}
	return true
}

// BlockRecord is one line of a memory dump. Data is "" for a block that
// could not be read.
type BlockRecord struct {
	Sector int
	Block  int
	Data   string
}

// Dump is a full memory dump.
type Dump struct {
	UID    string
	Blocks []BlockRecord
}

// Readable counts the blocks that were read.
func (d Dump) Readable() int {
	n := 0
	for _, b := range d.Blocks {
		if b.Data != "" {
			n++
		}
	}
	return n
}

// DumpAll reads every block in order, sector by sector. Unreadable blocks
// are recorded empty and the walk continues; it always yields 64 records.
func (s *Session) DumpAll() Dump {
	d := Dump{UID: s.UID(), Blocks: make([]BlockRecord, 0, mifare.Blocks)}
	s.printf("UID: %s\n", d.UID)
	s.printf("[----------Start of Memory Dump----------]\n")
	for sector := 0; sector < mifare.Sectors; sector++ {
		s.printf("----------------Sector %02d-----------------\n", sector)
		for off := 0; off < mifare.BlocksPerSector; off++ {
			block := sector*mifare.BlocksPerSector + off
			data := s.Read(block)
			d.Blocks = append(d.Blocks, BlockRecord{Sector: sector, Block: block, Data: data})
			s.printf("Block %02d: %s\n", block, data)
		}
	}
	s.printf("[-----------End of Memory Dump-----------]\n")
	slog.Info("memory dump complete", "uid", d.UID, "readable", d.Readable(), "blocks", len(d.Blocks))
	return d
}

// MoneyStatus is the decoded balance block.
type MoneyStatus struct {
	UID   string
	Cents uint16
	Block string // block 45 as hex
}

// ReadMoney reads block 45 and decodes the balance. ok is false when the
// block cannot be read or is too short to hold the balance.
func (s *Session) ReadMoney() (MoneyStatus, bool) {
	uid := s.UID()
	data := s.Read(mifare.MoneyBlock)
	cents, ok := mifare.DecodeMoney(data)
	if !ok {
		slog.Warn("balance block unreadable", "uid", uid, "block", mifare.MoneyBlock)
		return MoneyStatus{UID: uid}, false
	}
	s.printf("UID: %s %d cents\n", uid, cents)
	return MoneyStatus{UID: uid, Cents: cents, Block: data}, true
}

// UpdateOutcome says how far a balance update got.
type UpdateOutcome int

const (
	UpdateAborted     UpdateOutcome = iota // current balance unreadable, nothing written
	UpdateDeclined                         // confirmation refused, nothing written
	UpdateWriteFailed                      // the card rejected the write
	UpdateWritten                          // written and read back
)

func (o UpdateOutcome) String() string {
	switch o {
	case UpdateAborted:
		return "aborted"
	case UpdateDeclined:
		return "declined"
	case UpdateWriteFailed:
		return "write failed"
	case UpdateWritten:
		return "written"
	default:
		return fmt.Sprintf("UpdateOutcome(%d)", int(o))
	}
}

// UpdateResult reports a balance update. After is only set for
// UpdateWritten; Verified is false when the read-back did not show the
// target, which is reported but not treated as an error.
type UpdateResult struct {
	Outcome  UpdateOutcome
	Target   int
	Before   MoneyStatus
	After    MoneyStatus
	Verified bool
}

// UpdateMoney sets the balance in block 45 to target cents. Only bytes 9
// and 10 of the block change. The write is not retried beyond the single
// Key B attempt Write makes when Key A may authenticate but not write.
func (s *Session) UpdateMoney(target int) UpdateResult {
	res := UpdateResult{Target: target}

	before, ok := s.ReadMoney()
	res.Before = before
	if !ok {
		return res
	}
	payload, err := mifare.FromHex(before.Block)
	if err == nil {
		payload, err = mifare.EncodeMoney(payload, target)
	}
	if err != nil {
		slog.Warn("balance block malformed, not writing", "uid", before.UID, "error", err)
		return res
	}

	if s.confirm != nil && !s.confirm(before.UID, before.Cents, target) {
		slog.Info("balance update declined", "uid", before.UID)
		res.Outcome = UpdateDeclined
		return res
	}

	if !s.Write(mifare.MoneyBlock, payload) {
		s.printf("Write failed!\n")
		res.Outcome = UpdateWriteFailed
		return res
	}
	res.Outcome = UpdateWritten

	after, ok := s.ReadMoney()
	res.After = after
	res.Verified = ok && after.Cents == uint16(target&0xFFFF)
	if !res.Verified {
		slog.Warn("balance read-back does not match", "uid", after.UID, "target", target, "read", after.Cents, "readable", ok)
	}
	return res
}
