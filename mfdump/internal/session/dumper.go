package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/barnettlynn/nfctools/pkg/mifare"
)

// ErrSessionPanic wraps a panic recovered from a card session.
var ErrSessionPanic = errors.New("card session panicked")

// Options selects the use cases run for each presented card.
type Options struct {
	DumpCard    bool
	DumpMoney   bool
	TargetCents *int // nil: no balance update
}

// Result is what one presented card produced. Err is set when the reader
// failed mid-session or the session panicked; the other fields keep
// whatever was gathered before that.
type Result struct {
	UID    string
	Dump   *Dump
	Money  *MoneyStatus
	Update *UpdateResult
	Err    error
}

// Dumper runs the configured use cases against each card handed to it.
// It holds the shared key store read-only and no per-card state.
type Dumper struct {
	keys     *mifare.KeyStore
	opts     Options
	sessOpts []Option
}

// NewDumper builds a Dumper. sessOpts are applied to every Session it opens.
func NewDumper(keys *mifare.KeyStore, opts Options, sessOpts ...Option) *Dumper {
	if keys == nil {
		keys = mifare.EmptyKeyStore()
	}
	return &Dumper{keys: keys, opts: opts, sessOpts: sessOpts}
}

// OnCardPresented runs dump, balance read and balance update, in that
// order, for the enabled options. A reader-level failure stops the
// remaining use cases. It never panics.
func (d *Dumper) OnCardPresented(card mifare.Card) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: %v", ErrSessionPanic, r)
			slog.Error("card session aborted", "error", res.Err)
		}
	}()

	s := New(card, d.keys, d.sessOpts...)

	steps := []struct {
		enabled bool
		run     func()
	}{
		{d.opts.DumpCard, func() {
			dump := s.DumpAll()
			res.Dump = &dump
			res.UID = dump.UID
		}},
		{d.opts.DumpMoney, func() {
			m, ok := s.ReadMoney()
			res.UID = m.UID
			if ok {
				res.Money = &m
			}
		}},
		{d.opts.TargetCents != nil, func() {
			u := s.UpdateMoney(*d.opts.TargetCents)
			res.Update = &u
			res.UID = u.Before.UID
			slog.Info("balance update", "uid", u.Before.UID, "outcome", u.Outcome, "target", u.Target)
		}},
	}

	for _, step := range steps {
		if !step.enabled {
			continue
		}
		step.run()
		if err := s.TransportErr(); err != nil {
			res.Err = fmt.Errorf("card session: %w", err)
			slog.Error("card session aborted", "error", err)
			return res
		}
	}
	return res
}
