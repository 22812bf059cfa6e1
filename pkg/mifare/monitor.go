package mifare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ebfe/scard"
)

const defaultPollInterval = 500 * time.Millisecond

// PresentFunc is called once per card insertion with a live connection.
// The connection is released with scard.ResetCard after it returns.
type PresentFunc func(conn *Connection)

// Monitor watches PC/SC readers for card insertion and hands each inserted
// card to OnPresent. Cards are handled one at a time, in the goroutine that
// called Run.
type Monitor struct {
	// ReaderIndex restricts the monitor to one reader. nil watches every
	// reader present when Run starts.
	ReaderIndex *int
	// PollInterval bounds how long Run blocks in SCardGetStatusChange
	// before re-checking its context. Zero means 500ms.
	PollInterval time.Duration
	// OnPresent handles an inserted card.
	OnPresent PresentFunc
}

// Run monitors until ctx is cancelled (returns nil) or the PC/SC layer
// fails (returns the error). A failure to connect to one inserted card is
// logged and monitoring continues.
func (m *Monitor) Run(ctx context.Context) error {
	if m.OnPresent == nil {
		return errors.New("monitor: OnPresent is nil")
	}
	sctx, err := scard.EstablishContext()
	if err != nil {
		return fmt.Errorf("EstablishContext failed: %w", err)
	}
	defer sctx.Release()

	readers, err := m.selectReaders(sctx)
	if err != nil {
		return err
	}

	states := make([]scard.ReaderState, len(readers))
	for i, r := range readers {
		slog.Info("start monitoring for reader", "reader", r)
		states[i] = scard.ReaderState{Reader: r, CurrentState: scard.StateUnaware}
	}

	// Unblock GetStatusChange promptly on cancellation.
	stop := context.AfterFunc(ctx, func() { _ = sctx.Cancel() })
	defer stop()

	poll := m.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		err := sctx.GetStatusChange(states, poll)
		switch {
		case err == nil:
		case errors.Is(err, scard.ErrTimeout):
			continue
		case errors.Is(err, scard.ErrCancelled) && ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("monitor: GetStatusChange: %w", err)
		}

		for i := range states {
			st := &states[i]
			prev, next := st.CurrentState, st.EventState
			st.CurrentState = next &^ scard.StateChanged
			if next&scard.StateChanged == 0 {
				continue
			}
			switch {
			case cardArrived(prev, next):
				slog.Info("card inserted", "reader", st.Reader, "atr", HexUpper(st.Atr))
				m.present(sctx, st.Reader)
			case cardRemoved(prev, next):
				slog.Info("card removed", "reader", st.Reader)
			}
		}
	}
}

func (m *Monitor) selectReaders(sctx *scard.Context) ([]string, error) {
	readers, err := sctx.ListReaders()
	if err != nil || len(readers) == 0 {
		return nil, fmt.Errorf("no readers found: %v", err)
	}
	if m.ReaderIndex == nil {
		return readers, nil
	}
	idx := *m.ReaderIndex
	if idx < 0 || idx >= len(readers) {
		return nil, fmt.Errorf("reader index out of range (0..%d)", len(readers)-1)
	}
	return readers[idx : idx+1], nil
}

func (m *Monitor) present(sctx *scard.Context, reader string) {
	conn, err := ConnectReader(sctx, reader)
	if err != nil {
		slog.Warn("connect to inserted card failed", "reader", reader, "error", err)
		return
	}
	defer conn.Release(scard.ResetCard)
	m.OnPresent(conn)
}

// cardArrived reports a transition to an answering card. A mute card
// (present but not answering) is not reported, and one that starts
// answering later counts as arriving then.
func cardArrived(prev, next scard.StateFlag) bool {
	if next&scard.StatePresent == 0 || next&scard.StateMute != 0 {
		return false
	}
	return prev&scard.StatePresent == 0 || prev&scard.StateMute != 0
}

// cardRemoved reports a present to empty transition.
func cardRemoved(prev, next scard.StateFlag) bool {
	return prev&scard.StatePresent != 0 && next&scard.StatePresent == 0
}
