package mifare

import (
	"fmt"

	"github.com/ebfe/scard"
)

// Connection wraps a PC/SC card connection.
type Connection struct {
	ctx       *scard.Context
	ownsCtx   bool
	Card      *scard.Card
	Reader    string
	ReaderIdx int
}

// Connect establishes a connection to a card reader.
//
// Parameters:
//   - readerIndex: Index of the reader to use (0-based)
//
// Returns:
//   - Connection struct with context and card
//   - Error if connection fails
func Connect(readerIndex int) (*Connection, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("EstablishContext failed: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		ctx.Release()
		return nil, fmt.Errorf("no readers found: %v", err)
	}
	if readerIndex < 0 || readerIndex >= len(readers) {
		ctx.Release()
		return nil, fmt.Errorf("reader index out of range (0..%d)", len(readers)-1)
	}

	conn, err := ConnectReader(ctx, readers[readerIndex])
	if err != nil {
		ctx.Release()
		return nil, err
	}
	conn.ownsCtx = true
	conn.ReaderIdx = readerIndex
	return conn, nil
}

// ConnectReader connects to the card in reader using an existing context.
// The context stays owned by the caller and is not released by Close.
func ConnectReader(ctx *scard.Context, reader string) (*Connection, error) {
	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		return nil, fmt.Errorf("connect failed: %w", err)
	}
	return &Connection{
		ctx:       ctx,
		Card:      card,
		Reader:    reader,
		ReaderIdx: -1,
	}, nil
}

// Close disconnects the card, leaving it powered, and releases the PC/SC
// context when the connection owns it.
func (c *Connection) Close() {
	c.Release(scard.LeaveCard)
}

// Release disconnects the card with the given disposition (scard.ResetCard
// drops any authenticated state) and releases an owned context.
func (c *Connection) Release(d scard.Disposition) {
	if c == nil {
		return
	}
	if c.Card != nil {
		_ = c.Card.Disconnect(d)
		c.Card = nil
	}
	if c.ctx != nil && c.ownsCtx {
		_ = c.ctx.Release()
	}
	c.ctx = nil
}

// Transmit sends an APDU to the card (implements Card interface).
func (c *Connection) Transmit(apdu []byte) ([]byte, error) {
	if c == nil || c.Card == nil {
		return nil, fmt.Errorf("connection not established")
	}
	return c.Card.Transmit(apdu)
}

// StatusLine describes the connected card the way the reader reports it:
// protocol, state and ATR.
func (c *Connection) StatusLine() (string, error) {
	if c == nil || c.Card == nil {
		return "", fmt.Errorf("connection not established")
	}
	st, err := c.Card.Status()
	if err != nil {
		return "", fmt.Errorf("card status: %w", err)
	}
	line := fmt.Sprintf("Connected with protocol %v in state 0x%X", st.ActiveProtocol, uint32(st.State))
	if len(st.Atr) > 0 {
		line += "\nCard ATR: " + HexUpper(st.Atr)
	}
	return line, nil
}
