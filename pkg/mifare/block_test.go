package mifare_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barnettlynn/nfctools/pkg/mifare"
)

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }

func TestReadBlockAPDU(t *testing.T) {
	card := &mockCard{}
	payload := blockFill(45)
	card.On("Transmit", []byte{0xFF, 0xB0, 0x00, 0x2D, 0x10}).Return(append(payload, 0x90, 0x00), nil).Once()

	data, err := mifare.ReadBlock(card, 45)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	card.AssertExpectations(t)
}

func TestWriteBlockAPDU(t *testing.T) {
	card := &mockCard{}
	payload := blockFill(8)
	want := append([]byte{0xFF, 0xD6, 0x00, 0x08, 0x10}, payload...)
	card.On("Transmit", want).Return(ok9000, nil).Once()

	require.NoError(t, mifare.WriteBlock(card, 8, payload))
	card.AssertExpectations(t)
}

func TestWriteBlockRejectsWrongLength(t *testing.T) {
	card := &mockCard{}
	err := mifare.WriteBlock(card, 8, make([]byte, 15))
	kind, ok := mifare.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, mifare.FailureWrite, kind)
	card.AssertNumberOfCalls(t, "Transmit", 0)
}

func TestReadBlockRequiresAuthentication(t *testing.T) {
	sim, ks := testSim(t)

	_, err := mifare.ReadBlock(sim, 5)
	kind, _ := mifare.KindOf(err)
	assert.Equal(t, mifare.FailureRead, kind)

	_, err = mifare.AuthenticateForRead(sim, ks, 5)
	require.NoError(t, err)
	data, err := mifare.ReadBlock(sim, 5)
	require.NoError(t, err)
	assert.Equal(t, blockFill(5), data)

	// authentication does not carry over to the next block
	_, err = mifare.ReadBlock(sim, 6)
	require.Error(t, err)
}

func TestReadBlockEmptyPayload(t *testing.T) {
	sim, ks := testSim(t)
	sim.EmptyRead(12)
	_, err := mifare.AuthenticateForRead(sim, ks, 12)
	require.NoError(t, err)

	_, err = mifare.ReadBlock(sim, 12)
	kind, _ := mifare.KindOf(err)
	assert.Equal(t, mifare.FailureRead, kind)
}

func TestWriteThenRead(t *testing.T) {
	sim, ks := testSim(t)
	payload := []byte("0123456789abcdef")

	_, err := mifare.AuthenticateForWrite(sim, ks, 17)
	require.NoError(t, err)
	require.NoError(t, mifare.WriteBlock(sim, 17, payload))

	_, err = mifare.AuthenticateForRead(sim, ks, 17)
	require.NoError(t, err)
	data, err := mifare.ReadBlock(sim, 17)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestWriteBlockDenied(t *testing.T) {
	sim, ks := testSim(t)
	sim.DenyWrite(17)
	_, err := mifare.AuthenticateForWrite(sim, ks, 17)
	require.NoError(t, err)

	err = mifare.WriteBlock(sim, 17, blockFill(0))
	var swErr *mifare.SWError
	require.ErrorAs(t, err, &swErr)
	assert.Equal(t, uint16(mifare.SWSecurityNotSatisfied), swErr.SW)
	assert.Contains(t, err.Error(), "security not satisfied")
}

func TestBlockOutOfRange(t *testing.T) {
	card := &mockCard{}
	_, err := mifare.ReadBlock(card, 64)
	require.ErrorIs(t, err, mifare.ErrBlockRange)
	kind, ok := mifare.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, mifare.FailureRead, kind)

	err = mifare.WriteBlock(card, -1, blockFill(0))
	require.ErrorIs(t, err, mifare.ErrBlockRange)
	kind, ok = mifare.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, mifare.FailureWrite, kind)

	card.AssertNumberOfCalls(t, "Transmit", 0)
}

func TestGetUID(t *testing.T) {
	card := &mockCard{}
	card.On("Transmit", []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}).Return([]byte{0x04, 0xA1, 0xB2, 0xC3, 0x90, 0x00}, nil).Once()

	uid, err := mifare.GetUID(card)
	require.NoError(t, err)
	assert.Equal(t, "04A1B2C3", mifare.HexUpper(uid))
	card.AssertExpectations(t)
}

func TestGetUIDFailures(t *testing.T) {
	card := &mockCard{}
	card.On("Transmit", []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}).Return([]byte{0x6A, 0x81}, nil).Once()
	_, err := mifare.GetUID(card)
	kind, _ := mifare.KindOf(err)
	assert.Equal(t, mifare.FailureRead, kind)

	card = &mockCard{}
	card.On("Transmit", []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}).Return(nil, errors.New("no card")).Once()
	_, err = mifare.GetUID(card)
	kind, _ = mifare.KindOf(err)
	assert.Equal(t, mifare.FailureTransport, kind)
}

func TestTransmitShortResponse(t *testing.T) {
	card := &mockCard{}
	card.On("Transmit", []byte{0x01}).Return([]byte{0x90}, nil).Once()
	_, _, err := mifare.Transmit(card, []byte{0x01})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "short response"))
}
