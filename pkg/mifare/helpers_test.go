package mifare_test

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/barnettlynn/nfctools/pkg/mifare"
	"github.com/barnettlynn/nfctools/pkg/mifare/cardsim"
)

func sectorKeys() (ka, kb []mifare.Key) {
	for i := 0; i < mifare.Sectors; i++ {
		ka = append(ka, mifare.Key{0xA0, byte(i), 0x11, 0x22, 0x33, 0x44})
		kb = append(kb, mifare.Key{0xB0, byte(i), 0x55, 0x66, 0x77, 0x88})
	}
	return ka, kb
}

func blockFill(block int) []byte {
	data := make([]byte, mifare.BlockSize)
	for i := range data {
		data[i] = byte(block*mifare.BlockSize + i)
	}
	return data
}

func testImage(t *testing.T) []byte {
	t.Helper()
	ka, kb := sectorKeys()
	img, err := cardsim.Image(ka, kb, blockFill)
	require.NoError(t, err)
	return img
}

func testSim(t *testing.T) (*cardsim.Sim, *mifare.KeyStore) {
	t.Helper()
	img := testImage(t)
	sim, err := cardsim.New(img)
	require.NoError(t, err)
	sectors, err := mifare.ParseDump(img)
	require.NoError(t, err)
	return sim, mifare.KeyStoreFromSectors(sectors)
}

// mockCard records APDUs with testify/mock so tests can pin exact bytes and order.
type mockCard struct {
	mock.Mock
}

func (m *mockCard) Transmit(apdu []byte) ([]byte, error) {
	args := m.Called(apdu)
	resp, _ := args.Get(0).([]byte)
	return resp, args.Error(1)
}
