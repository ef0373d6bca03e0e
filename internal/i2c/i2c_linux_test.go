//go:build linux

package i2c

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openNull(t *testing.T) *Bus {
	t.Helper()
	f, err := os.OpenFile("/dev/null", os.O_RDWR, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return &Bus{f: f, path: "/dev/null"}
}

func TestDevTx_InvalidAddr(t *testing.T) {
	b := openNull(t)
	for _, addr := range []uint16{0, 0x80} {
		err := b.Dev(addr).WriteReg(0x00, 0x10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid i2c addr")
	}
}

func TestDevTx_EmptyIsNoop(t *testing.T) {
	b := openNull(t)
	assert.NoError(t, b.Dev(0x1E).tx(nil, nil))
}

func TestDev_NilIsError(t *testing.T) {
	var b *Bus
	assert.Nil(t, b.Dev(0x1E))
	var d *Dev
	assert.Error(t, d.ReadReg(0x03, make([]byte, 6)))
}

func TestOpen_MissingBus(t *testing.T) {
	_, err := Open("/dev/i2c-does-not-exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open i2c bus")
}
