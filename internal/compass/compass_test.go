package compass

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketwatch/internal/tick"
)

type fakeI2C struct {
	regs   map[byte][]byte
	writes []writeOp
	reads  int

	readErr  error
	writeErr error
}

type writeOp struct {
	reg byte
	val byte
}

func (f *fakeI2C) ReadReg(reg byte, dst []byte) error {
	if f.readErr != nil {
		return f.readErr
	}
	f.reads++
	copy(dst, f.regs[reg])
	return nil
}

func (f *fakeI2C) WriteReg(reg, value byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, writeOp{reg: reg, val: value})
	return nil
}

func sample(x, z, y int16) []byte {
	return []byte{
		byte(uint16(x) >> 8), byte(x),
		byte(uint16(z) >> 8), byte(z),
		byte(uint16(y) >> 8), byte(y),
	}
}

func TestStart_WritesConfiguration(t *testing.T) {
	f := &fakeI2C{}
	c := newWithIO(f, 100)
	require.NoError(t, c.Start(0))
	assert.Equal(t, []writeOp{{0x00, 0x10}, {0x01, 0x20}, {0x02, 0x00}}, f.writes)
}

func TestStart_WriteError(t *testing.T) {
	f := &fakeI2C{writeErr: errors.New("nack")}
	c := newWithIO(f, 100)
	err := c.Start(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reg 0x00")
}

func TestProcess_ReadsXZYAfterPeriod(t *testing.T) {
	f := &fakeI2C{regs: map[byte][]byte{regDataX: sample(-300, 1200, 400)}}
	c := newWithIO(f, 100)
	require.NoError(t, c.Start(0))

	// Exactly one period is not enough.
	require.NoError(t, c.Process(100))
	assert.Equal(t, 0, f.reads)

	require.NoError(t, c.Process(101))
	assert.Equal(t, 1, f.reads)
	assert.Equal(t, int16(-300), c.X())
	assert.Equal(t, int16(1200), c.Z())
	assert.Equal(t, int16(400), c.Y())
	assert.InDelta(t, math.Atan2(400, -300), c.Heading(), 1e-12)

	require.NoError(t, c.Process(150))
	assert.Equal(t, 1, f.reads)
	assert.Equal(t, uint64(1), c.Reads())
}

func TestProcess_AcrossWrap(t *testing.T) {
	f := &fakeI2C{regs: map[byte][]byte{regDataX: sample(1, 0, 1)}}
	c := newWithIO(f, 100)
	require.NoError(t, c.Start(tick.Tick(0xFFFFFFF0)))
	require.NoError(t, c.Process(tick.Tick(0x60)))
	assert.Equal(t, 1, f.reads)
}

func TestHeading_ZeroField(t *testing.T) {
	c := newWithIO(&fakeI2C{}, 1)
	assert.Equal(t, 0.0, c.Heading())
}

func TestProcess_ReadErrorKeepsSample(t *testing.T) {
	f := &fakeI2C{regs: map[byte][]byte{regDataX: sample(10, 0, 10)}}
	c := newWithIO(f, 10)
	require.NoError(t, c.Start(0))
	require.NoError(t, c.Process(20))

	f.readErr = errors.New("bus timeout")
	assert.Error(t, c.Process(40))
	assert.Equal(t, int16(10), c.X())
	assert.InDelta(t, math.Pi/4, c.Heading(), 1e-12)
}

func TestNew_NilDev(t *testing.T) {
	_, err := New(nil, 10)
	assert.Error(t, err)
}
