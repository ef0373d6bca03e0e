package dial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCircularDistance(t *testing.T) {
	assert.Equal(t, uint8(0), circularDistance(5, 5))
	assert.Equal(t, uint8(1), circularDistance(0, 119))
	assert.Equal(t, uint8(1), circularDistance(119, 0))
	assert.Equal(t, uint8(60), circularDistance(0, 60))
	assert.Equal(t, uint8(30), circularDistance(10, 100))
}

func TestPixelPosition(t *testing.T) {
	want := []uint8{0, 7, 15, 22, 30, 37, 45, 52, 60, 67, 75, 82, 90, 97, 105, 112}
	for p, w := range want {
		assert.Equal(t, w, pixelPosition(p), "pixel %d", p)
	}
}

func TestIntensity_Table(t *testing.T) {
	want := []uint8{255, 213, 175, 142, 114, 89, 68, 50, 36, 25, 16, 10, 5, 2, 1, 1, 0, 0}
	for d, w := range want {
		assert.Equal(t, w, intensity(0, uint8(d)), "distance %d", d)
	}
	assert.Equal(t, uint8(0), intensity(0, 60))
}

func TestRender_ChannelsAndLayout(t *testing.T) {
	f := Render(Hands{Big: 0, Medium: 60, Small: 30})

	// Pixel 0 is wired to LED 15.
	assert.Equal(t, RGB(255, 0, 0), f[15])
	// Pixel 8 sits at position 60.
	assert.Equal(t, RGB(0, 255, 0), f[7])
	// Pixel 4 sits at position 30.
	assert.Equal(t, RGB(0, 0, 255), f[11])
	// Pixel 1 sits at position 7.
	assert.Equal(t, RGB(50, 0, 0), f[14])

	assert.Equal(t, RGB(16, 16, 16), f[MarkerLED])
}

func TestRender_HandsSum(t *testing.T) {
	f := Render(Hands{Big: 0, Medium: 0, Small: 1})
	assert.Equal(t, RGB(255, 255, 213), f[15])
}

func TestColor_Pack(t *testing.T) {
	c := RGB(0x12, 0x34, 0x56)
	assert.Equal(t, Color(0x123456), c)
	assert.Equal(t, uint8(0x12), c.R())
	assert.Equal(t, uint8(0x34), c.G())
	assert.Equal(t, uint8(0x56), c.B())
}
