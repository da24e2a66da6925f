package llc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wintek-iot/meterlink/base"
)

func TestWrap(t *testing.T) {
	out := Wrap([]byte{0xc0, 0x01})
	assert.Equal(t, []byte{0xe6, 0xe6, 0x00, 0xc0, 0x01}, out)
}

func TestStrip(t *testing.T) {
	apdu, err := Strip([]byte{0xe6, 0xe7, 0x00, 0xc4, 0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xc4, 0x01}, apdu)
}

func TestStripRejectsCommandDirection(t *testing.T) {
	_, err := Strip([]byte{0xe6, 0xe6, 0x00, 0xc4})
	var fe *base.FramingError
	assert.ErrorAs(t, err, &fe)

	_, err = Strip([]byte{0xe6})
	assert.ErrorAs(t, err, &fe)
}
