package event

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_RoundTrip(t *testing.T) {
	in := Event{
		Time:  syscall.Timeval{Sec: 1700000000, Usec: 250000},
		Type:  Rel,
		Code:  RelY,
		Value: -7,
	}

	out, err := Decode(Encode(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, time.Unix(1700000000, 250000000), out.Timestamp())
}

func TestDecode_ShortBuffer(t *testing.T) {
	_, err := Decode(make([]byte, Size-1))
	assert.Error(t, err)
}

func TestEVIOCGNAME(t *testing.T) {
	// linux/input.h: EVIOCGNAME(256) = 0x81004506
	assert.Equal(t, uint(0x81004506), EVIOCGNAME(256))
}
