package sqlite3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeVarintSingleByte(t *testing.T) {
	v, n := DecodeVarint([]byte{0x05})
	assert.Equal(t, int64(5), v)
	assert.Equal(t, 1, n)
}

func TestDecodeVarintMultiByte(t *testing.T) {
	// 0x81 0x00 -> continuation bit set on first byte, value 0x80.
	v, n := DecodeVarint([]byte{0x81, 0x00})
	assert.Equal(t, int64(0x80), v)
	assert.Equal(t, 2, n)
}

func TestDecodeVarintNinthByteTakesFullByte(t *testing.T) {
	buf := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	v, n := DecodeVarint(buf)
	assert.Equal(t, 9, n)
	assert.Equal(t, int64(-1), v)
}

func TestDecodeVarintEmpty(t *testing.T) {
	v, n := DecodeVarint(nil)
	assert.Equal(t, int64(0), v)
	assert.Equal(t, 0, n)
}

func TestEncodeDecodeVarintRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 127, 128, 255, 16384, -16384, 1 << 40, -(1 << 40), 1<<63 - 1, -(1 << 63)}
	for _, n := range cases {
		encoded := EncodeVarint(n)
		require.NotEmpty(t, encoded)
		decoded, read := DecodeVarint(encoded)
		assert.Equal(t, len(encoded), read, "n=%d", n)
		assert.Equal(t, n, decoded, "n=%d", n)
	}
}

func TestDecodeVarintsConsumesWholeBuffer(t *testing.T) {
	a := EncodeVarint(300)
	b := EncodeVarint(1)
	buf := append(append([]byte{}, a...), b...)

	values, n := DecodeVarints(buf)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, []int64{300, 1}, values)
}
