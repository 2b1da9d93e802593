package sqlite3

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildRecord assembles a raw sqlite record body: header-length varint,
// serial-type varints, then value bytes, mirroring sqlite's on-disk layout
// exactly (spec.md §4.A). Assumes the header fits in a one-byte varint,
// true for every record these tests build.
func buildRecord(serials []int64, body []byte) []byte {
	var hdr []byte
	for _, s := range serials {
		hdr = append(hdr, EncodeVarint(s)...)
	}
	headerLen := EncodeVarint(int64(len(hdr)) + 1)
	if len(headerLen) != 1 {
		panic("buildRecord: header too large for a one-byte length varint")
	}
	out := append(append([]byte{}, headerLen...), hdr...)
	out = append(out, body...)
	return out
}

func TestDecodeRecordNullAndInts(t *testing.T) {
	// serial types: 0 (NULL), 1 (8-bit int), 8 (literal 0), 9 (literal 1)
	buf := buildRecord([]int64{0, 1, 8, 9}, []byte{0x2a})
	types, values, err := DecodeRecord(bytes.NewReader(buf), EncodingUTF8)
	require.NoError(t, err)
	require.Len(t, types, 4)

	assert.Equal(t, KindNull, values[0].Kind)
	assert.Equal(t, KindInt, values[1].Kind)
	assert.Equal(t, int64(0x2a), values[1].Int)
	assert.Equal(t, KindInt, values[2].Kind)
	assert.Equal(t, int64(0), values[2].Int)
	assert.Equal(t, KindInt, values[3].Kind)
	assert.Equal(t, int64(1), values[3].Int)
}

func TestDecodeRecordTextUTF8(t *testing.T) {
	text := []byte("hello")
	serial := int64(13 + len(text)*2) // odd serial type for TEXT
	buf := buildRecord([]int64{serial}, text)

	_, values, err := DecodeRecord(bytes.NewReader(buf), EncodingUTF8)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, KindText, values[0].Kind)
	assert.Equal(t, "hello", values[0].Str)
}

func TestDecodeRecordBlob(t *testing.T) {
	blob := []byte{0xde, 0xad, 0xbe, 0xef}
	serial := int64(12 + len(blob)*2) // even serial type for BLOB
	buf := buildRecord([]int64{serial}, blob)

	_, values, err := DecodeRecord(bytes.NewReader(buf), EncodingUTF8)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, KindBlob, values[0].Kind)
	assert.Equal(t, blob, values[0].Blob)
}

func TestDecodeRecordFloat(t *testing.T) {
	var body bytes.Buffer
	val := 3.5
	bits := math.Float64bits(val)
	for i := 7; i >= 0; i-- {
		body.WriteByte(byte(bits >> (8 * i)))
	}
	buf := buildRecord([]int64{7}, body.Bytes())

	_, values, err := DecodeRecord(bytes.NewReader(buf), EncodingUTF8)
	require.NoError(t, err)
	assert.Equal(t, KindFloat, values[0].Kind)
	assert.Equal(t, val, values[0].Flt)
}

// TestDecodeRecordShortTextFallsBackToBlob is the S6 scenario from spec.md
// §8: serial type 101 classifies as TEXT of declared size 44, but the
// record only carries 4 more bytes. Those 4 bytes aren't valid utf-8 either,
// so the value surfaces as the raw bytes rather than an error.
func TestDecodeRecordShortTextFallsBackToBlob(t *testing.T) {
	buf := []byte{0x02, 0x65, 0x80, 0x81, 0x82, 0x83}
	types, values, err := DecodeRecord(bytes.NewReader(buf), EncodingUTF8)
	require.NoError(t, err)
	require.Equal(t, []int64{101}, types)
	require.Len(t, values, 1)
	assert.Equal(t, KindBlob, values[0].Kind)
	assert.Equal(t, []byte{0x80, 0x81, 0x82, 0x83}, values[0].Blob)
}

func TestDecodeRecordTruncatedHeader(t *testing.T) {
	_, _, err := DecodeRecord(bytes.NewReader(nil), EncodingUTF8)
	assert.Error(t, err)
}

func TestSerialTypeClassify(t *testing.T) {
	cases := []struct {
		st       SerialType
		wantKind Kind
		wantSize int64
	}{
		{0, KindNull, 0},
		{1, KindInt, 1},
		{6, KindInt, 8},
		{7, KindFloat, 8},
		{8, KindInt, 0},
		{9, KindInt, 0},
		{12, KindBlob, 0},
		{14, KindBlob, 1},
		{13, KindText, 0},
		{15, KindText, 1},
	}
	for _, c := range cases {
		kind, size := c.st.classify()
		assert.Equal(t, c.wantKind, kind, "serial type %d", c.st)
		assert.Equal(t, c.wantSize, size, "serial type %d", c.st)
	}
}
