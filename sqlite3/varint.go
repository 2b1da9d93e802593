package sqlite3

// A sqlite varint is 1-9 bytes, big-endian, seven content bits per byte with
// a continuation bit in the MSB, except the ninth byte which contributes all
// eight of its bits. See https://sqlite.org/fileformat2.html#varint.
//
// Grounded on the teacher's readVarint/readVarints (utils.go), generalized
// with an encoder so the round-trip law in spec.md's testable properties
// can be checked directly.

// DecodeVarint decodes a sqlite varint from the head of buf, returning the
// signed value and the number of bytes consumed (1..9). An empty buf yields
// (0, 0).
func DecodeVarint(buf []byte) (value int64, n int) {
	var v int64
	for i := 0; i < len(buf) && i < 9; i++ {
		b := buf[i]
		if i == 8 {
			v = (v << 8) | int64(b)
			return v, i + 1
		}
		v = (v << 7) | int64(b&0x7f)
		if b&0x80 == 0 {
			return v, i + 1
		}
	}
	return v, len(buf)
}

// DecodeVarints decodes consecutive varints until data is exhausted,
// returning the values and the total bytes consumed.
func DecodeVarints(data []byte) (values []int64, n int) {
	i := 0
	for i < len(data) {
		v, read := DecodeVarint(data[i:])
		if read == 0 {
			break
		}
		values = append(values, v)
		i += read
	}
	return values, i
}

// EncodeVarint encodes n as a sqlite varint. Every int64 value round-trips
// through DecodeVarint(EncodeVarint(n)), a direct port of sqlite's own
// sqlite3PutVarint.
func EncodeVarint(n int64) []byte {
	v := uint64(n)
	if v&(uint64(0xff000000)<<32) != 0 {
		// Top byte is non-zero: the 9-byte form, where the last byte
		// carries a full 8 bits instead of 7.
		out := make([]byte, 9)
		out[8] = byte(v)
		v >>= 8
		for i := 7; i >= 0; i-- {
			out[i] = byte(v&0x7f) | 0x80
			v >>= 7
		}
		return out
	}

	var buf [9]byte
	count := 0
	for {
		buf[count] = byte(v&0x7f) | 0x80
		v >>= 7
		count++
		if v == 0 {
			break
		}
	}
	buf[0] &^= 0x80

	out := make([]byte, count)
	for i, j := 0, count-1; j >= 0; i, j = i+1, j-1 {
		out[i] = buf[j]
	}
	return out
}
