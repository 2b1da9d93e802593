package sqlite3

import (
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// Encoding is the database's declared text encoding (header offset 56),
// or an override supplied via WithEncodingOverride.
type Encoding string

const (
	EncodingUTF8    Encoding = "utf-8"
	EncodingUTF16LE Encoding = "utf-16le"
	EncodingUTF16BE Encoding = "utf-16be"
)

// Kind tags the dynamic type of a decoded record value, per spec.md's
// "dynamic typing in records" design note: Null | Int | Float | Text | Blob,
// never exposed untyped.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindText
	KindBlob
)

// Value is one decoded column value. Exactly one of the typed fields is
// meaningful, selected by Kind.
type Value struct {
	Kind Kind
	Int  int64
	Flt  float64
	Str  string
	Blob []byte
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%v", v.Flt)
	case KindText:
		return v.Str
	case KindBlob:
		return fmt.Sprintf("%x", v.Blob)
	default:
		return "?"
	}
}

// Interface returns the value unwrapped into its natural Go type, for
// callers that don't need the Kind tag (e.g. String()-style rendering in
// the teacher's reflection-based debug printers).
func (v Value) Interface() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Flt
	case KindText:
		return v.Str
	case KindBlob:
		return v.Blob
	default:
		return nil
	}
}

// SerialType is the per-column type code stored in a record header, per
// spec.md §4.A / the sqlite serial type table.
type SerialType int64

// classify maps a raw serial-type varint to the (kind, inline size) pair
// needed to decode the following bytes. Grounded on the teacher's
// newCellHeader (cell.go) which performs the same classification; this
// rewrite replaces its placeholder serialType enum with the Kind/size pair
// the record decoder actually needs.
func (t SerialType) classify() (kind Kind, size int64) {
	switch {
	case t >= 12 && t%2 == 0:
		return KindBlob, (int64(t) - 12) / 2
	case t >= 13 && t%2 == 1:
		return KindText, (int64(t) - 13) / 2
	}
	switch t {
	case 0:
		return KindNull, 0
	case 1:
		return KindInt, 1
	case 2:
		return KindInt, 2
	case 3:
		return KindInt, 3
	case 4:
		return KindInt, 4
	case 5:
		return KindInt, 6
	case 6:
		return KindInt, 8
	case 7:
		return KindFloat, 8
	case 8:
		return KindInt, 0 // literal 0
	case 9:
		return KindInt, 0 // literal 1
	default:
		return KindNull, 0
	}
}

// DecodeRecord reads a sqlite record body: a varint header length, a run of
// serial-type varints filling that header, then the value bytes themselves.
// It is the low-level codec surface spec.md §6 exposes directly
// (`read_record`).
func DecodeRecord(r io.Reader, enc Encoding) (types []int64, values []Value, err error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReaderAdapter{r: r}
	}

	headerLen, headerLenSize, err := readVarintCounted(br)
	if err != nil {
		return nil, nil, fmt.Errorf("record header length: %w", err)
	}
	if headerLen < 1 {
		return nil, nil, fmt.Errorf("%w: record header length %d", ErrTruncated, headerLen)
	}

	consumed := headerLenSize
	var serials []SerialType
	for int64(consumed) < headerLen {
		v, n, err := readVarintCounted(br)
		if err != nil {
			return nil, nil, fmt.Errorf("record serial type: %w", err)
		}
		serials = append(serials, SerialType(v))
		consumed += n
	}

	types = make([]int64, len(serials))
	values = make([]Value, len(serials))
	for i, st := range serials {
		types[i] = int64(st)
		val, err := decodeValue(br, st, enc)
		if err != nil {
			return nil, nil, err
		}
		values[i] = val
	}
	return types, values, nil
}

func decodeValue(r io.ByteReader, st SerialType, enc Encoding) (Value, error) {
	kind, size := st.classify()
	switch kind {
	case KindNull:
		return Value{Kind: KindNull}, nil
	case KindInt:
		if st == 8 {
			return Value{Kind: KindInt, Int: 0}, nil
		}
		if st == 9 {
			return Value{Kind: KindInt, Int: 1}, nil
		}
		buf := make([]byte, size)
		if err := readFull(r, buf); err != nil {
			return Value{}, err
		}
		return Value{Kind: KindInt, Int: decodeBigEndianSigned(buf)}, nil
	case KindFloat:
		buf := make([]byte, size)
		if err := readFull(r, buf); err != nil {
			return Value{}, err
		}
		bits := uint64(decodeBigEndianUnsigned(buf))
		return Value{Kind: KindFloat, Flt: math.Float64frombits(bits)}, nil
	case KindBlob:
		// A declared size larger than what's actually left in the record is
		// tolerated here rather than treated as truncation: sqlite3_recover
		// and friends still want whatever bytes are present (spec.md §8 S6).
		buf := readAvailable(r, size)
		return Value{Kind: KindBlob, Blob: buf}, nil
	case KindText:
		buf := readAvailable(r, size)
		s, err := decodeText(buf, enc)
		if err != nil {
			// Declared TEXT that doesn't actually decode in the declared
			// encoding (truncated or simply not text) surfaces as the raw
			// bytes instead, per spec.md §8 S6.
			return Value{Kind: KindBlob, Blob: buf}, nil
		}
		return Value{Kind: KindText, Str: s}, nil
	default:
		return Value{Kind: KindNull}, nil
	}
}

// decodeText honours the database's declared encoding exactly; failures are
// surfaced as ErrTextDecode, which decodeValue turns into a raw Blob rather
// than a propagated error (spec.md §4.A, §8 S6, §9).
func decodeText(buf []byte, enc Encoding) (string, error) {
	switch enc {
	case "", EncodingUTF8:
		if !utf8.Valid(buf) {
			return "", fmt.Errorf("%w: invalid utf-8 byte sequence", ErrTextDecode)
		}
		return string(buf), nil
	case EncodingUTF16LE:
		d := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		out, err := d.Bytes(buf)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrTextDecode, err)
		}
		return string(out), nil
	case EncodingUTF16BE:
		d := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
		out, err := d.Bytes(buf)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrTextDecode, err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("%w: unknown encoding %q", ErrTextDecode, enc)
	}
}

func decodeBigEndianSigned(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	v := int64(int8(b[0]))
	for _, c := range b[1:] {
		v = (v << 8) | int64(c)
	}
	return v
}

func decodeBigEndianUnsigned(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = (v << 8) | uint64(c)
	}
	return v
}

func readFull(r io.ByteReader, buf []byte) error {
	for i := range buf {
		b, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		buf[i] = b
	}
	return nil
}

// readAvailable reads up to size bytes, stopping early (without error) the
// moment the reader runs dry. Used for TEXT/BLOB, whose declared size is
// just another record field and can overstate what's actually stored.
func readAvailable(r io.ByteReader, size int64) []byte {
	buf := make([]byte, 0, size)
	for int64(len(buf)) < size {
		b, err := r.ReadByte()
		if err != nil {
			return buf
		}
		buf = append(buf, b)
	}
	return buf
}

// readVarintCounted reads a varint one byte at a time from an io.ByteReader,
// mirroring DecodeVarint's buffer-based algorithm for stream input, and
// additionally reports the number of bytes consumed.
func readVarintCounted(r io.ByteReader) (int64, int, error) {
	var v int64
	for i := 0; i < 9; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		if i == 8 {
			v = (v << 8) | int64(b)
			return v, 9, nil
		}
		v = (v << 7) | int64(b&0x7f)
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return v, 9, nil
}

// byteReaderAdapter upgrades a plain io.Reader to io.ByteReader for the
// streaming varint/value decoders above.
type byteReaderAdapter struct {
	r   io.Reader
	buf [1]byte
}

func (a *byteReaderAdapter) ReadByte() (byte, error) {
	if _, err := io.ReadFull(a.r, a.buf[:]); err != nil {
		return 0, err
	}
	return a.buf[0], nil
}
