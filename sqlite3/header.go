package sqlite3

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the fixed 100-byte database header at offset 0.
	// Grounded on the teacher's databaseHeader (file.go), generalized to
	// only the fields the reader actually needs.
	HeaderSize = 100

	headerMagic = "SQLite format 3\x00"

	// schemaRootPage is always page 1: the root of sqlite_schema.
	schemaRootPage = 1
)

// Header is the parsed 100-byte database header.
type Header struct {
	PageSize      uint32
	ReservedSpace uint8
	TextEncoding  Encoding
}

func parseHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: header", ErrShortRead)
	}
	if string(buf[:16]) != headerMagic {
		return nil, invalidDatabase("bad magic string")
	}

	rawPageSize := binary.BigEndian.Uint16(buf[16:18])
	pageSize := uint32(rawPageSize)
	if rawPageSize == 1 {
		pageSize = 65536
	}
	if pageSize < 512 || (pageSize&(pageSize-1)) != 0 {
		return nil, invalidDatabase(fmt.Sprintf("page size %d is not a power of two in [512, 65536]", pageSize))
	}

	reserved := buf[20]

	var enc Encoding
	switch binary.BigEndian.Uint32(buf[56:60]) {
	case 1:
		enc = EncodingUTF8
	case 2:
		enc = EncodingUTF16LE
	case 3:
		enc = EncodingUTF16BE
	case 0:
		// An empty/never-written database reports 0; default to utf-8 per
		// spec.md S7 (opening an empty DB yields encoding "utf-8").
		enc = EncodingUTF8
	default:
		return nil, invalidDatabase("unsupported text encoding")
	}

	return &Header{PageSize: pageSize, ReservedSpace: reserved, TextEncoding: enc}, nil
}
