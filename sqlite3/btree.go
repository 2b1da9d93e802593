package sqlite3

import (
	"encoding/binary"
	"fmt"
)

// pageFetcher returns the raw bytes of logical page n. Both the plain base
// file (pageSource) and the WAL-aware overlay (resolver.go) implement it,
// so the B-tree walker below is oblivious to whether a WAL is attached.
type pageFetcher interface {
	ReadPage(n int64) ([]byte, error)
}

func (p *pageSource) ReadPage(n int64) ([]byte, error) { return p.readPage(n) }

type pageType uint8

const (
	pageTypeInteriorIndex pageType = 0x02
	pageTypeInteriorTable pageType = 0x05
	pageTypeLeafIndex     pageType = 0x0A
	pageTypeLeafTable     pageType = 0x0D
)

// btreePageHeader is the 8 (leaf) or 12 (interior) byte header that opens
// every b-tree page. Grounded on the teacher's pageHeader (page.go),
// generalized to report its own size so callers can locate the cell
// pointer array without a second page-type switch.
type btreePageHeader struct {
	Type             pageType
	FirstFreeblock   uint16
	CellCount        uint16
	CellContentStart uint16
	FragmentedBytes  uint8
	RightMostPointer uint32
}

func (h *btreePageHeader) size() int {
	if h.Type == pageTypeInteriorTable || h.Type == pageTypeInteriorIndex {
		return 12
	}
	return 8
}

func (h *btreePageHeader) isInterior() bool {
	return h.Type == pageTypeInteriorTable || h.Type == pageTypeInteriorIndex
}

func (h *btreePageHeader) isTable() bool {
	return h.Type == pageTypeInteriorTable || h.Type == pageTypeLeafTable
}

// parseBTreePageHeader parses the header starting at buf[0]; callers pass
// the page buffer already sliced past the 100-byte file header on page 1.
func parseBTreePageHeader(buf []byte) (*btreePageHeader, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("%w: b-tree page header", ErrShortRead)
	}
	h := &btreePageHeader{
		Type:             pageType(buf[0]),
		FirstFreeblock:   binary.BigEndian.Uint16(buf[1:3]),
		CellCount:        binary.BigEndian.Uint16(buf[3:5]),
		CellContentStart: binary.BigEndian.Uint16(buf[5:7]),
		FragmentedBytes:  buf[7],
	}
	switch h.Type {
	case pageTypeInteriorTable, pageTypeInteriorIndex:
		if len(buf) < 12 {
			return nil, fmt.Errorf("%w: interior b-tree page header", ErrShortRead)
		}
		h.RightMostPointer = binary.BigEndian.Uint32(buf[8:12])
	case pageTypeLeafTable, pageTypeLeafIndex:
		// 8-byte header only.
	default:
		return nil, fmt.Errorf("%w: page type 0x%02x", ErrUnsupportedPage, buf[0])
	}
	return h, nil
}

// cellPointers reads the big-endian uint16 cell pointer array that follows
// the page header. Per spec.md §4.C / the sqlite file format, the values
// themselves are always offsets from the start of the page (byte 0), even
// on page 1 where the b-tree header starts at byte 100 -- only the array's
// own location is shifted by pageBase, never the offsets it stores.
func cellPointers(buf []byte, header *btreePageHeader, pageBase int) []uint16 {
	start := pageBase + header.size()
	ptrs := make([]uint16, header.CellCount)
	for i := range ptrs {
		ptrs[i] = binary.BigEndian.Uint16(buf[start+i*2 : start+i*2+2])
	}
	return ptrs
}

// leafCell is one decoded row: rowid, the full logical payload (inline
// bytes reassembled with any overflow chain), per spec.md's Cell data
// model.
type leafCell struct {
	RowID   int64
	Payload []byte
}

// walkTable performs a depth-first, left-to-right scan of the table b-tree
// rooted at root, invoking visit for every leaf cell in cell-pointer order
// (the canonical key order; the walker never sorts). It never recurses
// through Go call frames for descent -- an explicit stack lets iteration be
// abandoned at any point, per spec.md §5.
//
// Grounded on the teacher's parseTablesAndIndices/queryTable (file.go,
// query.go), generalized from "collect schema cells" / "filter matching
// rows" into a single restartable traversal primitive the row materialiser
// and schema reader both build on.
func walkTable(pf pageFetcher, pageSize int64, reserved uint8, root int64, visit func(leafCell) error) error {
	stack := []int64{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		buf, err := pf.ReadPage(n)
		if err != nil {
			return err
		}
		pageBase := 0
		if n == schemaRootPage {
			pageBase = HeaderSize
		}

		header, err := parseBTreePageHeader(buf[pageBase:])
		if err != nil {
			return err
		}
		if !header.isTable() {
			return fmt.Errorf("%w: page %d is an index page", ErrUnsupportedPage, n)
		}

		ptrs := cellPointers(buf, header, pageBase)

		if header.isInterior() {
			// Push right-most child first so the left children pop (and
			// are visited) before it -- preserves left-to-right order with
			// a LIFO stack.
			if header.RightMostPointer > 0 {
				stack = append(stack, int64(header.RightMostPointer))
			}
			children := make([]int64, 0, len(ptrs))
			for _, ptr := range ptrs {
				left, _, err := parseInteriorTableCell(buf[int(ptr):])
				if err != nil {
					return err
				}
				if left > 0 {
					children = append(children, left)
				}
			}
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
			continue
		}

		for _, ptr := range ptrs {
			cell, err := parseLeafTableCell(buf[int(ptr):], pageSize, reserved)
			if err != nil {
				return err
			}
			payload, err := reassemblePayload(pf, pageSize, cell)
			if err != nil {
				return err
			}
			if err := visit(leafCell{RowID: cell.rowID, Payload: payload}); err != nil {
				return err
			}
		}
	}
	return nil
}

// parsedLeafCell is the intermediate decode of a leaf-table cell before
// overflow reassembly.
type parsedLeafCell struct {
	rowID         int64
	inline        []byte
	overflowPage  uint32
	declaredSize  int64
}

// parseInteriorTableCell decodes (left_child: uint32, rowid: varint).
func parseInteriorTableCell(buf []byte) (leftChild int64, rowID int64, err error) {
	if len(buf) < 4 {
		return 0, 0, fmt.Errorf("%w: interior table cell", ErrShortRead)
	}
	leftChild = int64(binary.BigEndian.Uint32(buf[:4]))
	rowID, n := DecodeVarint(buf[4:])
	if n == 0 {
		return 0, 0, fmt.Errorf("%w: interior table cell rowid", ErrTruncated)
	}
	return leftChild, rowID, nil
}

// parseLeafTableCell decodes (payload_length, rowid, payload[, overflow_page]).
// The inline/overflow split follows spec.md §4.C's threshold formulas
// exactly.
func parseLeafTableCell(buf []byte, pageSize int64, reserved uint8) (*parsedLeafCell, error) {
	payloadLen, n1 := DecodeVarint(buf)
	if n1 == 0 {
		return nil, fmt.Errorf("%w: leaf table cell payload length", ErrTruncated)
	}
	offset := n1
	rowID, n2 := DecodeVarint(buf[offset:])
	if n2 == 0 {
		return nil, fmt.Errorf("%w: leaf table cell rowid", ErrTruncated)
	}
	offset += n2

	u := pageSize - int64(reserved)
	x := u - 35

	var inlineSize int64
	var hasOverflow bool
	if payloadLen <= x {
		inlineSize = payloadLen
	} else {
		m := ((u-12)*32)/255 - 23
		k := m + ((payloadLen - m) % (u - 4))
		if k > x {
			k = m
		}
		inlineSize = k
		hasOverflow = true
	}

	if offset+inlineSize > int64(len(buf)) {
		return nil, fmt.Errorf("%w: leaf table cell payload", ErrShortRead)
	}
	inline := make([]byte, inlineSize)
	copy(inline, buf[offset:offset+inlineSize])
	offset += inlineSize

	cell := &parsedLeafCell{rowID: rowID, inline: inline, declaredSize: payloadLen}
	if hasOverflow {
		if offset+4 > int64(len(buf)) {
			return nil, fmt.Errorf("%w: leaf table cell overflow pointer", ErrShortRead)
		}
		cell.overflowPage = binary.BigEndian.Uint32(buf[offset : offset+4])
	}
	return cell, nil
}

// reassemblePayload concatenates the inline bytes with the overflow chain
// (component D), if any.
func reassemblePayload(pf pageFetcher, pageSize int64, cell *parsedLeafCell) ([]byte, error) {
	if cell.overflowPage == 0 {
		return cell.inline, nil
	}
	remaining := cell.declaredSize - int64(len(cell.inline))
	rest, err := readOverflowChain(pf, pageSize, int64(cell.overflowPage), remaining)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(cell.inline)+len(rest))
	out = append(out, cell.inline...)
	out = append(out, rest...)
	return out, nil
}
