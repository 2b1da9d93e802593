package sqlite3

import (
	"encoding/binary"
	"fmt"
)

// readOverflowChain concatenates payload bytes spilled across an overflow
// chain: a linked list of pages, each beginning with a 4-byte big-endian
// pointer to the next page (0 terminates) followed by payload bytes.
// Grounded on spec.md §4.D; the teacher has no overflow support at all
// (its cell.go stops at recording FirstOverflow and never follows it).
func readOverflowChain(pf pageFetcher, pageSize int64, firstPage int64, expected int64) ([]byte, error) {
	out := make([]byte, 0, expected)
	page := firstPage
	for remaining := expected; remaining > 0; {
		if page == 0 {
			return nil, fmt.Errorf("%w: chain ended with %d bytes still expected", ErrOverflowTruncated, remaining)
		}
		buf, err := pf.ReadPage(page)
		if err != nil {
			return nil, err
		}
		if len(buf) < 4 {
			return nil, fmt.Errorf("%w: overflow page header", ErrShortRead)
		}
		next := binary.BigEndian.Uint32(buf[:4])

		avail := pageSize - 4
		take := remaining
		if take > avail {
			take = avail
		}
		if int64(len(buf)) < 4+take {
			return nil, fmt.Errorf("%w: overflow page body", ErrShortRead)
		}
		out = append(out, buf[4:4+take]...)
		remaining -= take
		page = int64(next)
	}
	return out, nil
}
