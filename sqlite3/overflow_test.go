package sqlite3

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePageFetcher is a pageFetcher test double over an in-memory map of
// page number to raw page bytes, standing in for a real pageSource/resolver
// so the overflow walker can be exercised without a binary fixture.
type fakePageFetcher map[int64][]byte

func (f fakePageFetcher) ReadPage(n int64) ([]byte, error) {
	buf, ok := f[n]
	if !ok {
		return nil, fmt.Errorf("fakePageFetcher: no page %d", n)
	}
	return buf, nil
}

// buildOverflowPage lays out one overflow page: a 4-byte big-endian next
// page pointer (0 terminates the chain) followed by payload, zero-padded
// out to pageSize.
func buildOverflowPage(pageSize int64, next uint32, payload []byte) []byte {
	buf := make([]byte, pageSize)
	binary.BigEndian.PutUint32(buf[:4], next)
	copy(buf[4:], payload)
	return buf
}

func TestReadOverflowChainReassemblesAcrossPages(t *testing.T) {
	const pageSize = int64(16) // 12 payload bytes per page after the 4-byte header

	chunk1 := []byte("0123456789AB") // 12 bytes, fills page 10's capacity
	chunk2 := []byte("CDEFGHIJKLMN") // 12 bytes, fills page 11's capacity
	chunk3 := []byte("OPQRS")        // 5 bytes, less than page 12's capacity

	page12Payload := make([]byte, 12)
	copy(page12Payload, chunk3)

	pf := fakePageFetcher{
		10: buildOverflowPage(pageSize, 11, chunk1),
		11: buildOverflowPage(pageSize, 12, chunk2),
		12: buildOverflowPage(pageSize, 0, page12Payload),
	}

	expected := int64(len(chunk1) + len(chunk2) + len(chunk3))
	got, err := readOverflowChain(pf, pageSize, 10, expected)
	require.NoError(t, err)

	want := append(append(append([]byte{}, chunk1...), chunk2...), chunk3...)
	assert.Equal(t, want, got)
}

func TestReadOverflowChainTruncatedChain(t *testing.T) {
	const pageSize = int64(16)
	// Chain terminates after one page, but the caller still expects more
	// bytes than that page alone can supply.
	pf := fakePageFetcher{
		10: buildOverflowPage(pageSize, 0, []byte("short")),
	}

	_, err := readOverflowChain(pf, pageSize, 10, 100)
	assert.ErrorIs(t, err, ErrOverflowTruncated)
}

func TestReadOverflowChainShortPageHeader(t *testing.T) {
	pf := fakePageFetcher{10: []byte{0x00, 0x00}}

	_, err := readOverflowChain(pf, 16, 10, 10)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestReadOverflowChainShortPageBody(t *testing.T) {
	const pageSize = int64(16)
	// A well-formed 4-byte header but fewer payload bytes than the page
	// claims to carry (page is truncated mid-body).
	pf := fakePageFetcher{10: buildOverflowPage(pageSize, 0, nil)[:6]}

	_, err := readOverflowChain(pf, pageSize, 10, 10)
	assert.ErrorIs(t, err, ErrShortRead)
}
