package sqlite3

import (
	"fmt"
	"io"
	"os"
)

// RandomReader is the external collaborator abstraction spec.md §1 hands
// the core: any random-access byte source with a known length. A caller may
// supply its own (a borrowed *os.File, an in-memory buffer, a mmap'd
// region); the core never assumes ownership of a RandomReader it did not
// open itself.
type RandomReader interface {
	io.ReaderAt
	Size() int64
}

// sizedFile adapts an *os.File that this package opened itself to
// RandomReader. Database keeps the sizedFiles it opened in ownedBase and
// ownedWAL, so Close can honour the "owned vs borrowed" lifecycle rule in
// spec.md §5.
type sizedFile struct {
	f    *os.File
	size int64
}

func openFile(path string) (*sizedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &sizedFile{f: f, size: info.Size()}, nil
}

func (s *sizedFile) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *sizedFile) Size() int64                             { return s.size }
func (s *sizedFile) Close() error                             { return s.f.Close() }

// bytesSource adapts an in-memory byte slice to RandomReader, useful for
// tests that hand-build a synthetic page image.
type bytesSource []byte

func (b bytesSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b bytesSource) Size() int64 { return int64(len(b)) }

// pageSource computes page offsets and fetches raw page bytes from a base
// image (component B, spec.md §4.B). It knows nothing about overflow,
// B-trees, or the WAL: those are layered on top.
type pageSource struct {
	r        RandomReader
	pageSize int64
}

// readPage seeks to (n-1)*pageSize and reads pageSize bytes. For page 1,
// the 100-byte database header occupies the start of the page; the page
// header that follows is still read starting at that page's base offset,
// callers account for the 100-byte skip themselves (see walkTable in
// btree.go).
func (p *pageSource) readPage(n int64) ([]byte, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: page number %d is not 1-based", ErrInvalidDatabase, n)
	}
	offset := (n - 1) * p.pageSize
	buf := make([]byte, p.pageSize)
	read, err := p.r.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if read < len(buf) {
		return nil, fmt.Errorf("%w: page %d wanted %d bytes, got %d", ErrShortRead, n, len(buf), read)
	}
	return buf, nil
}
