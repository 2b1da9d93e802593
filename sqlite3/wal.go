package sqlite3

import (
	"container/list"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

const (
	walHeaderSize  = 32
	walFrameHeader = 24

	walMagicLE = 0x377F0682
	walMagicBE = 0x377F0683

	// frameCacheCapacity bounds the frame-metadata LRU per spec.md §5
	// ("small LRU of frame metadata", capacity ~= 1024). Shape grounded on
	// mjm918-tur's pkg/cache (container/list + map) LRU.
	frameCacheCapacity = 1024
)

// checksumEndian selects the byte order used by the WAL checksum algorithm
// (independent of the fields' own big-endian on-disk layout).
type checksumEndian int

const (
	checksumLittleEndian checksumEndian = iota
	checksumBigEndian
)

func (e checksumEndian) order() binary.ByteOrder {
	if e == checksumLittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// walHeader is the 32-byte WAL file header.
type walHeader struct {
	Magic            uint32
	Version          uint32
	PageSize         uint32
	CheckpointSeq    uint32
	Salt1            uint32
	Salt2            uint32
	Checksum1        uint32
	Checksum2        uint32
	ChecksumEndian   checksumEndian
	raw              [24]byte // first 24 bytes, needed to seed checksum verification
}

func parseWALHeader(buf []byte) (*walHeader, error) {
	if len(buf) < walHeaderSize {
		return nil, fmt.Errorf("%w: WAL header", ErrShortRead)
	}
	h := &walHeader{
		Magic:         binary.BigEndian.Uint32(buf[0:4]),
		Version:       binary.BigEndian.Uint32(buf[4:8]),
		PageSize:      binary.BigEndian.Uint32(buf[8:12]),
		CheckpointSeq: binary.BigEndian.Uint32(buf[12:16]),
		Salt1:         binary.BigEndian.Uint32(buf[16:20]),
		Salt2:         binary.BigEndian.Uint32(buf[20:24]),
		Checksum1:     binary.BigEndian.Uint32(buf[24:28]),
		Checksum2:     binary.BigEndian.Uint32(buf[28:32]),
	}
	switch h.Magic {
	case walMagicLE:
		h.ChecksumEndian = checksumLittleEndian
	case walMagicBE:
		h.ChecksumEndian = checksumBigEndian
	default:
		return nil, invalidWAL(fmt.Sprintf("bad magic 0x%08x", h.Magic))
	}
	copy(h.raw[:], buf[:24])
	return h, nil
}

// frameHeader is the 24-byte header preceding each frame's page data.
type frameHeader struct {
	PageNumber uint32
	PageCount  uint32
	Salt1      uint32
	Salt2      uint32
	Checksum1  uint32
	Checksum2  uint32
}

func parseFrameHeader(buf []byte) (*frameHeader, error) {
	if len(buf) < walFrameHeader {
		return nil, fmt.Errorf("%w: WAL frame header", ErrShortRead)
	}
	return &frameHeader{
		PageNumber: binary.BigEndian.Uint32(buf[0:4]),
		PageCount:  binary.BigEndian.Uint32(buf[4:8]),
		Salt1:      binary.BigEndian.Uint32(buf[8:12]),
		Salt2:      binary.BigEndian.Uint32(buf[12:16]),
		Checksum1:  binary.BigEndian.Uint32(buf[16:20]),
		Checksum2:  binary.BigEndian.Uint32(buf[20:24]),
	}, nil
}

// Frame is one WAL frame: a header plus one page worth of data. Index is
// the frame's 0-based position in the stream.
type Frame struct {
	Index  int
	Offset int64
	Header frameHeader
	Data   []byte
}

// PageNumber and PageCount mirror the stored header fields for callers that
// don't want to reach into Frame.Header.
func (f *Frame) PageNumber() int64 { return int64(f.Header.PageNumber) }
func (f *Frame) PageCount() int64  { return int64(f.Header.PageCount) }

// ValidateSalt reports whether the frame's salts match the WAL header's,
// independent of full checksum verification. Supplemented from
// original_source's Frame.validate_salt: a cheap sanity check the
// distilled spec dropped but never excluded.
func (f *Frame) ValidateSalt(h *walHeader) bool {
	return f.Header.Salt1 == h.Salt1 && f.Header.Salt2 == h.Salt2
}

// Commit is an ordered run of frames ending in the one whose PageCount > 0.
type Commit struct {
	Frames []*Frame
}

func (c *Commit) pageMap() map[int64]*Frame {
	m := make(map[int64]*Frame, len(c.Frames))
	for _, f := range c.Frames {
		m[f.PageNumber()] = f
	}
	return m
}

// Checkpoint is a deduplicated Commit: the latest commit sharing a given
// salt1. It is an alias rather than a distinct type because its shape and
// behaviour (page lookup by number) are identical to Commit's.
type Checkpoint = Commit

// WAL parses a WAL sidecar file: header, frame stream, commit grouping, and
// checkpoint deduplication (spec.md §4.E). It never mutates or rewrites the
// file.
//
// Grounded on original_source/dissect/database/sqlite3/wal.py for exact
// semantics (including the three bug fixes spec.md §9 calls out), with
// struct/field naming and the frame LRU borrowed from mjm918-tur's
// pkg/wal and pkg/cache.
type WAL struct {
	src    RandomReader
	header *walHeader

	frameSize int64

	mu          sync.Mutex
	frameCache  map[int]*list.Element
	frameLRU    *list.List

	commitsOnce sync.Once
	commits     []*Commit

	checkpointsOnce sync.Once
	checkpoints     []*Checkpoint

	verifyChecksums bool
	log             *slog.Logger
}

type lruEntry struct {
	idx   int
	frame *Frame
}

func newWAL(src RandomReader, dbPageSize uint32, verify bool, log *slog.Logger) (*WAL, error) {
	hdrBuf := make([]byte, walHeaderSize)
	if _, err := src.ReadAt(hdrBuf, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAL, err)
	}
	header, err := parseWALHeader(hdrBuf)
	if err != nil {
		return nil, err
	}
	if header.PageSize != dbPageSize {
		return nil, invalidWAL(fmt.Sprintf("WAL page size %d does not match database page size %d", header.PageSize, dbPageSize))
	}

	w := &WAL{
		src:             src,
		header:          header,
		frameSize:       walFrameHeader + int64(header.PageSize),
		frameCache:      make(map[int]*list.Element),
		frameLRU:        list.New(),
		verifyChecksums: verify,
		log:             log,
	}
	return w, nil
}

// frame returns frame idx (0-based), reading and, if enabled, verifying it.
// Memoised in a small LRU per spec.md §5; callers must not rely on pointer
// identity across evictions.
func (w *WAL) frame(idx int) (*Frame, error) {
	w.mu.Lock()
	if el, ok := w.frameCache[idx]; ok {
		w.frameLRU.MoveToFront(el)
		f := el.Value.(*lruEntry).frame
		w.mu.Unlock()
		return f, nil
	}
	w.mu.Unlock()

	offset := int64(walHeaderSize) + int64(idx)*w.frameSize
	hdrBuf := make([]byte, walFrameHeader)
	n, err := w.src.ReadAt(hdrBuf, offset)
	if err != nil || n < walFrameHeader {
		return nil, errFrameEOF
	}
	fh, err := parseFrameHeader(hdrBuf)
	if err != nil {
		return nil, err
	}

	data := make([]byte, w.header.PageSize)
	n, err = w.src.ReadAt(data, offset+walFrameHeader)
	if err != nil || uint32(n) < w.header.PageSize {
		return nil, errFrameEOF
	}

	f := &Frame{Index: idx, Offset: offset, Header: *fh, Data: data}

	if w.verifyChecksums {
		if err := w.verifyFrame(idx, f); err != nil {
			return nil, err
		}
	}

	w.mu.Lock()
	el := w.frameLRU.PushFront(&lruEntry{idx: idx, frame: f})
	w.frameCache[idx] = el
	if w.frameLRU.Len() > frameCacheCapacity {
		oldest := w.frameLRU.Back()
		if oldest != nil {
			w.frameLRU.Remove(oldest)
			delete(w.frameCache, oldest.Value.(*lruEntry).idx)
		}
	}
	w.mu.Unlock()

	return f, nil
}

// ValidateFrameSalt reports whether frame idx's salts match this WAL's
// header, without running full checksum verification. Exposes Frame's
// salt check to callers that never constructed a walHeader directly.
func (w *WAL) ValidateFrameSalt(idx int) (bool, error) {
	f, err := w.frame(idx)
	if err != nil {
		return false, err
	}
	return f.ValidateSalt(w.header), nil
}

// errFrameEOF marks "no more frames" -- frames() terminates silently on it,
// since a partial frame at the tail of a live WAL is normal (spec.md §4.E).
var errFrameEOF = fmt.Errorf("sqlite3: no more WAL frames")

// frames lazily yields every complete frame in order, stopping silently at
// the first incomplete header or page.
func (w *WAL) frames(yield func(*Frame) bool) {
	for idx := 0; ; idx++ {
		f, err := w.frame(idx)
		if err != nil {
			return
		}
		if !yield(f) {
			return
		}
	}
}

// commitsList groups frames into commits, memoised after first computation.
func (w *WAL) commitsList() []*Commit {
	w.commitsOnce.Do(func() {
		var cur []*Frame
		w.frames(func(f *Frame) bool {
			cur = append(cur, f)
			if f.PageCount() > 0 {
				w.commits = append(w.commits, &Commit{Frames: cur})
				cur = nil
			}
			return true
		})
		if len(cur) > 0 && w.log != nil {
			w.log.Warn("leftover frames after last committed WAL frame", "count", len(cur))
		}
	})
	return w.commits
}

// checkpointsList deduplicates commits by the salt1 of their first frame,
// keeping the later occurrence, sorted ascending by salt1. Memoised.
func (w *WAL) checkpointsList() []*Checkpoint {
	w.checkpointsOnce.Do(func() {
		bySalt := make(map[uint32]*Checkpoint)
		var order []uint32
		for _, c := range w.commitsList() {
			if len(c.Frames) == 0 {
				continue
			}
			salt := c.Frames[0].Header.Salt1
			if _, seen := bySalt[salt]; !seen {
				order = append(order, salt)
			}
			bySalt[salt] = c
		}
		sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
		for _, salt := range order {
			w.checkpoints = append(w.checkpoints, bySalt[salt])
		}
	})
	return w.checkpoints
}

// verifyFrame checks the running checksum seeded from the WAL header
// through frames[0..idx], then compares once against frame idx's stored
// checksum. This fixes the source bug (spec.md §9.3) where the comparison
// was recomputed and overwritten on every iteration instead of happening
// once against the target frame.
func (w *WAL) verifyFrame(idx int, target *Frame) error {
	endian := w.header.ChecksumEndian
	s0, s1, err := checksumBuf(w.header.raw[:24], 0, 0, endian)
	if err != nil {
		return err
	}

	for i := 0; i <= idx; i++ {
		offset := int64(walHeaderSize) + int64(i)*w.frameSize
		hdrBuf := make([]byte, walFrameHeader)
		if n, err := w.src.ReadAt(hdrBuf, offset); err != nil || n < walFrameHeader {
			return errFrameEOF
		}
		s0, s1, err = checksumBuf(hdrBuf[:8], s0, s1, endian)
		if err != nil {
			return err
		}

		data := make([]byte, w.header.PageSize)
		if n, err := w.src.ReadAt(data, offset+walFrameHeader); err != nil || uint32(n) < w.header.PageSize {
			return errFrameEOF
		}
		s0, s1, err = checksumBuf(data, s0, s1, endian)
		if err != nil {
			return err
		}
	}

	if s0 != target.Header.Checksum1 || s1 != target.Header.Checksum2 {
		return fmt.Errorf("%w: frame %d", ErrChecksumMismatch, idx)
	}
	return nil
}

// checksumBuf implements sqlite's WAL checksum algorithm (spec.md §4.E /
// §8 law 6): buf's length must be divisible by 4; interpret as L/4 u32s in
// the given endian order, then fold pairs into the running (s0, s1) seed.
//
// Grounded on original_source's calculate_checksum, ported as a free
// function taking buf as its sole data argument -- the source declares it
// without `self` yet calls it as a method (spec.md §9.2); a correct port
// simply never gives it a receiver.
func checksumBuf(buf []byte, s0, s1 uint32, endian checksumEndian) (uint32, uint32, error) {
	if len(buf)%4 != 0 {
		return 0, 0, fmt.Errorf("%w: checksum input length %d not divisible by 4", ErrInvalidWAL, len(buf))
	}
	order := endian.order()
	n := len(buf) / 4
	for i := 0; i < n; i += 2 {
		a := order.Uint32(buf[i*4 : i*4+4])
		b := order.Uint32(buf[(i+1)*4 : (i+1)*4+4])
		s0 = s0 + a + s1
		s1 = s1 + b + s0
	}
	return s0, s1, nil
}
