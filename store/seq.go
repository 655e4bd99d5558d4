package store

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Sequence is a durable monotonic int64 allocator. Each Next persists and
// fsyncs the allocated value before returning it, so an identifier handed
// out is never handed out again, across restarts included. This replaces
// scan-for-max allocation and its duplicate-id race.
type Sequence struct {
	mu   sync.Mutex
	f    *os.File
	path string
	last int64
}

// OpenSequence opens (creating if absent) the sequence file at path. floor
// is the highest identifier already present in pre-existing data; the next
// allocation is strictly greater than both floor and any previously
// persisted value.
func OpenSequence(path string, floor int64) (*Sequence, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, errors.Wrapf(err, "seq: open %s", path)
	}
	s := &Sequence{f: f, path: path, last: floor}
	var buf [8]byte
	n, err := f.ReadAt(buf[:], 0)
	if err == nil && n == 8 {
		if v := int64(binary.LittleEndian.Uint64(buf[:])); v > s.last {
			s.last = v
		}
	}
	return s, nil
}

// Next allocates, persists and returns the next identifier.
func (s *Sequence) Next() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.last + 1
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(next))
	if _, err := s.f.WriteAt(buf[:], 0); err != nil {
		return 0, errors.Wrapf(err, "seq: write %s", s.path)
	}
	if err := s.f.Sync(); err != nil {
		return 0, errors.Wrapf(err, "seq: sync %s", s.path)
	}
	s.last = next
	return next, nil
}

// Last returns the most recently allocated identifier (floor if none yet).
func (s *Sequence) Last() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Close closes the sequence file.
func (s *Sequence) Close() error {
	return errors.Wrapf(s.f.Close(), "seq: close %s", s.path)
}
