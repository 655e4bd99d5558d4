// Package store provides the low-level persistence primitives: a fixed-size
// binary record file, a keyed latch table for mutual exclusion, and a durable
// monotonic sequence for identifier allocation.
package store

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Store is a file of homogeneous fixed-size records addressed by index
// (offset = index * record size). Records are encoded with encoding/binary
// in little-endian order.
//
// Store does no locking of its own. Callers serialize access through the
// latch table or an owning mutex before touching a record; the Append path
// is the one exception and is safe only when the caller holds the store-wide
// lock of whatever component owns the file.
type Store struct {
	f    *os.File
	path string
	size int64
}

// Open opens (creating if absent) the record file at path. The record
// argument is a zero value of the record type; its binary size fixes the
// record width for the life of the store.
func Open(path string, record interface{}) (*Store, error) {
	size := binary.Size(record)
	if size <= 0 {
		return nil, errors.Errorf("store: %T is not a fixed-size record", record)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, errors.Wrapf(err, "store: open %s", path)
	}
	return &Store{f: f, path: path, size: int64(size)}, nil
}

// RecordSize returns the fixed width of one record in bytes.
func (s *Store) RecordSize() int64 { return s.size }

// Count returns the number of whole records currently in the file.
func (s *Store) Count() (int64, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "store: stat %s", s.path)
	}
	return fi.Size() / s.size, nil
}

// ReadAt reads the record at index into rec. The caller must hold a latch
// covering the record.
func (s *Store) ReadAt(index int64, rec interface{}) error {
	buf := make([]byte, s.size)
	if _, err := s.f.ReadAt(buf, index*s.size); err != nil {
		return errors.Wrapf(err, "store: read %s[%d]", s.path, index)
	}
	return binary.Read(bytes.NewReader(buf), binary.LittleEndian, rec)
}

// WriteAt writes rec at index. The caller must hold a latch covering the
// record. Durability is the ledger's job; WriteAt does not fsync.
func (s *Store) WriteAt(index int64, rec interface{}) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, rec); err != nil {
		return errors.Wrapf(err, "store: encode %s[%d]", s.path, index)
	}
	if _, err := s.f.WriteAt(buf.Bytes(), index*s.size); err != nil {
		return errors.Wrapf(err, "store: write %s[%d]", s.path, index)
	}
	return nil
}

// Append writes all records at end-of-file and fsyncs once, making a
// multi-record append a single durability boundary. It returns the index of
// the first appended record.
func (s *Store) Append(recs ...interface{}) (int64, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "store: stat %s", s.path)
	}
	first := fi.Size() / s.size
	var buf bytes.Buffer
	for _, rec := range recs {
		if err := binary.Write(&buf, binary.LittleEndian, rec); err != nil {
			return 0, errors.Wrapf(err, "store: encode append %s", s.path)
		}
	}
	if _, err := s.f.WriteAt(buf.Bytes(), first*s.size); err != nil {
		return 0, errors.Wrapf(err, "store: append %s", s.path)
	}
	if err := s.f.Sync(); err != nil {
		return 0, errors.Wrapf(err, "store: sync %s", s.path)
	}
	return first, nil
}

// ErrStopScan halts a Scan early without reporting an error.
var ErrStopScan = errors.New("store: stop scan")

// Scan iterates records in file order against a point-in-time snapshot: the
// record count is captured once at entry, so concurrent appends past that
// point are not observed. fn receives the index of the record currently
// decoded into rec.
func (s *Store) Scan(rec interface{}, fn func(index int64) error) error {
	n, err := s.Count()
	if err != nil {
		return err
	}
	for i := int64(0); i < n; i++ {
		if err := s.ReadAt(i, rec); err != nil {
			return err
		}
		if err := fn(i); err != nil {
			if err == ErrStopScan {
				return nil
			}
			return err
		}
	}
	return nil
}

// Locate scans for the first record satisfying match and returns its index,
// or -1 when no record matches.
func (s *Store) Locate(rec interface{}, match func() bool) (int64, error) {
	found := int64(-1)
	err := s.Scan(rec, func(i int64) error {
		if match() {
			found = i
			return ErrStopScan
		}
		return nil
	})
	return found, err
}

// Sync flushes the file to stable storage.
func (s *Store) Sync() error {
	return errors.Wrapf(s.f.Sync(), "store: sync %s", s.path)
}

// Close syncs and closes the underlying file.
func (s *Store) Close() error {
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return errors.Wrapf(err, "store: sync %s", s.path)
	}
	return errors.Wrapf(s.f.Close(), "store: close %s", s.path)
}

var _ io.Closer = (*Store)(nil)
