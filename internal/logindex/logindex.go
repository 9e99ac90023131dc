// Package logindex is a best-effort leveldb-backed cache of "last known EOF
// offset + newline count" bookmarks for log files, consulted by logstore as a
// pure acceleration (SPEC_FULL.md §2 item 2, §4.1 addendum). Any failure to
// open, read, or write the store degrades silently to the caller's full
// backward-scan path — nothing here is allowed to turn into an error the
// logstore API surfaces to a client.
//
// Grounded on the teacher's internal/roles/memory/memory.go: same
// open-once/key-prefix-scan/never-block-caller idiom, generalized from a
// megram store to a simple offset cache.
package logindex

import (
	"encoding/binary"
	"log/slog"

	"github.com/syndtr/goleveldb/leveldb"
)

// Index is a leveldb-backed bookmark cache. The zero value is not usable;
// construct with Open. A nil *Index is safe to pass wherever logstore.Index
// is expected — all methods no-op on a nil receiver.
type Index struct {
	db *leveldb.DB
}

// Open opens (or creates) the leveldb database at dir. On failure it logs a
// warning and returns nil — callers are expected to treat a nil *Index
// as "no index available" rather than fail startup over an optimization.
func Open(dir string) *Index {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		slog.Warn("logindex: failed to open, falling back to unindexed scans", "dir", dir, "error", err)
		return nil
	}
	return &Index{db: db}
}

// Close releases the underlying leveldb handle. Safe on a nil *Index.
func (idx *Index) Close() {
	if idx == nil || idx.db == nil {
		return
	}
	_ = idx.db.Close()
}

// record is the fixed-width value stored per key: size(8) | offset(8) | count(8).
type record struct {
	size, offset int64
	count        int
}

func (r record) marshal() []byte {
	buf := make([]byte, 24)
	binary.BigEndian.PutUint64(buf[0:8], uint64(r.size))
	binary.BigEndian.PutUint64(buf[8:16], uint64(r.offset))
	binary.BigEndian.PutUint64(buf[16:24], uint64(r.count))
	return buf
}

func unmarshalRecord(b []byte) (record, bool) {
	if len(b) != 24 {
		return record{}, false
	}
	return record{
		size:   int64(binary.BigEndian.Uint64(b[0:8])),
		offset: int64(binary.BigEndian.Uint64(b[8:16])),
		count:  int(binary.BigEndian.Uint64(b[16:24])),
	}, true
}

// Lookup returns a bookmark for path valid for a file of the given size. It
// returns ok=false on any miss, decode failure, store error, or — crucially —
// when the recorded size doesn't match size (the file shrank or was reset,
// so the bookmark is stale and must not be trusted).
func (idx *Index) Lookup(path string, size int64) (offset int64, newlineCount int, ok bool) {
	if idx == nil || idx.db == nil {
		return 0, 0, false
	}
	raw, err := idx.db.Get([]byte(path), nil)
	if err != nil {
		return 0, 0, false
	}
	rec, valid := unmarshalRecord(raw)
	if !valid || rec.size != size {
		return 0, 0, false
	}
	return rec.offset, rec.count, true
}

// Store records a bookmark for path. Failures are swallowed.
func (idx *Index) Store(path string, size, offset int64, newlineCount int) {
	if idx == nil || idx.db == nil {
		return
	}
	rec := record{size: size, offset: offset, count: newlineCount}
	if err := idx.db.Put([]byte(path), rec.marshal(), nil); err != nil {
		slog.Warn("logindex: failed to store bookmark", "path", path, "error", err)
	}
}

// Invalidate drops any bookmark for path, e.g. when the file is truncated by
// a clean/reset. Safe on a nil *Index.
func (idx *Index) Invalidate(path string) {
	if idx == nil || idx.db == nil {
		return
	}
	_ = idx.db.Delete([]byte(path), nil)
}
