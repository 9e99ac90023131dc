// Package logstore owns per-task stdout/stderr files on disk: paths,
// create/open/remove/reset, tail-by-line reads, the reverse-scan seek used by
// streaming followers, and snappy-compressed range reads for transport.
//
// Grounded on original_source/lib/src/log.rs (the reverse 4KiB-chunk scan
// algorithm) and the teacher's internal/tasklog/tasklog.go (nil-safe,
// mutex-guarded per-id file handling idiom).
package logstore

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"

	"pueued/internal/perrors"
)

const logDirName = "task_logs"

// Store manages the log directory under root. An optional Index accelerates
// repeated tail/seek calls; it is consulted but never required for
// correctness (see internal/logindex).
type Store struct {
	root  string
	Index Index
}

// Index is the interface logindex.Index satisfies. Kept here (rather than
// importing logindex) so logstore has no dependency on the leveldb-backed
// implementation and works standalone when no index is configured.
type Index interface {
	// Lookup returns a cached (offset, newlineCount) bookmark for path if one
	// exists and is still valid for a file of the given size. ok is false on
	// any cache miss or failure — the caller must fall back to a full scan.
	Lookup(path string, size int64) (offset int64, newlineCount int, ok bool)
	// Store records a bookmark for path. Failures are swallowed by the
	// implementation; Store never returns an error.
	Store(path string, size, offset int64, newlineCount int)
}

// New returns a Store rooted at root (root/task_logs holds the files).
func New(root string) *Store {
	return &Store{root: root}
}

// Paths returns the deterministic (stdout, stderr) log file paths for taskID.
func Paths(taskID int, root string) (outPath, errPath string) {
	dir := filepath.Join(root, logDirName)
	return filepath.Join(dir, fmt.Sprintf("%d_stdout.log", taskID)),
		filepath.Join(dir, fmt.Sprintf("%d_stderr.log", taskID))
}

func (s *Store) Paths(taskID int) (outPath, errPath string) {
	return Paths(taskID, s.root)
}

// Create truncate-creates both log files for taskID, creating the log
// directory if absent.
func (s *Store) Create(taskID int) (stdout, stderr *os.File, err error) {
	out, errP := s.Paths(taskID)
	if mkErr := os.MkdirAll(filepath.Dir(out), 0o755); mkErr != nil {
		return nil, nil, perrors.New(perrors.Io, "logstore.create", mkErr)
	}
	stdout, err = os.Create(out)
	if err != nil {
		return nil, nil, perrors.New(perrors.Io, "logstore.create", err)
	}
	stderr, err = os.Create(errP)
	if err != nil {
		stdout.Close()
		return nil, nil, perrors.New(perrors.Io, "logstore.create", err)
	}
	return stdout, stderr, nil
}

// Open returns read handles to taskID's (stdout, stderr) log files.
func (s *Store) Open(taskID int) (stdout, stderr *os.File, err error) {
	out, errP := s.Paths(taskID)
	stdout, err = os.Open(out)
	if err != nil {
		return nil, nil, perrors.New(perrors.LogRead, "logstore.open", err)
	}
	stderr, err = os.Open(errP)
	if err != nil {
		stdout.Close()
		return nil, nil, perrors.New(perrors.LogRead, "logstore.open", err)
	}
	return stdout, stderr, nil
}

// Remove best-effort unlinks both of taskID's log files. Missing files are
// not an error; other failures are logged by the caller via the returned
// slice of non-fatal errors (logstore itself does no logging — see
// SPEC_FULL.md §4.1: "other errors are logged but not propagated").
func (s *Store) Remove(taskID int) []error {
	out, errP := s.Paths(taskID)
	var errs []error
	for _, p := range []string{out, errP} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, perrors.New(perrors.Io, "logstore.remove", err))
		}
	}
	return errs
}

// Reset removes every file under root/task_logs. Per-file failures are
// returned for the caller to log; the directory itself is left in place.
func (s *Store) Reset() []error {
	dir := filepath.Join(s.root, logDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return []error{perrors.New(perrors.Io, "logstore.reset", err)}
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, perrors.New(perrors.Io, "logstore.reset", err))
		}
	}
	return errs
}

const failedLinePlaceholder = "Failed to read line."

// TailLines returns the last n newline-delimited lines of the file at path as
// a single string, joined with "\n" and in forward order. Returns fewer than
// n lines if the file has fewer. A per-line read failure yields the
// placeholder text for that line so partial output still flows.
func TailLines(path string, n int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", perrors.New(perrors.LogRead, "logstore.tail_lines", err)
	}
	defer f.Close()

	offset, err := seekToLastLines(f, n, nil)
	if err != nil {
		return "", perrors.New(perrors.LogRead, "logstore.tail_lines", err)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", perrors.New(perrors.LogRead, "logstore.tail_lines", err)
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		lines = append(lines, failedLinePlaceholder)
	}
	return strings.Join(lines, "\n"), nil
}

const chunkSize = 4096

// SeekToLastLines positions file's cursor at the byte immediately after the
// (n+1)-th newline counted from end-of-file — equivalently, the first byte of
// the last n lines. If the file has fewer than n newlines, it positions at
// byte 0. It returns the resulting offset. The file's length is snapshotted
// once at entry so concurrent appends never perturb the computation.
//
// idx, if non-nil, is consulted first and updated afterward; it is purely an
// acceleration (SPEC_FULL.md §4.1 addendum) and never changes the result.
func SeekToLastLines(f *os.File, n int, idx Index) (int64, error) {
	offset, err := seekToLastLines(f, n, idx)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, perrors.New(perrors.LogRead, "logstore.seek_to_last_lines", err)
	}
	return offset, nil
}

// seekToLastLines computes the offset without moving the file cursor itself
// (callers seek explicitly), so TailLines and SeekToLastLines can share it.
func seekToLastLines(f *os.File, n int, idx Index) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if size == 0 || n <= 0 {
		if n <= 0 {
			return size, nil
		}
		return 0, nil
	}

	// Fast path: if the file hasn't grown since the bookmark was recorded and
	// the bookmark already covers at least n lines, the backward scan can be
	// skipped. A bookmark covering more than n lines still needs a short
	// forward trim — returning its offset unadjusted would include extra,
	// older lines the caller didn't ask for. Any growth, shrink, or
	// insufficient bookmark falls through to the full scan below.
	if idx != nil {
		if off, count, ok := idx.Lookup(f.Name(), size); ok && count >= n {
			if count == n {
				return off, nil
			}
			adjusted, err := advancePastLines(f, off, count-n)
			if err != nil {
				return 0, err
			}
			idx.Store(f.Name(), size, adjusted, n)
			return adjusted, nil
		}
	}

	pos := size
	totalRead := int64(0)
	foundLines := 0
	buf := make([]byte, chunkSize)

	for pos > 0 {
		readSize := int64(chunkSize)
		if pos < readSize {
			readSize = pos
		}
		pos -= readSize
		if _, err := f.ReadAt(buf[:readSize], pos); err != nil && err != io.EOF {
			return 0, err
		}
		chunk := buf[:readSize]
		for i := len(chunk) - 1; i >= 0; i-- {
			totalRead++
			if chunk[i] != '\n' {
				continue
			}
			foundLines++
			if foundLines != n+1 {
				continue
			}
			distance := size - totalRead + 1
			if distance < 0 {
				distance = 0
			}
			if idx != nil {
				idx.Store(f.Name(), size, distance, foundLines-1)
			}
			return distance, nil
		}
	}
	// Ran out of file before finding n+1 newlines: fewer than n lines exist.
	return 0, nil
}

// advancePastLines scans forward from a cached bookmark to trim it down to a
// more recent (shorter) tail: it returns the offset immediately after the
// skip-th newline found at or after from. Used when a bookmark's line count
// exceeds what the caller asked for.
func advancePastLines(f *os.File, from int64, skip int) (int64, error) {
	if skip <= 0 {
		return from, nil
	}
	buf := make([]byte, chunkSize)
	pos := from
	found := 0
	for {
		n, err := f.ReadAt(buf, pos)
		for i := 0; i < n; i++ {
			if buf[i] == '\n' {
				found++
				if found == skip {
					return pos + int64(i) + 1, nil
				}
			}
		}
		if err == io.EOF {
			return pos + int64(n), nil
		}
		if err != nil {
			return 0, err
		}
		pos += int64(n)
	}
}

// ReadRangeCompressed returns snappy-framed (stdout, stderr) byte buffers for
// taskID. If lines is non-nil, only the last *lines lines of each stream are
// included; otherwise the entire file is compressed.
func (s *Store) ReadRangeCompressed(taskID int, lines *int) (stdout, stderr []byte, err error) {
	outF, errF, err := s.Open(taskID)
	if err != nil {
		return nil, nil, err
	}
	defer outF.Close()
	defer errF.Close()

	if lines != nil {
		if _, err := SeekToLastLines(outF, *lines, s.Index); err != nil {
			return nil, nil, perrors.New(perrors.LogRead, "logstore.read_range_compressed", err)
		}
		if _, err := SeekToLastLines(errF, *lines, s.Index); err != nil {
			return nil, nil, perrors.New(perrors.LogRead, "logstore.read_range_compressed", err)
		}
	}

	stdout, err = compress(outF)
	if err != nil {
		return nil, nil, perrors.New(perrors.LogRead, "logstore.read_range_compressed", err)
	}
	stderr, err = compress(errF)
	if err != nil {
		return nil, nil, perrors.New(perrors.LogRead, "logstore.read_range_compressed", err)
	}
	return stdout, stderr, nil
}

func compress(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	if _, err := io.Copy(w, r); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses compress; exported for clients reading LogRangeResult.
func Decompress(framed []byte) ([]byte, error) {
	r := snappy.NewReader(bytes.NewReader(framed))
	return io.ReadAll(r)
}
