package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another run holds the ledger file.
var ErrLocked = errors.New("ledger is locked by another run")

// FileBackend stores one key per line in an append-only text file guarded by
// an exclusive lock file for the lifetime of the backend.
type FileBackend struct {
	path  string
	lock  *flock.Flock
	file  *os.File
	valid int64
	torn  bool
}

// OpenFile locks and opens the ledger file at path, creating it if needed.
func OpenFile(path string) (*FileBackend, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire ledger lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lock.Path())
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	b := &FileBackend{path: path, lock: lock, file: file}
	if _, err := b.ReadAll(context.Background()); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

// ReadAll parses the file. A final line without a newline is a torn write
// from an interrupted append; it is ignored and truncated before the next
// append.
func (b *FileBackend) ReadAll(context.Context) ([]string, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	complete := data
	b.torn = false
	if idx := bytes.LastIndexByte(data, '\n'); idx != len(data)-1 {
		complete = data[:idx+1]
		b.torn = len(data) > 0
	}
	b.valid = int64(len(complete))

	var keys []string
	for _, line := range strings.Split(string(complete), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			keys = append(keys, line)
		}
	}
	return keys, nil
}

// Append writes key followed by a newline in a single write and fsyncs.
func (b *FileBackend) Append(_ context.Context, key string) error {
	if b.torn {
		if err := b.file.Truncate(b.valid); err != nil {
			return fmt.Errorf("truncate torn ledger line: %w", err)
		}
		b.torn = false
	}
	line := key + "\n"
	n, err := b.file.WriteString(line)
	if err != nil {
		if n > 0 {
			b.torn = true
		}
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := b.file.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}
	b.valid += int64(n)
	return nil
}

// Replace writes keys to a temporary file and renames it over the ledger.
func (b *FileBackend) Replace(_ context.Context, keys []string) error {
	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	var buf strings.Builder
	for _, key := range keys {
		buf.WriteString(key)
		buf.WriteByte('\n')
	}
	if _, err := tmp.WriteString(buf.String()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}

	file, err := os.OpenFile(b.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reopen ledger: %w", err)
	}
	_ = b.file.Close()
	b.file = file
	b.valid = int64(buf.Len())
	b.torn = false
	return nil
}

// Describe returns the ledger path.
func (b *FileBackend) Describe() string { return b.path }

// Close closes the file and releases the lock.
func (b *FileBackend) Close() error {
	var errs []error
	if b.file != nil {
		errs = append(errs, b.file.Close())
		b.file = nil
	}
	if b.lock != nil {
		errs = append(errs, b.lock.Unlock())
	}
	return errors.Join(errs...)
}
