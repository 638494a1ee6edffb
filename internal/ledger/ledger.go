package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"clipmill/internal/services"
)

// Backend persists completed keys.
type Backend interface {
	// ReadAll returns every persisted key. Missing storage yields no keys.
	ReadAll(ctx context.Context) ([]string, error)
	// Append durably records one key before returning.
	Append(ctx context.Context, key string) error
	// Replace atomically swaps the persisted set for keys.
	Replace(ctx context.Context, keys []string) error
	// Describe names the storage location for logs.
	Describe() string
	Close() error
}

// ErrInvalidKey is returned for keys the text format cannot hold.
var ErrInvalidKey = errors.New("invalid ledger key")

// Ledger is the concurrency-safe set of completed group keys.
type Ledger struct {
	mu      sync.Mutex
	backend Backend
	done    map[string]struct{}
	order   []string
}

// New loads prior state from backend.
func New(ctx context.Context, backend Backend) (*Ledger, error) {
	if backend == nil {
		return nil, errors.New("ledger backend required")
	}
	keys, err := backend.ReadAll(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrLedger, "ledger", "load", backend.Describe(), err)
	}
	l := &Ledger{backend: backend, done: make(map[string]struct{}, len(keys))}
	for _, key := range keys {
		l.add(key)
	}
	return l, nil
}

func (l *Ledger) add(key string) {
	if _, ok := l.done[key]; ok {
		return
	}
	l.done[key] = struct{}{}
	l.order = append(l.order, key)
}

// IsCompleted reports whether key has been marked.
func (l *Ledger) IsCompleted(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.done[key]
	return ok
}

// MarkCompleted durably records key. Marking a present key is a no-op.
func (l *Ledger) MarkCompleted(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return services.Wrap(services.ErrLedger, "ledger", "mark", "", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.done[key]; ok {
		return nil
	}
	if err := l.backend.Append(ctx, key); err != nil {
		return services.Wrap(services.ErrLedger, "ledger", "mark", key, err)
	}
	l.add(key)
	return nil
}

// Completed returns the marked keys in the order they were recorded.
func (l *Ledger) Completed() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

// Len returns the number of marked keys.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// Replace rebuilds the ledger from keys, dropping every previous entry.
func (l *Ledger) Replace(ctx context.Context, keys []string) error {
	unique := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return services.Wrap(services.ErrLedger, "ledger", "replace", "", err)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.backend.Replace(ctx, unique); err != nil {
		return services.Wrap(services.ErrLedger, "ledger", "replace", l.backend.Describe(), err)
	}
	l.done = make(map[string]struct{}, len(unique))
	l.order = nil
	for _, key := range unique {
		l.add(key)
	}
	return nil
}

// Describe names the backing storage.
func (l *Ledger) Describe() string {
	return l.backend.Describe()
}

// Close releases the backend.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backend.Close()
}

func validateKey(key string) error {
	if strings.TrimSpace(key) != key || key == "" {
		return fmt.Errorf("%w: %q must be non-empty without surrounding whitespace", ErrInvalidKey, key)
	}
	if strings.ContainsAny(key, "\r\n") {
		return fmt.Errorf("%w: %q contains a line break", ErrInvalidKey, key)
	}
	return nil
}
