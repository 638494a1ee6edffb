package ledger

import (
	"context"
	"fmt"

	"clipmill/internal/config"
	"clipmill/internal/services"
)

// OpenBackend constructs the backend selected by cfg.
func OpenBackend(ctx context.Context, cfg config.Ledger) (Backend, error) {
	switch cfg.Backend {
	case config.LedgerFile, "":
		return OpenFile(cfg.Path)
	case config.LedgerSQLite:
		return OpenSQLite(ctx, cfg.Path)
	case config.LedgerRedis:
		return OpenRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
	default:
		return nil, fmt.Errorf("unsupported ledger backend %q", cfg.Backend)
	}
}

// Open constructs the configured backend and loads the ledger from it.
func Open(ctx context.Context, cfg config.Ledger) (*Ledger, error) {
	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, services.Wrap(services.ErrLedger, "ledger", "open", cfg.Backend, err)
	}
	l, err := New(ctx, backend)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return l, nil
}
