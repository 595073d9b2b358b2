package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"indibot/pkg/logx"
)

var (
	// ErrUnknownScheme marks a storage URI whose scheme has no backend.
	ErrUnknownScheme = errors.New("unknown storage scheme")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("storage closed")
)

// Store is the dedup persistence contract.
//
// Has and Add answer and record "bot b has been notified about event e".
// Add is idempotent. Errors from Has/Add are terminal for the run: continuing
// past them risks double-notifying or silently dropping notifications.
type Store interface {
	// Load populates in-memory state from the persisted form. If no persisted
	// form exists yet it initializes empty state and persists it immediately,
	// so a storage target always exists post-load.
	Load(ctx context.Context) error
	// Save flushes in-memory state, fully overwriting the persisted form.
	Save(ctx context.Context) error

	Has(ctx context.Context, eventID, botID string) (bool, error)
	Add(ctx context.Context, eventID, botID string) error

	Close() error
}

// Open constructs the backend selected by the URI scheme. The caller owns the
// returned store for the lifetime of the run; Load is not called here.
func Open(uri string, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	parsed, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return nil, fmt.Errorf("storage uri %q: %w", uri, err)
	}

	switch parsed.Scheme {
	case "file":
		return newTextStore(parsed.Host+parsed.Path, log), nil
	case "sqlite", "sqlite3":
		return newSQLiteStore(parsed.Host+parsed.Path, log)
	case "mysql":
		return newMySQLStore(parsed, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, parsed.Scheme)
	}
}
