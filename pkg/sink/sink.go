package sink

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/ssargent/snapshotetl/pkg/codec"
)

// Supported backends
const (
	BackendSQLite = "sqlite"
	BackendPebble = "pebble"
)

var (
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown sink backend")
	// ErrNotFound is returned by Get when no account is stored under the key.
	ErrNotFound = errors.New("account not found")
	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("transaction already committed or rolled back")
)

// Account is the row persisted for each matching record
type Account struct {
	Key     codec.Pubkey
	Owner   codec.Pubkey
	Balance uint64
	Data    []byte
}

// Sink is a destination store for extracted accounts.
//
// Duplicate keys follow a first-write-wins policy: once a key is present,
// later inserts of the same key are ignored regardless of write version.
type Sink interface {
	// Begin starts the single transaction a run writes through.
	Begin(ctx context.Context) (Tx, error)
	// Get returns the stored account for key, or ErrNotFound.
	Get(ctx context.Context, key codec.Pubkey) (Account, error)
	// Count returns the number of stored accounts.
	Count(ctx context.Context) (int, error)
	Close() error
}

// Tx stages inserts until Commit. Rollback after Commit is a no-op.
type Tx interface {
	// InsertIfAbsent stages acct unless its key already exists, and reports
	// whether a row was added. Data is copied before returning.
	InsertIfAbsent(ctx context.Context, acct Account) (bool, error)
	Commit() error
	Rollback() error
}

// Open opens the named backend at path
func Open(backend, path string) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendSQLite, "":
		return OpenSQLite(path)
	case BackendPebble:
		return OpenPebble(path)
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", backend)
	}
}
