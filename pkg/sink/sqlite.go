package sink

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/ssargent/snapshotetl/pkg/codec"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    key TEXT PRIMARY KEY,
    balance INTEGER NOT NULL,
    owner_key TEXT NOT NULL,
    payload BLOB NOT NULL
);`

// The bulk load favours throughput: the source containers are immutable
// and a failed run can be replayed. The journal is kept in memory so that
// rollback still works.
var sqlitePragmas = []string{
	"PRAGMA synchronous = OFF",
	"PRAGMA journal_mode = MEMORY",
	"PRAGMA locking_mode = EXCLUSIVE",
}

// Empty payloads may bind as NULL, so they are coerced back to an empty blob.
const sqliteInsert = `
INSERT OR IGNORE INTO accounts (key, balance, owner_key, payload)
VALUES (?, ?, ?, COALESCE(?, X''))`

// SQLiteSink stores accounts in a single sqlite table.
//
// The database uses one connection held in exclusive locking mode, so no
// other process can write to it while the sink is open. Get and Count block
// while a transaction is open.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteSink, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("sqlite sink path must be configured")
	}

	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range sqlitePragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "apply %q", pragma)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}

	return &SQLiteSink{db: db}, nil
}

// Begin starts a transaction with a prepared insert statement.
func (s *SQLiteSink) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction")
	}

	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		_ = tx.Rollback()
		return nil, errors.Wrap(err, "prepare insert")
	}

	return &sqliteTx{tx: tx, stmt: stmt}, nil
}

// Get returns the stored account for key.
func (s *SQLiteSink) Get(ctx context.Context, key codec.Pubkey) (Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT balance, owner_key, payload FROM accounts WHERE key = ?`, key.String())

	var (
		balance int64
		owner   string
		data    []byte
	)
	if err := row.Scan(&balance, &owner, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, errors.Wrap(err, "query account")
	}

	ownerKey, err := codec.ParsePubkey(owner)
	if err != nil {
		return Account{}, errors.Wrap(err, "decode owner")
	}

	return Account{
		Key:     key,
		Owner:   ownerKey,
		Balance: uint64(balance),
		Data:    data,
	}, nil
}

// Count returns the number of rows in the accounts table.
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count accounts")
	}
	return n, nil
}

// Close releases the database and its exclusive lock.
func (s *SQLiteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type sqliteTx struct {
	tx   *sql.Tx
	stmt *sql.Stmt
	done bool
}

func (t *sqliteTx) InsertIfAbsent(ctx context.Context, acct Account) (bool, error) {
	if t.done {
		return false, ErrTxDone
	}

	// Balances above MaxInt64 wrap; Get reverses the conversion.
	res, err := t.stmt.ExecContext(ctx, acct.Key.String(), int64(acct.Balance), acct.Owner.String(), acct.Data)
	if err != nil {
		return false, errors.Wrapf(err, "insert account %s", acct.Key)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n == 1, nil
}

func (t *sqliteTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	_ = t.stmt.Close()
	return errors.Wrap(t.tx.Commit(), "commit")
}

func (t *sqliteTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	_ = t.stmt.Close()
	// A cancelled context has already rolled the transaction back.
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errors.Wrap(err, "rollback")
	}
	return nil
}
