package sink

import (
	"context"
	"encoding/binary"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/ssargent/snapshotetl/pkg/codec"
)

// accounts are stored under accountPrefix + base58(key) with the value
// [Balance(8)][Owner(32)][Data]
const (
	accountPrefix    = "acct/"
	pebbleValueFixed = 8 + codec.PubkeySize
)

// PebbleSink stores accounts in a pebble database. The write-ahead log is
// disabled and commits do not fsync; pebble's directory lock keeps other
// processes out while the sink is open.
type PebbleSink struct {
	db *pebble.DB
}

// OpenPebble opens or creates a pebble database in dir.
func OpenPebble(dir string) (*PebbleSink, error) {
	if dir == "" {
		return nil, errors.New("pebble sink path must be configured")
	}

	db, err := pebble.Open(dir, &pebble.Options{DisableWAL: true})
	if err != nil {
		return nil, errors.Wrap(err, "open pebble")
	}
	return &PebbleSink{db: db}, nil
}

// Begin starts an indexed batch; lookups inside the run see staged inserts.
func (s *PebbleSink) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &pebbleTx{batch: s.db.NewIndexedBatch()}, nil
}

// Get returns the stored account for key.
func (s *PebbleSink) Get(ctx context.Context, key codec.Pubkey) (Account, error) {
	value, closer, err := s.db.Get(accountKey(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Account{}, ErrNotFound
		}
		return Account{}, errors.Wrap(err, "get account")
	}
	defer closer.Close()

	return decodeAccount(key, value)
}

// Count returns the number of stored accounts.
func (s *PebbleSink) Count(ctx context.Context) (int, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(accountPrefix),
		UpperBound: prefixUpperBound([]byte(accountPrefix)),
	})
	if err != nil {
		return 0, errors.Wrap(err, "new iterator")
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		n++
	}
	return n, iter.Error()
}

// Close flushes memtables and closes the database.
func (s *PebbleSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	// Without a WAL, unflushed data would be lost on close.
	if err := s.db.Flush(); err != nil {
		_ = s.db.Close()
		return errors.Wrap(err, "flush")
	}
	return s.db.Close()
}

type pebbleTx struct {
	batch *pebble.Batch
	done  bool
}

func (t *pebbleTx) InsertIfAbsent(ctx context.Context, acct Account) (bool, error) {
	if t.done {
		return false, ErrTxDone
	}

	key := accountKey(acct.Key)
	_, closer, err := t.batch.Get(key)
	if err == nil {
		closer.Close()
		return false, nil
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return false, errors.Wrapf(err, "lookup account %s", acct.Key)
	}

	if err := t.batch.Set(key, encodeAccount(acct), nil); err != nil {
		return false, errors.Wrapf(err, "stage account %s", acct.Key)
	}
	return true, nil
}

func (t *pebbleTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	defer t.batch.Close()
	return errors.Wrap(t.batch.Commit(pebble.NoSync), "commit")
}

func (t *pebbleTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.batch.Close()
}

func accountKey(key codec.Pubkey) []byte {
	return append([]byte(accountPrefix), key.String()...)
}

func encodeAccount(acct Account) []byte {
	buf := make([]byte, pebbleValueFixed+len(acct.Data))
	binary.LittleEndian.PutUint64(buf[0:], acct.Balance)
	copy(buf[8:], acct.Owner[:])
	copy(buf[pebbleValueFixed:], acct.Data)
	return buf
}

func decodeAccount(key codec.Pubkey, value []byte) (Account, error) {
	if len(value) < pebbleValueFixed {
		return Account{}, errors.Errorf("account %s: value too short (%d bytes)", key, len(value))
	}

	acct := Account{
		Key:     key,
		Balance: binary.LittleEndian.Uint64(value[0:8]),
		Data:    append([]byte{}, value[pebbleValueFixed:]...),
	}
	copy(acct.Owner[:], value[8:pebbleValueFixed])
	return acct, nil
}

func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
