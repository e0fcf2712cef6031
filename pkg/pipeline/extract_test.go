package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/snapshotetl/pkg/codec"
	"github.com/ssargent/snapshotetl/pkg/container"
	"github.com/ssargent/snapshotetl/pkg/container/containertest"
	"github.com/ssargent/snapshotetl/pkg/logging"
	"github.com/ssargent/snapshotetl/pkg/sink"
	"github.com/ssargent/snapshotetl/pkg/source"
)

var (
	ownerA = containertest.Key(0xA0)
	ownerB = containertest.Key(0xB0)
)

func openSQLite(t *testing.T) *sink.SQLiteSink {
	t.Helper()
	s, err := sink.OpenSQLite(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// sequenceOf returns a sequence that builds a fresh stream-backed container
// from each builder.
func sequenceOf(builders ...*containertest.Builder) source.Sequence {
	items := make([]source.Item, 0, len(builders))
	for i, b := range builders {
		raw := b.Bytes()
		items = append(items, source.Item{
			Name: fmt.Sprintf("container-%d", i),
			Open: func() (*container.Container, error) {
				return container.FromReader(bytes.NewReader(raw), len(raw))
			},
		})
	}
	return source.Slice(items...)
}

func failingItem(err error) source.Item {
	return source.Item{
		Name: "broken",
		Open: func() (*container.Container, error) { return nil, err },
	}
}

func count(t *testing.T, s sink.Sink) int {
	t.Helper()
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestRun_TwoRecordExample(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	b := containertest.NewBuilder()
	b.Add(containertest.Account(1, ownerA, nil))
	b.Add(containertest.Account(2, ownerB, nil))

	res, err := New(logging.Nop(), nil, s, ownerA).Run(ctx, sequenceOf(b))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 1, res.Containers)
	assert.False(t, res.RunID.IsNil())

	assert.Equal(t, 1, count(t, s))
	got, err := s.Get(ctx, containertest.Key(1))
	require.NoError(t, err)
	assert.Equal(t, ownerA, got.Owner)
	assert.Empty(t, got.Data)

	_, err = s.Get(ctx, containertest.Key(2))
	assert.ErrorIs(t, err, sink.ErrNotFound)
}

func TestRun_FiltersAcrossContainers(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	var builders []*containertest.Builder
	seed := byte(0)
	wantMatched := 0
	for i := 0; i < 4; i++ {
		b := containertest.NewBuilder()
		for j := 0; j < i+1; j++ {
			b.Add(containertest.Account(seed, ownerA, bytes.Repeat([]byte{seed}, j)))
			seed++
			wantMatched++
		}
		for j := 0; j < 3; j++ {
			b.Add(containertest.Account(seed, ownerB, []byte("other")))
			seed++
		}
		builders = append(builders, b)
	}

	res, err := New(logging.Nop(), nil, s, ownerA).Run(ctx, sequenceOf(builders...))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Containers)
	assert.Equal(t, wantMatched, res.Accepted)
	assert.Equal(t, wantMatched+12, res.Scanned)
	assert.Equal(t, wantMatched, count(t, s))
}

func TestRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	b := containertest.NewBuilder()
	for i := byte(0); i < 5; i++ {
		b.Add(containertest.Account(i, ownerA, []byte{i}))
	}
	b.Add(containertest.Account(9, ownerB, nil))

	e := New(logging.Nop(), nil, s, ownerA)

	first, err := e.Run(ctx, sequenceOf(b))
	require.NoError(t, err)
	afterFirst := count(t, s)

	second, err := e.Run(ctx, sequenceOf(b))
	require.NoError(t, err)

	assert.Equal(t, afterFirst, count(t, s))
	assert.Equal(t, 5, first.Inserted)
	assert.Equal(t, 5, second.Accepted)
	assert.Equal(t, 0, second.Inserted)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_DuplicateKeyKeepsFirstOccurrence(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	older := containertest.Account(1, ownerA, []byte("first"))
	older.WriteVersion = 1
	older.Balance = 10

	newer := containertest.Account(1, ownerA, []byte("second"))
	newer.WriteVersion = 99
	newer.Balance = 20

	b1 := containertest.NewBuilder()
	b1.Add(older)
	b2 := containertest.NewBuilder()
	b2.Add(newer)

	res, err := New(logging.Nop(), nil, s, ownerA).Run(ctx, sequenceOf(b1, b2))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Accepted, "accepted count includes the ignored duplicate")
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, count(t, s))

	got, err := s.Get(ctx, older.Key)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.Balance, "first occurrence wins regardless of write version")
	assert.Equal(t, []byte("first"), got.Data)
}

type failingSink struct {
	sink.Sink
	failAt int
}

func (f *failingSink) Begin(ctx context.Context) (sink.Tx, error) {
	tx, err := f.Sink.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Tx: tx, failAt: f.failAt}, nil
}

type failingTx struct {
	sink.Tx
	calls  int
	failAt int
}

var errDiskFull = errors.New("disk full")

func (t *failingTx) InsertIfAbsent(ctx context.Context, acct sink.Account) (bool, error) {
	t.calls++
	if t.calls == t.failAt {
		return false, errDiskFull
	}
	return t.Tx.InsertIfAbsent(ctx, acct)
}

func TestRun_PersistenceFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	b := containertest.NewBuilder()
	for i := byte(0); i < 3; i++ {
		b.Add(containertest.Account(i, ownerA, []byte("data")))
	}

	reg := prometheus.NewRegistry()
	_, err := New(logging.Nop(), reg, &failingSink{Sink: s, failAt: 3}, ownerA).Run(ctx, sequenceOf(b))
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskFull)

	assert.Equal(t, 0, count(t, s))
}

func TestRun_ConstructionFailureAborts(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	b := containertest.NewBuilder()
	b.Add(containertest.Account(1, ownerA, nil))
	raw := b.Bytes()

	seq := source.Slice(
		source.Item{Name: "good", Open: func() (*container.Container, error) {
			return container.FromReader(bytes.NewReader(raw), len(raw))
		}},
		failingItem(&container.ConstructionError{Path: "bad", Err: container.ErrLengthMismatch}),
		source.Item{Name: "never", Open: func() (*container.Container, error) {
			t.Fatal("containers after a failure must not be opened")
			return nil, nil
		}},
	)

	reg := prometheus.NewRegistry()
	e := New(logging.Nop(), reg, s, ownerA)
	res, err := e.Run(ctx, seq)
	require.Error(t, err)
	assert.ErrorIs(t, err, container.ErrLengthMismatch)
	assert.Contains(t, err.Error(), "broken")

	assert.Equal(t, 1, res.Containers)
	assert.Equal(t, 0, count(t, s), "the first container's rows are rolled back")
	assert.Equal(t, float64(1), testutil.ToFloat64(e.metrics.constructionFailures))
}

func TestRun_MappingFailureAborts(t *testing.T) {
	s := openSQLite(t)

	seq := source.Slice(failingItem(&container.MappingError{Path: "x", Size: 8, Err: errors.New("cannot allocate memory")}))
	_, err := New(logging.Nop(), nil, s, ownerA).Run(context.Background(), seq)

	var merr *container.MappingError
	assert.ErrorAs(t, err, &merr)
}

func TestRun_TruncatedContainerIsNotAnError(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	b := containertest.NewBuilder()
	b.Add(containertest.Account(1, ownerA, []byte("whole")))
	cut := b.Add(containertest.Account(2, ownerA, bytes.Repeat([]byte("y"), 64)))
	raw := b.Bytes()[:cut+codec.HeaderSize+codec.AttributesSize+codec.HashSize+10]

	seq := source.Slice(source.Item{Name: "truncated", Open: func() (*container.Container, error) {
		return container.FromReader(bytes.NewReader(raw), len(raw))
	}})

	res, err := New(logging.Nop(), nil, s, ownerA).Run(ctx, seq)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, 1, count(t, s))
}

func TestRun_Cancelled(t *testing.T) {
	s := openSQLite(t)

	b := containertest.NewBuilder()
	b.Add(containertest.Account(1, ownerA, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(logging.Nop(), nil, s, ownerA).Run(ctx, sequenceOf(b))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, count(t, s))
}

func TestRun_EmptySequence(t *testing.T) {
	s := openSQLite(t)

	res, err := New(logging.Nop(), nil, s, ownerA).Run(context.Background(), source.Slice())
	require.NoError(t, err)
	assert.Equal(t, Result{RunID: res.RunID}, res)
	assert.Equal(t, 0, count(t, s))
}

func TestRun_PebbleSink(t *testing.T) {
	ctx := context.Background()
	s, err := sink.OpenPebble(filepath.Join(t.TempDir(), "accounts"))
	require.NoError(t, err)
	defer s.Close()

	b := containertest.NewBuilder()
	b.Add(containertest.Account(1, ownerA, []byte("one")))
	b.Add(containertest.Account(2, ownerB, []byte("two")))
	b.Add(containertest.Account(1, ownerA, []byte("dup")))

	res, err := New(logging.Nop(), nil, s, ownerA).Run(ctx, sequenceOf(b))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Accepted)
	assert.Equal(t, 1, res.Inserted)

	got, err := s.Get(ctx, containertest.Key(1))
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got.Data)
}

func TestRun_Metrics(t *testing.T) {
	s := openSQLite(t)

	b := containertest.NewBuilder()
	b.Add(containertest.Account(1, ownerA, nil))
	b.Add(containertest.Account(2, ownerB, nil))
	b.Add(containertest.Account(3, ownerA, nil))

	reg := prometheus.NewRegistry()
	e := New(logging.Nop(), reg, s, ownerA)
	_, err := e.Run(context.Background(), sequenceOf(b, b))
	require.NoError(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(e.metrics.containersTotal))
	assert.Equal(t, float64(6), testutil.ToFloat64(e.metrics.recordsScanned))
	assert.Equal(t, float64(4), testutil.ToFloat64(e.metrics.recordsMatched))
	assert.Equal(t, float64(2), testutil.ToFloat64(e.metrics.rowsInserted))
	assert.Equal(t, 1, testutil.CollectAndCount(e.metrics.runDuration))
}
