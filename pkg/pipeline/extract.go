package pipeline

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/snapshotetl/pkg/codec"
	"github.com/ssargent/snapshotetl/pkg/container"
	"github.com/ssargent/snapshotetl/pkg/sink"
	"github.com/ssargent/snapshotetl/pkg/source"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Result summarises one extraction run
type Result struct {
	RunID      ksuid.KSUID
	Containers int // Containers fully drained
	Scanned    int // Records read
	Accepted   int // Records whose owner matched; duplicates included
	Inserted   int // Rows physically added to the destination
}

// Extractor copies every record owned by one program from a sequence of
// containers into a sink.
type Extractor struct {
	logger  log.Logger
	metrics *Metrics
	sink    sink.Sink
	owner   codec.Pubkey
}

// New creates an extractor writing records owned by owner into s.
func New(logger log.Logger, reg prometheus.Registerer, s sink.Sink, owner codec.Pubkey) *Extractor {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Extractor{
		logger:  logger,
		metrics: NewMetrics(reg),
		sink:    s,
		owner:   owner,
	}
}

// Run drains every container of seq in order and stages matching records in
// a single transaction that is committed once all containers are done.
//
// A container that cannot be constructed, a failed write or a cancelled
// context aborts the run and rolls the transaction back, leaving the
// destination as it was. Truncated containers are not errors: their records
// up to the cut are processed. On error the returned counts describe the
// work done before the failure; none of it is persisted.
func (e *Extractor) Run(ctx context.Context, seq source.Sequence) (res Result, err error) {
	start := time.Now()
	res.RunID = ksuid.New()
	logger := log.With(e.logger, "run", res.RunID.String())

	defer func() {
		status := statusSuccess
		if err != nil {
			status = statusError
		}
		e.metrics.runDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	tx, err := e.sink.Begin(ctx)
	if err != nil {
		return res, errors.Wrap(err, "begin run")
	}
	defer func() {
		// No-op once committed.
		if rbErr := tx.Rollback(); rbErr != nil {
			level.Error(logger).Log("msg", "rollback failed", "err", rbErr)
		}
	}()

	level.Info(logger).Log("msg", "extraction started", "owner", e.owner.String())

	for seq.Next() {
		if err := ctx.Err(); err != nil {
			return res, errors.Wrap(err, "run cancelled")
		}

		c, err := seq.Container()
		if err != nil {
			e.metrics.constructionFailures.Inc()
			var merr *container.MappingError
			if errors.As(err, &merr) {
				level.Info(logger).Log("msg", "memory map failed, this may be because vm.max_map_count is not set high enough",
					"container", seq.Name(), "err", err)
			}
			return res, errors.Wrapf(err, "container %s", seq.Name())
		}

		st, err := e.drain(ctx, tx, c)
		if closeErr := c.Close(); closeErr != nil {
			level.Warn(logger).Log("msg", "failed to release container", "container", seq.Name(), "err", closeErr)
		}

		res.Scanned += st.scanned
		res.Accepted += st.accepted
		res.Inserted += st.inserted
		e.metrics.recordsScanned.Add(float64(st.scanned))
		e.metrics.recordsMatched.Add(float64(st.accepted))

		if err != nil {
			return res, errors.Wrapf(err, "container %s", seq.Name())
		}

		res.Containers++
		e.metrics.containersTotal.Inc()
		level.Debug(logger).Log("msg", "container drained", "container", seq.Name(),
			"records", st.scanned, "matched", st.accepted, "inserted", st.inserted)
	}

	if err := tx.Commit(); err != nil {
		return res, errors.Wrap(err, "commit run")
	}
	e.metrics.rowsInserted.Add(float64(res.Inserted))

	level.Info(logger).Log("msg", "done inserting accounts", "containers", res.Containers,
		"scanned", res.Scanned, "accepted", res.Accepted, "inserted", res.Inserted,
		"duration", time.Since(start))

	return res, nil
}

type drainStats struct {
	scanned  int
	accepted int
	inserted int
}

func (e *Extractor) drain(ctx context.Context, tx sink.Tx, c *container.Container) (drainStats, error) {
	var st drainStats

	it := c.Iterator()
	defer it.Close()

	for it.Next() {
		rec := it.Record()
		st.scanned++

		if rec.Attributes.Owner != e.owner {
			continue
		}
		st.accepted++

		added, err := tx.InsertIfAbsent(ctx, sink.Account{
			Key:     rec.Header.Key,
			Owner:   rec.Attributes.Owner,
			Balance: rec.Attributes.Balance,
			Data:    rec.Data,
		})
		if err != nil {
			return st, errors.Wrapf(err, "persist record at offset %d", rec.Offset)
		}
		if added {
			st.inserted++
		}
	}

	return st, nil
}
