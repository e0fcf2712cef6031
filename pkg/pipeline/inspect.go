package pipeline

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ssargent/snapshotetl/pkg/container"
	"github.com/ssargent/snapshotetl/pkg/source"
)

// Stats describes the contents of one container
type Stats struct {
	Name      string `json:"name"`
	Records   int    `json:"records"`
	Length    int    `json:"length"`
	Capacity  uint64 `json:"capacity"`
	Remaining uint64 `json:"remaining"`
	// Unread is the number of bytes after the last complete record; non-zero
	// for truncated containers.
	Unread int `json:"unread"`
}

// Inspect walks every container of seq and reports per-container stats in
// sequence order. Containers are constructed in order but walked by up to
// workers goroutines at once. A construction error aborts the inspection.
func Inspect(ctx context.Context, seq source.Sequence, workers int) ([]Stats, error) {
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var (
		mu      sync.Mutex
		results = make(map[int]Stats)
		n       int
	)

	for seq.Next() {
		if gctx.Err() != nil {
			break
		}

		c, err := seq.Container()
		if err != nil {
			_ = g.Wait()
			return nil, errors.Wrapf(err, "container %s", seq.Name())
		}

		i, name := n, seq.Name()
		n++
		g.Go(func() error {
			defer c.Close()
			st, err := inspectContainer(gctx, name, c)
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = st
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := make([]Stats, n)
	for i := range stats {
		stats[i] = results[i]
	}
	return stats, nil
}

func inspectContainer(ctx context.Context, name string, c *container.Container) (Stats, error) {
	st := Stats{
		Name:      name,
		Length:    c.Len(),
		Capacity:  c.Capacity(),
		Remaining: c.RemainingBytes(),
	}

	it := c.Iterator()
	defer it.Close()

	for it.Next() {
		st.Records++
		if st.Records%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return st, err
			}
		}
	}

	if end := it.Offset(); end < st.Length {
		st.Unread = st.Length - end
	}
	return st, nil
}
