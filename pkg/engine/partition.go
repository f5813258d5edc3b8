package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/kittclouds/coordnet/internal/store"
	"github.com/kittclouds/coordnet/pkg/pool"
)

// runPartitioned splits candidates into batches and fans them out across
// opts.NWorkers goroutines, each running opts.Kind's self-join over its own
// connection and appending the result into the target edge table under
// the store's writer mutex.
func runPartitioned(ctx context.Context, s *store.Store, opts Options, candidates []string, logger *log.Logger) error {
	batches := makeBatches(candidates, opts.NWorkers)
	if len(batches) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	batchCh := make(chan []string)
	errCh := make(chan error, opts.NWorkers)

	var wg sync.WaitGroup
	for i := 0; i < opts.NWorkers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			if err := runWorker(ctx, s, opts, worker, batchCh); err != nil {
				errCh <- err
				cancel()
			}
		}(i)
	}

	completed := 0
	total := len(batches)
	progressStep := total / 10
	if progressStep == 0 {
		progressStep = 1
	}

feed:
	for _, b := range batches {
		select {
		case batchCh <- b:
			completed++
			if completed%progressStep == 0 {
				logger.Infof("%s: dispatched %d/%d batches", opts.Kind, completed, total)
			}
		case <-ctx.Done():
			break feed
		}
	}
	close(batchCh)

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}

// makeBatches splits candidates into min(n, nWorkers*10) contiguous batches
// of ceil(n / batches) users each (the last may be shorter), preallocating each from pool so repeated Compute calls reuse the same
// backing arrays.
func makeBatches(candidates []string, nWorkers int) [][]string {
	if len(candidates) == 0 {
		return nil
	}

	n := batchCount(len(candidates), nWorkers)
	size := batchSize(len(candidates), n)

	var batches [][]string
	for start := 0; start < len(candidates); start += size {
		end := start + size
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := pool.GetUserBatch()
		batch = append(batch, candidates[start:end]...)
		batches = append(batches, batch)
	}
	return batches
}

// runWorker opens its own connection with the predicates opts.Kind needs
// registered, creates its temporary tables once, then processes batches
// from batchCh until the channel closes.
func runWorker(ctx context.Context, s *store.Store, opts Options, worker int, batchCh <-chan []string) error {
	var preds []store.Predicate
	if opts.Kind == store.KindCoSimilarTweet {
		preds = append(preds, store.Predicate{Name: "similarity", Arity: 2, Fn: similarityPredicate(opts)})
	}

	conn, err := store.WorkerConn(s.Path(), preds...)
	if err != nil {
		return fmt.Errorf("engine: worker %d: open connection: %w", worker, err)
	}
	defer conn.Close()

	if err := store.CreateWorkerTempTables(ctx, conn); err != nil {
		return fmt.Errorf("engine: worker %d: create temp tables: %w", worker, err)
	}

	query := partitionQuery[opts.Kind]
	if opts.Kind == store.KindCoLink && opts.Resolved {
		query = resolvedLinkPartitionQuery
	}

	args := []any{opts.TimeWindow, opts.MinWeight}
	if opts.Kind == store.KindCoSimilarTweet {
		args = append(args, opts.Threshold)
	}

	for {
		select {
		case batch, ok := <-batchCh:
			if !ok {
				return nil
			}
			if err := processBatch(ctx, s, conn, opts.Kind, query, args, batch); err != nil {
				return fmt.Errorf("engine: worker %d: %w", worker, err)
			}
			pool.PutUserBatch(batch)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// processBatch loads one batch into the worker's temporary user_id table,
// runs the partition query into local_network, then appends local_network
// into the target edge table under the store's writer mutex.
func processBatch(ctx context.Context, s *store.Store, conn *sql.DB, kind store.Kind, query string, args []any, batch []string) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer tx.Rollback()

	if err := store.LoadBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("load batch: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if kind == store.KindCoSimilarTweet && strings.Contains(err.Error(), "no such function") {
			return &store.ErrPredicateMissing{Name: "similarity"}
		}
		return fmt.Errorf("self-join: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch tx: %w", err)
	}

	writer := s.WriterMutex()
	writer.Lock()
	defer writer.Unlock()

	if err := store.AppendLocalNetwork(ctx, conn, kind); err != nil {
		return fmt.Errorf("append local network: %w", err)
	}
	return nil
}
