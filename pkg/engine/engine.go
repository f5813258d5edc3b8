// Package engine computes the five user-user coordination graphs by
// partitioning candidate users across a pool of workers, each running a
// self-join over its own connection to the store.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/kittclouds/coordnet/internal/store"
	"github.com/kittclouds/coordnet/pkg/normalize"
	"github.com/kittclouds/coordnet/pkg/similarity"
)

// Options configures one Compute call.
type Options struct {
	Kind        store.Kind
	TimeWindow  float64 // seconds; |e2.timestamp - e1.timestamp| <= TimeWindow
	MinWeight   int     // minimum edge weight to retain
	NWorkers    int     // goroutine pool size; defaults to 4
	Resolved    bool    // KindCoLink only: join on resolved_message_url
	Threshold   float64 // KindCoSimilarTweet only: Jaccard similarity cutoff
	MinTokens   int     // KindCoSimilarTweet only: MinSize gate, 0 disables it
	ForceReproc bool    // re-run text normalization/tokenization even if already filled
	Logger      *log.Logger
}

// Engine computes coordination networks against a store.
type Engine struct {
	Store  *store.Store
	Stopwd normalize.StopwordFilter
}

// New returns an Engine backed by s. stopwords may be nil to disable
// stopword filtering during tokenization.
func New(s *store.Store, stopwords normalize.StopwordFilter) *Engine {
	return &Engine{Store: s, Stopwd: stopwords}
}

// Compute runs opts.Kind's full computation: preparation (text
// normalization/tokenization where the kind requires it, index creation),
// then a partitioned self-join across opts.NWorkers goroutines, leaving
// the result in the kind's edge table. A prior computation of the same
// kind is dropped and rebuilt from scratch.
func (e *Engine) Compute(ctx context.Context, opts Options) error {
	if opts.NWorkers <= 0 {
		opts.NWorkers = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	if err := e.prepare(ctx, opts, logger); err != nil {
		return fmt.Errorf("engine: prepare %s: %w", opts.Kind, err)
	}

	db := e.Store.DB()
	err := e.Store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, ddl := range indexDDL[opts.Kind] {
			if _, err := tx.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("engine: create index for %s: %w", opts.Kind, err)
			}
		}
		if opts.Kind == store.KindCoLink && opts.Resolved {
			if _, err := tx.ExecContext(ctx, resolvedLinkIndexDDL); err != nil {
				return fmt.Errorf("engine: create resolved-link index: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := store.DropNetworkTable(ctx, db, opts.Kind); err != nil {
		return fmt.Errorf("engine: drop existing %s table: %w", opts.Kind, err)
	}
	if err := store.CreateNetworkTable(ctx, db, opts.Kind); err != nil {
		return fmt.Errorf("engine: create %s table: %w", opts.Kind, err)
	}

	candidates, err := e.candidateUsers(ctx, opts)
	if err != nil {
		return fmt.Errorf("engine: select candidate users for %s: %w", opts.Kind, err)
	}
	logger.Infof("computing %s over %d candidate users", opts.Kind, len(candidates))

	return runPartitioned(ctx, e.Store, opts, candidates, logger)
}

// prepare fills the derived columns a kind's self-join depends on:
// transformed_message* for co_tweet, token_set for co_similar_tweet. Other
// kinds need no preparation.
func (e *Engine) prepare(ctx context.Context, opts Options, logger *log.Logger) error {
	switch opts.Kind {
	case store.KindCoTweet:
		logger.Info("normalizing message text")
		return store.FillTransformedText(ctx, e.Store.DB(), normalize.Normalize, messageHash, opts.ForceReproc)
	case store.KindCoSimilarTweet:
		logger.Info("tokenizing messages")
		tokenize := func(s string) string { return normalize.Tokenize(s, e.Stopwd) }
		return store.FillTokenSets(ctx, e.Store.DB(), tokenize, opts.ForceReproc)
	default:
		return nil
	}
}

func (e *Engine) candidateUsers(ctx context.Context, opts Options) ([]string, error) {
	query := candidateQuery[opts.Kind]
	if opts.Kind == store.KindCoLink && opts.Resolved {
		query = resolvedLinkCandidateQuery
	}

	rows, err := e.Store.DB().QueryContext(ctx, query, opts.MinWeight)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// similarityPredicate returns the Jaccard-based predicate registered on
// worker connections for co_similar_tweet, honoring opts.MinTokens.
func similarityPredicate(opts Options) func(args ...string) float64 {
	var fn func(string, string) float64
	if opts.MinTokens > 0 {
		fn = similarity.MinSize(opts.MinTokens)
	} else {
		fn = similarity.Jaccard
	}
	return func(args ...string) float64 {
		if len(args) != 2 {
			return 0
		}
		return fn(args[0], args[1])
	}
}

func messageHash(s string) int64 {
	var h uint32 = 1
	for _, b := range []byte(s) {
		h = adler32Step(h, b)
	}
	return int64(h)
}

// adler32Step folds in the next byte of an Adler-32 checksum, matching the
// rolling checksum the original implementation used (zlib.adler32) closely
// enough to serve the same purpose here: a cheap equality pre-filter
// alongside transformed_message_length before the exact text comparison.
func adler32Step(h uint32, b byte) uint32 {
	const mod = 65521
	s1 := h & 0xffff
	s2 := (h >> 16) & 0xffff
	s1 = (s1 + uint32(b)) % mod
	s2 = (s2 + s1) % mod
	return s2<<16 | s1
}

// batchCount returns the number of batches to split n candidates into,
// targeting nWorkers*10 batches (minimum 1), so work stays granular enough
// for idle workers to pick up more once they finish early.
func batchCount(n, nWorkers int) int {
	target := nWorkers * 10
	if target < 1 {
		target = 1
	}
	if n < target {
		if n == 0 {
			return 1
		}
		return n
	}
	return target
}

// batchSize returns ceil(n / batches), minimum 1.
func batchSize(n, batches int) int {
	if batches <= 0 {
		return n
	}
	size := int(math.Ceil(float64(n) / float64(batches)))
	if size < 1 {
		size = 1
	}
	return size
}
