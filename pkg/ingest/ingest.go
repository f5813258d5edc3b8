// Package ingest loads messages from CSV files and Twitter JSON exports into
// the store, normalizing every source format down to a common Tuple.
package ingest

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kittclouds/coordnet/internal/store"
)

// Tuple is one message in source-independent form, matching the column
// order of the CSV ingestion format: message_id, user_id, username,
// repost_id, reply_id, message, timestamp, and the URLs it contains.
type Tuple struct {
	MessageID string
	UserID    string
	Username  string
	RepostID  string // empty means null
	ReplyID   string // empty means null
	Message   string
	Timestamp float64
	URLs      []string
}

// Ingestor batches Tuple values into the store inside a single transaction
// per call, mirroring a source file's messages one-for-one.
type Ingestor struct {
	Store *store.Store
}

// New returns an Ingestor writing into s.
func New(s *store.Store) *Ingestor {
	return &Ingestor{Store: s}
}

// IngestBatch inserts every tuple, skipping duplicate message_ids. A
// message's URLs are recorded only when the message itself is not a
// repost: reposted URLs are not original content and are excluded from
// candidate resolution.
func (in *Ingestor) IngestBatch(ctx context.Context, tuples []Tuple) error {
	return in.Store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, t := range tuples {
			m := store.Message{
				MessageID: t.MessageID,
				UserID:    t.UserID,
				Username:  t.Username,
				Text:      t.Message,
				Timestamp: t.Timestamp,
			}
			if t.RepostID != "" {
				m.RepostID = &t.RepostID
			}
			if t.ReplyID != "" {
				m.ReplyID = &t.ReplyID
			}

			if err := store.InsertMessage(ctx, tx, m); err != nil {
				return fmt.Errorf("ingest: insert message %s: %w", t.MessageID, err)
			}

			if t.RepostID != "" {
				continue
			}
			for _, u := range t.URLs {
				if u == "" {
					continue
				}
				mu := store.MessageURL{MessageID: t.MessageID, URL: u, Timestamp: t.Timestamp, UserID: t.UserID}
				if err := store.InsertMessageURL(ctx, tx, mu); err != nil {
					return fmt.Errorf("ingest: insert url %s for message %s: %w", u, t.MessageID, err)
				}
			}
		}
		return nil
	})
}
