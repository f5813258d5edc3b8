// Package output adapts a computed network's edge table into the row
// shapes consumed by downstream graph tools: Gephi-style edge/node CSVs
// and GraphML.
package output

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kittclouds/coordnet/internal/store"
)

// ErrNetworkNotComputed is returned by EdgeRows when kind's edge table does
// not exist yet, i.e. `coordnet compute <kind>` has never run against this
// database.
var ErrNetworkNotComputed = errors.New("output: network not computed")

// EdgeRow is one row of an edge export: a source/target pair, its weight,
// and the network kind it came from.
type EdgeRow struct {
	Source   string
	Target   string
	Weight   int
	EdgeType string
}

// FilterOptions controls which rows of a symmetric-by-construction edge
// table are emitted. The engine stores every coordinating pair in both
// directions, (a, b) and (b, a), so exporting both directions or
// self-loops is opt-in.
type FilterOptions struct {
	// Symmetric, if true, keeps both stored directions of every edge;
	// otherwise only rows with user_2 > user_1 are kept. No rows are
	// synthesized: only directions present in the table are emitted.
	Symmetric bool
	// Loops, if true, includes rows where user_1 == user_2.
	Loops bool
}

// filterClause returns the four-way symmetric/loops where-clause applied
// to the edge table: the default (neither flag set) keeps exactly one
// direction and excludes self-loops.
func (o FilterOptions) filterClause() string {
	switch {
	case o.Symmetric && o.Loops:
		return ""
	case o.Symmetric:
		return " where user_1 != user_2"
	case o.Loops:
		return " where user_2 >= user_1"
	default:
		return " where user_2 > user_1"
	}
}

// EdgeRows streams kind's edge table filtered by opts, annotating every row
// with kind as its edge type.
func EdgeRows(ctx context.Context, db *sql.DB, kind store.Kind, opts FilterOptions) ([]EdgeRow, error) {
	query := "select user_1, user_2, weight from " + kind.EdgeTable() + opts.filterClause()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, fmt.Errorf("%s: %w", kind, ErrNetworkNotComputed)
		}
		return nil, fmt.Errorf("output: query %s: %w", kind, err)
	}
	defer rows.Close()

	var out []EdgeRow
	for rows.Next() {
		var e EdgeRow
		if err := rows.Scan(&e.Source, &e.Target, &e.Weight); err != nil {
			return nil, fmt.Errorf("output: scan %s row: %w", kind, err)
		}
		e.EdgeType = string(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// NodeRow is one row of a node export: the user's ID, most recently
// observed username, and up to N of their most recent posts, in
// reverse-chronological order and padded with empty strings.
type NodeRow struct {
	UserID   string
	Username string
	Messages []string
}

// NodeRows returns one row per distinct user in the store, each annotated
// with their latest username and up to nMessages of their most recent
// posts. Messages is always exactly nMessages long, padded with empty
// strings if the user has fewer.
func NodeRows(ctx context.Context, db *sql.DB, nMessages int) ([]NodeRow, error) {
	userIDs, err := store.DistinctUserIDs(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("output: list users: %w", err)
	}

	rows := make([]NodeRow, 0, len(userIDs))
	for _, userID := range userIDs {
		username, err := store.LatestUsername(ctx, db, userID)
		if err != nil {
			return nil, fmt.Errorf("output: latest username for %s: %w", userID, err)
		}

		messages, err := store.RecentMessagesByUser(ctx, db, userID, nMessages)
		if err != nil {
			return nil, fmt.Errorf("output: recent messages for %s: %w", userID, err)
		}
		for len(messages) < nMessages {
			messages = append(messages, "")
		}

		rows = append(rows, NodeRow{UserID: userID, Username: username, Messages: messages})
	}

	return rows, nil
}
