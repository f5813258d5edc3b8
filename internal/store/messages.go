package store

import (
	"context"
	"database/sql"
)

// InsertMessage inserts a message tuple, ignoring the row on a message_id
// conflict (re-ingesting the same message_id is a no-op).
func InsertMessage(ctx context.Context, exec Execer, m Message) error {
	_, err := exec.ExecContext(ctx, `
		insert or ignore into message
			(message_id, user_id, username, repost_id, reply_id, message, timestamp)
		values (?, ?, ?, ?, ?, ?, ?)
	`, m.MessageID, m.UserID, m.Username, m.RepostID, m.ReplyID, m.Text, m.Timestamp)
	return err
}

// Execer is satisfied by both *sql.DB and *sql.Tx, letting ingestion batch
// inserts inside a caller-managed transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// FillTransformedText applies fn to every non-repost message whose
// transformed_message column is still null (unless force is set, in which
// case every non-repost message is reprocessed), storing the normalized
// text, its length, and a checksum used only as an index probe.
func FillTransformedText(ctx context.Context, db *sql.DB, fn func(string) string, hash func(string) int64, force bool) error {
	rows, err := db.QueryContext(ctx, `
		select message_id, message from message
		where repost_id is null`+whereUnlessForce(force, "transformed_message is null"))
	if err != nil {
		return err
	}
	defer rows.Close()

	type update struct {
		id, transformed string
		length           int
		hash             int64
	}
	var updates []update
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return err
		}
		t := fn(text)
		updates = append(updates, update{id: id, transformed: t, length: len([]rune(t)), hash: hash(t)})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range updates {
		if _, err := db.ExecContext(ctx, `
			update message set transformed_message = ?, transformed_message_length = ?, transformed_message_hash = ?
			where message_id = ?
		`, u.transformed, u.length, u.hash, u.id); err != nil {
			return err
		}
	}
	return nil
}

// FillTokenSets applies tokenize to every non-repost message whose
// token_set column is still null (unless force is set).
func FillTokenSets(ctx context.Context, db *sql.DB, tokenize func(string) string, force bool) error {
	rows, err := db.QueryContext(ctx, `
		select message_id, message from message
		where repost_id is null`+whereUnlessForce(force, "token_set is null"))
	if err != nil {
		return err
	}
	defer rows.Close()

	type update struct{ id, tokens string }
	var updates []update
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return err
		}
		updates = append(updates, update{id: id, tokens: tokenize(text)})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range updates {
		if _, err := db.ExecContext(ctx, `update message set token_set = ? where message_id = ?`, u.tokens, u.id); err != nil {
			return err
		}
	}
	return nil
}

func whereUnlessForce(force bool, clause string) string {
	if force {
		return ""
	}
	return " and " + clause
}

// DistinctUserIDs returns every distinct user_id in the message table.
func DistinctUserIDs(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `select distinct user_id from message`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecentMessagesByUser returns up to n of a user's most recent message
// texts, most recent first.
func RecentMessagesByUser(ctx context.Context, db *sql.DB, userID string, n int) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		select message from message where user_id = ? order by timestamp desc limit ?
	`, userID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}

// LatestUsername returns the most recently observed username for a user_id.
func LatestUsername(ctx context.Context, db *sql.DB, userID string) (string, error) {
	var username sql.NullString
	err := db.QueryRowContext(ctx, `
		select username from message where user_id = ? order by timestamp desc limit 1
	`, userID).Scan(&username)
	if err != nil {
		return "", err
	}
	return username.String, nil
}
