package store

import (
	"context"
	"database/sql"
)

// InsertMessageURL attaches a URL to a message, ignoring the row on a
// (message_id, url) conflict. Inserting here fires the url_to_resolve
// trigger, which mirrors the URL into resolved_url as an unresolved
// worklist entry.
func InsertMessageURL(ctx context.Context, exec Execer, mu MessageURL) error {
	_, err := exec.ExecContext(ctx, `
		insert or ignore into message_url (message_id, url, timestamp, user_id)
		values (?, ?, ?, ?)
	`, mu.MessageID, mu.URL, mu.Timestamp, mu.UserID)
	return err
}

// UnresolvedURLs returns every URL still awaiting resolution.
func UnresolvedURLs(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `select url from resolved_url where resolved_url is null`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// UpsertResolvedURL records the outcome of resolving url.
func UpsertResolvedURL(ctx context.Context, exec Execer, r ResolvedURL) error {
	_, err := exec.ExecContext(ctx, `
		replace into resolved_url (url, resolved_url, ssl_verified, resolved_status)
		values (?, ?, ?, ?)
	`, r.URL, r.ResolvedURL, r.SSLVerified, r.ResolvedStatus)
	return err
}

// RebuildResolvedMessageURL recomputes resolved_message_url as the join of
// message_url and resolved_url. Called once URL resolution completes.
func RebuildResolvedMessageURL(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `delete from resolved_message_url`); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `
		insert or ignore into resolved_message_url (message_id, resolved_url, timestamp, user_id)
		select mu.message_id, ru.resolved_url, mu.timestamp, mu.user_id
		from message_url mu
		inner join resolved_url ru using (url)
		where ru.resolved_url is not null
	`)
	return err
}
