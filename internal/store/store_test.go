package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenSeedsVersion(t *testing.T) {
	s := openTestStore(t)

	var version string
	err := s.DB().QueryRow(`select value from metadata where property = 'version'`).Scan(&version)
	require.NoError(t, err)
	require.Equal(t, schemaVersion, version)
}

func TestOpenRejectsIncompatibleVersion(t *testing.T) {
	s := openTestStore(t)

	_, err := s.DB().Exec(`update metadata set value = '999' where property = 'version'`)
	require.NoError(t, err)

	// Re-running checkOrSeedVersion against the now-stamped-incompatible
	// store must surface ErrIncompatibleStore.
	err = s.checkOrSeedVersion()
	require.ErrorIs(t, err, ErrIncompatibleStore)
}

func TestInsertMessageIgnoresDuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m := Message{MessageID: "m1", UserID: "u1", Text: "hello world", Timestamp: 100}
	require.NoError(t, InsertMessage(ctx, s.DB(), m))
	require.NoError(t, InsertMessage(ctx, s.DB(), m))

	var count int
	require.NoError(t, s.DB().QueryRow(`select count(*) from message`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestFillTransformedTextSkipsReposts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	repostID := "original"
	require.NoError(t, InsertMessage(ctx, s.DB(), Message{MessageID: "m1", UserID: "u1", Text: "Hello @world", Timestamp: 1}))
	require.NoError(t, InsertMessage(ctx, s.DB(), Message{MessageID: "m2", UserID: "u1", Text: "retweet text", RepostID: &repostID, Timestamp: 2}))

	calls := 0
	upper := func(s string) string { calls++; return s }
	hash := func(string) int64 { return 0 }
	require.NoError(t, FillTransformedText(ctx, s.DB(), upper, hash, false))
	require.Equal(t, 1, calls)

	var transformed string
	require.NoError(t, s.DB().QueryRow(`select transformed_message from message where message_id = 'm1'`).Scan(&transformed))
	require.Equal(t, "Hello @world", transformed)

	var repostTransformed *string
	require.NoError(t, s.DB().QueryRow(`select transformed_message from message where message_id = 'm2'`).Scan(&repostTransformed))
	require.Nil(t, repostTransformed)
}

func TestFillTransformedTextForceReprocesses(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, InsertMessage(ctx, s.DB(), Message{MessageID: "m1", UserID: "u1", Text: "hi", Timestamp: 1}))

	calls := 0
	fn := func(s string) string { calls++; return s }
	hash := func(string) int64 { return 0 }
	require.NoError(t, FillTransformedText(ctx, s.DB(), fn, hash, false))
	require.NoError(t, FillTransformedText(ctx, s.DB(), fn, hash, false))
	require.Equal(t, 1, calls, "second pass without force must skip already-filled rows")

	require.NoError(t, FillTransformedText(ctx, s.DB(), fn, hash, true))
	require.Equal(t, 2, calls, "force must reprocess filled rows")
}

func TestDistinctUserIDsAndRecentMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, InsertMessage(ctx, s.DB(), Message{MessageID: "m1", UserID: "u1", Username: "alice", Text: "first", Timestamp: 1}))
	require.NoError(t, InsertMessage(ctx, s.DB(), Message{MessageID: "m2", UserID: "u1", Username: "alice2", Text: "second", Timestamp: 2}))
	require.NoError(t, InsertMessage(ctx, s.DB(), Message{MessageID: "m3", UserID: "u2", Username: "bob", Text: "third", Timestamp: 1}))

	ids, err := DistinctUserIDs(ctx, s.DB())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"u1", "u2"}, ids)

	recent, err := RecentMessagesByUser(ctx, s.DB(), "u1", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"second"}, recent)

	username, err := LatestUsername(ctx, s.DB(), "u1")
	require.NoError(t, err)
	require.Equal(t, "alice2", username)
}

func TestMessageURLTriggerSeedsUnresolvedWorklist(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, InsertMessage(ctx, s.DB(), Message{MessageID: "m1", UserID: "u1", Text: "check this out", Timestamp: 1}))
	require.NoError(t, InsertMessageURL(ctx, s.DB(), MessageURL{MessageID: "m1", URL: "https://t.co/abc", Timestamp: 1, UserID: "u1"}))

	urls, err := UnresolvedURLs(ctx, s.DB())
	require.NoError(t, err)
	require.Equal(t, []string{"https://t.co/abc"}, urls)

	resolved := "https://example.com/landing"
	verified := true
	status := "ok"
	require.NoError(t, UpsertResolvedURL(ctx, s.DB(), ResolvedURL{
		URL: "https://t.co/abc", ResolvedURL: &resolved, SSLVerified: &verified, ResolvedStatus: &status,
	}))

	urls, err = UnresolvedURLs(ctx, s.DB())
	require.NoError(t, err)
	require.Empty(t, urls)

	require.NoError(t, RebuildResolvedMessageURL(ctx, s.DB()))

	var count int
	require.NoError(t, s.DB().QueryRow(`select count(*) from resolved_message_url`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestNetworkTableLifecycleAndAppend(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	has, err := HasNetworkTable(ctx, s.DB(), KindCoRetweet)
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, CreateNetworkTable(ctx, s.DB(), KindCoRetweet))
	has, err = HasNetworkTable(ctx, s.DB(), KindCoRetweet)
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, CreateWorkerTempTables(ctx, s.DB()))
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		return LoadBatch(ctx, tx, []string{"u1", "u2"})
	})
	require.NoError(t, err)

	_, err = s.DB().ExecContext(ctx, `insert into local_network values ('u1', 'u2', 3)`)
	require.NoError(t, err)

	s.WriterMutex().Lock()
	err = AppendLocalNetwork(ctx, s.DB(), KindCoRetweet)
	s.WriterMutex().Unlock()
	require.NoError(t, err)

	rows, err := EdgeRows(ctx, s.DB(), KindCoRetweet)
	require.NoError(t, err)
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		require.NoError(t, rows.Scan(&e.User1, &e.User2, &e.Weight))
		edges = append(edges, e)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []Edge{{User1: "u1", User2: "u2", Weight: 3}}, edges)

	require.NoError(t, DropNetworkTable(ctx, s.DB(), KindCoRetweet))
	has, err = HasNetworkTable(ctx, s.DB(), KindCoRetweet)
	require.NoError(t, err)
	require.False(t, has)
}
