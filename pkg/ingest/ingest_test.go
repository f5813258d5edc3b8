package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/kittclouds/coordnet/internal/store"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIngestBatchSkipsURLsForReposts(t *testing.T) {
	s := openTestStore(t)
	in := New(s)
	ctx := context.Background()

	err := in.IngestBatch(ctx, []Tuple{
		{MessageID: "m1", UserID: "u1", Message: "original", Timestamp: 1, URLs: []string{"https://a.example"}},
		{MessageID: "m2", UserID: "u2", RepostID: "m1", Message: "rt original", Timestamp: 2, URLs: []string{"https://b.example"}},
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, s.DB().QueryRow(`select count(*) from message`).Scan(&count))
	require.Equal(t, 2, count)

	require.NoError(t, s.DB().QueryRow(`select count(*) from message_url`).Scan(&count))
	require.Equal(t, 1, count, "repost URLs must not be recorded as candidates")
}

func TestParseCSV(t *testing.T) {
	csv := "message_id,user_id,username,repost_id,reply_id,message,timestamp,urls\n" +
		"m1,u1,alice,,,hello world,100.5,https://a.example https://b.example\n" +
		"m2,u2,bob,m1,,retweet,101,\n"

	tuples, err := ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, tuples, 2)

	require.Equal(t, Tuple{
		MessageID: "m1", UserID: "u1", Username: "alice",
		Message: "hello world", Timestamp: 100.5,
		URLs: []string{"https://a.example", "https://b.example"},
	}, tuples[0])

	require.Equal(t, "m1", tuples[1].RepostID)
	require.Nil(t, tuples[1].URLs)
}

func TestParseTwitterV1FullText(t *testing.T) {
	line := `{"id":1344234767488610304,"id_str":"1344234767488610304","full_text":"hello there","user":{"id_str":"u1","screen_name":"alice"},"entities":{"urls":[{"expanded_url":"https://example.com"}]}}` + "\n"

	tuples, err := ParseTwitterV1(strings.NewReader(line))
	require.NoError(t, err)
	require.Len(t, tuples, 1)
	require.Equal(t, "hello there", tuples[0].Message)
	require.Equal(t, []string{"https://example.com"}, tuples[0].URLs)
	require.InDelta(t, snowflakeTimestamp(1344234767488610304), tuples[0].Timestamp, 1e-6)
}

func TestParseTwitterV1Retweet(t *testing.T) {
	line := `{"id":2,"id_str":"2","text":"RT @x: hi","user":{"id_str":"u2","screen_name":"bob"},"retweeted_status":{"id":1,"id_str":"1","full_text":"hi","user":{"id_str":"u1","screen_name":"alice"},"entities":{"urls":[{"expanded_url":"https://example.com"}]}}}` + "\n"

	tuples, err := ParseTwitterV1(strings.NewReader(line))
	require.NoError(t, err)
	require.Len(t, tuples, 1)
	require.Equal(t, "1", tuples[0].RepostID)
	require.Equal(t, []string{"https://example.com"}, tuples[0].URLs, "retweet urls are taken from the original tweet")
}

func TestParseTwitterV2(t *testing.T) {
	page := `{"data":[{"id":"1344234767488610304","text":"hi","author_id":"u1","author":{"username":"alice"},"referenced_tweets":[{"type":"replied_to","id":"999"}],"entities":{"urls":[{"expanded_url":"https://example.com"}]}}]}` + "\n"

	tuples, err := ParseTwitterV2(strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, tuples, 1)
	require.Equal(t, "999", tuples[0].ReplyID)
	require.Empty(t, tuples[0].RepostID)
}
