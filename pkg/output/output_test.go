package output

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

func seedNetwork(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateNetworkTable(ctx, s.DB(), store.KindCoRetweet))
	for _, e := range []store.Edge{
		{User1: "a", User2: "b", Weight: 3},
		{User1: "c", User2: "c", Weight: 1},
	} {
		_, err := s.DB().ExecContext(ctx, `insert into co_retweet_network values (?, ?, ?)`, e.User1, e.User2, e.Weight)
		require.NoError(t, err)
	}
}

func TestEdgeRowsDefaultFiltersLoopsAndReverseDirection(t *testing.T) {
	s := openTestStore(t)
	seedNetwork(t, s)

	rows, err := EdgeRows(context.Background(), s.DB(), store.KindCoRetweet, FilterOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "a", rows[0].Source)
	require.Equal(t, "b", rows[0].Target)
	require.Equal(t, "co_retweet", rows[0].EdgeType)
}

func TestEdgeRowsLoopsIncludesSelfLoop(t *testing.T) {
	s := openTestStore(t)
	seedNetwork(t, s)

	rows, err := EdgeRows(context.Background(), s.DB(), store.KindCoRetweet, FilterOptions{Loops: true})
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestEdgeRowsSymmetricExcludesLoopsByDefault(t *testing.T) {
	s := openTestStore(t)
	seedNetwork(t, s)

	rows, err := EdgeRows(context.Background(), s.DB(), store.KindCoRetweet, FilterOptions{Symmetric: true})
	require.NoError(t, err)
	require.Len(t, rows, 1, "symmetric alone keeps user_1 != user_2 but does not duplicate direction in storage")
}

func TestNodeRowsPadsToExactLength(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertMessage(ctx, s.DB(), store.Message{MessageID: "m1", UserID: "u1", Username: "alice", Text: "hi", Timestamp: 0}))

	rows, err := NodeRows(ctx, s.DB(), 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "alice", rows[0].Username)
	require.Len(t, rows[0].Messages, 5)
	require.Equal(t, "hi", rows[0].Messages[0])
	require.Equal(t, "", rows[0].Messages[4])
}

func TestWriteEdgeCSV(t *testing.T) {
	var buf strings.Builder
	err := WriteEdgeCSV(&buf, []EdgeRow{{Source: "a", Target: "b", Weight: 2, EdgeType: "co_retweet"}})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "source,target,weight,edge_type")
	require.Contains(t, buf.String(), "a,b,2,co_retweet")
}

func TestWriteGraphMLIncludesOnlyConnectedNodes(t *testing.T) {
	var buf strings.Builder
	edges := []EdgeRow{{Source: "a", Target: "b", Weight: 1, EdgeType: "co_retweet"}}
	nodes := []NodeRow{
		{UserID: "a", Username: "alice", Messages: []string{"hi", ""}},
		{UserID: "b", Username: "bob", Messages: []string{"hey", ""}},
		{UserID: "z", Username: "isolated", Messages: []string{"", ""}},
	}
	require.NoError(t, WriteGraphML(&buf, edges, nodes, 2))

	out := buf.String()
	require.Contains(t, out, `id="a"`)
	require.Contains(t, out, `id="b"`)
	require.NotContains(t, out, `id="z"`)
}
