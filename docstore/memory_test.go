package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedVideos(t *testing.T, s *Memory) map[int64]string {
	t.Helper()
	ctx := context.Background()

	// Unordered inserts on purpose.
	ids := make(map[int64]string)
	for _, ts := range []int64{200, 100, 300} {
		id, err := s.Add(ctx, "videos", map[string]interface{}{
			"title":     "clip",
			"views":     ts / 10,
			"timestamp": ts,
		})
		require.NoError(t, err)
		ids[ts] = id
	}
	return ids
}

func TestMemoryNewID(t *testing.T) {
	s := NewMemory()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := s.NewID("videos")
		require.NotEmpty(t, id)
		require.False(t, seen[id], "identifier %s repeated", id)
		seen[id] = true
	}
}

func timestamps(docs []Document) []int64 {
	out := make([]int64, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Fields["timestamp"].(int64))
	}
	return out
}

func TestMemoryDefaultOrdering(t *testing.T) {
	s := NewMemory()
	seedVideos(t, s)

	res, err := s.GetDocs(context.Background(), "videos", Query{}, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{300, 200, 100}, timestamps(res.Docs))
}

func TestMemoryExplicitOrdering(t *testing.T) {
	s := NewMemory()
	seedVideos(t, s)

	res, err := s.GetDocs(context.Background(), "videos", Query{OrderField: "timestamp"}, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200, 300}, timestamps(res.Docs))
}

func TestMemoryOrderingExcludesDocsMissingField(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedVideos(t, s)

	_, err := s.Add(ctx, "videos", map[string]interface{}{"title": "no views"})
	require.NoError(t, err)

	res, err := s.GetDocs(ctx, "videos", Query{OrderField: "views", OrderDesc: true}, ReadOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Docs, 3)
}

func TestMemoryWhereOperators(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedVideos(t, s)

	cases := []struct {
		name string
		q    Query
		want []int64
	}{
		{"equal", Query{Where: []Where{{Field: "timestamp", Op: "==", Value: int64(200)}}}, []int64{200}},
		{"not equal", Query{Where: []Where{{Field: "timestamp", Op: "!=", Value: int64(200)}}}, []int64{300, 100}},
		{"greater", Query{Where: []Where{{Field: "timestamp", Op: ">", Value: 100}}}, []int64{300, 200}},
		{"less or equal", Query{Where: []Where{{Field: "timestamp", Op: "<=", Value: 200}}}, []int64{200, 100}},
		{"in", Query{Where: []Where{{Field: "timestamp", Op: "in", Value: []interface{}{int64(100), int64(300)}}}}, []int64{300, 100}},
		{"missing field matches nothing", Query{Where: []Where{{Field: "rating", Op: ">", Value: 0}}}, []int64{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := s.GetDocs(ctx, "videos", tc.q, ReadOptions{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, timestamps(res.Docs))
		})
	}
}

func TestMemoryLimitAndCursors(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedVideos(t, s)

	res, err := s.GetDocs(ctx, "videos", Query{Limit: 2}, ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, []int64{300, 200}, timestamps(res.Docs))
	require.NotNil(t, res.Last)

	next, err := s.GetDocs(ctx, "videos", Query{Limit: 2, StartAfter: res.Last}, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, timestamps(next.Docs))

	before, err := s.GetDocs(ctx, "videos", Query{EndBefore: res.Last}, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{300}, timestamps(before.Docs))
}

func TestMemoryGetPage(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedVideos(t, s)

	page, err := GetPage(ctx, s, "videos", Query{}, 2, nil, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{300, 200}, timestamps(page.Docs))
	assert.True(t, page.HasMore)

	page, err = GetPage(ctx, s, "videos", Query{}, 2, page.Last, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, timestamps(page.Docs))
	assert.False(t, page.HasMore)
}

func TestMemoryTrendingScenario(t *testing.T) {
	s := NewMemory()
	seedVideos(t, s)

	res, err := s.GetDocs(context.Background(), "videos", Query{OrderField: "timestamp", OrderDesc: true, Limit: 2}, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{300, 200}, timestamps(res.Docs))
}

func TestMemoryGetDocAbsence(t *testing.T) {
	s := NewMemory()

	doc, err := s.GetDoc(context.Background(), "videos", "nope", ReadOptions{})
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestMemoryAddStampsTimestamp(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	id, err := s.Add(ctx, "videos", map[string]interface{}{"title": "fresh"})
	require.NoError(t, err)

	doc, err := s.GetDoc(ctx, "videos", id, ReadOptions{})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Contains(t, doc.Fields, "timestamp")

	// A caller-supplied timestamp is left alone.
	id, err = s.Add(ctx, "videos", map[string]interface{}{"title": "old", "timestamp": int64(42)})
	require.NoError(t, err)
	doc, err = s.GetDoc(ctx, "videos", id, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(42), doc.Fields["timestamp"])
}

func TestMemorySetMergeAndReplace(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "videos", "v1", map[string]interface{}{"title": "a", "views": 1}, false))
	require.NoError(t, s.Set(ctx, "videos", "v1", map[string]interface{}{"views": 2}, true))

	doc, err := s.GetDoc(ctx, "videos", "v1", ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a", doc.Fields["title"])
	assert.Equal(t, 2, doc.Fields["views"])

	require.NoError(t, s.Set(ctx, "videos", "v1", map[string]interface{}{"views": 3}, false))
	doc, err = s.GetDoc(ctx, "videos", "v1", ReadOptions{})
	require.NoError(t, err)
	assert.NotContains(t, doc.Fields, "title")
}

func TestMemoryUpdateMissingIsNotFound(t *testing.T) {
	s := NewMemory()

	err := s.Update(context.Background(), "videos", "nope", map[string]interface{}{"views": 1})
	require.Error(t, err)
	assert.Equal(t, NotFound, KindOf(err))
	assert.True(t, IsNotFound(err))
}

func TestMemoryRemoveIsIdempotent(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Remove(ctx, "videos", "nope"))

	id, err := s.Add(ctx, "videos", map[string]interface{}{"title": "x"})
	require.NoError(t, err)
	require.NoError(t, s.Remove(ctx, "videos", id))
	require.NoError(t, s.Remove(ctx, "videos", id))
}

func TestMemorySubscribeDeliversFullSnapshots(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedVideos(t, s)

	var deliveries [][]Document
	sub, err := s.Subscribe(ctx, "videos", Query{}, func(docs []Document) {
		deliveries = append(deliveries, docs)
	}, func(err error) {
		t.Fatalf("unexpected listener error: %v", err)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// Initial result set arrives before Subscribe returns.
	require.Len(t, deliveries, 1)
	assert.Equal(t, []int64{300, 200, 100}, timestamps(deliveries[0]))

	_, err = s.Add(ctx, "videos", map[string]interface{}{"title": "new", "timestamp": int64(400)})
	require.NoError(t, err)

	require.Len(t, deliveries, 2)
	assert.Equal(t, []int64{400, 300, 200, 100}, timestamps(deliveries[1]))
}

func TestMemoryUnsubscribeIsIdempotent(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	delivered := 0
	sub, err := s.Subscribe(ctx, "videos", Query{}, func([]Document) { delivered++ }, func(error) {})
	require.NoError(t, err)
	require.Equal(t, 1, delivered)
	require.Equal(t, 1, s.ActiveSubscriptions())

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, s.ActiveSubscriptions())

	_, err = s.Add(ctx, "videos", map[string]interface{}{"title": "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
}

func TestMemorySubscriptionScopedToCollection(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	delivered := 0
	sub, err := s.Subscribe(ctx, "videos", Query{}, func([]Document) { delivered++ }, func(error) {})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	_, err = s.Add(ctx, "users", map[string]interface{}{"email": "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
}

func TestGetDocsByID(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	ids := seedVideos(t, s)

	docs, err := GetDocsByID(ctx, s, "videos", []string{ids[100], "missing", ids[300]}, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 300}, timestamps(docs))
}

func TestMergeQueries(t *testing.T) {
	base := Query{OrderField: "timestamp", OrderDesc: true, Limit: 10, Where: []Where{{Field: "creatorId", Op: "==", Value: "u1"}}}

	merged := MergeQueries(base, Query{Limit: 5})
	assert.Equal(t, 5, merged.Limit)
	assert.Equal(t, "timestamp", merged.OrderField)
	assert.Equal(t, base.Where, merged.Where)

	merged = MergeQueries(base, Query{OrderField: "views"})
	assert.Equal(t, "views", merged.OrderField)
	assert.False(t, merged.OrderDesc)
}
