package search_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	_ "modernc.org/sqlite"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/migrations"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/search"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/search/mocks"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, migrations.Apply(db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCache_GetSet(t *testing.T) {
	cache := search.NewCache(setupTestDB(t))
	ctx := context.Background()

	_, ok := cache.Get(ctx, "missing")
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k", []byte(`{"bv":"BV1"}`), time.Hour))
	got, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.JSONEq(t, `{"bv":"BV1"}`, string(got))

	require.NoError(t, cache.Set(ctx, "k", []byte(`{"bv":"BV2"}`), time.Hour))
	got, ok = cache.Get(ctx, "k")
	require.True(t, ok)
	assert.JSONEq(t, `{"bv":"BV2"}`, string(got))
}

func TestCache_ExpiredAndPrune(t *testing.T) {
	cache := search.NewCache(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "old", []byte("1"), -time.Minute))
	require.NoError(t, cache.Set(ctx, "new", []byte("2"), time.Hour))

	_, ok := cache.Get(ctx, "old")
	assert.False(t, ok)

	n, err := cache.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, cache.Clear(ctx))
	_, ok = cache.Get(ctx, "new")
	assert.False(t, ok)
}

func TestCached_FetchByID(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockScraper(ctrl)
	inner.EXPECT().FetchByID(gomock.Any(), "BV1").Return(item("BV1", "song"), nil).Times(1)
	inner.EXPECT().FetchByID(gomock.Any(), "BV2").Return(nil, nil).Times(1)

	s := search.NewCached(inner, search.NewCache(setupTestDB(t)), time.Hour, nil)
	ctx := context.Background()

	for range 2 {
		m, err := s.FetchByID(ctx, "BV1")
		require.NoError(t, err)
		assert.Equal(t, "song", m["title"])

		m, err = s.FetchByID(ctx, "BV2")
		require.NoError(t, err)
		assert.Nil(t, m)
	}
}

func TestCached_SearchKeyedByPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockScraper(ctrl)
	inner.EXPECT().Search(gomock.Any(), "q", 1).Return([]map[string]any{item("BV1", "a")}, nil).Times(1)
	inner.EXPECT().Search(gomock.Any(), "q", 2).Return([]map[string]any{item("BV2", "b")}, nil).Times(1)

	s := search.NewCached(inner, search.NewCache(setupTestDB(t)), time.Hour, nil)
	ctx := context.Background()

	for range 2 {
		p1, err := s.Search(ctx, "q", 1)
		require.NoError(t, err)
		require.Len(t, p1, 1)
		assert.Equal(t, "BV1", p1[0]["bv"])

		p2, err := s.Search(ctx, "q", 2)
		require.NoError(t, err)
		require.Len(t, p2, 1)
		assert.Equal(t, "BV2", p2[0]["bv"])
	}
}

func TestCached_ErrorsNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockScraper(ctrl)
	gomock.InOrder(
		inner.EXPECT().FetchByID(gomock.Any(), "BV1").Return(nil, errors.New("timeout")),
		inner.EXPECT().FetchByID(gomock.Any(), "BV1").Return(item("BV1", "song"), nil),
	)

	s := search.NewCached(inner, search.NewCache(setupTestDB(t)), time.Hour, nil)
	ctx := context.Background()

	_, err := s.FetchByID(ctx, "BV1")
	require.Error(t, err)

	m, err := s.FetchByID(ctx, "BV1")
	require.NoError(t, err)
	assert.Equal(t, "song", m["title"])
}

func TestCached_Disabled(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Second} {
		t.Run(ttl.String(), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			inner := mocks.NewMockScraper(ctrl)
			inner.EXPECT().FetchByID(gomock.Any(), "BV1").Return(item("BV1", "song"), nil).Times(2)
			inner.EXPECT().ListUserVideos(gomock.Any(), "42", 1).Return(nil, nil).Times(2)

			s := search.NewCached(inner, search.NewCache(setupTestDB(t)), ttl, nil)
			ctx := context.Background()

			for range 2 {
				_, err := s.FetchByID(ctx, "BV1")
				require.NoError(t, err)
				_, err = s.ListUserVideos(ctx, "42", 1)
				require.NoError(t, err)
			}
		})
	}
}
