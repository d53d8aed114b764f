package search_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/catalog"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/search"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/search/mocks"
)

// testLogger returns a discard logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rec(bv, title, author string) catalog.Record {
	return catalog.Record{Title: title, Author: author, Date: "2024-05-01", BV: bv}
}

func item(bv, title string) map[string]any {
	return map[string]any{"bv": bv, "title": title, "author": "vedal", "date": "2024-05-01", "play": 1234.0}
}

func localCatalog() *catalog.Catalog {
	return catalog.New(
		rec("BV1aaaaaaaaa", "Neuro 歌回 2024", "vedal"),
		rec("BV1bbbbbbbbb", "歌回 切片 合集", "clipper"),
		rec("BV1ccccccccc", "Random unrelated", "vedal987"),
	)
}

func newService(t *testing.T, scraper search.Scraper, opts search.Options) *search.Service {
	t.Helper()
	svc, err := search.NewService(localCatalog(), scraper, nil, opts, testLogger())
	require.NoError(t, err)
	return svc
}

func TestIsBV(t *testing.T) {
	assert.True(t, search.IsBV("BV1xx411c7mD"))
	assert.True(t, search.IsBV(" bv1xx411c7mD "))
	assert.False(t, search.IsBV("BV1xx"))
	assert.False(t, search.IsBV("歌回"))
}

func TestService_LocalHitSkipsNetwork(t *testing.T) {
	ctrl := gomock.NewController(t)
	scraper := mocks.NewMockScraper(ctrl) // no expectations: any call fails the test

	svc := newService(t, scraper, search.Options{})
	result, err := svc.Search(context.Background(), "歌回")

	require.NoError(t, err)
	assert.Equal(t, search.SourceLocal, result.Source)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "BV1bbbbbbbbb", result.Records[0].BV, "title starts with the query")
}

func TestService_LocalBlacklist(t *testing.T) {
	ctrl := gomock.NewController(t)
	scraper := mocks.NewMockScraper(ctrl)

	svc := newService(t, scraper, search.Options{Blacklist: []string{"切片"}})
	result, err := svc.Search(context.Background(), "歌回")

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "BV1aaaaaaaaa", result.Records[0].BV)
}

func TestService_BVLookupIgnoresBlacklist(t *testing.T) {
	ctrl := gomock.NewController(t)
	scraper := mocks.NewMockScraper(ctrl)

	svc := newService(t, scraper, search.Options{Blacklist: []string{"切片"}})
	result, err := svc.Search(context.Background(), "bv1bbbbbbbbb")

	require.NoError(t, err)
	assert.Equal(t, search.SourceLookup, result.Source)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "歌回 切片 合集", result.Records[0].Title)
}

func TestService_BVLookupFallsBackToFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	scraper := mocks.NewMockScraper(ctrl)
	scraper.EXPECT().FetchByID(gomock.Any(), "BV1zzzzzzzzz").Return(item("BV1zzzzzzzzz", "Remote song"), nil)

	svc := newService(t, scraper, search.Options{})
	result, err := svc.Search(context.Background(), "BV1zzzzzzzzz")

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "Remote song", result.Records[0].Title)
}

func TestService_BVLookupNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	scraper := mocks.NewMockScraper(ctrl)
	scraper.EXPECT().FetchByID(gomock.Any(), gomock.Any()).Return(nil, nil)

	svc := newService(t, scraper, search.Options{})
	_, err := svc.Search(context.Background(), "BV1zzzzzzzzz")

	assert.ErrorIs(t, err, search.ErrNoResults)
}

func TestService_BVLookupError(t *testing.T) {
	ctrl := gomock.NewController(t)
	scraper := mocks.NewMockScraper(ctrl)
	cause := errors.New("412 precondition failed")
	scraper.EXPECT().FetchByID(gomock.Any(), gomock.Any()).Return(nil, cause)

	svc := newService(t, scraper, search.Options{})
	_, err := svc.Search(context.Background(), "BV1zzzzzzzzz")

	assert.ErrorIs(t, err, search.ErrSearchFailed)
	assert.ErrorIs(t, err, cause)
}

func TestService_NetworkFallback(t *testing.T) {
	ctrl := gomock.NewController(t)
	scraper := mocks.NewMockScraper(ctrl)
	scraper.EXPECT().Search(gomock.Any(), "never gonna", 1).Return([]map[string]any{
		item("BV1n00000001", "Never Gonna Give You Up (cover)"),
		item("BV1n00000002", "never gonna 切片"),
		{"title": "missing bv"},
	}, nil)
	scraper.EXPECT().Search(gomock.Any(), "never gonna", 2).Return([]map[string]any{
		item("BV1n00000001", "Never Gonna Give You Up (cover)"),
		item("BV1n00000003", "Never Gonna"),
	}, nil)

	svc := newService(t, scraper, search.Options{Pages: 2, Blacklist: []string{"切片"}})
	result, err := svc.Search(context.Background(), "never gonna")

	require.NoError(t, err)
	assert.Equal(t, search.SourceNetwork, result.Source)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "BV1n00000003", result.Records[0].BV, "exact title ranks first")
	assert.Equal(t, "BV1n00000001", result.Records[1].BV)
}

func TestService_NetworkPartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	scraper := mocks.NewMockScraper(ctrl)
	scraper.EXPECT().Search(gomock.Any(), "xyz", 1).Return([]map[string]any{item("BV1x00000001", "xyz live")}, nil)
	scraper.EXPECT().Search(gomock.Any(), "xyz", 2).Return(nil, errors.New("timeout"))

	svc := newService(t, scraper, search.Options{Pages: 2})
	result, err := svc.Search(context.Background(), "xyz")

	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
}

func TestService_NetworkFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	scraper := mocks.NewMockScraper(ctrl)
	scraper.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	svc := newService(t, scraper, search.Options{})
	_, err := svc.Search(context.Background(), "xyz")

	require.ErrorIs(t, err, search.ErrSearchFailed)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NotErrorIs(t, err, search.ErrNoResults)
}

func TestService_NoResults(t *testing.T) {
	ctrl := gomock.NewController(t)
	scraper := mocks.NewMockScraper(ctrl)
	scraper.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return([]map[string]any{item("BV1y00000001", "xyz 切片")}, nil)

	svc := newService(t, scraper, search.Options{Blacklist: []string{"切片"}})
	_, err := svc.Search(context.Background(), "xyz")

	assert.ErrorIs(t, err, search.ErrNoResults)
}

func TestService_LocalOnly(t *testing.T) {
	svc := newService(t, nil, search.Options{})

	_, err := svc.Search(context.Background(), "nothing here")
	assert.ErrorIs(t, err, search.ErrNoResults)

	_, err = svc.Search(context.Background(), "  ")
	assert.ErrorIs(t, err, search.ErrEmptyQuery)
}

func TestService_InvalidField(t *testing.T) {
	_, err := search.NewService(nil, nil, nil, search.Options{BlacklistField: "date"}, testLogger())
	assert.ErrorIs(t, err, catalog.ErrInvalidField)
}

func TestService_SetCatalogAndSuggest(t *testing.T) {
	svc := newService(t, nil, search.Options{})
	svc.SetCatalog(catalog.New(rec("BV1s00000001", "Never Gonna Give You Up", "vedal")))

	_, err := svc.Search(context.Background(), "歌回")
	assert.ErrorIs(t, err, search.ErrNoResults)

	suggestions := svc.Suggest("never gona give you up", 3)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "BV1s00000001", suggestions[0].Record.BV)
}
