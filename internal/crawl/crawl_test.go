package crawl_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/catalog"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/crawl"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/search/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func video(bv, title string) map[string]any {
	return map[string]any{"bv": bv, "title": title, "author": "neuro", "date": "2024-05-01"}
}

func loadFragment(t *testing.T, path string) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	require.NoError(t, c.Load(path))
	return c
}

func TestCrawlSources(t *testing.T) {
	ctrl := gomock.NewController(t)
	scraper := mocks.NewMockScraper(ctrl)
	dir := t.TempDir()

	scraper.EXPECT().ListUserVideos(gomock.Any(), "100", 1).Return([]map[string]any{
		video("BV1", "【歌回】Never Gonna"),
		video("BV2", "Minecraft stream"),
		video("BV3", "歌回 切片"),
	}, nil)
	scraper.EXPECT().ListUserVideos(gomock.Any(), "100", 2).Return([]map[string]any{
		video("BV1", "【歌回】Never Gonna (re-upload)"),
		{"title": "no id 歌回"},
	}, nil)
	scraper.EXPECT().ListUserVideos(gomock.Any(), "100", 3).Return(nil, nil)

	scraper.EXPECT().ListUserVideos(gomock.Any(), "200", 1).Return(nil, errors.New("412"))

	c, err := crawl.New(scraper, dir, crawl.Options{
		Keywords:  []string{"歌回"},
		Blacklist: []string{"切片"},
		MaxPages:  5,
	}, testLogger())
	require.NoError(t, err)

	reports, err := c.CrawlSources(context.Background(), []crawl.Source{
		{Name: "neuro", UserID: "100"},
		{Name: "evil", UserID: "200"},
	})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.NoError(t, reports[0].Err)
	assert.Equal(t, 2, reports[0].Pages)
	assert.Equal(t, 5, reports[0].Fetched)
	assert.Equal(t, 1, reports[0].Kept)

	require.Error(t, reports[1].Err)
	assert.NoFileExists(t, filepath.Join(dir, "evildata.json"))

	frag := loadFragment(t, filepath.Join(dir, "neurodata.json"))
	require.Equal(t, 1, frag.Len())
	r, _ := frag.Select(0)
	assert.Equal(t, "【歌回】Never Gonna (re-upload)", r.Title, "later page wins")
}

func TestCrawlSources_MaxPages(t *testing.T) {
	ctrl := gomock.NewController(t)
	scraper := mocks.NewMockScraper(ctrl)
	scraper.EXPECT().ListUserVideos(gomock.Any(), "100", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, page int) ([]map[string]any, error) {
			return []map[string]any{video("BV"+string(rune('0'+page)), "song")}, nil
		}).Times(2)

	c, err := crawl.New(scraper, t.TempDir(), crawl.Options{MaxPages: 2}, testLogger())
	require.NoError(t, err)

	reports, err := c.CrawlSources(context.Background(), []crawl.Source{{Name: "a", UserID: "100"}})
	require.NoError(t, err)
	assert.Equal(t, 2, reports[0].Kept, "no keywords keeps everything")
}

func TestCrawlSources_InvalidSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	scraper := mocks.NewMockScraper(ctrl)

	c, err := crawl.New(scraper, t.TempDir(), crawl.Options{}, testLogger())
	require.NoError(t, err)

	reports, err := c.CrawlSources(context.Background(), []crawl.Source{{Name: "../x", UserID: "1"}, {Name: "b"}})
	require.NoError(t, err)
	assert.ErrorIs(t, reports[0].Err, crawl.ErrInvalidSource)
	assert.ErrorIs(t, reports[1].Err, crawl.ErrInvalidSource)
}

func TestNew_InvalidField(t *testing.T) {
	_, err := crawl.New(nil, t.TempDir(), crawl.Options{BlacklistField: "url"}, testLogger())
	assert.ErrorIs(t, err, catalog.ErrInvalidField)
}

func TestResolveExtend(t *testing.T) {
	ctrl := gomock.NewController(t)
	scraper := mocks.NewMockScraper(ctrl)
	dir := t.TempDir()

	require.NoError(t, catalog.SaveExtendIDs(dir, "manual", []string{"BV1", "BV2", "BV3", "BV4"}))

	scraper.EXPECT().FetchByID(gomock.Any(), "BV1").Return(video("BV1", "first"), nil)
	scraper.EXPECT().FetchByID(gomock.Any(), "BV2").Return(nil, nil)
	scraper.EXPECT().FetchByID(gomock.Any(), "BV3").Return(nil, errors.New("timeout"))
	scraper.EXPECT().FetchByID(gomock.Any(), "BV4").Return(video("BV4", "fourth"), nil)

	c, err := crawl.New(scraper, dir, crawl.Options{Concurrency: 2}, testLogger())
	require.NoError(t, err)

	n, err := c.ResolveExtend(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	frag := loadFragment(t, filepath.Join(dir, crawl.ResolvedExtendName+catalog.FragmentSuffix))
	assert.Equal(t, []string{"BV1", "BV4"}, frag.BVs(), "extend order is kept")

	merged, err := catalog.LoadMerged(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, merged.Len())
}

func TestResolveExtend_NoDir(t *testing.T) {
	c, err := crawl.New(nil, filepath.Join(t.TempDir(), "missing"), crawl.Options{}, testLogger())
	require.NoError(t, err)

	_, err = c.ResolveExtend(context.Background())
	assert.Error(t, err)
}
