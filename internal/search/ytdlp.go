package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/pkg/datefmt"
)

const (
	DefaultPageSize = 20
	DefaultVideoURL = "https://www.bilibili.com/video/"
	DefaultSpaceURL = "https://space.bilibili.com/"
)

var bvInText = regexp.MustCompile(`BV[0-9A-Za-z]{10}`)

// Messages yt-dlp prints for a video that does not exist.
var notFoundMarkers = []string{"HTTP Error 404", "Video unavailable", "啊叻？视频不见了", "does not exist"}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// YTDLP is a Scraper that shells out to yt-dlp and reads its JSON dump.
type YTDLP struct {
	Binary   string
	PageSize int
	VideoURL string
	SpaceURL string

	run runFunc
	now func() time.Time
	log *slog.Logger
}

// NewYTDLP creates a scraper using the given yt-dlp binary.
func NewYTDLP(binary string, logger *slog.Logger) *YTDLP {
	if binary == "" {
		binary = "yt-dlp"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YTDLP{
		Binary:   binary,
		PageSize: DefaultPageSize,
		VideoURL: DefaultVideoURL,
		SpaceURL: DefaultSpaceURL,
		run:      runCommand,
		now:      time.Now,
		log:      logger.With("component", "ytdlp"),
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Search implements Scraper.
func (y *YTDLP) Search(ctx context.Context, query string, page int) ([]map[string]any, error) {
	first, last := y.window(page)
	target := fmt.Sprintf("bilisearch%d:%s", last, query)
	return y.list(ctx, target, first, last)
}

// ListUserVideos implements Scraper.
func (y *YTDLP) ListUserVideos(ctx context.Context, userID string, page int) ([]map[string]any, error) {
	first, last := y.window(page)
	target := strings.TrimRight(y.SpaceURL, "/") + "/" + userID + "/video"
	return y.list(ctx, target, first, last)
}

// FetchByID implements Scraper.
func (y *YTDLP) FetchByID(ctx context.Context, bv string) (map[string]any, error) {
	url := strings.TrimRight(y.VideoURL, "/") + "/" + bv
	out, err := y.run(ctx, y.Binary, "-J", "--no-playlist", "--skip-download", "--no-warnings", url)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var info videoInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("decoding yt-dlp output for %s: %w", bv, err)
	}
	return y.toMap(info), nil
}

func (y *YTDLP) list(ctx context.Context, target string, first, last int) ([]map[string]any, error) {
	start := time.Now()
	out, err := y.run(ctx, y.Binary,
		"-J", "--flat-playlist", "--no-warnings",
		"--playlist-items", fmt.Sprintf("%d:%d", first, last),
		target,
	)
	if err != nil {
		return nil, err
	}

	var info videoInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("decoding yt-dlp playlist: %w", err)
	}

	items := make([]map[string]any, 0, len(info.Entries))
	for _, e := range info.Entries {
		if m := y.toMap(e); m != nil {
			items = append(items, m)
		}
	}
	y.log.Debug("playlist fetched", "target", target, "items", len(items), "duration_ms", time.Since(start).Milliseconds())
	return items, nil
}

// window returns the 1-based playlist item range for page.
func (y *YTDLP) window(page int) (int, int) {
	size := y.PageSize
	if size < 1 {
		size = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	return (page-1)*size + 1, page * size
}

type videoInfo struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Uploader   string      `json:"uploader"`
	Channel    string      `json:"channel"`
	UploadDate string      `json:"upload_date"`
	Timestamp  float64     `json:"timestamp"`
	WebpageURL string      `json:"webpage_url"`
	URL        string      `json:"url"`
	Entries    []videoInfo `json:"entries"`
}

// toMap converts one yt-dlp entry into a record-like map, or nil when it
// carries no video id.
func (y *YTDLP) toMap(v videoInfo) map[string]any {
	bv := bvInText.FindString(v.ID)
	if bv == "" {
		bv = bvInText.FindString(v.WebpageURL + " " + v.URL)
	}
	if bv == "" {
		return nil
	}

	m := map[string]any{
		"bv":    bv,
		"title": strings.TrimSpace(v.Title),
		"url":   strings.TrimRight(y.VideoURL, "/") + "/" + bv,
	}
	if author := firstNonEmpty(v.Uploader, v.Channel); author != "" {
		m["author"] = author
	}
	if date := uploadDate(v, y.now()); date != "" {
		m["date"] = date
	}
	return m
}

// uploadDate prefers upload_date (YYYYMMDD) and falls back to the timestamp.
func uploadDate(v videoInfo, now time.Time) string {
	if d := v.UploadDate; len(d) == 8 {
		if date := datefmt.Normalize(d[:4]+"-"+d[4:6]+"-"+d[6:], now); date != "" {
			return date
		}
	}
	if v.Timestamp > 0 {
		return datefmt.Normalize(strconv.FormatInt(int64(v.Timestamp), 10), now)
	}
	return ""
}

func isNotFound(err error) bool {
	msg := err.Error()
	for _, marker := range notFoundMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
