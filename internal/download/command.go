package download

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/pkg/songtitle"
)

// DefaultVideoURL is the watch page a bv resolves to.
const DefaultVideoURL = "https://www.bilibili.com/video/"

// CommandDownloader runs an external program such as yt-dlp for each task.
//
// Each argument of Args may contain the placeholders {bv}, {url}, {output},
// {page} and {format}. Arguments are passed to the program without a shell.
type CommandDownloader struct {
	Args    []string
	BaseURL string
	log     *slog.Logger
}

// NewCommandDownloader creates a downloader for the given argument template.
func NewCommandDownloader(args []string, logger *slog.Logger) (*CommandDownloader, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return nil, ErrEmptyCommand
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandDownloader{
		Args:    args,
		BaseURL: DefaultVideoURL,
		log:     logger.With("component", "downloader"),
	}, nil
}

// Download implements Downloader.
func (d *CommandDownloader) Download(ctx context.Context, req Request) error {
	if dir := filepath.Dir(req.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	argv := d.expand(req)
	d.log.Debug("running download command", "bv", req.BV, "program", argv[0])

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w: %s", argv[0], req.BV, err, tail(out.String(), 300))
	}
	return nil
}

// URL returns the watch page for req.
func (d *CommandDownloader) URL(req Request) string {
	base := d.BaseURL
	if base == "" {
		base = DefaultVideoURL
	}
	u := strings.TrimRight(base, "/") + "/" + req.BV
	if req.Page > 1 {
		u += "?p=" + strconv.Itoa(req.Page)
	}
	return u
}

func (d *CommandDownloader) expand(req Request) []string {
	page := req.Page
	if page < 1 {
		page = 1
	}
	r := strings.NewReplacer(
		"{bv}", req.BV,
		"{url}", d.URL(req),
		"{output}", req.OutputPath,
		"{page}", strconv.Itoa(page),
		"{format}", req.FileType,
	)
	argv := make([]string, len(d.Args))
	for i, a := range d.Args {
		argv[i] = r.Replace(a)
	}
	return argv
}

// tail returns the last n bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// OutputPath builds the destination file for a video title.
func OutputPath(dir, title, fileType string) string {
	name := songtitle.SanitizeFilename(title)
	if name == "" {
		name = "untitled"
	}
	ext := strings.TrimPrefix(strings.ToLower(fileType), ".")
	if ext == "" {
		ext = "mp3"
	}
	return filepath.Join(dir, name+"."+ext)
}
