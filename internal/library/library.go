// Package library lists the audio files already downloaded to the music directory.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Extensions are the file types treated as audio, lower case without the dot.
var Extensions = []string{"mp3", "flac", "m4a", "ogg", "wav", "aac", "opus"}

// IsAudio reports whether name has an audio extension.
func IsAudio(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return slices.Contains(Extensions, ext)
}

// AudioFile is one local track.
type AudioFile struct {
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Duration time.Duration `json:"duration"` // zero when unknown
}

// Prober reads a file's playing time.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, path string) (time.Duration, error)

func (f ProberFunc) Duration(ctx context.Context, path string) (time.Duration, error) {
	return f(ctx, path)
}

// Scanner lists audio files in a directory.
type Scanner struct {
	prober      Prober
	concurrency int
	log         *slog.Logger
}

// NewScanner creates a scanner. A nil prober leaves every duration at zero.
func NewScanner(p Prober, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		prober:      p,
		concurrency: 4,
		log:         logger.With("component", "library"),
	}
}

// List returns the audio files directly inside dir, sorted by name.
// Subdirectories are not descended into. A file whose duration cannot be
// probed is still listed with a zero duration.
func (s *Scanner) List(ctx context.Context, dir string) ([]AudioFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read music dir: %w", err)
	}

	var files []AudioFile
	for _, e := range entries {
		if e.IsDir() || !IsAudio(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			s.log.Debug("skipping unreadable file", "file", e.Name(), "error", err)
			continue
		}
		files = append(files, AudioFile{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	slices.SortFunc(files, func(a, b AudioFile) int { return strings.Compare(a.Name, b.Name) })

	if s.prober == nil {
		return files, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range files {
		g.Go(func() error {
			d, err := s.prober.Duration(gctx, files[i].Path)
			if err != nil {
				s.log.Debug("probe failed", "file", files[i].Name, "error", err)
				return nil
			}
			files[i].Duration = d
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return files, nil
}
