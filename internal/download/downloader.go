// Package download runs a bounded pool of workers over a queue of video
// download tasks and records finished tasks.
package download

//go:generate mockgen -source=downloader.go -destination=mocks/mock_downloader.go -package=mocks

import (
	"context"
	"time"
)

// Request is everything a Downloader needs to fetch one video's audio.
type Request struct {
	BV         string
	OutputPath string
	Page       int // 0 means the first page
	FileType   string
}

// Downloader fetches a video and writes the transcoded file to OutputPath.
type Downloader interface {
	Download(ctx context.Context, req Request) error
}

// DownloaderFunc adapts a function to the Downloader interface.
type DownloaderFunc func(ctx context.Context, req Request) error

func (f DownloaderFunc) Download(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// Task is one queued download. Its identity is BV.
type Task struct {
	Index      int       `json:"index"`
	Title      string    `json:"title"`
	BV         string    `json:"bv"`
	Source     string    `json:"source,omitempty"`
	FileType   string    `json:"file_type"`
	OutputFile string    `json:"output_file"`
	Page       int       `json:"page,omitempty"`
	Status     Status    `json:"status"`
	ErrorMsg   string    `json:"error_msg,omitempty"`
	AddedAt    time.Time `json:"added_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

func (t Task) request() Request {
	return Request{
		BV:         t.BV,
		OutputPath: t.OutputFile,
		Page:       t.Page,
		FileType:   t.FileType,
	}
}

// Snapshot is a point-in-time summary of the queue.
type Snapshot struct {
	RunID     string `json:"run_id,omitempty"`
	Running   bool   `json:"running"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

// Total returns the number of tasks in all sets.
func (s Snapshot) Total() int {
	return s.Pending + s.Active + s.Completed + s.Failed
}
