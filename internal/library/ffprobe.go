package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const maxProbeTimeout = 30 * time.Second

// ErrNoDuration is returned when ffprobe reports no usable duration.
var ErrNoDuration = errors.New("no duration in probe output")

// FFProbe reads durations by running ffprobe.
type FFProbe struct {
	binary string
}

// NewFFProbe uses binary, or "ffprobe" from PATH when empty.
func NewFFProbe(binary string) *FFProbe {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFProbe{binary: bin}
}

// Duration implements Prober.
func (p *FFProbe) Duration(ctx context.Context, path string) (time.Duration, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxProbeTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return 0, fmt.Errorf("ffprobe failed: %w: %s", err, msg)
		}
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseDuration(stdout.Bytes())
}

// probePayload is the subset of ffprobe JSON output we parse.
type probePayload struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseDuration(data []byte) (time.Duration, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("ffprobe output parse failed: %w", err)
	}
	raw := strings.TrimSpace(payload.Format.Duration)
	if raw == "" || raw == "N/A" {
		return 0, ErrNoDuration
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, raw)
	}
	return time.Duration(secs * float64(time.Second)).Round(time.Millisecond), nil
}
