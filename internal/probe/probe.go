// Package probe reads container durations with ffprobe.
package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var ErrNoDuration = errors.New("ffprobe reported no usable duration")

type Prober struct {
	Path    string
	Timeout time.Duration
}

func New(path string, timeout time.Duration) *Prober {
	if path == "" {
		path = "ffprobe"
	}
	return &Prober{Path: path, Timeout: timeout}
}

// Duration returns the container duration of filePath in seconds.
func (p *Prober) Duration(ctx context.Context, filePath string) (float64, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.Path,
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		filePath)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", filePath, err)
	}
	return ParseDuration(string(output))
}

// ParseDuration parses ffprobe's bare duration output. "N/A", zero and
// non-finite values are rejected so callers keep the fallback duration.
func ParseDuration(output string) (float64, error) {
	durationStr := strings.TrimSpace(output)
	if i := strings.IndexByte(durationStr, '\n'); i >= 0 {
		durationStr = strings.TrimSpace(durationStr[:i])
	}
	if durationStr == "" || durationStr == "N/A" {
		return 0, ErrNoDuration
	}
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, durationStr)
	}
	if duration <= 0 || math.IsInf(duration, 0) || math.IsNaN(duration) {
		return 0, ErrNoDuration
	}
	return duration, nil
}
