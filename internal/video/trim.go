// Package video shells out to ffmpeg for the few operations the
// gallery performs on video files. Transcoding stays external; only
// stream-copy trims are issued here.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

var ErrBadRange = errors.New("start time must be less than end time")

type Trimmer struct {
	ffmpegPath string
}

func NewTrimmer(ffmpegPath string) *Trimmer {
	return &Trimmer{ffmpegPath: ffmpegPath}
}

// Trim writes the [start, end) interval of src to dst without
// re-encoding. Times are seconds.
func (t *Trimmer) Trim(ctx context.Context, src, dst string, start, end float64) error {
	if start < 0 || start >= end {
		return ErrBadRange
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-y",
		"-i", src,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(end-start),
		"-c", "copy",
		dst,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, stderr.String())
	}
	return nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
