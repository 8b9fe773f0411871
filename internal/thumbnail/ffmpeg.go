package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FFmpeg extracts a representative frame using the ffmpeg binary.
type FFmpeg struct {
	Binary string
}

// Extract runs ffmpeg's thumbnail filter and returns one scaled JPEG frame.
func (f FFmpeg) Extract(ctx context.Context, path string) ([]byte, error) {
	bin := f.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	scale := fmt.Sprintf("thumbnail,scale=w=%d:h=%d:force_original_aspect_ratio=decrease", MaxWidth, MaxHeight)
	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-vf", scale,
		"-frames:v", "1",
		"-f", "image2pipe", "-vcodec", "mjpeg",
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame")
	}
	return stdout.Bytes(), nil
}
