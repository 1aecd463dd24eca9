package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ExtractFrame writes the frame nearest timestamp (in seconds) as a JPEG at
// outPath using ffmpeg. Seeking happens before the input is opened, so
// extraction cost does not grow with the timestamp.
func ExtractFrame(ctx context.Context, binary, videoPath string, timestamp float64, outPath string) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(videoPath) == "" {
		return errors.New("ffmpeg extract: empty video path")
	}
	if strings.TrimSpace(outPath) == "" {
		return errors.New("ffmpeg extract: empty output path")
	}
	if timestamp < 0 {
		timestamp = 0
	}

	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-ss", strconv.FormatFloat(timestamp, 'f', 3, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		outPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg extract frame at %.3fs: %w: %s", timestamp, err, strings.TrimSpace(string(output)))
	}
	return nil
}
