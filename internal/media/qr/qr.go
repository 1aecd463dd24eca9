// Package qr decodes jump identifier codes that clients hold up to the
// camera before exiting the plane.
package qr

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MarkerWindowSeconds is how long a decoded code is assumed to stay on
// screen past the frame it was found in.
const MarkerWindowSeconds = 2.0

// markerScanCutoff bounds how deep into a file codes are searched for.
// Clients show the code right after recording starts.
const markerScanCutoff = 10.0

// ErrNoCode indicates the image contained no decodable code.
var ErrNoCode = errors.New("no code found")

var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// Decode runs zbarimg against an extracted frame and returns the raw code
// payload. ErrNoCode is returned when the frame holds no code.
func Decode(ctx context.Context, binary, imagePath string) (string, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "zbarimg"
	}
	if strings.TrimSpace(imagePath) == "" {
		return "", errors.New("decode: empty image path")
	}

	cmd := exec.CommandContext(ctx, binary, "--raw", "-q", imagePath)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		// zbarimg exits 4 when the image scans clean with no symbols.
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 4 {
			return "", ErrNoCode
		}
		return "", fmt.Errorf("zbarimg decode: %w", err)
	}

	payload := strings.TrimSpace(string(output))
	if payload == "" {
		return "", ErrNoCode
	}
	return payload, nil
}

// ParseWorkloadID extracts a workload identifier from a decoded payload.
// The payload may carry a label prefix or surrounding text; the first
// well-formed UUID wins. The second return is false when none is present.
func ParseWorkloadID(payload string) (string, bool) {
	match := uuidPattern.FindString(payload)
	if match == "" {
		return "", false
	}
	parsed, err := uuid.Parse(match)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// ScanTimestamps returns the offsets (seconds) at which frames should be
// checked for a code. The fixed early offsets catch codes shown at the
// start of recording; the proportional offset covers cameras that were
// rolling before the code was presented. Offsets at or past the scan
// cutoff, or past the clip itself, are dropped.
func ScanTimestamps(durationSeconds float64) []float64 {
	candidates := []float64{0, 1, 2, 5}
	if durationSeconds > markerScanCutoff {
		candidates = append(candidates, durationSeconds*0.10)
	}

	limit := durationSeconds
	if markerScanCutoff < limit {
		limit = markerScanCutoff
	}

	out := make([]float64, 0, len(candidates))
	for _, ts := range candidates {
		if ts < limit {
			out = append(out, ts)
		}
	}
	return out
}
