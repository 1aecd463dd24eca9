package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"skysort/internal/catalog"
	"skysort/internal/config"
	"skysort/internal/logging"
	"skysort/internal/media/probe"
	"skysort/internal/media/qr"
	"skysort/internal/sampler"
	"skysort/internal/services"
)

// MediaProbe reads metadata and extracts frames from video files.
type MediaProbe interface {
	Inspect(ctx context.Context, path string) (probe.Result, error)
	ExtractFrame(ctx context.Context, path string, timestamp float64, outPath string) error
}

// MarkerDecoder decodes an identity marker from a frame image.
type MarkerDecoder interface {
	Decode(ctx context.Context, imagePath string) (string, error)
}

type execProbe struct {
	ffprobe string
	ffmpeg  string
}

func newExecProbe(cfg *config.Config) MediaProbe {
	return execProbe{ffprobe: cfg.Probes.FFprobeBinary, ffmpeg: cfg.Probes.FFmpegBinary}
}

func (p execProbe) Inspect(ctx context.Context, path string) (probe.Result, error) {
	return probe.Inspect(ctx, p.ffprobe, path)
}

func (p execProbe) ExtractFrame(ctx context.Context, path string, timestamp float64, outPath string) error {
	return probe.ExtractFrame(ctx, p.ffmpeg, path, timestamp, outPath)
}

type execDecoder struct {
	zbarimg string
}

func newExecDecoder(cfg *config.Config) MarkerDecoder {
	return execDecoder{zbarimg: cfg.Probes.ZbarimgBinary}
}

func (d execDecoder) Decode(ctx context.Context, imagePath string) (string, error) {
	return qr.Decode(ctx, d.zbarimg, imagePath)
}

// analyzeFile runs the per-file pipeline: probe, marker scan, adaptive
// classification, segment detection, persistence. It returns the number of
// detected segments.
func (a *Analyzer) analyzeFile(ctx context.Context, file *catalog.File) (int, error) {
	file.Status = catalog.FileAnalyzing
	if err := a.store.UpdateFile(ctx, file); err != nil {
		return 0, err
	}

	frameDir, err := os.MkdirTemp("", "skysort-frames-*")
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "analyze", "create frame dir", file.Filename, err)
	}
	defer os.RemoveAll(frameDir)

	logger := logging.WithContext(ctx, a.logger)

	// Metadata is best-effort; a probe failure leaves the fields empty and
	// the rest of the pipeline degrades to an unknown result.
	result, err := a.probe.Inspect(ctx, file.Path)
	if err != nil {
		logger.Warn("probe failed", logging.Error(err))
	} else {
		if !result.HasVideoStream() {
			return 0, services.Wrap(services.ErrValidation, "analyze", "probe", "no video stream", nil)
		}
		file.DurationSeconds = result.DurationSeconds()
		file.SizeBytes = result.SizeBytes()
		file.RecordedAt = result.RecordedAt()
		if video := result.VideoStream(); video != nil {
			file.Width = video.Width
			file.Height = video.Height
			file.Codec = video.CodecName
			file.FPS = video.FrameRate()
		}
	}

	markerID, markerEnd := a.scanMarker(ctx, file, frameDir)
	file.MarkerWorkloadID = markerID
	file.MarkerEndSeconds = markerEnd

	samples, err := a.classifyVideo(ctx, file, frameDir)
	if err != nil {
		return 0, err
	}

	segments, dominantCategory := a.detector.Detect(samples, markerEnd)
	if err := a.store.ReplaceSegments(ctx, file.ID, segments); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	file.Status = catalog.FileAnalyzed
	file.DominantCategory = dominantCategory
	file.Confidence = meanConfidence(samples)
	file.ErrorMessage = ""
	file.AnalyzedAt = &now
	if err := a.store.UpdateFile(ctx, file); err != nil {
		return 0, err
	}
	return len(segments), nil
}

// meanConfidence averages the classifier confidence over the sampled frames.
func meanConfidence(samples []sampler.Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, sample := range samples {
		sum += sample.Confidence
	}
	return sum / float64(len(samples))
}

// scanMarker probes the opening seconds of the file for an identity marker.
// The first decodable code wins; decode misses are skipped silently.
func (a *Analyzer) scanMarker(ctx context.Context, file *catalog.File, frameDir string) (string, float64) {
	logger := logging.WithContext(ctx, a.logger)
	for _, ts := range qr.ScanTimestamps(file.DurationSeconds) {
		framePath := filepath.Join(frameDir, fmt.Sprintf("marker_%05.1f.jpg", ts))
		if err := a.probe.ExtractFrame(ctx, file.Path, ts, framePath); err != nil {
			logger.Debug("marker frame extraction failed",
				logging.Float64("timestamp", ts), logging.Error(err))
			continue
		}
		payload, err := a.decoder.Decode(ctx, framePath)
		if err != nil {
			if !errors.Is(err, qr.ErrNoCode) {
				logger.Debug("marker decode failed",
					logging.Float64("timestamp", ts), logging.Error(err))
			}
			continue
		}
		workloadID, ok := qr.ParseWorkloadID(payload)
		if !ok {
			continue
		}
		logger.Info("identity marker found",
			logging.String(logging.FieldWorkloadID, workloadID),
			logging.Float64("timestamp", ts))
		return workloadID, ts + qr.MarkerWindowSeconds
	}
	return "", 0
}

// classifyVideo runs the adaptive sampling strategy: classify a coarse grid,
// then refine around category transitions with a fine grid. With adaptive
// sampling disabled, the whole file is sampled uniformly at the fine interval.
func (a *Analyzer) classifyVideo(ctx context.Context, file *catalog.File, frameDir string) ([]sampler.Sample, error) {
	if !a.cfg.Analyzer.Adaptive {
		uniform := sampler.Coarse(file.DurationSeconds, a.cfg.Analyzer.FineIntervalSeconds)
		return a.classifyTimestamps(ctx, file, frameDir, uniform)
	}

	coarse := sampler.Coarse(file.DurationSeconds, a.cfg.Analyzer.CoarseIntervalSeconds)
	coarseSamples, err := a.classifyTimestamps(ctx, file, frameDir, coarse)
	if err != nil {
		return nil, err
	}

	fine := sampler.Refinement(coarseSamples, a.cfg.Analyzer.FineIntervalSeconds)
	if len(fine) == 0 {
		return coarseSamples, nil
	}
	fineSamples, err := a.classifyTimestamps(ctx, file, frameDir, fine)
	if err != nil {
		return nil, err
	}
	return sampler.Merge(coarseSamples, fineSamples), nil
}

// classifyTimestamps extracts one frame per timestamp and classifies them in
// a single batched call. Frames that fail to extract are skipped.
func (a *Analyzer) classifyTimestamps(ctx context.Context, file *catalog.File, frameDir string, timestamps []float64) ([]sampler.Sample, error) {
	logger := logging.WithContext(ctx, a.logger)

	framePaths := make([]string, 0, len(timestamps))
	frameTimes := make([]float64, 0, len(timestamps))
	for _, ts := range timestamps {
		framePath := filepath.Join(frameDir, fmt.Sprintf("sample_%08.2f.jpg", ts))
		if err := a.probe.ExtractFrame(ctx, file.Path, ts, framePath); err != nil {
			logger.Warn("frame extraction failed, skipping sample",
				logging.Float64("timestamp", ts), logging.Error(err))
			continue
		}
		framePaths = append(framePaths, framePath)
		frameTimes = append(frameTimes, ts)
	}
	if len(framePaths) == 0 {
		return nil, nil
	}

	predictions, err := a.classifier.Classify(ctx, framePaths)
	if err != nil {
		return nil, err
	}
	if len(predictions) != len(framePaths) {
		return nil, services.Wrap(services.ErrExternalTool, "analyze", "classify",
			fmt.Sprintf("expected %d predictions, got %d", len(framePaths), len(predictions)), nil)
	}

	samples := make([]sampler.Sample, len(predictions))
	for i, prediction := range predictions {
		samples[i] = sampler.Sample{
			Timestamp:  frameTimes[i],
			Category:   prediction.Category,
			Confidence: prediction.Confidence,
		}
	}
	return samples, nil
}
