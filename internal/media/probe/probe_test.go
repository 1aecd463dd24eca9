package probe

import (
	"testing"
	"time"
)

const sampleOutput = `{
  "streams": [
    {"index": 0, "codec_name": "hevc", "codec_type": "video", "width": 3840, "height": 2160, "r_frame_rate": "60000/1001"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio"}
  ],
  "format": {
    "filename": "GX010001.MP4",
    "nb_streams": 2,
    "duration": "183.483300",
    "size": "1073741824",
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "tags": {"creation_time": "2026-03-14T09:30:00.000000Z"}
  }
}`

func TestParseResult(t *testing.T) {
	result, err := parseResult([]byte(sampleOutput))
	if err != nil {
		t.Fatalf("parseResult: %v", err)
	}
	if got := result.DurationSeconds(); got < 183.48 || got > 183.49 {
		t.Fatalf("duration = %v", got)
	}
	if result.SizeBytes() != 1073741824 {
		t.Fatalf("size = %d", result.SizeBytes())
	}
	if !result.HasVideoStream() {
		t.Fatal("video stream not detected")
	}
	recorded := result.RecordedAt()
	if recorded == nil {
		t.Fatal("creation_time not parsed")
	}
	want := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	if !recorded.Equal(want) {
		t.Fatalf("recorded = %v, want %v", recorded, want)
	}

	video := result.VideoStream()
	if video == nil {
		t.Fatal("video stream not returned")
	}
	if video.Width != 3840 || video.Height != 2160 || video.CodecName != "hevc" {
		t.Fatalf("video stream = %+v", video)
	}
	if fps := video.FrameRate(); fps < 59.94 || fps > 59.95 {
		t.Fatalf("fps = %v", fps)
	}
}

func TestStreamFrameRate(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"30000/1001", 30000.0 / 1001.0},
		{"25/1", 25},
		{"60", 60},
		{"", 0},
		{"0/0", 0},
		{"abc", 0},
		{"-30/1", 0},
	}
	for _, tc := range cases {
		got := Stream{RFrameRate: tc.raw}.FrameRate()
		if got < tc.want-1e-9 || got > tc.want+1e-9 {
			t.Errorf("FrameRate(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestParseResultMissingFields(t *testing.T) {
	result, err := parseResult([]byte(`{"format": {}}`))
	if err != nil {
		t.Fatalf("parseResult: %v", err)
	}
	if result.DurationSeconds() != 0 {
		t.Fatalf("duration = %v, want 0", result.DurationSeconds())
	}
	if result.RecordedAt() != nil {
		t.Fatal("expected nil recorded time")
	}
	if result.HasVideoStream() {
		t.Fatal("no stream should be detected")
	}
}

func TestParseResultRejectsGarbage(t *testing.T) {
	if _, err := parseResult([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}
