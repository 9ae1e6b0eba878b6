package domain_test

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"minimill/internal/domain"
)

func TestParseDetectionMode(t *testing.T) {
	for _, value := range []string{"4mm", "6MM", " 8mm ", "10mm"} {
		if _, err := domain.ParseDetectionMode(value); err != nil {
			t.Fatalf("ParseDetectionMode(%q) returned error: %v", value, err)
		}
	}
	for _, value := range []string{"", "5mm", "12mm", "fast"} {
		if _, err := domain.ParseDetectionMode(value); err == nil {
			t.Fatalf("ParseDetectionMode(%q) expected error", value)
		}
	}
}

func TestMultipliersDecreaseWithCoarserModes(t *testing.T) {
	want := map[domain.DetectionMode]float64{
		domain.Mode4mm:  1.5,
		domain.Mode6mm:  1.0,
		domain.Mode8mm:  0.8,
		domain.Mode10mm: 0.6,
	}
	prev := 100.0
	for _, mode := range domain.DetectionModes {
		got := mode.Multiplier()
		if got != want[mode] {
			t.Fatalf("%s multiplier = %v, want %v", mode, got, want[mode])
		}
		if got >= prev {
			t.Fatalf("expected %s multiplier below previous mode", mode)
		}
		prev = got
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := domain.DefaultOptions()
	if opts.DetectionMode != domain.Mode6mm || !opts.HighQuality || opts.EmailNotification {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
	if err := opts.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestOptionsPatchApply(t *testing.T) {
	mode := "10mm"
	off := false
	next, err := domain.OptionsPatch{DetectionMode: &mode, HighQuality: &off}.Apply(domain.DefaultOptions())
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if next.DetectionMode != domain.Mode10mm || next.HighQuality || next.EmailNotification {
		t.Fatalf("unexpected patched options: %+v", next)
	}

	bad := "3mm"
	base := domain.DefaultOptions()
	got, err := domain.OptionsPatch{DetectionMode: &bad}.Apply(base)
	if err == nil {
		t.Fatal("expected error for invalid mode")
	}
	if got != base {
		t.Fatalf("expected base returned on error, got %+v", got)
	}
	if !(domain.OptionsPatch{}).Empty() {
		t.Fatal("expected empty patch")
	}
}

func TestNewJobRequiresFiles(t *testing.T) {
	_, err := domain.NewJob("", nil, domain.DefaultOptions(), 2, time.Now())
	if !errors.Is(err, domain.ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
}

func TestNewJobGeneratesID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	files := []domain.FileMetadata{{Name: "a.mp4", Size: 10, Type: "video/mp4"}}
	job, err := domain.NewJob("", files, domain.DefaultOptions(), 2, now)
	if err != nil {
		t.Fatalf("NewJob returned error: %v", err)
	}
	if !regexp.MustCompile(`^job_1700000000123_[0-9a-f]{9}$`).MatchString(job.ID) {
		t.Fatalf("unexpected job id %q", job.ID)
	}
	if job.Status != domain.JobProcessing {
		t.Fatalf("expected processing status, got %s", job.Status)
	}
	if job.Status.IsTerminal() {
		t.Fatal("processing must not be terminal")
	}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"estimatedDuration":2`, `"startTime"`, `"detectionMode":"6mm"`, `"lastModified"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("expected %s in %s", key, data)
		}
	}
}

func TestParseQuality(t *testing.T) {
	if q, err := domain.ParseQuality(""); err != nil || q != domain.QualityHigh {
		t.Fatalf("expected high default, got %q %v", q, err)
	}
	if q, err := domain.ParseQuality("Standard"); err != nil || q != domain.QualityStandard {
		t.Fatalf("expected standard, got %q %v", q, err)
	}
	if _, err := domain.ParseQuality("ultra"); err == nil {
		t.Fatal("expected error for unknown quality")
	}
}

func TestStatisticsLabels(t *testing.T) {
	stats := domain.Statistics{ObjectsDetected: 127, AccuracyScore: 94.2, ProcessingFrames: 3240, ProcessingSpeed: 1.8}
	if stats.AccuracyLabel() != "94.2%" {
		t.Fatalf("unexpected accuracy label %q", stats.AccuracyLabel())
	}
	if stats.SpeedLabel() != "1.8x" {
		t.Fatalf("unexpected speed label %q", stats.SpeedLabel())
	}
	if got := domain.DownloadFilename("job_1_abc"); got != "processed_video_job_1_abc.mp4" {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := domain.FormatClock(65 * time.Second); got != "1:05" {
		t.Fatalf("FormatClock = %q", got)
	}
	if got := domain.FormatClock(-time.Second); got != "0:00" {
		t.Fatalf("FormatClock negative = %q", got)
	}
	if got := domain.FormatFileSize(50 * 1024 * 1024); got != "50 MiB" {
		t.Fatalf("FormatFileSize = %q", got)
	}
	if got := domain.FormatFileSize(0); got != "0 B" {
		t.Fatalf("FormatFileSize zero = %q", got)
	}
	if got := domain.TypeFromName("Clip.MKV"); got != "video/mkv" {
		t.Fatalf("TypeFromName = %q", got)
	}
}
