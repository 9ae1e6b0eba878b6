package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Statistics summarizes one processed job.
type Statistics struct {
	ObjectsDetected  int     `json:"objectsDetected"`
	AccuracyScore    float64 `json:"accuracyScore"`
	ProcessingFrames int     `json:"processingFrames"`
	ProcessingSpeed  float64 `json:"processingSpeed"`
}

// AccuracyLabel renders the accuracy as "94.2%".
func (s Statistics) AccuracyLabel() string {
	return strconv.FormatFloat(s.AccuracyScore, 'f', -1, 64) + "%"
}

// SpeedLabel renders the speed as "1.8x".
func (s Statistics) SpeedLabel() string {
	return strconv.FormatFloat(s.ProcessingSpeed, 'f', -1, 64) + "x"
}

// Results is the payload a finished job exposes.
type Results struct {
	VideoURL   string     `json:"videoUrl"`
	Statistics Statistics `json:"statistics"`
}

// Quality selects a download variant.
type Quality string

const (
	QualityHigh     Quality = "high"
	QualityStandard Quality = "standard"
)

// ParseQuality validates a download quality. Empty input selects high.
func ParseQuality(value string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(value))); q {
	case "":
		return QualityHigh, nil
	case QualityHigh, QualityStandard:
		return q, nil
	default:
		return "", fmt.Errorf("quality must be high or standard (got %q)", value)
	}
}

// DownloadFilename returns the name a processed video is saved under.
func DownloadFilename(jobID string) string {
	return "processed_video_" + jobID + ".mp4"
}

// ShareInfo is what a share action publishes.
type ShareInfo struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}
