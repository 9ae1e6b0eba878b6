package options

import (
	"fmt"

	"minimill/internal/domain"
)

// Estimate is the predicted processing duration range for a selection.
type Estimate struct {
	Minutes int    `json:"minutes"`
	Low     int    `json:"low"`
	High    int    `json:"high"`
	Label   string `json:"label"`
}

// EstimateDuration computes ceil(fileCount * minutesPerFile * multiplier)
// and the displayed range [minutes, minutes+2]. Arithmetic is done in tenths
// so the ceiling never trips over floating point error.
func EstimateDuration(fileCount int, mode domain.DetectionMode, minutesPerFile int) Estimate {
	if fileCount < 0 {
		fileCount = 0
	}
	tenths := fileCount * minutesPerFile * mode.MultiplierTenths()
	minutes := (tenths + 9) / 10
	return Estimate{
		Minutes: minutes,
		Low:     minutes,
		High:    minutes + 2,
		Label:   fmt.Sprintf("%d-%d minutes", minutes, minutes+2),
	}
}
