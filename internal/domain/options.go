package domain

import (
	"fmt"
	"strings"
)

// DetectionMode selects the precision tier of a processing run.
type DetectionMode string

const (
	Mode4mm  DetectionMode = "4mm"
	Mode6mm  DetectionMode = "6mm"
	Mode8mm  DetectionMode = "8mm"
	Mode10mm DetectionMode = "10mm"
)

// DetectionModes lists every mode from most to least precise.
var DetectionModes = []DetectionMode{Mode4mm, Mode6mm, Mode8mm, Mode10mm}

type modeInfo struct {
	// tenths of the per-file duration multiplier
	multiplierTenths int
	description      string
}

// Finer modes take longer: 4mm is the most precise and the slowest.
var modeTable = map[DetectionMode]modeInfo{
	Mode4mm:  {multiplierTenths: 15, description: "Most precise, longest processing"},
	Mode6mm:  {multiplierTenths: 10, description: "Standard precision"},
	Mode8mm:  {multiplierTenths: 8, description: "Less precise, faster processing"},
	Mode10mm: {multiplierTenths: 6, description: "Least precise, fastest processing"},
}

// ParseDetectionMode validates a user supplied mode.
func ParseDetectionMode(value string) (DetectionMode, error) {
	mode := DetectionMode(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := modeTable[mode]; !ok {
		return "", fmt.Errorf("detection mode must be one of 4mm, 6mm, 8mm, 10mm (got %q)", value)
	}
	return mode, nil
}

// Valid reports whether m is one of the four known modes.
func (m DetectionMode) Valid() bool {
	_, ok := modeTable[m]
	return ok
}

// Multiplier returns the duration multiplier for m, or 0 for unknown modes.
func (m DetectionMode) Multiplier() float64 {
	return float64(modeTable[m].multiplierTenths) / 10
}

// MultiplierTenths returns the multiplier scaled by ten so estimates can be
// computed without floating point rounding.
func (m DetectionMode) MultiplierTenths() int {
	return modeTable[m].multiplierTenths
}

// Description returns a short human description of m.
func (m DetectionMode) Description() string {
	return modeTable[m].description
}

func (m DetectionMode) String() string { return string(m) }

// ProcessingOptions is the user's configuration for the next run.
type ProcessingOptions struct {
	DetectionMode     DetectionMode `json:"detectionMode"`
	HighQuality       bool          `json:"highQuality"`
	EmailNotification bool          `json:"emailNotification"`
}

// DefaultOptions returns {6mm, high quality, no email}.
func DefaultOptions() ProcessingOptions {
	return ProcessingOptions{
		DetectionMode:     Mode6mm,
		HighQuality:       true,
		EmailNotification: false,
	}
}

// Validate checks the detection mode.
func (o ProcessingOptions) Validate() error {
	if !o.DetectionMode.Valid() {
		return fmt.Errorf("detection mode must be one of 4mm, 6mm, 8mm, 10mm (got %q)", o.DetectionMode)
	}
	return nil
}

// QualityLabel renders the high quality flag for display.
func (o ProcessingOptions) QualityLabel() string {
	if o.HighQuality {
		return "High Quality"
	}
	return "Standard"
}

// OptionsPatch is a partial options update; nil fields are left unchanged.
type OptionsPatch struct {
	DetectionMode     *string `json:"detectionMode,omitempty"`
	HighQuality       *bool   `json:"highQuality,omitempty"`
	EmailNotification *bool   `json:"emailNotification,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p OptionsPatch) Empty() bool {
	return p.DetectionMode == nil && p.HighQuality == nil && p.EmailNotification == nil
}

// Apply returns base with the patch applied. The mode is validated.
func (p OptionsPatch) Apply(base ProcessingOptions) (ProcessingOptions, error) {
	next := base
	if p.DetectionMode != nil {
		mode, err := ParseDetectionMode(*p.DetectionMode)
		if err != nil {
			return base, err
		}
		next.DetectionMode = mode
	}
	if p.HighQuality != nil {
		next.HighQuality = *p.HighQuality
	}
	if p.EmailNotification != nil {
		next.EmailNotification = *p.EmailNotification
	}
	return next, nil
}
