package progress

// StepStatus is the display state of one processing step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepActive    StepStatus = "active"
	StepCompleted StepStatus = "completed"
)

// Step is one row of the processing checklist.
type Step struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Threshold float64    `json:"threshold"`
	Status    StepStatus `json:"status"`
}

// stepCompletionSpan is how far past its threshold progress must be for a
// step to count as done.
const stepCompletionSpan = 20

var stepDefinitions = []Step{
	{ID: "upload", Label: "Uploading files", Threshold: 0},
	{ID: "analysis", Label: "Analyzing video", Threshold: 25},
	{ID: "processing", Label: "Detecting objects", Threshold: 60},
	{ID: "finalizing", Label: "Finalizing results", Threshold: 90},
}

// StepsAt returns the checklist for the given progress percentage.
func StepsAt(progress float64) []Step {
	steps := make([]Step, len(stepDefinitions))
	for i, def := range stepDefinitions {
		step := def
		switch {
		case progress > def.Threshold+stepCompletionSpan:
			step.Status = StepCompleted
		case progress >= def.Threshold:
			step.Status = StepActive
		default:
			step.Status = StepPending
		}
		steps[i] = step
	}
	return steps
}

// CompletedSteps returns every step marked completed.
func CompletedSteps() []Step {
	steps := StepsAt(0)
	for i := range steps {
		steps[i].Status = StepCompleted
	}
	return steps
}

// currentStep names the furthest step that has started.
func currentStep(progress float64) string {
	name := stepDefinitions[0].ID
	for _, def := range stepDefinitions {
		if progress >= def.Threshold {
			name = def.ID
		}
	}
	return name
}
