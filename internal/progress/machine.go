package progress

import "minimill/internal/domain"

// State is the tracker-side lifecycle of a job. It extends the persisted
// JobStatus with cancelled, which is stored as a cancelledAt stamp on a
// processing job rather than as a status.
type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether s admits no further transitions.
func (s State) Terminal() bool {
	return s != StateProcessing
}

// StateFromStatus maps a persisted job status onto a tracker state.
func StateFromStatus(status domain.JobStatus) State {
	switch status {
	case domain.JobCompleted:
		return StateCompleted
	case domain.JobFailed:
		return StateFailed
	default:
		return StateProcessing
	}
}

// StateFromJob is StateFromStatus that also honours a recorded cancellation.
func StateFromJob(job domain.Job) State {
	if job.Cancelled() {
		return StateCancelled
	}
	return StateFromStatus(job.Status)
}

// Trigger is an input to the state machine.
type Trigger string

const (
	TriggerProgressComplete Trigger = "progress_complete"
	TriggerPollCompleted    Trigger = "poll_completed"
	TriggerPollFailed       Trigger = "poll_failed"
	TriggerCancel           Trigger = "cancel"
)

// Transition describes the outcome of one Apply call.
type Transition struct {
	From    State
	To      State
	Changed bool
}

// Machine holds the job state. It is not safe for concurrent use; the
// tracker guards it with its own mutex.
type Machine struct {
	state State
}

// NewMachine starts a machine in the given state.
func NewMachine(initial State) *Machine {
	if initial == "" {
		initial = StateProcessing
	}
	return &Machine{state: initial}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Apply feeds one trigger into the machine. Only the first terminal trigger
// changes the state; every later trigger is a no-op.
func (m *Machine) Apply(trigger Trigger) Transition {
	from := m.state
	if from.Terminal() {
		return Transition{From: from, To: from}
	}
	var to State
	switch trigger {
	case TriggerProgressComplete, TriggerPollCompleted:
		to = StateCompleted
	case TriggerPollFailed:
		to = StateFailed
	case TriggerCancel:
		to = StateCancelled
	default:
		return Transition{From: from, To: from}
	}
	m.state = to
	return Transition{From: from, To: to, Changed: true}
}
