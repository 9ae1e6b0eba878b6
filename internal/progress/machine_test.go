package progress

import "testing"

func TestMachineFirstTerminalTriggerWins(t *testing.T) {
	m := NewMachine(StateProcessing)

	first := m.Apply(TriggerProgressComplete)
	if !first.Changed || first.To != StateCompleted {
		t.Fatalf("expected completion, got %+v", first)
	}
	for _, trigger := range []Trigger{TriggerPollCompleted, TriggerPollFailed, TriggerCancel} {
		if tr := m.Apply(trigger); tr.Changed || tr.To != StateCompleted {
			t.Fatalf("trigger %s after completion must be a no-op, got %+v", trigger, tr)
		}
	}
}

func TestMachineCancelBlocksLateCompletion(t *testing.T) {
	m := NewMachine("")
	if m.State() != StateProcessing {
		t.Fatalf("expected processing by default, got %s", m.State())
	}
	if tr := m.Apply(TriggerCancel); !tr.Changed || tr.To != StateCancelled {
		t.Fatalf("expected cancel, got %+v", tr)
	}
	if tr := m.Apply(TriggerPollCompleted); tr.Changed {
		t.Fatalf("late poll answer must be ignored, got %+v", tr)
	}
}

func TestMachineUnknownTriggerIgnored(t *testing.T) {
	m := NewMachine(StateProcessing)
	if tr := m.Apply(Trigger("pause")); tr.Changed {
		t.Fatalf("unexpected transition %+v", tr)
	}
}

func TestStepsAtThresholds(t *testing.T) {
	tests := []struct {
		progress float64
		want     []StepStatus
	}{
		{0, []StepStatus{StepActive, StepPending, StepPending, StepPending}},
		{25, []StepStatus{StepCompleted, StepActive, StepPending, StepPending}},
		{45, []StepStatus{StepCompleted, StepActive, StepPending, StepPending}},
		{46, []StepStatus{StepCompleted, StepCompleted, StepPending, StepPending}},
		{95, []StepStatus{StepCompleted, StepCompleted, StepCompleted, StepActive}},
	}
	for _, tc := range tests {
		steps := StepsAt(tc.progress)
		for i, step := range steps {
			if step.Status != tc.want[i] {
				t.Fatalf("progress %.0f step %s: got %s want %s", tc.progress, step.ID, step.Status, tc.want[i])
			}
		}
	}
	for _, step := range CompletedSteps() {
		if step.Status != StepCompleted {
			t.Fatalf("expected completed step, got %+v", step)
		}
	}
}

func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(3)
	bus.Publish(Event{Type: EventStatus})
	bus.Publish(Event{Type: EventProgress, Progress: 10})
	bus.Publish(Event{Type: EventProgress, Progress: 20})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", events)
	}
	if bus.LastSeq() != 3 {
		t.Fatalf("LastSeq = %d", bus.LastSeq())
	}
}

func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(Event{Progress: 1})
	bus.Publish(Event{Progress: 2})
	bus.Publish(Event{Progress: 3})

	events := bus.Since(0)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Progress != 2 || events[1].Progress != 3 {
		t.Fatalf("unexpected events: %+v", events)
	}
}
