package valueobject

import (
	domainerrors "catalogboost/internal/domain/errors/domain"
	"fmt"
)

// JobPhase represents the current lifecycle phase of a batch enhancement job.
// The phase is the single source of truth for which operations are legal.
type JobPhase string

// Job phase constants.
const (
	PhaseDraft          JobPhase = "draft"
	PhasePreviewPending JobPhase = "preview_pending"
	PhasePreviewReady   JobPhase = "preview_ready"
	PhaseApproved       JobPhase = "approved"
	PhaseProcessing     JobPhase = "processing"
	PhasePaused         JobPhase = "paused"
	PhaseCompleted      JobPhase = "completed"
	PhaseCancelled      JobPhase = "cancelled"
)

// TransitionEvent represents a lifecycle event that moves a job between phases.
type TransitionEvent string

// Transition event constants.
const (
	EventCreateJob         TransitionEvent = "create_job"
	EventPreviewStreamDone TransitionEvent = "preview_stream_done"
	EventRefine            TransitionEvent = "refine"
	EventApprove           TransitionEvent = "approve"
	EventStartProcessing   TransitionEvent = "start_processing"
	EventPause             TransitionEvent = "pause"
	EventResume            TransitionEvent = "resume"
	EventAllChunksDone     TransitionEvent = "all_chunks_done"
	EventCancel            TransitionEvent = "cancel"
)

// validJobPhases contains all valid job phases.
var validJobPhases = map[JobPhase]bool{
	PhaseDraft:          true,
	PhasePreviewPending: true,
	PhasePreviewReady:   true,
	PhaseApproved:       true,
	PhaseProcessing:     true,
	PhasePaused:         true,
	PhaseCompleted:      true,
	PhaseCancelled:      true,
}

// phaseTransitions maps each phase to the events it accepts and the
// resulting phase. Any (phase, event) pair not present here is illegal.
var phaseTransitions = map[JobPhase]map[TransitionEvent]JobPhase{
	PhaseDraft: {
		EventCreateJob: PhasePreviewPending,
	},
	PhasePreviewPending: {
		EventPreviewStreamDone: PhasePreviewReady,
		EventCancel:            PhaseCancelled,
	},
	PhasePreviewReady: {
		EventRefine:  PhasePreviewPending,
		EventApprove: PhaseApproved,
		EventCancel:  PhaseCancelled,
	},
	PhaseApproved: {
		EventStartProcessing: PhaseProcessing,
	},
	PhaseProcessing: {
		EventPause:         PhasePaused,
		EventAllChunksDone: PhaseCompleted,
		EventCancel:        PhaseCancelled,
	},
	PhasePaused: {
		EventResume: PhaseProcessing,
		EventCancel: PhaseCancelled,
	},
	// Terminal phases accept no events.
	PhaseCompleted: {},
	PhaseCancelled: {},
}

// NewJobPhase creates a new JobPhase with validation.
func NewJobPhase(phase string) (JobPhase, error) {
	p := JobPhase(phase)
	if !validJobPhases[p] {
		return "", fmt.Errorf("invalid job phase: %s", phase)
	}
	return p, nil
}

// String returns the string representation of the phase.
func (p JobPhase) String() string {
	return string(p)
}

// IsTerminal returns true if this phase represents a final state.
func (p JobPhase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled
}

// Apply returns the phase reached by applying the given event to the
// current phase. It returns an InvalidTransition error when the event is
// not legal for the current phase; the caller must not retry the same
// event without first observing a phase change.
func (p JobPhase) Apply(event TransitionEvent) (JobPhase, error) {
	accepted, exists := phaseTransitions[p]
	if !exists {
		return "", domainerrors.NewInvalidTransition(p.String(), string(event))
	}

	next, ok := accepted[event]
	if !ok {
		return "", domainerrors.NewInvalidTransition(p.String(), string(event))
	}
	return next, nil
}

// CanApply returns true if the event is legal for the current phase.
func (p JobPhase) CanApply(event TransitionEvent) bool {
	_, err := p.Apply(event)
	return err == nil
}

// AllJobPhases returns all valid job phases.
func AllJobPhases() []JobPhase {
	phases := make([]JobPhase, 0, len(validJobPhases))
	for phase := range validJobPhases {
		phases = append(phases, phase)
	}
	return phases
}
