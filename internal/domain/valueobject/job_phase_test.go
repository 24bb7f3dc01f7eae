package valueobject

import (
	"testing"

	domainerrors "catalogboost/internal/domain/errors/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobPhase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    JobPhase
		wantErr bool
	}{
		{name: "valid draft phase", input: "draft", want: PhaseDraft},
		{name: "valid processing phase", input: "processing", want: PhaseProcessing},
		{name: "valid cancelled phase", input: "cancelled", want: PhaseCancelled},
		{name: "invalid phase", input: "exploded", wantErr: true},
		{name: "empty phase", input: "", wantErr: true},
		{name: "case sensitive", input: "Draft", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NewJobPhase(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJobPhase_Apply_LegalTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		phase JobPhase
		event TransitionEvent
		want  JobPhase
	}{
		{name: "draft accepts create_job", phase: PhaseDraft, event: EventCreateJob, want: PhasePreviewPending},
		{name: "preview_pending completes", phase: PhasePreviewPending, event: EventPreviewStreamDone, want: PhasePreviewReady},
		{name: "preview_ready refines back", phase: PhasePreviewReady, event: EventRefine, want: PhasePreviewPending},
		{name: "preview_ready approves", phase: PhasePreviewReady, event: EventApprove, want: PhaseApproved},
		{name: "approved starts processing", phase: PhaseApproved, event: EventStartProcessing, want: PhaseProcessing},
		{name: "processing pauses", phase: PhaseProcessing, event: EventPause, want: PhasePaused},
		{name: "paused resumes", phase: PhasePaused, event: EventResume, want: PhaseProcessing},
		{name: "processing completes", phase: PhaseProcessing, event: EventAllChunksDone, want: PhaseCompleted},
		{name: "preview_pending cancels", phase: PhasePreviewPending, event: EventCancel, want: PhaseCancelled},
		{name: "preview_ready cancels", phase: PhasePreviewReady, event: EventCancel, want: PhaseCancelled},
		{name: "processing cancels", phase: PhaseProcessing, event: EventCancel, want: PhaseCancelled},
		{name: "paused cancels", phase: PhasePaused, event: EventCancel, want: PhaseCancelled},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.phase.Apply(tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJobPhase_Apply_IllegalTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		phase JobPhase
		event TransitionEvent
	}{
		{name: "draft cannot approve", phase: PhaseDraft, event: EventApprove},
		{name: "draft cannot cancel", phase: PhaseDraft, event: EventCancel},
		{name: "approved cannot cancel", phase: PhaseApproved, event: EventCancel},
		{name: "approved cannot refine", phase: PhaseApproved, event: EventRefine},
		{name: "preview_pending cannot approve", phase: PhasePreviewPending, event: EventApprove},
		{name: "preview_ready cannot double-approve via processing", phase: PhasePreviewReady, event: EventStartProcessing},
		{name: "processing cannot resume", phase: PhaseProcessing, event: EventResume},
		{name: "completed accepts nothing", phase: PhaseCompleted, event: EventStartProcessing},
		{name: "completed cannot cancel", phase: PhaseCompleted, event: EventCancel},
		{name: "cancelled accepts nothing", phase: PhaseCancelled, event: EventCreateJob},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tt.phase.Apply(tt.event)
			require.Error(t, err)

			var transition *domainerrors.InvalidTransition
			require.ErrorAs(t, err, &transition)
			assert.Equal(t, tt.phase.String(), transition.Phase)
			assert.Equal(t, string(tt.event), transition.Event)
			assert.False(t, tt.phase.CanApply(tt.event))
		})
	}
}

func TestJobPhase_IsTerminal(t *testing.T) {
	t.Parallel()

	terminal := map[JobPhase]bool{
		PhaseCompleted: true,
		PhaseCancelled: true,
	}

	for _, phase := range AllJobPhases() {
		assert.Equal(t, terminal[phase], phase.IsTerminal(), "phase %s", phase)
	}
}

func TestJobPhase_TerminalPhasesAcceptNoEvents(t *testing.T) {
	t.Parallel()

	events := []TransitionEvent{
		EventCreateJob, EventPreviewStreamDone, EventRefine, EventApprove,
		EventStartProcessing, EventPause, EventResume, EventAllChunksDone, EventCancel,
	}

	for _, phase := range []JobPhase{PhaseCompleted, PhaseCancelled} {
		for _, event := range events {
			assert.False(t, phase.CanApply(event), "phase %s should reject %s", phase, event)
		}
	}
}
