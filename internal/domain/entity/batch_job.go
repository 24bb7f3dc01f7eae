package entity

import (
	domainerrors "catalogboost/internal/domain/errors/domain"
	"catalogboost/internal/domain/valueobject"
	"errors"
	"fmt"
	"time"
)

// Attachment represents one uploaded reference file attached to a job.
type Attachment struct {
	ID       string
	Filename string
	MIMEType string
}

// Counters tracks per-run processing progress. All values are monotonic
// non-decreasing within one processing run and reset only when a new run
// starts.
type Counters struct {
	Processed  int
	Succeeded  int
	Failed     int
	TokensUsed int
}

// BatchJob is the aggregate root for one bulk enhancement batch job. It
// owns the canonical phase and every piece of job state the orchestrator
// mutates; rendering and persistence are projections of this entity.
type BatchJob struct {
	id                string
	phase             valueobject.JobPhase
	productIDs        []int64
	enhancements      []valueobject.EnhancementType
	userDirection     string
	attachments       []Attachment
	previewResults    []ItemResult
	processingResults []ItemResult
	counters          Counters
	createdAt         time.Time
	updatedAt         time.Time
}

// NewBatchJob creates a new BatchJob in the Draft phase from the selected
// product set and requested enhancements. Product order is preserved;
// duplicate product ids are rejected.
func NewBatchJob(
	productIDs []int64,
	enhancements []valueobject.EnhancementType,
	userDirection string,
) (*BatchJob, error) {
	if len(productIDs) == 0 {
		return nil, errors.New("at least one product is required")
	}
	if len(enhancements) == 0 {
		return nil, errors.New("at least one enhancement type is required")
	}

	seen := make(map[int64]bool, len(productIDs))
	ids := make([]int64, 0, len(productIDs))
	for _, id := range productIDs {
		if id <= 0 {
			return nil, fmt.Errorf("invalid product ID: %d", id)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate product ID: %d", id)
		}
		seen[id] = true
		ids = append(ids, id)
	}

	now := time.Now()
	return &BatchJob{
		phase:         valueobject.PhaseDraft,
		productIDs:    ids,
		enhancements:  append([]valueobject.EnhancementType(nil), enhancements...),
		userDirection: userDirection,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ID returns the server-assigned job identifier. Empty until creation
// succeeds.
func (j *BatchJob) ID() string {
	return j.id
}

// Phase returns the current lifecycle phase.
func (j *BatchJob) Phase() valueobject.JobPhase {
	return j.phase
}

// ProductIDs returns the ordered product selection.
func (j *BatchJob) ProductIDs() []int64 {
	return append([]int64(nil), j.productIDs...)
}

// Enhancements returns the requested enhancement types.
func (j *BatchJob) Enhancements() []valueobject.EnhancementType {
	return append([]valueobject.EnhancementType(nil), j.enhancements...)
}

// UserDirection returns the free-text steering instructions.
func (j *BatchJob) UserDirection() string {
	return j.userDirection
}

// Attachments returns the uploaded reference files in upload order.
func (j *BatchJob) Attachments() []Attachment {
	return append([]Attachment(nil), j.attachments...)
}

// PreviewResults returns the per-product preview suggestions in arrival
// order.
func (j *BatchJob) PreviewResults() []ItemResult {
	return append([]ItemResult(nil), j.previewResults...)
}

// ProcessingResults returns the per-product processing outcomes recorded
// so far in the current run.
func (j *BatchJob) ProcessingResults() []ItemResult {
	return append([]ItemResult(nil), j.processingResults...)
}

// Counters returns the current run's progress counters.
func (j *BatchJob) Counters() Counters {
	return j.counters
}

// CreatedAt returns the creation timestamp.
func (j *BatchJob) CreatedAt() time.Time {
	return j.createdAt
}

// UpdatedAt returns the last mutation timestamp.
func (j *BatchJob) UpdatedAt() time.Time {
	return j.updatedAt
}

// applyTransition applies a lifecycle event to the job phase.
func (j *BatchJob) applyTransition(event valueobject.TransitionEvent) error {
	next, err := j.phase.Apply(event)
	if err != nil {
		return err
	}
	j.phase = next
	j.updatedAt = time.Now()
	return nil
}

// MarkCreated records the server-assigned job id and moves the job from
// Draft to PreviewPending.
func (j *BatchJob) MarkCreated(id string) error {
	if id == "" {
		return errors.New("job ID cannot be empty")
	}
	if err := j.applyTransition(valueobject.EventCreateJob); err != nil {
		return err
	}
	j.id = id
	return nil
}

// MarkPreviewDone moves the job to PreviewReady after the preview stream
// finished normally.
func (j *BatchJob) MarkPreviewDone() error {
	return j.applyTransition(valueobject.EventPreviewStreamDone)
}

// BeginRefine re-enters PreviewPending for a refine pass. The previous
// preview results are replaced wholesale by the rerun.
func (j *BatchJob) BeginRefine() error {
	if err := j.applyTransition(valueobject.EventRefine); err != nil {
		return err
	}
	j.previewResults = nil
	return nil
}

// Approve freezes the selection and enhancement configuration and moves
// the job to Approved.
func (j *BatchJob) Approve() error {
	return j.applyTransition(valueobject.EventApprove)
}

// StartProcessing begins a new processing run: results and counters from
// any previous run are discarded.
func (j *BatchJob) StartProcessing() error {
	if err := j.applyTransition(valueobject.EventStartProcessing); err != nil {
		return err
	}
	j.processingResults = nil
	j.counters = Counters{}
	return nil
}

// Pause moves the job from Processing to Paused.
func (j *BatchJob) Pause() error {
	return j.applyTransition(valueobject.EventPause)
}

// Resume moves the job from Paused back to Processing.
func (j *BatchJob) Resume() error {
	return j.applyTransition(valueobject.EventResume)
}

// Complete moves the job to Completed after the last chunk.
func (j *BatchJob) Complete() error {
	return j.applyTransition(valueobject.EventAllChunksDone)
}

// Cancel moves the job to Cancelled. Results already recorded stay
// visible.
func (j *BatchJob) Cancel() error {
	return j.applyTransition(valueobject.EventCancel)
}

// BeginRetry re-enters Processing from Completed to re-drive only the
// failed subset of the finished run. This is the single sanctioned
// re-entry into Processing outside the transition table; it requires at
// least one failed item and keeps the run's results and counters intact.
func (j *BatchJob) BeginRetry() error {
	if j.phase != valueobject.PhaseCompleted {
		return domainerrors.NewInvalidTransition(j.phase.String(), "retry_failed")
	}
	if j.counters.Failed == 0 {
		return errors.New("no failed items to retry")
	}
	j.phase = valueobject.PhaseProcessing
	j.updatedAt = time.Now()
	return nil
}

// SetUserDirection updates the steering instructions. Mutable until the
// job is approved.
func (j *BatchJob) SetUserDirection(direction string) error {
	if !j.beforeApproval() {
		return domainerrors.ErrSelectionFrozen
	}
	j.userDirection = direction
	j.updatedAt = time.Now()
	return nil
}

// AddAttachment appends an uploaded reference file. Attachments are
// append-only and can only be added before approval.
func (j *BatchJob) AddAttachment(att Attachment) error {
	if !j.beforeApproval() {
		return domainerrors.ErrSelectionFrozen
	}
	if att.ID == "" {
		return errors.New("attachment ID cannot be empty")
	}
	j.attachments = append(j.attachments, att)
	j.updatedAt = time.Now()
	return nil
}

// RemoveAttachment removes a previously uploaded attachment by id. Only
// legal before approval.
func (j *BatchJob) RemoveAttachment(id string) error {
	if !j.beforeApproval() {
		return domainerrors.ErrSelectionFrozen
	}
	for i, att := range j.attachments {
		if att.ID == id {
			j.attachments = append(j.attachments[:i], j.attachments[i+1:]...)
			j.updatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("attachment not found: %s", id)
}

// AttachmentIDs returns the server-assigned ids of all attachments.
func (j *BatchJob) AttachmentIDs() []string {
	ids := make([]string, 0, len(j.attachments))
	for _, att := range j.attachments {
		ids = append(ids, att.ID)
	}
	return ids
}

// AppendPreviewResult records one product's preview suggestions as they
// arrive on the stream. Only legal while the preview stream is running.
func (j *BatchJob) AppendPreviewResult(result ItemResult) error {
	if j.phase != valueobject.PhasePreviewPending {
		return domainerrors.NewInvalidTransition(j.phase.String(), "append_preview_result")
	}
	if err := result.Validate(); err != nil {
		return err
	}
	j.previewResults = append(j.previewResults, result)
	j.updatedAt = time.Now()
	return nil
}

// ResetPreviewResults discards partial results left by an aborted
// preview stream so a retried preview starts clean. Only legal while
// preview is pending.
func (j *BatchJob) ResetPreviewResults() error {
	if j.phase != valueobject.PhasePreviewPending {
		return domainerrors.NewInvalidTransition(j.phase.String(), "reset_preview_results")
	}
	j.previewResults = nil
	return nil
}

// RecordProcessingResults appends one chunk's outcomes to the current
// run, updating counters. A product id may appear at most once per run.
func (j *BatchJob) RecordProcessingResults(results []ItemResult) error {
	if j.phase != valueobject.PhaseProcessing {
		return domainerrors.NewInvalidTransition(j.phase.String(), "record_processing_results")
	}

	recorded := make(map[int64]bool, len(j.processingResults))
	for _, existing := range j.processingResults {
		recorded[existing.ProductID()] = true
	}
	for _, result := range results {
		if err := result.Validate(); err != nil {
			return err
		}
		if recorded[result.ProductID()] {
			return fmt.Errorf("duplicate processing result for product %d in the same run", result.ProductID())
		}
		recorded[result.ProductID()] = true
	}

	for _, result := range results {
		j.processingResults = append(j.processingResults, result)
		j.counters.Processed++
		if result.IsFailed() {
			j.counters.Failed++
		} else {
			j.counters.Succeeded++
		}
	}
	j.updatedAt = time.Now()
	return nil
}

// ReplaceFailedResults merges a retry pass back into the run: the old
// failed entries for the retried product ids are removed and the new
// outcomes appended. Each retried id must match a currently failed
// entry, so successes from the original run can never gain a second
// entry. Counters are recomputed from the resulting list so repeated
// retry passes never double count.
func (j *BatchJob) ReplaceFailedResults(retried []ItemResult) error {
	if j.phase != valueobject.PhaseProcessing {
		return domainerrors.NewInvalidTransition(j.phase.String(), "replace_failed_results")
	}

	currentFailed := make(map[int64]bool, len(j.processingResults))
	for _, existing := range j.processingResults {
		if existing.IsFailed() {
			currentFailed[existing.ProductID()] = true
		}
	}

	retriedIDs := make(map[int64]bool, len(retried))
	for _, result := range retried {
		if err := result.Validate(); err != nil {
			return err
		}
		if retriedIDs[result.ProductID()] {
			return fmt.Errorf("duplicate retry result for product %d", result.ProductID())
		}
		if !currentFailed[result.ProductID()] {
			return fmt.Errorf("retry result for product %d does not match a failed item", result.ProductID())
		}
		retriedIDs[result.ProductID()] = true
	}

	merged := make([]ItemResult, 0, len(j.processingResults))
	for _, existing := range j.processingResults {
		if existing.IsFailed() && retriedIDs[existing.ProductID()] {
			continue
		}
		merged = append(merged, existing)
	}
	merged = append(merged, retried...)

	j.processingResults = merged
	j.recomputeCounters()
	j.updatedAt = time.Now()
	return nil
}

// recomputeCounters rebuilds processed/succeeded/failed from the result
// list. Token usage is server-metered and left untouched.
func (j *BatchJob) recomputeCounters() {
	tokens := j.counters.TokensUsed
	j.counters = Counters{TokensUsed: tokens}
	for _, result := range j.processingResults {
		j.counters.Processed++
		if result.IsFailed() {
			j.counters.Failed++
		} else {
			j.counters.Succeeded++
		}
	}
}

// AddTokensUsed accumulates server-reported token consumption for the
// current run.
func (j *BatchJob) AddTokensUsed(tokens int) {
	if tokens <= 0 {
		return
	}
	j.counters.TokensUsed += tokens
	j.updatedAt = time.Now()
}

// FailedResults returns the subset of processing results with failed
// status, in recorded order.
func (j *BatchJob) FailedResults() []ItemResult {
	failed := make([]ItemResult, 0)
	for _, result := range j.processingResults {
		if result.IsFailed() {
			failed = append(failed, result)
		}
	}
	return failed
}

// Reselect abandons the server-side job and returns to Draft so the
// product selection can change. Preview results and attachments are
// discarded because they can no longer be guaranteed consistent with the
// stale server job; the job is re-created on the next advance.
func (j *BatchJob) Reselect() error {
	if j.phase != valueobject.PhasePreviewReady && j.phase != valueobject.PhaseApproved {
		return domainerrors.NewInvalidTransition(j.phase.String(), "reselect")
	}
	j.id = ""
	j.phase = valueobject.PhaseDraft
	j.previewResults = nil
	j.attachments = nil
	j.updatedAt = time.Now()
	return nil
}

// beforeApproval returns true while selection-adjacent state is still
// mutable.
func (j *BatchJob) beforeApproval() bool {
	switch j.phase {
	case valueobject.PhaseDraft, valueobject.PhasePreviewPending, valueobject.PhasePreviewReady:
		return true
	default:
		return false
	}
}

// Validate ensures the batch job entity is in a valid state.
func (j *BatchJob) Validate() error {
	if _, err := valueobject.NewJobPhase(j.phase.String()); err != nil {
		return err
	}
	if len(j.productIDs) == 0 {
		return errors.New("batch job must have at least one product")
	}
	if len(j.enhancements) == 0 {
		return errors.New("batch job must have at least one enhancement type")
	}
	if j.phase != valueobject.PhaseDraft && j.id == "" {
		return domainerrors.ErrJobNotCreated
	}
	if j.counters.Processed != j.counters.Succeeded+j.counters.Failed {
		return errors.New("counters invariant violated: processed must equal succeeded plus failed")
	}
	seen := make(map[int64]bool, len(j.processingResults))
	for _, result := range j.processingResults {
		if seen[result.ProductID()] {
			return fmt.Errorf("duplicate processing result for product %d", result.ProductID())
		}
		seen[result.ProductID()] = true
	}
	return nil
}
