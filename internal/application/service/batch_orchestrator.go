package service

import (
	"catalogboost/internal/application/common/slogger"
	"catalogboost/internal/application/dto"
	"catalogboost/internal/client/sse"
	"catalogboost/internal/domain/entity"
	domainerrors "catalogboost/internal/domain/errors/domain"
	"catalogboost/internal/domain/valueobject"
	"catalogboost/internal/port/outbound"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentUploads bounds parallel attachment uploads. Uploads happen
// before approval, outside the single-owner job operation discipline.
const maxConcurrentUploads = 3

// OrchestratorConfig holds the explicit configuration injected at
// construction. There is no ambient settings singleton: everything the
// orchestrator needs arrives here.
type OrchestratorConfig struct {
	// BatchSize is the fixed chunk size for processing runs.
	BatchSize int

	// StoreContext is an optional merchant/store description forwarded on
	// job creation to steer the generated content.
	StoreContext string
}

// Validate checks the orchestrator configuration.
func (c OrchestratorConfig) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	return nil
}

// StreamCallbacks receives progressive rendering notifications while a
// preview or refine stream is consumed. All fields are optional.
type StreamCallbacks struct {
	// OnStatus receives start/processing status messages.
	OnStatus func(message string)

	// OnResult receives each product's suggestions as they arrive, in
	// arrival order.
	OnResult func(result dto.ItemResultDTO)
}

// BatchOrchestrator owns one batch job end to end: creation, preview and
// refine streaming, approval, chunked processing, retry, cancellation,
// and the balance ledger. Mutations go through the job entity's phase
// guards, and at most one phase-owning operation runs at a time; pause
// and cancel are flags applied to a running operation, not operations of
// their own.
type BatchOrchestrator struct {
	api      outbound.EnhancementAPI
	products outbound.ProductSource
	config   OrchestratorConfig
	metrics  *EnhancementMetrics

	mu        sync.Mutex
	busyOp    string
	job       *entity.BatchJob
	ledger    *entity.BalanceLedger
	processor *ChunkProcessor
	retry     *RetryCoordinator
}

// NewBatchOrchestrator creates an orchestrator. The metrics argument may
// be nil when instrumentation is not wired.
func NewBatchOrchestrator(
	api outbound.EnhancementAPI,
	products outbound.ProductSource,
	config OrchestratorConfig,
	metrics *EnhancementMetrics,
) (*BatchOrchestrator, error) {
	if api == nil {
		return nil, errors.New("api cannot be nil")
	}
	if products == nil {
		return nil, errors.New("products cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	retry, err := NewRetryCoordinator(api, products, entity.NewBalanceLedger(), metrics)
	if err != nil {
		return nil, err
	}

	o := &BatchOrchestrator{
		api:      api,
		products: products,
		config:   config,
		metrics:  metrics,
		ledger:   retry.ledger,
		retry:    retry,
	}
	return o, nil
}

// Job returns the current batch job, or nil before NewJob. Rendering is
// a pure projection of this entity.
func (o *BatchOrchestrator) Job() *entity.BatchJob {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.job
}

// Ledger returns the balance ledger.
func (o *BatchOrchestrator) Ledger() *entity.BalanceLedger {
	return o.ledger
}

// acquire marks the orchestrator busy with an owning operation.
func (o *BatchOrchestrator) acquire(op string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busyOp != "" {
		return fmt.Errorf("%w: %s is running", domainerrors.ErrOperationInFlight, o.busyOp)
	}
	o.busyOp = op
	return nil
}

// release clears the owning-operation marker.
func (o *BatchOrchestrator) release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.busyOp = ""
}

// requireJob returns the current job or an error when none exists.
func (o *BatchOrchestrator) requireJob() (*entity.BatchJob, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.job == nil {
		return nil, domainerrors.ErrJobNotCreated
	}
	return o.job, nil
}

// NewJob starts a fresh draft job from the selected products and
// enhancement names, discarding any previous client-side job state.
func (o *BatchOrchestrator) NewJob(productIDs []int64, enhancements []string, userDirection string) error {
	if err := o.acquire("new_job"); err != nil {
		return err
	}
	defer o.release()

	types, err := valueobject.ParseEnhancementTypes(enhancements)
	if err != nil {
		return err
	}
	job, err := entity.NewBatchJob(productIDs, types, userDirection)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.job = job
	o.processor = nil
	o.mu.Unlock()
	return nil
}

// CreateJob registers the draft job with the remote service and moves it
// to PreviewPending.
func (o *BatchOrchestrator) CreateJob(ctx context.Context) error {
	if err := o.acquire("create_job"); err != nil {
		return err
	}
	defer o.release()

	job, err := o.requireJob()
	if err != nil {
		return err
	}
	if !job.Phase().CanApply(valueobject.EventCreateJob) {
		return domainerrors.NewInvalidTransition(job.Phase().String(), string(valueobject.EventCreateJob))
	}

	enhancements := make([]string, 0, len(job.Enhancements()))
	for _, e := range job.Enhancements() {
		enhancements = append(enhancements, e.String())
	}

	resp, err := o.api.CreateJob(ctx, dto.CreateJobRequest{
		JobType:       dto.JobTypeBulkEnhancement,
		ProductIDs:    job.ProductIDs(),
		Options:       dto.CreateJobOptions{Enhancements: enhancements},
		StoreContext:  o.config.StoreContext,
		UserDirection: job.UserDirection(),
	})
	if err != nil {
		return err
	}

	if err := job.MarkCreated(resp.Job.ID); err != nil {
		return err
	}
	slogger.Info(ctx, "Batch job created", slogger.Fields2(
		"job_id", resp.Job.ID,
		"products", len(job.ProductIDs()),
	))
	return nil
}

// Preview runs the preview stream, appending suggestions progressively.
// A stream error aborts only this operation and leaves the phase
// unchanged so preview can be retried without re-creating the job.
func (o *BatchOrchestrator) Preview(ctx context.Context, callbacks StreamCallbacks) error {
	if err := o.acquire("preview"); err != nil {
		return err
	}
	defer o.release()

	job, err := o.requireJob()
	if err != nil {
		return err
	}
	if job.Phase() != valueobject.PhasePreviewPending {
		return domainerrors.NewInvalidTransition(job.Phase().String(), "preview")
	}
	if err := job.ResetPreviewResults(); err != nil {
		return err
	}

	payloads, err := o.products.ResolvePayloads(ctx, job.ProductIDs())
	if err != nil {
		return fmt.Errorf("failed to resolve product payloads: %w", err)
	}

	stream, err := o.api.Preview(ctx, job.ID(), dto.PreviewRequest{Products: payloads})
	if err != nil {
		return err
	}
	return o.consumePreviewStream(ctx, job, stream, callbacks)
}

// Refine reruns preview with additional user feedback and the uploaded
// attachments. Prior preview results are replaced wholesale.
func (o *BatchOrchestrator) Refine(
	ctx context.Context,
	comments string,
	selectedOptions []string,
	callbacks StreamCallbacks,
) error {
	if err := o.acquire("refine"); err != nil {
		return err
	}
	defer o.release()

	job, err := o.requireJob()
	if err != nil {
		return err
	}
	if err := job.BeginRefine(); err != nil {
		return err
	}

	payloads, err := o.products.ResolvePayloads(ctx, job.ProductIDs())
	if err != nil {
		return fmt.Errorf("failed to resolve product payloads: %w", err)
	}

	stream, err := o.api.Refine(ctx, job.ID(), dto.RefineRequest{
		Products:           payloads,
		SelectedOptions:    selectedOptions,
		AdditionalComments: comments,
		AttachmentIDs:      job.AttachmentIDs(),
	})
	if err != nil {
		return err
	}
	return o.consumePreviewStream(ctx, job, stream, callbacks)
}

// consumePreviewStream drains one preview/refine stream into the job and
// flips the phase to PreviewReady on normal completion.
func (o *BatchOrchestrator) consumePreviewStream(
	ctx context.Context,
	job *entity.BatchJob,
	stream io.ReadCloser,
	callbacks StreamCallbacks,
) error {
	defer stream.Close()

	sink := &previewSink{
		job:       job,
		ledger:    o.ledger,
		metrics:   o.metrics,
		callbacks: callbacks,
	}
	if err := sse.Consume(ctx, stream, sink); err != nil {
		return err
	}
	return job.MarkPreviewDone()
}

// previewSink applies stream events to the job and ledger and forwards
// render notifications.
type previewSink struct {
	job       *entity.BatchJob
	ledger    *entity.BalanceLedger
	metrics   *EnhancementMetrics
	callbacks StreamCallbacks
}

// OnStart updates the progress indicator only.
func (s *previewSink) OnStart(ctx context.Context, event sse.StartEvent) {
	s.metrics.RecordStreamEvent(ctx, "start")
	if s.callbacks.OnStatus != nil {
		s.callbacks.OnStatus(event.Message)
	}
}

// OnProcessing updates the progress indicator only.
func (s *previewSink) OnProcessing(ctx context.Context, event sse.ProcessingEvent) {
	s.metrics.RecordStreamEvent(ctx, "processing")
	if s.callbacks.OnStatus != nil {
		s.callbacks.OnStatus(event.Message)
	}
}

// OnProductResult appends the arrived suggestions and renders them.
func (s *previewSink) OnProductResult(ctx context.Context, event sse.ProductResultEvent) error {
	s.metrics.RecordStreamEvent(ctx, "product_result")
	result, err := event.Result.ToEntity()
	if err != nil {
		return domainerrors.WrapStreamError("invalid product_result payload", err)
	}
	if err := s.job.AppendPreviewResult(result); err != nil {
		return err
	}
	if s.callbacks.OnResult != nil {
		s.callbacks.OnResult(event.Result)
	}
	return nil
}

// OnBalanceUpdate overwrites the ledger with the authoritative figure.
func (s *previewSink) OnBalanceUpdate(ctx context.Context, event sse.BalanceUpdateEvent) {
	s.metrics.RecordStreamEvent(ctx, "balance_update")
	if err := s.ledger.SetAuthoritative(event.NewBalance); err != nil {
		slogger.Warn(ctx, "Ignoring invalid server balance", slogger.Fields{
			"new_balance": event.NewBalance,
		})
	}
}

// Approve approves the previewed suggestions for processing.
func (o *BatchOrchestrator) Approve(ctx context.Context) error {
	if err := o.acquire("approve"); err != nil {
		return err
	}
	defer o.release()

	job, err := o.requireJob()
	if err != nil {
		return err
	}
	if !job.Phase().CanApply(valueobject.EventApprove) {
		return domainerrors.NewInvalidTransition(job.Phase().String(), string(valueobject.EventApprove))
	}

	if err := o.api.Approve(ctx, job.ID()); err != nil {
		return err
	}
	return job.Approve()
}

// StartProcessing drives the approved product set through chunked
// processing until completion, pause, or cancellation. The returned
// outcome distinguishes the three exits.
func (o *BatchOrchestrator) StartProcessing(ctx context.Context, progress ProgressFunc) (RunOutcome, error) {
	if err := o.acquire("process"); err != nil {
		return "", err
	}
	defer o.release()

	job, err := o.requireJob()
	if err != nil {
		return "", err
	}
	if err := job.StartProcessing(); err != nil {
		return "", err
	}

	processor, err := NewChunkProcessor(o.api, job, o.ledger, o.metrics, o.config.BatchSize)
	if err != nil {
		return "", err
	}
	o.mu.Lock()
	o.processor = processor
	o.mu.Unlock()

	return processor.Run(ctx, progress)
}

// Resume continues a paused run from the next unprocessed chunk. Chunks
// already recorded are never reissued.
func (o *BatchOrchestrator) Resume(ctx context.Context, progress ProgressFunc) (RunOutcome, error) {
	if err := o.acquire("resume"); err != nil {
		return "", err
	}
	defer o.release()

	job, err := o.requireJob()
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	processor := o.processor
	o.mu.Unlock()
	if processor == nil {
		return "", domainerrors.NewInvalidTransition(job.Phase().String(), string(valueobject.EventResume))
	}

	if err := job.Resume(); err != nil {
		return "", err
	}
	processor.ClearPause()
	if err := o.api.ResumeJob(ctx, job.ID()); err != nil {
		slogger.Warn(ctx, "Remote resume acknowledgement failed", slogger.Fields{
			"job_id": job.ID(),
			"error":  err.Error(),
		})
	}
	return processor.Run(ctx, progress)
}

// Pause requests a cooperative pause of the running processor at the
// next chunk boundary. It is a flag, not an owning operation, precisely
// so it can be applied while processing owns the job.
func (o *BatchOrchestrator) Pause() error {
	o.mu.Lock()
	processor := o.processor
	o.mu.Unlock()
	if processor == nil {
		return domainerrors.NewInvalidTransition(o.phaseString(), string(valueobject.EventPause))
	}
	processor.Pause()
	return nil
}

// Cancel cancels the job. While a processing run is active this is a
// cooperative flag observed at the next chunk boundary; otherwise the
// cancellation happens immediately.
func (o *BatchOrchestrator) Cancel(ctx context.Context) error {
	o.mu.Lock()
	processor := o.processor
	busy := o.busyOp
	o.mu.Unlock()

	if processor != nil && (busy == "process" || busy == "resume") {
		processor.RequestCancel()
		return nil
	}

	if err := o.acquire("cancel"); err != nil {
		return err
	}
	defer o.release()

	job, err := o.requireJob()
	if err != nil {
		return err
	}
	if job.Phase().IsTerminal() {
		return fmt.Errorf("%w: %s", domainerrors.ErrJobTerminal, job.Phase().String())
	}
	if !job.Phase().CanApply(valueobject.EventCancel) {
		return domainerrors.NewInvalidTransition(job.Phase().String(), string(valueobject.EventCancel))
	}
	if err := o.api.CancelJob(ctx, job.ID()); err != nil {
		return err
	}
	return job.Cancel()
}

// RetryFailed re-drives only the failed subset of the finished run.
func (o *BatchOrchestrator) RetryFailed(ctx context.Context) (*RetrySummary, error) {
	if err := o.acquire("retry_failed"); err != nil {
		return nil, err
	}
	defer o.release()

	job, err := o.requireJob()
	if err != nil {
		return nil, err
	}
	return o.retry.RetryFailed(ctx, job)
}

// AttachmentUpload is one file queued for upload.
type AttachmentUpload struct {
	Filename string
	Content  []byte
}

// AttachFiles uploads reference files and registers them on the job.
// Uploads run concurrently with a small bound; registration order
// follows the input order so the attachment list stays deterministic.
func (o *BatchOrchestrator) AttachFiles(ctx context.Context, uploads []AttachmentUpload) ([]entity.Attachment, error) {
	if err := o.acquire("attach_files"); err != nil {
		return nil, err
	}
	defer o.release()

	job, err := o.requireJob()
	if err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, errors.New("no files to attach")
	}

	results := make([]*dto.AttachFileResponse, len(uploads))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentUploads)
	for i, upload := range uploads {
		i, upload := i, upload
		group.Go(func() error {
			resp, uploadErr := o.api.AttachFile(groupCtx, job.ID(), upload.Filename, upload.Content)
			if uploadErr != nil {
				return fmt.Errorf("failed to upload %s: %w", upload.Filename, uploadErr)
			}
			results[i] = resp
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	attached := make([]entity.Attachment, 0, len(results))
	for _, resp := range results {
		att := entity.Attachment{
			ID:       resp.Attachment.ID,
			Filename: resp.Attachment.Filename,
			MIMEType: resp.Attachment.MimeType,
		}
		if err := job.AddAttachment(att); err != nil {
			return attached, err
		}
		attached = append(attached, att)
	}
	return attached, nil
}

// RefreshBalance re-fetches the authoritative balance from the server
// instead of trusting a possibly stale client-side estimate.
func (o *BatchOrchestrator) RefreshBalance(ctx context.Context) (int64, error) {
	resp, err := o.api.Balance(ctx)
	if err != nil {
		return 0, err
	}
	if err := o.ledger.SetAuthoritative(resp.Balance); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// phaseString reports the current phase for error messages, tolerating a
// missing job.
func (o *BatchOrchestrator) phaseString() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.job == nil {
		return string(valueobject.PhaseDraft)
	}
	return o.job.Phase().String()
}
