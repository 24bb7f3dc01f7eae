package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"catalogboost/internal/adapter/outbound/catalog"
	"catalogboost/internal/adapter/outbound/repository"
	"catalogboost/internal/application/common/slogger"
	"catalogboost/internal/application/dto"
	"catalogboost/internal/application/service"
	"catalogboost/internal/client"
	"catalogboost/internal/config"
	"catalogboost/internal/domain/entity"
	"catalogboost/internal/port/outbound"
	"catalogboost/internal/telemetry"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// runSummary is the data payload of the batch run output envelope.
type runSummary struct {
	JobID      string              `json:"job_id"               yaml:"job_id"`
	Phase      string              `json:"phase"                yaml:"phase"`
	Outcome    string              `json:"outcome"              yaml:"outcome"`
	Processed  int                 `json:"processed"            yaml:"processed"`
	Succeeded  int                 `json:"succeeded"            yaml:"succeeded"`
	Failed     int                 `json:"failed"               yaml:"failed"`
	TokensUsed int                 `json:"tokens_used"          yaml:"tokens_used"`
	Balance    *int64              `json:"balance,omitempty"    yaml:"balance,omitempty"`
	Retry      *retrySummaryDTO    `json:"retry,omitempty"      yaml:"retry,omitempty"`
	Results    []dto.ItemResultDTO `json:"results"              yaml:"results"`
}

// retrySummaryDTO reports an in-run retry pass.
type retrySummaryDTO struct {
	Attempted      int `json:"attempted"       yaml:"attempted"`
	NewlySucceeded int `json:"newly_succeeded" yaml:"newly_succeeded"`
	StillFailed    int `json:"still_failed"    yaml:"still_failed"`
}

// runFlags holds the batch run command flags.
type runFlags struct {
	catalogPath    string
	productIDs     []int64
	enhancements   []string
	direction      string
	refineComments string
	refineOptions  []string
	attachFiles    []string
	retryFailed    bool
}

// newBatchRunCmd creates the batch run command: the full job lifecycle
// in one process. Preview suggestions render progressively on stderr;
// the final summary envelope goes to stdout.
//
// During processing the first interrupt requests a pause at the next
// chunk boundary; a second interrupt cancels the job. An in-flight
// chunk always completes and records its results either way.
func newBatchRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a batch enhancement job end to end",
		Long: `Run a batch enhancement job end to end: create the job, stream the
preview, optionally refine it, approve, and process in chunks.

Products are read from a JSON catalog export (--catalog). By default
every product in the catalog is enhanced; --products restricts the run
to a subset.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.catalogPath, "catalog", "", "JSON catalog export with product content (required)")
	cmd.Flags().Int64SliceVar(&flags.productIDs, "products", nil, "Product IDs to enhance (default: all in catalog)")
	cmd.Flags().StringSliceVar(&flags.enhancements, "enhancements", []string{"description"},
		"Fields to enhance (description, short_description, tags, seo_title, seo_description)")
	cmd.Flags().StringVar(&flags.direction, "direction", "", "Free-text direction for the AI (tone, emphasis)")
	cmd.Flags().StringVar(&flags.refineComments, "refine", "", "Refine the preview once with this feedback before approving")
	cmd.Flags().StringSliceVar(&flags.refineOptions, "refine-options", nil, "Selected refinement options")
	cmd.Flags().StringSliceVar(&flags.attachFiles, "attach", nil, "Reference files to upload before preview")
	cmd.Flags().BoolVar(&flags.retryFailed, "retry-failed", false, "Retry failed products once after the run completes")
	_ = cmd.MarkFlagRequired("catalog")

	return cmd
}

func runBatch(cmd *cobra.Command, flags *runFlags) error {
	out := cmd.OutOrStdout()
	format := outputFormat(cmd)

	api, ok := createClientFromConfig(cmd, out)
	if !ok {
		return nil
	}

	source, err := catalog.NewFileProductSource(flags.catalogPath)
	if err != nil {
		_ = client.WriteError(out, format, errCodeInvalidArgument, err.Error(), nil)
		return nil
	}

	productIDs := flags.productIDs
	if len(productIDs) == 0 {
		productIDs = source.IDs()
	}

	meters := telemetry.SetupMetrics()
	defer func() {
		ctx := context.WithoutCancel(cmd.Context())
		if rm, collectErr := meters.Collect(ctx); collectErr == nil {
			for name, total := range telemetry.CounterTotals(rm) {
				slogger.Debug(ctx, "Run metric total", slogger.Fields2("metric", name, "value", total))
			}
		}
		_ = meters.Shutdown(ctx)
	}()

	metrics, err := service.NewEnhancementMetrics()
	if err != nil {
		_ = client.WriteError(out, format, errCodeClientError, err.Error(), nil)
		return nil
	}

	conf := GetConfig()
	orch, err := service.NewBatchOrchestrator(api, source, service.OrchestratorConfig{
		BatchSize:    conf.Batch.Size,
		StoreContext: conf.Store.Context,
	}, metrics)
	if err != nil {
		_ = client.WriteError(out, format, errCodeClientError, err.Error(), nil)
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// The interrupt goroutine is the only reader of sigCh: the first
	// interrupt pauses, the second cancels. waitForResume observes the
	// cancellation through the cancelled channel instead of racing for
	// the signal itself.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	cancelled := make(chan struct{})
	go func() {
		<-sigCh
		if pauseErr := orch.Pause(); pauseErr != nil {
			// Not processing yet; abort the current stage instead.
			cancel()
			return
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Pausing at next chunk boundary (interrupt again to cancel)...")
		<-sigCh
		_ = orch.Cancel(context.WithoutCancel(ctx))
		close(cancelled)
	}()

	outcome, err := driveJob(ctx, cmd, orch, flags, productIDs, cancelled)
	if err != nil {
		_ = client.WriteError(out, format, determineErrorCode(err), err.Error(), nil)
		return nil
	}

	job := orch.Job()

	var retrySummary *retrySummaryDTO
	if flags.retryFailed && outcome == service.RunCompleted && job.Counters().Failed > 0 {
		summary, retryErr := orch.RetryFailed(ctx)
		if retryErr != nil {
			slogger.ErrorWithError(ctx, retryErr, "Retry pass failed", slogger.Fields{"job_id": job.ID()})
		} else {
			retrySummary = &retrySummaryDTO{
				Attempted:      summary.Attempted,
				NewlySucceeded: summary.NewlySucceeded,
				StillFailed:    summary.StillFailed,
			}
		}
	}

	archiveRun(ctx, conf, job, outcome)

	summary := runSummary{
		JobID:      job.ID(),
		Phase:      job.Phase().String(),
		Outcome:    string(outcome),
		Processed:  job.Counters().Processed,
		Succeeded:  job.Counters().Succeeded,
		Failed:     job.Counters().Failed,
		TokensUsed: job.Counters().TokensUsed,
		Retry:      retrySummary,
	}
	if orch.Ledger().Known() && !orch.Ledger().IsEstimate() {
		balance := orch.Ledger().Balance()
		summary.Balance = &balance
	}
	for _, result := range job.ProcessingResults() {
		summary.Results = append(summary.Results, dto.FromEntity(result))
	}

	return client.WriteSuccess(out, format, summary)
}

// driveJob walks the job through its whole lifecycle and returns the
// processing outcome.
func driveJob(
	ctx context.Context,
	cmd *cobra.Command,
	orch *service.BatchOrchestrator,
	flags *runFlags,
	productIDs []int64,
	cancelled <-chan struct{},
) (service.RunOutcome, error) {
	stderr := cmd.ErrOrStderr()

	if err := orch.NewJob(productIDs, flags.enhancements, flags.direction); err != nil {
		return "", err
	}
	if err := orch.CreateJob(ctx); err != nil {
		return "", err
	}

	if len(flags.attachFiles) > 0 {
		uploads, err := loadUploads(flags.attachFiles)
		if err != nil {
			return "", err
		}
		if _, err := orch.AttachFiles(ctx, uploads); err != nil {
			return "", err
		}
	}

	callbacks := service.StreamCallbacks{
		OnStatus: func(message string) {
			if message != "" {
				fmt.Fprintln(stderr, message)
			}
		},
		OnResult: func(result dto.ItemResultDTO) {
			fmt.Fprintf(stderr, "preview: product %d (%s) %s\n", result.ProductID, result.ProductName, result.Status)
		},
	}

	if err := orch.Preview(ctx, callbacks); err != nil {
		return "", err
	}
	if flags.refineComments != "" {
		if err := orch.Refine(ctx, flags.refineComments, flags.refineOptions, callbacks); err != nil {
			return "", err
		}
	}

	if err := orch.Approve(ctx); err != nil {
		return "", err
	}

	progress := func(chunkIndex, chunkCount int, counters entity.Counters) {
		fmt.Fprintf(stderr, "chunk %d/%d done: processed=%d succeeded=%d failed=%d\n",
			chunkIndex+1, chunkCount, counters.Processed, counters.Succeeded, counters.Failed)
	}

	outcome, err := orch.StartProcessing(ctx, progress)
	if err != nil {
		return "", err
	}

	for outcome == service.RunPaused {
		if !waitForResume(cmd, cancelled) {
			// The interrupt goroutine already cancelled the job.
			return service.RunCancelled, nil
		}
		outcome, err = orch.Resume(ctx, progress)
		if err != nil {
			return "", err
		}
	}

	return outcome, nil
}

// waitForResume blocks a paused run until the user presses Enter
// (resume) or the interrupt goroutine reports the job cancelled.
func waitForResume(cmd *cobra.Command, cancelled <-chan struct{}) bool {
	fmt.Fprintln(cmd.ErrOrStderr(), "Paused. Press Enter to resume, or interrupt again to cancel.")

	lineCh := make(chan struct{}, 1)
	go func() {
		reader := bufio.NewReader(cmd.InOrStdin())
		_, _ = reader.ReadString('\n')
		lineCh <- struct{}{}
	}()

	select {
	case <-lineCh:
		return true
	case <-cancelled:
		return false
	}
}

// loadUploads reads the attachment files into memory.
func loadUploads(paths []string) ([]service.AttachmentUpload, error) {
	uploads := make([]service.AttachmentUpload, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read attachment %s: %w", path, err)
		}
		uploads = append(uploads, service.AttachmentUpload{
			Filename: filepath.Base(path),
			Content:  content,
		})
	}
	return uploads, nil
}

// archiveRun persists the finished run when archiving is configured.
// Failures are logged, never fatal: archiving is strictly additive.
func archiveRun(ctx context.Context, conf *config.Config, job *entity.BatchJob, outcome service.RunOutcome) {
	if !conf.Archive.Enabled {
		return
	}
	if outcome != service.RunCompleted && outcome != service.RunCancelled {
		return
	}

	pool, err := repository.NewDatabaseConnection(repository.DatabaseConfig{
		Host:           conf.Archive.Database.Host,
		Port:           conf.Archive.Database.Port,
		Database:       conf.Archive.Database.Name,
		Username:       conf.Archive.Database.User,
		Password:       conf.Archive.Database.Password,
		Schema:         conf.Archive.Database.Schema,
		MaxConnections: conf.Archive.Database.MaxConnections,
		SSLMode:        conf.Archive.Database.SSLMode,
	})
	if err != nil {
		slogger.ErrorWithError(ctx, err, "Run archive connection failed", slogger.Fields{"job_id": job.ID()})
		return
	}
	defer pool.Close()

	archiver := repository.NewPostgreSQLRunRepository(pool)
	record := outbound.RunRecord{
		ID:         uuid.New(),
		JobID:      job.ID(),
		FinalPhase: job.Phase().String(),
		Counters:   job.Counters(),
		Results:    job.ProcessingResults(),
	}
	if err := archiver.ArchiveRun(ctx, record); err != nil {
		slogger.ErrorWithError(ctx, err, "Run archive write failed", slogger.Fields{"job_id": job.ID()})
		return
	}
	slogger.Info(ctx, "Run archived", slogger.Fields2("job_id", job.ID(), "run_id", record.ID.String()))
}
