package service

import (
	"catalogboost/internal/application/common/slogger"
	"catalogboost/internal/application/dto"
	"catalogboost/internal/domain/entity"
	domainerrors "catalogboost/internal/domain/errors/domain"
	"catalogboost/internal/port/outbound"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// RunOutcome describes how a processing run ended.
type RunOutcome string

// Run outcome constants.
const (
	RunCompleted RunOutcome = "completed"
	RunPaused    RunOutcome = "paused"
	RunCancelled RunOutcome = "cancelled"
)

// transportFailureMessage is recorded for every item of a chunk whose
// process call failed at the network level. The processor cannot know
// partial chunk success when the whole call fails.
const transportFailureMessage = "chunk processing request failed"

// ProgressFunc receives a notification after each chunk completes.
type ProgressFunc func(chunkIndex, chunkCount int, counters entity.Counters)

// ChunkProcessor drives the Processing phase: it iterates the approved
// product set in fixed-size chunks, strictly in ascending order and never
// concurrently, honoring pause and cancel signals at chunk boundaries.
// An in-flight chunk call always runs to completion; its results are
// recorded even when a pause or cancel was requested meanwhile.
type ChunkProcessor struct {
	api       outbound.EnhancementAPI
	job       *entity.BatchJob
	ledger    *entity.BalanceLedger
	metrics   *EnhancementMetrics
	batchSize int
	nextChunk int
	paused    atomic.Bool
	cancelled atomic.Bool
}

// NewChunkProcessor creates a processor for one job's processing run.
// The batch size is fixed configuration and not negotiable mid-run.
func NewChunkProcessor(
	api outbound.EnhancementAPI,
	job *entity.BatchJob,
	ledger *entity.BalanceLedger,
	metrics *EnhancementMetrics,
	batchSize int,
) (*ChunkProcessor, error) {
	if api == nil {
		return nil, errors.New("api cannot be nil")
	}
	if job == nil {
		return nil, errors.New("job cannot be nil")
	}
	if ledger == nil {
		return nil, errors.New("ledger cannot be nil")
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", batchSize)
	}
	return &ChunkProcessor{
		api:       api,
		job:       job,
		ledger:    ledger,
		metrics:   metrics,
		batchSize: batchSize,
	}, nil
}

// Pause requests a cooperative pause. It only flips a flag checked at
// the next chunk boundary; it never aborts an in-flight chunk call.
func (p *ChunkProcessor) Pause() {
	p.paused.Store(true)
}

// RequestCancel requests a cooperative cancel, observed at the next
// chunk boundary. Results already recorded stay visible.
func (p *ChunkProcessor) RequestCancel() {
	p.cancelled.Store(true)
}

// Run executes chunks from the first unprocessed one until completion,
// pause, or cancellation. Re-invoking Run after a pause continues from
// the next unprocessed chunk; chunks already recorded are never reissued.
func (p *ChunkProcessor) Run(ctx context.Context, progress ProgressFunc) (RunOutcome, error) {
	chunks := partitionIDs(p.job.ProductIDs(), p.batchSize)

	for p.nextChunk < len(chunks) {
		if outcome, done := p.checkBoundary(ctx); done {
			return outcome, nil
		}

		index := p.nextChunk
		p.processChunk(ctx, index, chunks[index])
		p.nextChunk++

		if progress != nil {
			progress(index, len(chunks), p.job.Counters())
		}
	}

	// A pause or cancel requested during the final chunk still wins over
	// completion: the boundary after the last chunk is a legal suspension
	// point too.
	if outcome, done := p.checkBoundary(ctx); done {
		return outcome, nil
	}

	if err := p.job.Complete(); err != nil {
		return "", err
	}
	return RunCompleted, nil
}

// checkBoundary applies any pending pause/cancel signal at a chunk
// boundary. done is true when the run must stop here.
func (p *ChunkProcessor) checkBoundary(ctx context.Context) (RunOutcome, bool) {
	if p.cancelled.Load() || ctx.Err() != nil {
		if err := p.api.CancelJob(context.WithoutCancel(ctx), p.job.ID()); err != nil {
			slogger.Warn(ctx, "Remote cancel acknowledgement failed", slogger.Fields{
				"job_id": p.job.ID(),
				"error":  err.Error(),
			})
		}
		if err := p.job.Cancel(); err != nil {
			slogger.ErrorWithError(ctx, err, "Failed to cancel job locally", slogger.Fields{
				"job_id": p.job.ID(),
			})
		}
		return RunCancelled, true
	}

	if p.paused.Load() {
		if err := p.job.Pause(); err != nil {
			slogger.ErrorWithError(ctx, err, "Failed to pause job locally", slogger.Fields{
				"job_id": p.job.ID(),
			})
		}
		if err := p.api.PauseJob(ctx, p.job.ID()); err != nil {
			slogger.Warn(ctx, "Remote pause acknowledgement failed", slogger.Fields{
				"job_id": p.job.ID(),
				"error":  err.Error(),
			})
		}
		return RunPaused, true
	}

	return "", false
}

// ClearPause clears a pending pause flag before re-entering Run.
func (p *ChunkProcessor) ClearPause() {
	p.paused.Store(false)
}

// processChunk issues one process-chunk call and records its outcomes.
// Transport failure marks every id in the chunk as failed and the run
// continues; it is never fatal to the whole batch.
func (p *ChunkProcessor) processChunk(ctx context.Context, index int, chunk []int64) {
	resp, err := p.api.ProcessChunk(ctx, p.job.ID(), dto.ProcessChunkRequest{ProductIDs: chunk})
	if err != nil {
		failure := domainerrors.NewChunkTransportFailure(index, err)
		slogger.Warn(ctx, "Chunk transport failure, marking chunk as failed", slogger.Fields3(
			"job_id", p.job.ID(),
			"chunk_index", index,
			"error", failure.Error(),
		))
		p.recordChunkFailure(ctx, chunk)
		return
	}

	requested := make(map[int64]bool, len(chunk))
	for _, id := range chunk {
		requested[id] = true
	}

	results := make([]entity.ItemResult, 0, len(chunk))
	returned := make(map[int64]bool, len(resp.BatchResults))
	for _, item := range resp.BatchResults {
		result, convErr := item.ToEntity()
		if convErr != nil {
			slogger.Warn(ctx, "Discarding malformed item result", slogger.Fields2(
				"product_id", item.ProductID,
				"error", convErr.Error(),
			))
			continue
		}
		// Results for ids outside the submitted chunk are discarded: they
		// would collide with the entries their own chunk records.
		if !requested[result.ProductID()] || returned[result.ProductID()] {
			slogger.Warn(ctx, "Discarding result for product not in the submitted chunk", slogger.Fields2(
				"product_id", result.ProductID(),
				"chunk_index", index,
			))
			continue
		}
		results = append(results, result)
		returned[result.ProductID()] = true
	}

	// Ids the server did not report still count as processed, so the run
	// always ends with one entry per product.
	for _, id := range chunk {
		if !returned[id] {
			missing, convErr := entity.NewFailedItemResult(id, "", "no result returned for product")
			if convErr == nil {
				results = append(results, missing)
			}
		}
	}

	if err := p.job.RecordProcessingResults(results); err != nil {
		slogger.ErrorWithError(ctx, err, "Failed to record chunk results", slogger.Fields{
			"chunk_index": index,
		})
		return
	}

	p.job.AddTokensUsed(resp.TokensUsed.Total)
	p.metrics.RecordTokens(ctx, resp.TokensUsed.Total)
	p.applyBalance(resp.NewBalance, resp.TokensUsed.Total)

	succeeded, failed := countOutcomes(results)
	p.metrics.RecordChunk(ctx, succeeded, failed)
}

// recordChunkFailure records a generic transport failure for every id in
// the chunk.
func (p *ChunkProcessor) recordChunkFailure(ctx context.Context, chunk []int64) {
	results := make([]entity.ItemResult, 0, len(chunk))
	for _, id := range chunk {
		result, err := entity.NewFailedItemResult(id, "", transportFailureMessage)
		if err != nil {
			continue
		}
		results = append(results, result)
	}
	if err := p.job.RecordProcessingResults(results); err != nil {
		slogger.ErrorWithError(ctx, err, "Failed to record chunk failure results", slogger.Fields{})
		return
	}
	p.metrics.RecordChunk(ctx, 0, len(results))
}

// applyBalance overwrites the ledger from a server-reported balance, or
// applies the token cost as a transient estimate when the response did
// not carry one.
func (p *ChunkProcessor) applyBalance(newBalance *int64, tokens int) {
	if newBalance != nil {
		if err := p.ledger.SetAuthoritative(*newBalance); err != nil {
			return
		}
		return
	}
	p.ledger.ApplyEstimate(int64(tokens))
}

// partitionIDs splits ids into consecutive chunks of the given size; the
// last chunk may be smaller.
func partitionIDs(ids []int64, size int) [][]int64 {
	if size < 1 {
		return nil
	}
	chunks := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// countOutcomes tallies completed and failed results.
func countOutcomes(results []entity.ItemResult) (succeeded, failed int) {
	for _, result := range results {
		if result.IsFailed() {
			failed++
		} else {
			succeeded++
		}
	}
	return succeeded, failed
}
