package service

import (
	"catalogboost/internal/application/common/slogger"
	"catalogboost/internal/application/dto"
	"catalogboost/internal/domain/entity"
	"catalogboost/internal/port/outbound"
	"context"
	"errors"
	"fmt"
)

// RetrySummary reports the outcome of one retry pass.
type RetrySummary struct {
	Attempted      int
	NewlySucceeded int
	StillFailed    int
}

// RetryCoordinator re-drives only the failed subset of a finished
// processing run. Old failed entries are replaced by the new outcomes;
// successes from the original run are never reprocessed or disturbed.
type RetryCoordinator struct {
	api      outbound.EnhancementAPI
	products outbound.ProductSource
	ledger   *entity.BalanceLedger
	metrics  *EnhancementMetrics
}

// NewRetryCoordinator creates a retry coordinator.
func NewRetryCoordinator(
	api outbound.EnhancementAPI,
	products outbound.ProductSource,
	ledger *entity.BalanceLedger,
	metrics *EnhancementMetrics,
) (*RetryCoordinator, error) {
	if api == nil {
		return nil, errors.New("api cannot be nil")
	}
	if products == nil {
		return nil, errors.New("products cannot be nil")
	}
	if ledger == nil {
		return nil, errors.New("ledger cannot be nil")
	}
	return &RetryCoordinator{
		api:      api,
		products: products,
		ledger:   ledger,
		metrics:  metrics,
	}, nil
}

// RetryFailed resubmits the failed items of the job's finished run as
// full product payloads. An empty failed set is a no-op that performs no
// network calls. On failure the prior results are left untouched.
func (r *RetryCoordinator) RetryFailed(ctx context.Context, job *entity.BatchJob) (*RetrySummary, error) {
	if job == nil {
		return nil, errors.New("job cannot be nil")
	}

	failed := job.FailedResults()
	if len(failed) == 0 {
		return &RetrySummary{}, nil
	}

	failedIDs := make([]int64, 0, len(failed))
	for _, result := range failed {
		failedIDs = append(failedIDs, result.ProductID())
	}

	// The retry endpoint re-submits payloads, not bare ids: the original
	// per-product request context may have been superseded server-side.
	payloads, err := r.products.ResolvePayloads(ctx, failedIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve product payloads for retry: %w", err)
	}

	if err := job.BeginRetry(); err != nil {
		return nil, err
	}
	// The job re-entered Processing for the duration of the retry pass;
	// it returns to Completed whatever the outcome.
	defer func() {
		if completeErr := job.Complete(); completeErr != nil {
			slogger.ErrorWithError(ctx, completeErr, "Failed to restore job phase after retry", slogger.Fields{
				"job_id": job.ID(),
			})
		}
	}()

	resp, err := r.api.RetryFailed(ctx, job.ID(), dto.RetryFailedRequest{Products: payloads})
	if err != nil {
		return nil, err
	}

	submitted := make(map[int64]bool, len(failedIDs))
	for _, id := range failedIDs {
		submitted[id] = true
	}

	retried := make([]entity.ItemResult, 0, len(resp.RetryResults))
	for _, item := range resp.RetryResults {
		result, convErr := item.ToEntity()
		if convErr != nil {
			slogger.Warn(ctx, "Discarding malformed retry result", slogger.Fields2(
				"product_id", item.ProductID,
				"error", convErr.Error(),
			))
			continue
		}
		// Results for ids outside the resubmitted failed set are discarded:
		// merging one would duplicate an entry that already succeeded.
		if !submitted[result.ProductID()] {
			slogger.Warn(ctx, "Discarding retry result for product not in the failed set", slogger.Fields2(
				"product_id", result.ProductID(),
				"job_id", job.ID(),
			))
			continue
		}
		retried = append(retried, result)
	}

	if err := job.ReplaceFailedResults(retried); err != nil {
		return nil, err
	}

	job.AddTokensUsed(resp.TokensUsed.Total)
	r.metrics.RecordTokens(ctx, resp.TokensUsed.Total)
	if resp.NewBalance != nil {
		if err := r.ledger.SetAuthoritative(*resp.NewBalance); err != nil {
			slogger.Warn(ctx, "Ignoring invalid server balance", slogger.Fields{
				"new_balance": *resp.NewBalance,
			})
		}
	} else {
		r.ledger.ApplyEstimate(int64(resp.TokensUsed.Total))
	}

	succeeded, stillFailed := countOutcomes(retried)
	r.metrics.RecordChunk(ctx, succeeded, stillFailed)

	return &RetrySummary{
		Attempted:      len(failed),
		NewlySucceeded: succeeded,
		StillFailed:    stillFailed,
	}, nil
}
