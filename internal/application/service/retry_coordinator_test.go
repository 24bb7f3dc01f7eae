package service

import (
	"context"
	"errors"
	"testing"

	"catalogboost/internal/application/dto"
	"catalogboost/internal/domain/entity"
	"catalogboost/internal/domain/valueobject"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completedJobWithFailures builds a job whose finished run has the given
// failed product ids; all other products succeeded.
func completedJobWithFailures(t *testing.T, total int, failedIDs ...int64) *entity.BatchJob {
	t.Helper()
	job := processingJob(t, total)

	failed := make(map[int64]bool, len(failedIDs))
	for _, id := range failedIDs {
		failed[id] = true
	}

	results := make([]entity.ItemResult, 0, total)
	for i := 1; i <= total; i++ {
		id := int64(i)
		if failed[id] {
			result, err := entity.NewFailedItemResult(id, "Widget", "model refused")
			require.NoError(t, err)
			results = append(results, result)
			continue
		}
		result, err := entity.NewCompletedItemResult(id, "Widget", map[string]entity.FieldSuggestion{
			"description": {Current: "old", Suggested: "new"},
		})
		require.NoError(t, err)
		results = append(results, result)
	}
	require.NoError(t, job.RecordProcessingResults(results))
	require.NoError(t, job.Complete())
	return job
}

func newCoordinator(t *testing.T, api *fakeAPI) (*RetryCoordinator, *entity.BalanceLedger) {
	t.Helper()
	ledger := entity.NewBalanceLedger()
	coordinator, err := NewRetryCoordinator(api, staticProducts{}, ledger, nil)
	require.NoError(t, err)
	return coordinator, ledger
}

func TestRetryCoordinator_EmptyFailedSetIsNoOp(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	job := completedJobWithFailures(t, 5) // no failures
	coordinator, _ := newCoordinator(t, api)

	summary, err := coordinator.RetryFailed(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, &RetrySummary{}, summary)
	assert.Empty(t, api.retryCalls, "no network traffic for an empty failed set")
	assert.Equal(t, valueobject.PhaseCompleted, job.Phase())
}

func TestRetryCoordinator_AllRetriedSucceed(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	api.retryFailedFn = func(_ string, req dto.RetryFailedRequest) (*dto.RetryFailedResponse, error) {
		results := make([]dto.ItemResultDTO, 0, len(req.Products))
		for _, p := range req.Products {
			results = append(results, dto.ItemResultDTO{
				ProductID:   p.ID,
				ProductName: p.Name,
				Status:      "completed",
				Suggestions: map[string]dto.SuggestionDTO{
					"description": {Suggested: "second attempt"},
				},
			})
		}
		return &dto.RetryFailedResponse{
			RetryResults:   results,
			NewlySucceeded: len(results),
			TokensUsed:     dto.TokensUsed{Total: 15},
		}, nil
	}

	job := completedJobWithFailures(t, 10, 3, 7)
	coordinator, _ := newCoordinator(t, api)

	summary, err := coordinator.RetryFailed(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 2, summary.NewlySucceeded)
	assert.Equal(t, 0, summary.StillFailed)

	// Only the failed subset was resubmitted, as full payloads.
	require.Len(t, api.retryCalls, 1)
	ids := make([]int64, 0, 2)
	for _, p := range api.retryCalls[0].Products {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int64{3, 7}, ids)

	counters := job.Counters()
	assert.Equal(t, 10, counters.Processed)
	assert.Equal(t, 10, counters.Succeeded)
	assert.Equal(t, 0, counters.Failed)
	assert.Equal(t, 15, counters.TokensUsed)
	assert.Equal(t, valueobject.PhaseCompleted, job.Phase())
}

func TestRetryCoordinator_PartialRetrySuccess(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	api.retryFailedFn = func(_ string, req dto.RetryFailedRequest) (*dto.RetryFailedResponse, error) {
		return &dto.RetryFailedResponse{
			RetryResults: []dto.ItemResultDTO{
				{ProductID: 3, Status: "completed", Suggestions: map[string]dto.SuggestionDTO{
					"description": {Suggested: "ok now"},
				}},
				{ProductID: 7, Status: "failed", Error: "still refusing"},
			},
		}, nil
	}

	job := completedJobWithFailures(t, 10, 3, 7)
	coordinator, _ := newCoordinator(t, api)

	summary, err := coordinator.RetryFailed(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 1, summary.NewlySucceeded)
	assert.Equal(t, 1, summary.StillFailed)

	failed := job.FailedResults()
	require.Len(t, failed, 1)
	assert.Equal(t, int64(7), failed[0].ProductID())
	assert.Equal(t, "still refusing", failed[0].ErrorMessage())

	// A second retry pass over the remaining failure never double counts.
	api.retryFailedFn = func(_ string, _ dto.RetryFailedRequest) (*dto.RetryFailedResponse, error) {
		return &dto.RetryFailedResponse{
			RetryResults: []dto.ItemResultDTO{
				{ProductID: 7, Status: "completed", Suggestions: map[string]dto.SuggestionDTO{
					"description": {Suggested: "third time lucky"},
				}},
			},
		}, nil
	}
	summary, err = coordinator.RetryFailed(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 10, job.Counters().Processed)
	assert.Equal(t, 0, job.Counters().Failed)
}

func TestRetryCoordinator_ResultsOutsideFailedSetDiscarded(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	api.retryFailedFn = func(_ string, _ dto.RetryFailedRequest) (*dto.RetryFailedResponse, error) {
		// The response also reports product 1, which already succeeded.
		return &dto.RetryFailedResponse{
			RetryResults: []dto.ItemResultDTO{
				{ProductID: 1, Status: "completed", Suggestions: map[string]dto.SuggestionDTO{
					"description": {Suggested: "unsolicited"},
				}},
				{ProductID: 2, Status: "completed", Suggestions: map[string]dto.SuggestionDTO{
					"description": {Suggested: "ok now"},
				}},
			},
		}, nil
	}

	job := completedJobWithFailures(t, 2, 2)
	coordinator, _ := newCoordinator(t, api)

	summary, err := coordinator.RetryFailed(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.NewlySucceeded)
	assert.Equal(t, 0, summary.StillFailed)

	counters := job.Counters()
	assert.Equal(t, 2, counters.Processed, "a stray result never inflates the run")
	assert.Equal(t, 2, counters.Succeeded)

	seen := make(map[int64]int)
	for _, result := range job.ProcessingResults() {
		seen[result.ProductID()]++
	}
	assert.Equal(t, 1, seen[1], "product 1 keeps its single original entry")
	require.NoError(t, job.Validate())
}

func TestRetryCoordinator_APIFailureLeavesResultsIntact(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	api.retryFailedFn = func(_ string, _ dto.RetryFailedRequest) (*dto.RetryFailedResponse, error) {
		return nil, errors.New("gateway timeout")
	}

	job := completedJobWithFailures(t, 5, 2)
	coordinator, _ := newCoordinator(t, api)

	_, err := coordinator.RetryFailed(context.Background(), job)
	require.Error(t, err)

	// The job returned to Completed and the original outcomes survive.
	assert.Equal(t, valueobject.PhaseCompleted, job.Phase())
	assert.Equal(t, 1, job.Counters().Failed)
	require.Len(t, job.FailedResults(), 1)
}

func TestRetryCoordinator_BalanceUpdates(t *testing.T) {
	t.Parallel()

	newBalance := int64(420)
	api := &fakeAPI{}
	api.retryFailedFn = func(_ string, _ dto.RetryFailedRequest) (*dto.RetryFailedResponse, error) {
		return &dto.RetryFailedResponse{
			RetryResults: []dto.ItemResultDTO{
				{ProductID: 2, Status: "failed", Error: "still refusing"},
			},
			TokensUsed: dto.TokensUsed{Total: 5},
			NewBalance: &newBalance,
		}, nil
	}

	job := completedJobWithFailures(t, 5, 2)
	coordinator, ledger := newCoordinator(t, api)

	_, err := coordinator.RetryFailed(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, int64(420), ledger.Balance())
	assert.False(t, ledger.IsEstimate())
}
