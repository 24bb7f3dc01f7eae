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

func processingJob(t *testing.T, productCount int) *entity.BatchJob {
	t.Helper()
	ids := make([]int64, 0, productCount)
	for i := 1; i <= productCount; i++ {
		ids = append(ids, int64(i))
	}
	job, err := entity.NewBatchJob(ids, []valueobject.EnhancementType{valueobject.EnhancementDescription}, "")
	require.NoError(t, err)
	require.NoError(t, job.MarkCreated("job-test"))
	require.NoError(t, job.MarkPreviewDone())
	require.NoError(t, job.Approve())
	require.NoError(t, job.StartProcessing())
	return job
}

func newProcessor(t *testing.T, api *fakeAPI, job *entity.BatchJob, batchSize int) (*ChunkProcessor, *entity.BalanceLedger) {
	t.Helper()
	ledger := entity.NewBalanceLedger()
	processor, err := NewChunkProcessor(api, job, ledger, nil, batchSize)
	require.NoError(t, err)
	return processor, ledger
}

func TestChunkProcessor_ChunkCountAndSizes(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	job := processingJob(t, 23)
	processor, _ := newProcessor(t, api, job, 10)

	outcome, err := processor.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, outcome)

	require.Len(t, api.processCalls, 3, "ceil(23/10) chunks")
	assert.Len(t, api.processCalls[0].ProductIDs, 10)
	assert.Len(t, api.processCalls[1].ProductIDs, 10)
	assert.Len(t, api.processCalls[2].ProductIDs, 3)

	counters := job.Counters()
	assert.Equal(t, 23, counters.Processed)
	assert.Equal(t, 23, counters.Succeeded)
	assert.Equal(t, valueobject.PhaseCompleted, job.Phase())
}

func TestChunkProcessor_TransportFailureMarksChunkFailed(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	api.processChunkFn = func(_ string, req dto.ProcessChunkRequest) (*dto.ProcessChunkResponse, error) {
		// Second chunk fails at the network level.
		if len(api.processCalls) == 2 {
			return nil, errors.New("connection reset")
		}
		return completedChunkResponse(req.ProductIDs, 0, nil), nil
	}

	job := processingJob(t, 23)
	processor, _ := newProcessor(t, api, job, 10)

	outcome, err := processor.Run(context.Background(), nil)
	require.NoError(t, err, "a failed chunk is absorbed, never fatal")
	assert.Equal(t, RunCompleted, outcome)

	counters := job.Counters()
	assert.Equal(t, 23, counters.Processed, "every product gets exactly one outcome")
	assert.Equal(t, 13, counters.Succeeded)
	assert.Equal(t, 10, counters.Failed)

	for _, result := range job.FailedResults() {
		assert.Equal(t, transportFailureMessage, result.ErrorMessage())
	}
}

func TestChunkProcessor_PauseResumeNoDuplicates(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	job := processingJob(t, 30)
	processor, _ := newProcessor(t, api, job, 10)

	// Pause after the first chunk completes.
	progress := func(chunkIndex, _ int, _ entity.Counters) {
		if chunkIndex == 0 {
			processor.Pause()
		}
	}

	outcome, err := processor.Run(context.Background(), progress)
	require.NoError(t, err)
	assert.Equal(t, RunPaused, outcome)
	assert.Equal(t, valueobject.PhasePaused, job.Phase())
	assert.Equal(t, 1, api.pauseCalls)
	assert.Equal(t, 10, job.Counters().Processed, "in-flight chunk completed before pausing")

	// Resume continues from the next unprocessed chunk.
	require.NoError(t, job.Resume())
	processor.ClearPause()
	outcome, err = processor.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, outcome)

	ids := api.processedIDs()
	assert.Len(t, ids, 30)
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		assert.False(t, seen[id], "product %d issued twice", id)
		seen[id] = true
	}
	assert.Equal(t, 30, job.Counters().Processed)
}

func TestChunkProcessor_CancelKeepsRecordedResults(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	job := processingJob(t, 30)
	processor, _ := newProcessor(t, api, job, 10)

	progress := func(chunkIndex, _ int, _ entity.Counters) {
		if chunkIndex == 0 {
			processor.RequestCancel()
		}
	}

	outcome, err := processor.Run(context.Background(), progress)
	require.NoError(t, err)
	assert.Equal(t, RunCancelled, outcome)
	assert.Equal(t, valueobject.PhaseCancelled, job.Phase())
	assert.Equal(t, 1, api.cancelCalls)

	assert.Len(t, api.processCalls, 1, "no further chunks after cancel")
	assert.Equal(t, 10, job.Counters().Processed, "recorded results stay visible")
}

func TestChunkProcessor_PauseDuringFinalChunkWinsOverCompletion(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	job := processingJob(t, 10)
	processor, _ := newProcessor(t, api, job, 10)

	progress := func(chunkIndex, chunkCount int, _ entity.Counters) {
		if chunkIndex == chunkCount-1 {
			processor.Pause()
		}
	}

	outcome, err := processor.Run(context.Background(), progress)
	require.NoError(t, err)
	assert.Equal(t, RunPaused, outcome)
	assert.Equal(t, valueobject.PhasePaused, job.Phase())
	assert.Equal(t, 10, job.Counters().Processed)
}

func TestChunkProcessor_ContextCancellationCancelsAtBoundary(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	job := processingJob(t, 20)
	processor, _ := newProcessor(t, api, job, 10)

	ctx, cancel := context.WithCancel(context.Background())
	progress := func(chunkIndex, _ int, _ entity.Counters) {
		if chunkIndex == 0 {
			cancel()
		}
	}

	outcome, err := processor.Run(ctx, progress)
	require.NoError(t, err)
	assert.Equal(t, RunCancelled, outcome)
	assert.Equal(t, 1, api.cancelCalls, "remote cancel issued despite cancelled context")
}

func TestChunkProcessor_MissingResultsBecomeFailed(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	api.processChunkFn = func(_ string, req dto.ProcessChunkRequest) (*dto.ProcessChunkResponse, error) {
		// Server reports only the first product of each chunk.
		return completedChunkResponse(req.ProductIDs[:1], 0, nil), nil
	}

	job := processingJob(t, 4)
	processor, _ := newProcessor(t, api, job, 2)

	outcome, err := processor.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, outcome)

	counters := job.Counters()
	assert.Equal(t, 4, counters.Processed)
	assert.Equal(t, 2, counters.Succeeded)
	assert.Equal(t, 2, counters.Failed)
	for _, result := range job.FailedResults() {
		assert.Contains(t, result.ErrorMessage(), "no result returned")
	}
}

func TestChunkProcessor_ResultsOutsideChunkDiscarded(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	api.processChunkFn = func(_ string, req dto.ProcessChunkRequest) (*dto.ProcessChunkResponse, error) {
		resp := completedChunkResponse(req.ProductIDs, 0, nil)
		// First chunk also reports product 4, which belongs to the second.
		if len(api.processCalls) == 1 {
			resp.BatchResults = append(resp.BatchResults, dto.ItemResultDTO{
				ProductID:   4,
				ProductName: "Widget",
				Status:      "completed",
				Suggestions: map[string]dto.SuggestionDTO{
					"description": {Suggested: "new"},
				},
			})
		}
		return resp, nil
	}

	job := processingJob(t, 4)
	processor, _ := newProcessor(t, api, job, 2)

	outcome, err := processor.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, outcome)

	counters := job.Counters()
	assert.Equal(t, 4, counters.Processed, "one entry per product despite the stray result")
	assert.Equal(t, 4, counters.Succeeded)

	seen := make(map[int64]int)
	for _, result := range job.ProcessingResults() {
		seen[result.ProductID()]++
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "product %d recorded %d times", id, count)
	}
	require.NoError(t, job.Validate())
}

func TestChunkProcessor_BalanceHandling(t *testing.T) {
	t.Parallel()

	t.Run("authoritative balance overwrites", func(t *testing.T) {
		t.Parallel()

		newBalance := int64(700)
		api := &fakeAPI{}
		api.processChunkFn = func(_ string, req dto.ProcessChunkRequest) (*dto.ProcessChunkResponse, error) {
			return completedChunkResponse(req.ProductIDs, 30, &newBalance), nil
		}

		job := processingJob(t, 5)
		processor, ledger := newProcessor(t, api, job, 5)
		require.NoError(t, ledger.SetAuthoritative(1000))

		_, err := processor.Run(context.Background(), nil)
		require.NoError(t, err)

		assert.Equal(t, int64(700), ledger.Balance())
		assert.False(t, ledger.IsEstimate())
		assert.Equal(t, 30, job.Counters().TokensUsed)
	})

	t.Run("missing balance applies estimate", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{}
		api.processChunkFn = func(_ string, req dto.ProcessChunkRequest) (*dto.ProcessChunkResponse, error) {
			return completedChunkResponse(req.ProductIDs, 30, nil), nil
		}

		job := processingJob(t, 5)
		processor, ledger := newProcessor(t, api, job, 5)
		require.NoError(t, ledger.SetAuthoritative(1000))

		_, err := processor.Run(context.Background(), nil)
		require.NoError(t, err)

		assert.Equal(t, int64(970), ledger.Balance())
		assert.True(t, ledger.IsEstimate())
	})
}

func TestNewChunkProcessor_Validation(t *testing.T) {
	t.Parallel()

	job := processingJob(t, 1)
	ledger := entity.NewBalanceLedger()

	_, err := NewChunkProcessor(nil, job, ledger, nil, 10)
	require.Error(t, err)
	_, err = NewChunkProcessor(&fakeAPI{}, nil, ledger, nil, 10)
	require.Error(t, err)
	_, err = NewChunkProcessor(&fakeAPI{}, job, nil, nil, 10)
	require.Error(t, err)
	_, err = NewChunkProcessor(&fakeAPI{}, job, ledger, nil, 0)
	require.Error(t, err)
}
