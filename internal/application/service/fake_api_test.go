package service

import (
	"context"
	"errors"
	"io"
	"sync"

	"catalogboost/internal/application/dto"
)

// fakeAPI is a configurable in-memory EnhancementAPI double. Unset
// operations succeed with zero-value responses.
type fakeAPI struct {
	mu sync.Mutex

	createJobFn    func(req dto.CreateJobRequest) (*dto.CreateJobResponse, error)
	previewFn      func(jobID string, req dto.PreviewRequest) (io.ReadCloser, error)
	refineFn       func(jobID string, req dto.RefineRequest) (io.ReadCloser, error)
	processChunkFn func(jobID string, req dto.ProcessChunkRequest) (*dto.ProcessChunkResponse, error)
	retryFailedFn  func(jobID string, req dto.RetryFailedRequest) (*dto.RetryFailedResponse, error)
	attachFileFn   func(jobID, filename string, content []byte) (*dto.AttachFileResponse, error)
	balanceFn      func() (*dto.BalanceResponse, error)

	processCalls []dto.ProcessChunkRequest
	retryCalls   []dto.RetryFailedRequest
	approveCalls int
	pauseCalls   int
	resumeCalls  int
	cancelCalls  int
}

func (f *fakeAPI) CreateJob(_ context.Context, req dto.CreateJobRequest) (*dto.CreateJobResponse, error) {
	if f.createJobFn != nil {
		return f.createJobFn(req)
	}
	return &dto.CreateJobResponse{Job: dto.JobResource{ID: "job-test", Status: "preview_pending"}}, nil
}

func (f *fakeAPI) GetJob(_ context.Context, jobID string) (*dto.GetJobResponse, error) {
	return &dto.GetJobResponse{Job: dto.JobResource{ID: jobID}}, nil
}

func (f *fakeAPI) Preview(_ context.Context, jobID string, req dto.PreviewRequest) (io.ReadCloser, error) {
	if f.previewFn != nil {
		return f.previewFn(jobID, req)
	}
	return nil, errors.New("preview not configured")
}

func (f *fakeAPI) Refine(_ context.Context, jobID string, req dto.RefineRequest) (io.ReadCloser, error) {
	if f.refineFn != nil {
		return f.refineFn(jobID, req)
	}
	return nil, errors.New("refine not configured")
}

func (f *fakeAPI) Approve(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approveCalls++
	return nil
}

func (f *fakeAPI) ProcessChunk(
	_ context.Context,
	jobID string,
	req dto.ProcessChunkRequest,
) (*dto.ProcessChunkResponse, error) {
	f.mu.Lock()
	f.processCalls = append(f.processCalls, req)
	f.mu.Unlock()
	if f.processChunkFn != nil {
		return f.processChunkFn(jobID, req)
	}
	return completedChunkResponse(req.ProductIDs, 0, nil), nil
}

func (f *fakeAPI) PauseJob(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauseCalls++
	return nil
}

func (f *fakeAPI) ResumeJob(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumeCalls++
	return nil
}

func (f *fakeAPI) CancelJob(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return nil
}

func (f *fakeAPI) RetryFailed(
	_ context.Context,
	jobID string,
	req dto.RetryFailedRequest,
) (*dto.RetryFailedResponse, error) {
	f.mu.Lock()
	f.retryCalls = append(f.retryCalls, req)
	f.mu.Unlock()
	if f.retryFailedFn != nil {
		return f.retryFailedFn(jobID, req)
	}
	return &dto.RetryFailedResponse{}, nil
}

func (f *fakeAPI) AttachFile(_ context.Context, jobID, filename string, content []byte) (*dto.AttachFileResponse, error) {
	if f.attachFileFn != nil {
		return f.attachFileFn(jobID, filename, content)
	}
	return &dto.AttachFileResponse{
		Attachment: dto.AttachmentDTO{ID: "att-" + filename, Filename: filename},
	}, nil
}

func (f *fakeAPI) Balance(_ context.Context) (*dto.BalanceResponse, error) {
	if f.balanceFn != nil {
		return f.balanceFn()
	}
	return &dto.BalanceResponse{Balance: 1000}, nil
}

func (f *fakeAPI) processedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for _, call := range f.processCalls {
		ids = append(ids, call.ProductIDs...)
	}
	return ids
}

// completedChunkResponse builds a successful chunk response covering the
// given ids.
func completedChunkResponse(ids []int64, tokens int, newBalance *int64) *dto.ProcessChunkResponse {
	results := make([]dto.ItemResultDTO, 0, len(ids))
	for _, id := range ids {
		results = append(results, dto.ItemResultDTO{
			ProductID:   id,
			ProductName: "Widget",
			Status:      "completed",
			Suggestions: map[string]dto.SuggestionDTO{
				"description": {Current: "old", Suggested: "new"},
			},
		})
	}
	return &dto.ProcessChunkResponse{
		BatchResults: results,
		TokensUsed:   dto.TokensUsed{Total: tokens},
		NewBalance:   newBalance,
	}
}

// staticProducts is a trivial ProductSource for tests.
type staticProducts struct{}

func (staticProducts) ResolvePayloads(_ context.Context, ids []int64) ([]dto.ProductPayload, error) {
	payloads := make([]dto.ProductPayload, 0, len(ids))
	for _, id := range ids {
		payloads = append(payloads, dto.ProductPayload{ID: id, Name: "Widget"})
	}
	return payloads, nil
}
