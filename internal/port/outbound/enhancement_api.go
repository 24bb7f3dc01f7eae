package outbound

import (
	"catalogboost/internal/application/dto"
	"context"
	"io"
)

// EnhancementAPI is the outbound port for the remote enhancement job
// service. Each method issues exactly one job-lifecycle request; none of
// them retries on transport failure. Preview and Refine return a live
// event stream for the caller to consume and close.
type EnhancementAPI interface {
	CreateJob(ctx context.Context, req dto.CreateJobRequest) (*dto.CreateJobResponse, error)
	GetJob(ctx context.Context, jobID string) (*dto.GetJobResponse, error)
	Preview(ctx context.Context, jobID string, req dto.PreviewRequest) (io.ReadCloser, error)
	Refine(ctx context.Context, jobID string, req dto.RefineRequest) (io.ReadCloser, error)
	Approve(ctx context.Context, jobID string) error
	ProcessChunk(ctx context.Context, jobID string, req dto.ProcessChunkRequest) (*dto.ProcessChunkResponse, error)
	PauseJob(ctx context.Context, jobID string) error
	ResumeJob(ctx context.Context, jobID string) error
	CancelJob(ctx context.Context, jobID string) error
	RetryFailed(ctx context.Context, jobID string, req dto.RetryFailedRequest) (*dto.RetryFailedResponse, error)
	AttachFile(ctx context.Context, jobID, filename string, content []byte) (*dto.AttachFileResponse, error)
	Balance(ctx context.Context) (*dto.BalanceResponse, error)
}
