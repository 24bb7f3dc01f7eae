package outbound

import (
	"catalogboost/internal/domain/entity"
	"context"

	"github.com/google/uuid"
)

// RunRecord is the archived summary of one finished processing run.
type RunRecord struct {
	ID         uuid.UUID
	JobID      string
	FinalPhase string
	Counters   entity.Counters
	Results    []entity.ItemResult
}

// RunArchiver persists finished run outcomes for later inspection. The
// orchestrator works without one; archiving is strictly additive.
type RunArchiver interface {
	// ArchiveRun stores the run summary and its per-item outcomes.
	ArchiveRun(ctx context.Context, record RunRecord) error
}
