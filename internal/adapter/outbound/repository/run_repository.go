package repository

import (
	"catalogboost/internal/domain/entity"
	"catalogboost/internal/port/outbound"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Table name constants.
const (
	enhancementRunsTable    = "catalogboost.enhancement_runs"
	enhancementResultsTable = "catalogboost.enhancement_run_results"
)

// suggestionRow is the JSONB shape for one field suggestion.
type suggestionRow struct {
	Current       string   `json:"current,omitempty"`
	Suggested     string   `json:"suggested,omitempty"`
	CurrentList   []string `json:"current_list,omitempty"`
	SuggestedList []string `json:"suggested_list,omitempty"`
}

// PostgreSQLRunRepository implements the RunArchiver interface. Each
// archived run is one row plus one row per item outcome, written in a
// single transaction.
type PostgreSQLRunRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLRunRepository creates a new PostgreSQL run repository.
func NewPostgreSQLRunRepository(pool *pgxpool.Pool) *PostgreSQLRunRepository {
	return &PostgreSQLRunRepository{
		pool: pool,
	}
}

var _ outbound.RunArchiver = (*PostgreSQLRunRepository)(nil)

// ArchiveRun stores the run summary and its per-item outcomes.
func (r *PostgreSQLRunRepository) ArchiveRun(ctx context.Context, record outbound.RunRecord) error {
	if record.ID == uuid.Nil {
		return ErrInvalidArgument
	}
	if record.JobID == "" {
		return ErrInvalidArgument
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return WrapError(err, "begin archive run transaction")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	runQuery := fmt.Sprintf(`
		INSERT INTO %s (
			id, job_id, final_phase, processed, succeeded, failed, tokens_used, archived_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, enhancementRunsTable)

	_, err = tx.Exec(ctx, runQuery,
		record.ID,
		record.JobID,
		record.FinalPhase,
		record.Counters.Processed,
		record.Counters.Succeeded,
		record.Counters.Failed,
		record.Counters.TokensUsed,
		time.Now().UTC(),
	)
	if err != nil {
		return WrapError(err, "insert enhancement run")
	}

	if err := r.insertResults(ctx, tx, record.ID, record.Results); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return WrapError(err, "commit archive run transaction")
	}
	return nil
}

// insertResults writes one row per item outcome.
func (r *PostgreSQLRunRepository) insertResults(
	ctx context.Context,
	tx pgx.Tx,
	runID uuid.UUID,
	results []entity.ItemResult,
) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			run_id, product_id, product_name, status, suggestions, error_message
		) VALUES ($1, $2, $3, $4, $5, $6)`, enhancementResultsTable)

	for _, result := range results {
		suggestions, err := marshalSuggestions(result.Suggestions())
		if err != nil {
			return fmt.Errorf("marshal suggestions for product %d: %w", result.ProductID(), err)
		}

		_, err = tx.Exec(ctx, query,
			runID,
			result.ProductID(),
			result.ProductName(),
			result.Status(),
			suggestions,
			result.ErrorMessage(),
		)
		if err != nil {
			return WrapError(err, "insert enhancement run result")
		}
	}
	return nil
}

// GetRunResults retrieves the archived item outcomes for a run in
// product-id order.
func (r *PostgreSQLRunRepository) GetRunResults(ctx context.Context, runID uuid.UUID) ([]entity.ItemResult, error) {
	if runID == uuid.Nil {
		return nil, ErrInvalidArgument
	}

	query := fmt.Sprintf(`
		SELECT product_id, product_name, status, suggestions, error_message
		FROM %s WHERE run_id = $1 ORDER BY product_id ASC`, enhancementResultsTable)

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, WrapError(err, "get run results")
	}
	defer rows.Close()

	var results []entity.ItemResult
	for rows.Next() {
		var (
			productID    int64
			productName  string
			status       string
			suggestions  []byte
			errorMessage string
		)
		if err := rows.Scan(&productID, &productName, &status, &suggestions, &errorMessage); err != nil {
			return nil, WrapError(err, "scan run result row")
		}

		result, err := rowToItemResult(productID, productName, status, suggestions, errorMessage)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(err, "iterate run result rows")
	}
	return results, nil
}

// marshalSuggestions encodes the suggestion map as JSONB. A nil map is
// stored as SQL NULL.
func marshalSuggestions(suggestions map[string]entity.FieldSuggestion) ([]byte, error) {
	if len(suggestions) == 0 {
		return nil, nil
	}
	rows := make(map[string]suggestionRow, len(suggestions))
	for field, s := range suggestions {
		rows[field] = suggestionRow{
			Current:       s.Current,
			Suggested:     s.Suggested,
			CurrentList:   s.CurrentList,
			SuggestedList: s.SuggestedList,
		}
	}
	return json.Marshal(rows)
}

// rowToItemResult rebuilds an item result from its archived columns.
func rowToItemResult(
	productID int64,
	productName, status string,
	suggestionsJSON []byte,
	errorMessage string,
) (entity.ItemResult, error) {
	if status == entity.ItemStatusFailed {
		return entity.NewFailedItemResult(productID, productName, errorMessage)
	}

	var rows map[string]suggestionRow
	if err := json.Unmarshal(suggestionsJSON, &rows); err != nil {
		return entity.ItemResult{}, fmt.Errorf("unmarshal suggestions for product %d: %w", productID, err)
	}
	suggestions := make(map[string]entity.FieldSuggestion, len(rows))
	for field, s := range rows {
		suggestions[field] = entity.FieldSuggestion{
			Current:       s.Current,
			Suggested:     s.Suggested,
			CurrentList:   s.CurrentList,
			SuggestedList: s.SuggestedList,
		}
	}
	return entity.NewCompletedItemResult(productID, productName, suggestions)
}
