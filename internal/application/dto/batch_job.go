package dto

import (
	"catalogboost/internal/domain/entity"
	"time"
)

// Job type constant sent on job creation.
const JobTypeBulkEnhancement = "bulk_enhancement"

// CreateJobRequest is the body for POST /ai/batch/jobs.
type CreateJobRequest struct {
	JobType       string           `json:"job_type"`
	ProductIDs    []int64          `json:"product_ids"`
	Options       CreateJobOptions `json:"options"`
	StoreContext  string           `json:"store_context,omitempty"`
	UserDirection string           `json:"user_direction,omitempty"`
}

// CreateJobOptions carries the enhancement configuration for a new job.
type CreateJobOptions struct {
	Enhancements []string `json:"enhancements"`
}

// CreateJobResponse is the response for job creation.
type CreateJobResponse struct {
	Job JobResource `json:"job"`
}

// JobResource represents the server-side view of a batch job.
type JobResource struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	ProductIDs []int64    `json:"product_ids,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// GetJobResponse is the response for reading a job by id.
type GetJobResponse struct {
	Job JobResource `json:"job"`
}

// ProductPayload carries one product's current content. Preview, refine
// and retry-failed all submit payloads rather than bare ids because the
// original per-product request context may have been superseded.
type ProductPayload struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	ShortDescription string   `json:"short_description,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	SEOTitle         string   `json:"seo_title,omitempty"`
	SEODescription   string   `json:"seo_description,omitempty"`
}

// PreviewRequest is the body for POST /ai/batch/jobs/{id}/preview.
type PreviewRequest struct {
	Products []ProductPayload `json:"products"`
}

// RefineRequest is the body for POST /ai/batch/jobs/{id}/refine.
type RefineRequest struct {
	Products           []ProductPayload `json:"products"`
	SelectedOptions    []string         `json:"selected_options,omitempty"`
	AdditionalComments string           `json:"additional_comments,omitempty"`
	AttachmentIDs      []string         `json:"attachment_ids,omitempty"`
}

// ProcessChunkRequest is the body for POST /ai/batch/jobs/{id}/process.
// It carries only the chunk's product ids; the remote side resolves the
// actual content from its own approved preview state.
type ProcessChunkRequest struct {
	ProductIDs []int64 `json:"product_ids"`
}

// TokensUsed reports token consumption for one operation.
type TokensUsed struct {
	Total int `json:"total"`
}

// ProcessChunkResponse is the response for one process-chunk call.
type ProcessChunkResponse struct {
	BatchResults []ItemResultDTO `json:"batch_results"`
	TokensUsed   TokensUsed      `json:"tokens_used"`
	NewBalance   *int64          `json:"new_balance,omitempty"`
}

// RetryFailedRequest is the body for POST /ai/batch/jobs/{id}/retry-failed.
type RetryFailedRequest struct {
	Products []ProductPayload `json:"products"`
}

// RetryFailedResponse is the response for a retry-failed call.
type RetryFailedResponse struct {
	RetryResults   []ItemResultDTO `json:"retry_results"`
	NewlySucceeded int             `json:"newly_succeeded"`
	StillFailed    int             `json:"still_failed"`
	TokensUsed     TokensUsed      `json:"tokens_used"`
	NewBalance     *int64          `json:"new_balance,omitempty"`
}

// AttachFileResponse is the response for an attachment upload.
type AttachFileResponse struct {
	Attachment AttachmentDTO `json:"attachment"`
}

// AttachmentDTO represents one uploaded reference file.
type AttachmentDTO struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
}

// BalanceResponse is the response for a balance re-fetch.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

// SuggestionDTO is the wire form of one field suggestion. String fields
// use current/suggested; list fields use the array pair.
type SuggestionDTO struct {
	Current       string   `json:"current,omitempty"`
	Suggested     string   `json:"suggested,omitempty"`
	CurrentList   []string `json:"current_list,omitempty"`
	SuggestedList []string `json:"suggested_list,omitempty"`
}

// ItemResultDTO is the wire form of one product's outcome, used both in
// chunk/retry responses and in product_result stream events.
type ItemResultDTO struct {
	ProductID   int64                    `json:"product_id"`
	ProductName string                   `json:"product_name"`
	Status      string                   `json:"status"`
	Suggestions map[string]SuggestionDTO `json:"suggestions,omitempty"`
	Error       string                   `json:"error,omitempty"`
}

// ToEntity converts the wire result into a domain ItemResult.
func (d ItemResultDTO) ToEntity() (entity.ItemResult, error) {
	if d.Status == entity.ItemStatusFailed {
		return entity.NewFailedItemResult(d.ProductID, d.ProductName, d.Error)
	}

	suggestions := make(map[string]entity.FieldSuggestion, len(d.Suggestions))
	for field, s := range d.Suggestions {
		suggestions[field] = entity.FieldSuggestion{
			Current:       s.Current,
			Suggested:     s.Suggested,
			CurrentList:   s.CurrentList,
			SuggestedList: s.SuggestedList,
		}
	}
	return entity.NewCompletedItemResult(d.ProductID, d.ProductName, suggestions)
}

// FromEntity converts a domain ItemResult into its wire form.
func FromEntity(result entity.ItemResult) ItemResultDTO {
	d := ItemResultDTO{
		ProductID:   result.ProductID(),
		ProductName: result.ProductName(),
		Status:      result.Status(),
		Error:       result.ErrorMessage(),
	}
	if suggestions := result.Suggestions(); len(suggestions) > 0 {
		d.Suggestions = make(map[string]SuggestionDTO, len(suggestions))
		for field, s := range suggestions {
			d.Suggestions[field] = SuggestionDTO{
				Current:       s.Current,
				Suggested:     s.Suggested,
				CurrentList:   s.CurrentList,
				SuggestedList: s.SuggestedList,
			}
		}
	}
	return d
}
