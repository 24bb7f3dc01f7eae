package entity

import (
	"errors"
	"fmt"
)

// Item result status constants.
const (
	ItemStatusCompleted = "completed"
	ItemStatusFailed    = "failed"
)

// FieldSuggestion holds the current and suggested value for one product
// field. List-valued fields (e.g. tags) use the slice pair instead of
// the string pair.
type FieldSuggestion struct {
	Current       string
	Suggested     string
	CurrentList   []string
	SuggestedList []string
}

// IsListDiff returns true if the suggestion carries an array diff.
func (f FieldSuggestion) IsListDiff() bool {
	return f.CurrentList != nil || f.SuggestedList != nil
}

// ItemResult represents the outcome of enhancing a single product within
// one preview or processing pass.
type ItemResult struct {
	productID    int64
	productName  string
	status       string
	suggestions  map[string]FieldSuggestion
	errorMessage string
}

// NewCompletedItemResult creates an ItemResult for a product whose
// suggestions arrived successfully.
func NewCompletedItemResult(productID int64, productName string, suggestions map[string]FieldSuggestion) (ItemResult, error) {
	if productID <= 0 {
		return ItemResult{}, errors.New("invalid product ID")
	}
	if len(suggestions) == 0 {
		return ItemResult{}, errors.New("completed item result requires suggestions")
	}
	return ItemResult{
		productID:   productID,
		productName: productName,
		status:      ItemStatusCompleted,
		suggestions: suggestions,
	}, nil
}

// NewFailedItemResult creates an ItemResult for a product whose
// enhancement failed.
func NewFailedItemResult(productID int64, productName, errorMessage string) (ItemResult, error) {
	if productID <= 0 {
		return ItemResult{}, errors.New("invalid product ID")
	}
	if errorMessage == "" {
		return ItemResult{}, errors.New("failed item result requires an error message")
	}
	return ItemResult{
		productID:    productID,
		productName:  productName,
		status:       ItemStatusFailed,
		errorMessage: errorMessage,
	}, nil
}

// ProductID returns the product identifier.
func (r ItemResult) ProductID() int64 {
	return r.productID
}

// ProductName returns the product display name.
func (r ItemResult) ProductName() string {
	return r.productName
}

// Status returns the item status (completed or failed).
func (r ItemResult) Status() string {
	return r.status
}

// IsFailed returns true if the item failed.
func (r ItemResult) IsFailed() bool {
	return r.status == ItemStatusFailed
}

// Suggestions returns the per-field suggestions. Present only when the
// item completed.
func (r ItemResult) Suggestions() map[string]FieldSuggestion {
	return r.suggestions
}

// ErrorMessage returns the failure reason. Present only when the item
// failed.
func (r ItemResult) ErrorMessage() string {
	return r.errorMessage
}

// Validate ensures the item result is internally consistent.
func (r ItemResult) Validate() error {
	if r.productID <= 0 {
		return errors.New("invalid product ID")
	}
	switch r.status {
	case ItemStatusCompleted:
		if len(r.suggestions) == 0 {
			return errors.New("completed item result requires suggestions")
		}
		if r.errorMessage != "" {
			return errors.New("completed item result must not carry an error")
		}
	case ItemStatusFailed:
		if r.errorMessage == "" {
			return errors.New("failed item result requires an error message")
		}
		if len(r.suggestions) != 0 {
			return errors.New("failed item result must not carry suggestions")
		}
	default:
		return fmt.Errorf("invalid item status: %s", r.status)
	}
	return nil
}
