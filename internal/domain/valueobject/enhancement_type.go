package valueobject

import "fmt"

// EnhancementType identifies one kind of product content enhancement a
// batch job can request.
type EnhancementType string

// Enhancement type constants.
const (
	EnhancementDescription      EnhancementType = "description"
	EnhancementShortDescription EnhancementType = "short_description"
	EnhancementTags             EnhancementType = "tags"
	EnhancementSEOTitle         EnhancementType = "seo_title"
	EnhancementSEODescription   EnhancementType = "seo_description"
)

// validEnhancementTypes contains all valid enhancement types.
var validEnhancementTypes = map[EnhancementType]bool{
	EnhancementDescription:      true,
	EnhancementShortDescription: true,
	EnhancementTags:             true,
	EnhancementSEOTitle:         true,
	EnhancementSEODescription:   true,
}

// NewEnhancementType creates a new EnhancementType with validation.
func NewEnhancementType(value string) (EnhancementType, error) {
	e := EnhancementType(value)
	if !validEnhancementTypes[e] {
		return "", fmt.Errorf("invalid enhancement type: %s", value)
	}
	return e, nil
}

// String returns the string representation of the enhancement type.
func (e EnhancementType) String() string {
	return string(e)
}

// IsListField returns true if the enhancement produces a list-valued
// field (suggestions carry an array diff instead of a string pair).
func (e EnhancementType) IsListField() bool {
	return e == EnhancementTags
}

// ParseEnhancementTypes validates a slice of raw enhancement names,
// preserving order and rejecting duplicates.
func ParseEnhancementTypes(values []string) ([]EnhancementType, error) {
	seen := make(map[EnhancementType]bool, len(values))
	result := make([]EnhancementType, 0, len(values))
	for _, value := range values {
		e, err := NewEnhancementType(value)
		if err != nil {
			return nil, err
		}
		if seen[e] {
			return nil, fmt.Errorf("duplicate enhancement type: %s", value)
		}
		seen[e] = true
		result = append(result, e)
	}
	return result, nil
}

// AllEnhancementTypes returns all valid enhancement types.
func AllEnhancementTypes() []EnhancementType {
	types := make([]EnhancementType, 0, len(validEnhancementTypes))
	for t := range validEnhancementTypes {
		types = append(types, t)
	}
	return types
}
