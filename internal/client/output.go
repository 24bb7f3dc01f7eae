// Package client provides the typed remote job API client plus the CLI
// output envelope: a standard success/error JSON (or YAML) structure
// with timestamp tracking.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Output formats supported by the CLI envelope.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Response represents the output envelope for all CLI command outputs.
// The Data and Error fields are mutually exclusive.
type Response struct {
	Success   bool        `json:"success"              yaml:"success"`
	Data      interface{} `json:"data,omitempty"       yaml:"data,omitempty"`
	Error     *Error      `json:"error,omitempty"      yaml:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"            yaml:"timestamp"`
}

// Error represents structured error information in a CLI response.
type Error struct {
	Code    string      `json:"code"              yaml:"code"`
	Message string      `json:"message"           yaml:"message"`
	Details interface{} `json:"details,omitempty" yaml:"details,omitempty"`
}

// WriteSuccess writes a success envelope in the given format (json when
// format is empty).
func WriteSuccess(w io.Writer, format string, data interface{}) error {
	return writeResponse(w, format, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteError writes an error envelope with a machine-readable code, a
// human-readable message, and optional details.
func WriteError(w io.Writer, format, code, message string, details interface{}) error {
	return writeResponse(w, format, Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now(),
	})
}

func writeResponse(w io.Writer, format string, response Response) error {
	switch format {
	case "", FormatJSON:
		return json.NewEncoder(w).Encode(response)
	case FormatYAML:
		return yaml.NewEncoder(w).Encode(response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
