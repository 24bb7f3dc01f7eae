package cmd

import (
	"errors"
	"io"
	"strings"

	"catalogboost/internal/client"
	domainerrors "catalogboost/internal/domain/errors/domain"

	"github.com/spf13/cobra"
)

// Error codes returned in the CLI error envelope.
const (
	errCodeInvalidConfig       = "INVALID_CONFIG"
	errCodeClientError         = "CLIENT_ERROR"
	errCodeConnectionError     = "CONNECTION_ERROR"
	errCodeTimeoutError        = "TIMEOUT_ERROR"
	errCodeServerError         = "SERVER_ERROR"
	errCodeAPIError            = "API_ERROR"
	errCodeInvalidArgument     = "INVALID_ARGUMENT"
	errCodeNotFound            = "NOT_FOUND"
	errCodeUnauthorized        = "UNAUTHORIZED"
	errCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	errCodeInvalidTransition   = "INVALID_TRANSITION"
	errCodeStreamError         = "STREAM_ERROR"
	errCodeOperationInFlight   = "OPERATION_IN_FLIGHT"
)

// outputFormat reads the global --format flag.
func outputFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("format")
	return format
}

// createClientFromConfig creates and validates an API client from the
// loaded configuration. It writes an error envelope and returns false on
// failure.
func createClientFromConfig(cmd *cobra.Command, out io.Writer) (*client.Client, bool) {
	conf := GetConfig()
	clientCfg := &client.Config{
		APIURL:  conf.API.BaseURL,
		APIKey:  conf.API.Key,
		Timeout: conf.API.Timeout,
	}
	if err := clientCfg.Validate(); err != nil {
		_ = client.WriteError(out, outputFormat(cmd), errCodeInvalidConfig, err.Error(), nil)
		return nil, false
	}

	c, err := client.NewClient(clientCfg)
	if err != nil {
		_ = client.WriteError(out, outputFormat(cmd), errCodeClientError, err.Error(), nil)
		return nil, false
	}

	return c, true
}

// determineErrorCode classifies a failure for the error envelope. Typed
// domain errors are matched first; transport failures fall back to
// message inspection the way plain net errors surface.
func determineErrorCode(err error) string {
	var remote *domainerrors.RemoteError
	if errors.As(err, &remote) {
		switch {
		case remote.Code == 401 || remote.Code == 403:
			return errCodeUnauthorized
		case remote.Code == 402:
			return errCodeInsufficientBalance
		case remote.Code == 404:
			return errCodeNotFound
		case remote.Code >= 500:
			return errCodeServerError
		default:
			return errCodeAPIError
		}
	}

	var transition *domainerrors.InvalidTransition
	if errors.As(err, &transition) {
		return errCodeInvalidTransition
	}
	if errors.Is(err, domainerrors.ErrJobTerminal) {
		return errCodeInvalidTransition
	}
	if domainerrors.IsStreamError(err) {
		return errCodeStreamError
	}
	if errors.Is(err, domainerrors.ErrOperationInFlight) {
		return errCodeOperationInFlight
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return errCodeConnectionError
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
		return errCodeTimeoutError
	}
	return errCodeAPIError
}

// newBatchCmd creates and returns the batch parent command.
func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Manage batch enhancement jobs",
	}

	cmd.AddCommand(newBatchRunCmd())
	cmd.AddCommand(newBatchStatusCmd())
	cmd.AddCommand(newBatchCancelCmd())
	cmd.AddCommand(newBatchAttachCmd())

	return cmd
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newBalanceCmd())
}
