package cmd

import (
	"catalogboost/internal/client"

	"github.com/spf13/cobra"
)

const errMsgRequiresJobID = "requires exactly 1 argument: the job ID"

// newBatchStatusCmd creates the batch status command. The server stays
// authoritative for job state, so status works from any process given
// the job id.
func newBatchStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the server-side state of a batch job",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				_ = client.WriteError(cmd.OutOrStdout(), outputFormat(cmd), errCodeInvalidArgument, errMsgRequiresJobID, nil)
				return nil
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return nil
			}

			c, ok := createClientFromConfig(cmd, cmd.OutOrStdout())
			if !ok {
				return nil
			}

			result, err := c.GetJob(cmd.Context(), args[0])
			if err != nil {
				_ = client.WriteError(cmd.OutOrStdout(), outputFormat(cmd), determineErrorCode(err), err.Error(), nil)
				return nil
			}

			return client.WriteSuccess(cmd.OutOrStdout(), outputFormat(cmd), result)
		},
	}
}

// newBatchCancelCmd creates the batch cancel command for jobs owned by
// another (possibly dead) process.
func newBatchCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a batch job on the server",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				_ = client.WriteError(cmd.OutOrStdout(), outputFormat(cmd), errCodeInvalidArgument, errMsgRequiresJobID, nil)
				return nil
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return nil
			}

			c, ok := createClientFromConfig(cmd, cmd.OutOrStdout())
			if !ok {
				return nil
			}

			if err := c.CancelJob(cmd.Context(), args[0]); err != nil {
				_ = client.WriteError(cmd.OutOrStdout(), outputFormat(cmd), determineErrorCode(err), err.Error(), nil)
				return nil
			}

			return client.WriteSuccess(cmd.OutOrStdout(), outputFormat(cmd), map[string]string{
				"job_id": args[0],
				"status": "cancelled",
			})
		},
	}
}
