package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"catalogboost/internal/application/dto"
	"catalogboost/internal/client"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const errMsgRequiresJobAndFiles = "requires a job ID and at least one file"

// newBatchAttachCmd creates the batch attach command. Files upload
// concurrently; the MIME type is sniffed from content, not the name.
func newBatchAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <job-id> <file>...",
		Short: "Upload reference files for preview refinement",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				_ = client.WriteError(cmd.OutOrStdout(), outputFormat(cmd), errCodeInvalidArgument, errMsgRequiresJobAndFiles, nil)
				return nil
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return nil
			}

			c, ok := createClientFromConfig(cmd, cmd.OutOrStdout())
			if !ok {
				return nil
			}

			jobID := args[0]
			paths := args[1:]

			attachments := make([]dto.AttachmentDTO, len(paths))
			group, ctx := errgroup.WithContext(cmd.Context())
			group.SetLimit(3)
			for i, path := range paths {
				i, path := i, path
				group.Go(func() error {
					content, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("failed to read %s: %w", path, err)
					}
					resp, err := c.AttachFile(ctx, jobID, filepath.Base(path), content)
					if err != nil {
						return fmt.Errorf("failed to upload %s: %w", path, err)
					}
					attachments[i] = resp.Attachment
					return nil
				})
			}
			if err := group.Wait(); err != nil {
				_ = client.WriteError(cmd.OutOrStdout(), outputFormat(cmd), determineErrorCode(err), err.Error(), nil)
				return nil
			}

			return client.WriteSuccess(cmd.OutOrStdout(), outputFormat(cmd), map[string]interface{}{
				"job_id":      jobID,
				"attachments": attachments,
			})
		},
	}
}
