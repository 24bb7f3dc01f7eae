package cmd

import (
	"catalogboost/internal/client"

	"github.com/spf13/cobra"
)

// newBalanceCmd creates the balance command. The server's figure is
// authoritative; this re-fetch replaces any client-side estimate.
func newBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the current AI token balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, ok := createClientFromConfig(cmd, cmd.OutOrStdout())
			if !ok {
				return nil
			}

			result, err := c.Balance(cmd.Context())
			if err != nil {
				_ = client.WriteError(cmd.OutOrStdout(), outputFormat(cmd), determineErrorCode(err), err.Error(), nil)
				return nil
			}

			return client.WriteSuccess(cmd.OutOrStdout(), outputFormat(cmd), result)
		},
	}
}
