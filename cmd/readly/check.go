package cmd

import (
	"fmt"

	"github.com/kerbaras/readly/pkg/app/styles"
	"github.com/kerbaras/readly/pkg/services"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the access token has an active subscription",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		source, err := rt.source(rt.cfg.Download.Resolution, true)
		if err != nil {
			return err
		}

		if !source.ValidateToken(cmd.Context()) {
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			return fmt.Errorf("%w: token rejected or subscription inactive", services.ErrAuth)
		}
		fmt.Fprintln(cmd.OutOrStdout(), styles.StatusCompleted.Render("✓ token is valid"))
		return nil
	},
}
