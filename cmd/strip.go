package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"auditscope.dev/pkg/auditscope/internal/domain"
)

// stripCmd represents the strip command.
var stripCmd = newStripCmd()

func newStripCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strip [url|dir]",
		Short: "Remove test code from Rust and Cairo sources",
		Long: `Remove #[test] functions, #[cfg(test)] items and test modules from .rs and
.cairo files, and delete files whose name contains "test".

Local directories are modified in place; remote targets are cloned into a
workspace that is kept afterwards. Use --dry-run to print the diffs only.

` + targetsHelp,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := targetFromFlags(cmd, args)
			if err != nil {
				return err
			}

			dryRun, _ := cmd.Flags().GetBool(dryRunFlagName)
			keep, _ := cmd.Flags().GetBool(keepWorkspaceFlagName)

			return workflow.Strip(context.Background(), domain.StripArgs{
				Target:        target,
				Token:         tokenFromFlags(cmd),
				Threads:       viper.GetInt(parallelConfigKey),
				DryRun:        dryRun,
				KeepWorkspace: keep,
			})
		},
	}

	configureTargetFlags(cmd)
	cmd.Flags().Bool(dryRunFlagName, false, "print the diffs without modifying any file")

	return cmd
}

func init() {
	rootCmd.AddCommand(stripCmd)
}
