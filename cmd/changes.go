package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"auditscope.dev/pkg/auditscope/internal/domain"
	m "auditscope.dev/pkg/auditscope/internal/model"
)

// changesCmd represents the changes command.
var changesCmd = newChangesCmd()

func newChangesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Classify the changed files between two revisions",
		Long: `List the files changed between --base and --head in a local git repository,
split into files in scope and files dropped by the include/exclude patterns.

` + patternsHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, _ := cmd.Flags().GetString(dirFlagName)
			base, _ := cmd.Flags().GetString(baseFlagName)
			head, _ := cmd.Flags().GetString(headFlagName)

			return workflow.Changes(context.Background(), domain.ChangesArgs{
				Dir:   m.Path(dir),
				Base:  base,
				Head:  head,
				Rules: configRules(),
			})
		},
	}

	cmd.Flags().StringP(dirFlagName, "d", ".", "local git repository")
	cmd.Flags().String(baseFlagName, "", "base revision")
	cmd.Flags().String(headFlagName, "", "head revision")
	cobra.CheckErr(cmd.MarkFlagRequired(baseFlagName))
	cobra.CheckErr(cmd.MarkFlagRequired(headFlagName))

	return cmd
}

func init() {
	rootCmd.AddCommand(changesCmd)
}
