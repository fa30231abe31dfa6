package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"auditscope.dev/pkg/auditscope/internal/domain"
	m "auditscope.dev/pkg/auditscope/internal/model"
)

const analyzeLongDescription = `Analyse a local directory or a GitHub target.

Primary files are every file with a configured extension, or the changed
files of a pull request, commit or comparison. Local files they import are
added as dependencies. Reports are written to the output directory.

` + targetsHelp + `

` + patternsHelp

// analyzeCmd represents the analyze command.
var analyzeCmd = newAnalyzeCmd()

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [url|dir]",
		Short: "Determine the audit scope of a project",
		Long:  analyzeLongDescription,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := targetFromFlags(cmd, args)
			if err != nil {
				return err
			}

			keep, _ := cmd.Flags().GetBool(keepWorkspaceFlagName)

			return workflow.Analyze(context.Background(), domain.AnalyzeArgs{
				Target:        target,
				Token:         tokenFromFlags(cmd),
				Extensions:    configList(extensionsConfigKey),
				Rules:         configRules(),
				Output:        m.Path(viper.GetString(outputFlagName)),
				Threads:       viper.GetInt(parallelConfigKey),
				KeepWorkspace: keep,
				RemoveTests:   viper.GetBool(removeTestsConfigKey),
			})
		},
	}

	configureTargetFlags(cmd)

	cmd.Flags().Bool(removeTestsFlagName, defaultRemoveTests, "strip Rust and Cairo test code before resolving")
	bindFlagToConfig(cmd.Flags().Lookup(removeTestsFlagName), removeTestsConfigKey)

	return cmd
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
