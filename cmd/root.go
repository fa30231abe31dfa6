// Package cmd provides the root command and CLI setup for auditscope.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"auditscope.dev/pkg/auditscope/internal/adapter"
	"auditscope.dev/pkg/auditscope/internal/controller"
	"auditscope.dev/pkg/auditscope/internal/domain"
	m "auditscope.dev/pkg/auditscope/internal/model"
)

var fsAdapter adapter.SourceFSAdapter
var reportStore adapter.ReportStore
var gitAdapter adapter.GitAdapter
var workspaceAdapter adapter.WorkspaceAdapter
var codeCounter adapter.CodeCounter
var syntaxChecker adapter.SyntaxChecker
var workflow domain.Workflow
var ui controller.UI

func init() {
	// Initialize shared dependencies.
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	reportStore = adapter.NewReportStore(fsAdapter)
	gitAdapter = adapter.NewLocalGitAdapter(configSeconds(gitTimeoutKey))
	workspaceAdapter = adapter.NewAFSWorkspaceAdapter(m.Path(viper.GetString(workspaceBaseKey)))
	codeCounter = adapter.NewClocCounter(configSeconds(clocTimeoutKey))
	syntaxChecker = adapter.NewTreeSitterChecker()
	workflow = domain.NewWorkflow(domain.WorkflowDeps{
		FS:         fsAdapter,
		Reports:    reportStore,
		Git:        gitAdapter,
		Workspaces: workspaceAdapter,
		Counter:    codeCounter,
		Syntax:     syntaxChecker,
		UI:         ui,
	})
}

const patternsHelp = `Include and exclude patterns:
  - src/*          every file under src
  - */test/*       a test directory at any depth
  - Mock.sol       a file name anywhere
  - *.t.sol        a glob on the file name
Excludes always win over includes.`

const targetsHelp = `Targets:
  - a local directory (default: current directory)
  - https://github.com/OWNER/REPO[/tree/BRANCH]
  - https://github.com/OWNER/REPO/commit/SHA
  - https://github.com/OWNER/REPO/pull/N
  - https://github.com/OWNER/REPO/compare/BASE...HEAD`

const rootLongDescription = `auditscope determines the scope of a smart contract audit: the files
selected by a scan or a change list, the local files they depend on, their
line counts, and which changed files fall outside the scope.

` + patternsHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auditscope",
		Short: "Audit scoping tool for Solidity, Rust and Cairo projects",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(viper.GetString(logFilenameKey), viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func newRootCmd() *cobra.Command {
	cmd := baseRootCmd()
	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.StringP(outputFlagName, "o", defaultOutputDir, "output directory for analysis reports")
	bindFlagToConfig(flags.Lookup(outputFlagName), outputFlagName)

	flags.StringSliceP(extensionFlagName, "e", defaultExtensions, "file extension to analyse (repeatable or comma separated)")
	bindFlagToConfig(flags.Lookup(extensionFlagName), extensionsConfigKey)

	flags.StringSliceP(includeFlagName, "i", nil, "only keep files matching pattern (repeatable or comma separated)")
	bindFlagToConfig(flags.Lookup(includeFlagName), includeConfigKey)

	flags.StringSliceP(excludeFlagName, "x", nil, "drop files matching pattern (repeatable or comma separated)")
	bindFlagToConfig(flags.Lookup(excludeFlagName), excludeConfigKey)

	flags.IntP(parallelFlagName, "p", defaultParallel, "number of parallel workers")
	bindFlagToConfig(flags.Lookup(parallelFlagName), parallelConfigKey)

	flags.BoolP(verboseFlagName, "v", defaultLogVerbose, "log at debug level")
	bindFlagToConfig(flags.Lookup(verboseFlagName), logVerboseKey)

	flags.String(logFileFlagName, defaultLogFilename, "log file path")
	bindFlagToConfig(flags.Lookup(logFileFlagName), logFilenameKey)
}

// configureTargetFlags adds the flags selecting a local or remote target.
func configureTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringP(urlFlagName, "u", "", "GitHub URL of a repository, branch, commit, pull request or comparison")
	cmd.Flags().StringP(dirFlagName, "d", "", "local project directory (default: current directory)")
	cmd.MarkFlagsMutuallyExclusive(urlFlagName, dirFlagName)

	cmd.Flags().String(tokenFlagName, "", "GitHub token used to clone private repositories")

	cmd.Flags().Bool(keepWorkspaceFlagName, false, "keep the cloned or copied workspace after the run")
}

// targetFromFlags builds the target from --url, --dir or a single positional
// argument holding either.
func targetFromFlags(cmd *cobra.Command, args []string) (m.Target, error) {
	rawURL, _ := cmd.Flags().GetString(urlFlagName)
	dir, _ := cmd.Flags().GetString(dirFlagName)

	if len(args) > 0 {
		if rawURL != "" || dir != "" {
			return m.Target{}, fmt.Errorf("a positional target cannot be combined with --%s or --%s", urlFlagName, dirFlagName)
		}

		if looksLikeURL(args[0]) {
			rawURL = args[0]
		} else {
			dir = args[0]
		}
	}

	if rawURL != "" {
		return adapter.ParseGitHubURL(rawURL)
	}

	if dir == "" {
		dir = "."
	}

	return m.Target{Kind: m.TargetLocal, Dir: m.Path(dir)}, nil
}

// tokenFromFlags returns --token when given, otherwise the configured token.
// The flag is shared by several commands, so it is not bound to viper.
func tokenFromFlags(cmd *cobra.Command) string {
	if flag := cmd.Flags().Lookup(tokenFlagName); flag != nil && flag.Changed {
		return flag.Value.String()
	}

	return viper.GetString(tokenConfigKey)
}

func looksLikeURL(arg string) bool {
	return strings.Contains(arg, "://") || strings.HasPrefix(arg, "github.com/") || strings.HasPrefix(arg, "www.github.com/")
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
