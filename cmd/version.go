package cmd

import (
	"runtime/debug"

	"github.com/spf13/cobra"
)

// buildVersion is set with -ldflags "-X auditscope.dev/pkg/auditscope/cmd.buildVersion=v1.2.3".
var buildVersion = ""

// resolveVersion prefers the linker-provided version, then the module version
// recorded in the build info.
func resolveVersion(info *debug.BuildInfo, ok bool) string {
	if buildVersion != "" {
		return buildVersion
	}

	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "unknown"
	}

	return info.Main.Version
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the auditscope version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info, ok := debug.ReadBuildInfo()

			cmd.Printf("auditscope\t%s\n", resolveVersion(info, ok))
			cmd.Printf("config schema\t%d\n", currentConfigVersion)

			if ok {
				cmd.Printf("go\t\t%s\n", info.GoVersion)
			}
		},
	}
}

// versionCmd represents the version command.
var versionCmd = newVersionCmd()

func init() {
	rootCmd.AddCommand(versionCmd)
}
