package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// secretConfigKeys are never written to the generated configuration file.
var secretConfigKeys = map[string]bool{tokenConfigKey: true}

// initCmd represents the init command.
var initCmd = newInitCmd()

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate a default auditscope.yaml configuration file",
		Long: `Create an auditscope.yaml in the current working directory populated with the
current CLI defaults so it can be edited manually. The GitHub token is never
written; set AUDITSCOPE_GITHUB_TOKEN or GITHUB_TOKEN instead.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			targetPath := filepath.Join(configFolderPath, configFileName)

			out := viper.New()
			out.SetConfigType("yaml")

			for _, key := range viper.AllKeys() {
				if secretConfigKeys[key] {
					continue
				}

				out.Set(key, viper.Get(key))
			}

			err := out.SafeWriteConfigAs(targetPath)
			if err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
}
