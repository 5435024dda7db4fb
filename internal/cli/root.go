package cli

import (
	"github.com/spf13/cobra"
)

var AppVersion = "Development"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "rewritedns",
	Short:         "DNS rewrite server with a terminal console",
	Long:          "rewritedns answers DNS queries from a list of rewrite rules, forwards everything else upstream, and ships a terminal console to manage the rules.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = AppVersion
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default configs/config.yaml)")
}

// Execute 运行根命令
func Execute() error {
	return rootCmd.Execute()
}
