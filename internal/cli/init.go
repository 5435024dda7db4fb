package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/winspan/rewritedns/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file filled with defaults",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = "configs/config.yaml"
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("配置文件已存在: %s", path)
	}

	if err := config.SaveConfig(config.Default(), path); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "配置文件已写入:", path)
	return nil
}
