package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/winspan/rewritedns/internal/console"
	"github.com/winspan/rewritedns/pkg/config"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Manage DNS rewrites from the terminal",
	RunE:  runConsole,
}

var (
	consoleAPI   string
	consoleToken string
	consoleLang  string
)

func init() {
	consoleCmd.Flags().StringVar(&consoleAPI, "api", "", "Control API base URL")
	consoleCmd.Flags().StringVar(&consoleToken, "token", "", "Bearer token for the control API")
	consoleCmd.Flags().StringVar(&consoleLang, "lang", "", "UI language: zh, en")
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("api") {
		cfg.Console.API = consoleAPI
	}
	if cmd.Flags().Changed("token") {
		cfg.Console.Token = consoleToken
	}
	if cmd.Flags().Changed("lang") {
		cfg.Console.Lang = consoleLang
	}

	t := console.NewTranslator(cfg.Console.Lang)
	client := console.NewClient(cfg.Console.API, cfg.Console.Token, cfg.ConsoleRequestTimeout())
	store := console.NewStore(cmd.Context(), client, t, cfg.ConsoleRequestTimeout())
	app := console.NewApp(store, t, cfg.SearchDebounce())

	_, err = tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}
