package cmds

import (
	"context"

	"github.com/spf13/cobra"

	"homeworkbot/internal/app"
	"homeworkbot/internal/config"
	logx "homeworkbot/pkg/logx"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:           "homeworkbot",
	Short:         "Polls homework review statuses and reports changes to Telegram",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runE,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start polling (default)",
	RunE:  runE,
}

func runE(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.NewApp(cfg)
	if err != nil {
		return err
	}
	return a.Run(cmd.Context())
}

func loadConfig() (*config.Config, error) {
	return config.Load(config.Options{
		Path:    configPath,
		EnvFile: envFile,
		Log:     logx.NewConsole("warn"),
	})
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON or YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file with credentials (default "+config.DefaultEnvFile+", ignored when missing)")
	rootCmd.AddCommand(runCmd, checkCmd, auditCmd)
}
