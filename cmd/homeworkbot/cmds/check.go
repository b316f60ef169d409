package cmds

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"homeworkbot/internal/app"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and print it with secrets masked",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.Check(cfg); err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg.Redacted())
	},
}
