package cmds

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"homeworkbot/internal/app"
	logx "homeworkbot/pkg/logx"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Print recent notification deliveries from storage as JSON lines",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		entries, err := app.RecentAudit(cmd.Context(), cfg, auditLimit, logx.NewConsole("warn"))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "number of most recent entries (0 for all)")
}
