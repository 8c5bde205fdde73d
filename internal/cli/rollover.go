package cli

import (
	"log"

	"github.com/spf13/cobra"
)

// NewRolloverCmd runs one period rollover and exits. Meant for cron or
// operator use when the in-process scheduler is disabled.
func NewRolloverCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rollover",
		Short: "Archive expired leaderboard periods and grant rewards",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			st, err := buildStack(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.close()

			if err := st.scheduler.Rollover(cmd.Context()); err != nil {
				return err
			}
			log.Printf("rollover complete")
			return nil
		},
	}
}
