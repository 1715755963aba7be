package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/medremind/internal/config"
	"github.com/manav03panchal/medremind/internal/tui"
)

var watchFlagRefresh time.Duration

// watchCmd opens the interactive dose dashboard.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch today's doses in an interactive dashboard",
	Long: `Show today's dose schedule with a countdown to the next dose.

Keys:
  up/down, j/k   select a dose
  t, enter       log the selected medication as taken
  r              reload
  q              quit`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchFlagRefresh, "refresh", time.Second, "clock refresh interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	userID, err := ctx.RequireUser()
	if err != nil {
		return err
	}
	loc, err := config.Global.Location()
	if err != nil {
		return err
	}

	return tui.Run(tui.DashboardConfig{
		Source:          ctx.Medications,
		UserID:          userID,
		Location:        loc,
		RefreshInterval: watchFlagRefresh,
	})
}
