package main

import (
	"github.com/spf13/cobra"
)

var realtimeCmd = &cobra.Command{
	Use:   "realtime",
	Short: "Fetch live readings once and rewrite the realtime snapshot",
	Args:  cobra.NoArgs,
	RunE:  runRealtime,
}

func init() {
	rootCmd.AddCommand(realtimeCmd)
}

func runRealtime(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	snap, err := a.realtimeFetcher().Run(cmd.Context())
	if err != nil {
		return err
	}
	st := snap.Stats()
	a.logger.Info("realtime snapshot written",
		"path", a.cfg.RealtimeFile,
		"dams", st.Total,
		"populated", st.Populated,
		"approximate", st.Approximate,
	)
	return nil
}
