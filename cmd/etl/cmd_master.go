package main

import (
	"github.com/spf13/cobra"
)

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Rebuild the Kawabou station master file",
	Long: `Resolve the latest feed timestamp, enumerate every town with dam data and
write the station code to name mapping to MASTER_FILE.`,
	Args: cobra.NoArgs,
	RunE: runMaster,
}

func init() {
	rootCmd.AddCommand(masterCmd)
}

func runMaster(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	return a.masterBuilder().Run(cmd.Context(), a.cfg.MasterFile)
}
