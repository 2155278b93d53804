package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/dam-data-etl/internal/adapter/jsonfile"
	"github.com/couchcryptid/dam-data-etl/internal/config"
)

var errValidationFailed = errors.New("validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the curated list, master and snapshot files for consistency",
	Long: `Offline integrity check: every curated dam is present in the snapshot,
measured rates stay within 0-200, master stations carry names and town codes, and
curated dams without a master station are reported.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().String("dams", "", "curated dam list (default DAMS_FILE)")
	validateCmd.Flags().String("master", "", "station master (default MASTER_FILE)")
	validateCmd.Flags().String("snapshot", "", "realtime snapshot (default REALTIME_FILE)")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	damsPath := flagOr(cmd, "dams", cfg.DamsFile)
	masterPath := flagOr(cmd, "master", cfg.MasterFile)
	snapshotPath := flagOr(cmd, "snapshot", cfg.RealtimeFile)

	dams, err := jsonfile.LoadDams(damsPath)
	if err != nil {
		return err
	}
	m, err := jsonfile.LoadMaster(masterPath)
	if err != nil {
		return err
	}
	snap, err := jsonfile.LoadSnapshot(snapshotPath)
	if err != nil {
		return err
	}
	aliases, err := jsonfile.LoadAliases(cfg.NameAliasesFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== Dam Data Integrity Validation ===")
	fmt.Fprintln(out)

	phases := []*phase{
		validateCompleteness(dams, snap),
		validateReadings(snap),
		validateMaster(m),
		reportCoverage(dams, m, aliases),
	}
	ok := report(out, phases)

	fmt.Fprintf(out, "\nRecords: %d curated dams, %d master stations, %d snapshot entries\n",
		len(dams), len(m.Stations), len(snap.IDs))
	if !ok {
		fmt.Fprintln(out, "\nValidation FAILED.")
		return errValidationFailed
	}
	fmt.Fprintln(out, "\nAll validations passed.")
	return nil
}

func flagOr(cmd *cobra.Command, name, fallback string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return fallback
}
