package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"dicomsort/internal/history"
	"dicomsort/internal/services"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past sort runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return services.Wrap(services.ErrConfiguration, "history", "open", "run history is disabled (history.enabled = false)", nil)
			}
			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			lastDir, _, err := store.GetPreference(cmd.Context(), history.PrefLastSourceDir)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, struct {
					LastSourceDir string        `json:"last_source_dir,omitempty"`
					Runs          []history.Run `json:"runs"`
				}{lastDir, runs})
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderRunTable(runs))
			if lastDir != "" {
				fmt.Fprintf(out, "Last source directory: %s\n", lastDir)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print runs as JSON")
	return cmd
}

func renderRunTable(runs []history.Run) string {
	headers := []string{"Started", "Status", "Mode", "Files", "DICOM", "Non-DICOM", "Duration", "Source"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		mode := run.Mode
		if run.Archive {
			mode = "zip"
		}
		if run.Converted {
			mode += "+nifti"
		}
		rows = append(rows, []string{
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Status,
			mode,
			strconv.Itoa(run.Total),
			strconv.Itoa(run.DICOM),
			strconv.Itoa(run.NonDICOM),
			run.Duration.Round(10 * time.Millisecond).String(),
			run.Source,
		})
	}
	return renderTable(headers, rows, aligns)
}
