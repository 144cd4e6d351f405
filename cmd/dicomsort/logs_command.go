package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dicomsort/internal/history"
	"dicomsort/internal/logs"
	"dicomsort/internal/services"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var runID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the log of a sort run",
		Long: `Print the tail of a run log. Without --run the newest log in the
log directory is shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var path string
			if id := strings.TrimSpace(runID); id != "" {
				path, err = runLogPath(cmd, ctx, id)
			} else {
				path, err = logs.Latest(cfg.Paths.LogDir)
				if errors.Is(err, logs.ErrNoLogs) {
					err = services.Wrap(services.ErrNotFound, "logs", "latest", err.Error(), nil)
				}
			}
			if err != nil {
				return err
			}

			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return services.Wrap(services.ErrNotFound, "logs", "read", path, err)
			}
			out := cmd.OutOrStdout()
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, out, 250*time.Millisecond)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are written")
	cmd.Flags().StringVar(&runID, "run", "", "Run ID (or unique prefix) from `dicomsort history`")
	return cmd
}

func runLogPath(cmd *cobra.Command, ctx *commandContext, id string) (string, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return "", err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return "", err
	}
	defer store.Close()

	run, err := store.FindRun(cmd.Context(), id)
	switch {
	case errors.Is(err, history.ErrRunNotFound):
		return "", services.Wrap(services.ErrNotFound, "logs", "find run", "", err)
	case errors.Is(err, history.ErrAmbiguousRun):
		return "", services.Wrap(services.ErrValidation, "logs", "find run", "", err)
	case err != nil:
		return "", err
	}
	if run.LogPath == "" {
		return "", services.Wrap(services.ErrNotFound, "logs", "find run", "run "+run.ID+" has no log file", nil)
	}
	return run.LogPath, nil
}
