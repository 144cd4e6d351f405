package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dicomsort/internal/config"
	"dicomsort/internal/deps"
	"dicomsort/internal/enumerate"
	"dicomsort/internal/pipeline"
	"dicomsort/internal/preflight"
	"dicomsort/internal/services"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var move bool

	cmd := &cobra.Command{
		Use:   "check <source-dir>",
		Short: "Run preflight checks without sorting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return services.Wrap(services.ErrValidation, "check", "source", "resolve source", err)
			}

			opts := pipeline.Options{
				Source:            filepath.Clean(source),
				Archive:           cfg.Sort.Archive,
				ArchivePath:       cfg.Sort.ArchivePath,
				DestinationSuffix: cfg.Sort.DestinationSuffix,
			}
			req := preflight.Request{
				Source:      opts.Source,
				Destination: opts.Destination(),
				Move:        (move || cfg.IsMove()) && !cfg.Sort.Archive,
				Convert:     cfg.Nifti.Enabled && !cfg.Sort.Archive,
			}
			files := -1
			if !req.Move {
				if tasks, err := enumerate.List(req.Source, req.Destination, enumerate.Copy); err == nil {
					req.Need = enumerate.TotalSize(tasks)
					files = len(tasks)
				}
			}
			results := preflight.RunAll(cfg, req)

			colorize := shouldColorize(cmd.OutOrStdout())
			var lines []string
			lines = append(lines, renderSectionHeader("Run", colorize)...)
			lines = append(lines, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
			lines = append(lines, renderStatusLine("Mode", statusInfo, runModeLabel(cfg, req.Move), colorize))
			lines = append(lines, renderStatusLine("Workers", statusInfo, strconv.Itoa(cfg.Sort.Workers), colorize))
			lines = append(lines, renderStatusLine("Destination", statusInfo, req.Destination, colorize))
			if files >= 0 {
				lines = append(lines, renderStatusLine("Files", statusInfo, strconv.Itoa(files), colorize))
			}
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Preflight", colorize)...)
			lines = append(lines, preflightLines(results, colorize)...)
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(deps.CheckBinaries(deps.Requirements(cfg)), colorize)...)

			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(lines, "\n"))
			return preflight.Err(results)
		},
	}

	cmd.Flags().BoolVar(&move, "move", false, "Check for a move run")
	return cmd
}

func runModeLabel(cfg *config.Config, move bool) string {
	label := config.ModeCopy
	if move {
		label = config.ModeMove
	}
	if cfg.Sort.Archive {
		label = "zip"
	}
	if cfg.Nifti.Enabled && !cfg.Sort.Archive {
		label += " + nifti (" + cfg.Nifti.Mode + ")"
	}
	return label
}
