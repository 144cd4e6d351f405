package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dicomsort/internal/config"
	"dicomsort/internal/enumerate"
	"dicomsort/internal/history"
	"dicomsort/internal/logging"
	"dicomsort/internal/pipeline"
	"dicomsort/internal/preflight"
	"dicomsort/internal/runlock"
	"dicomsort/internal/services"
	"dicomsort/internal/services/dcm2niix"
)

type sortFlags struct {
	move          bool
	workers       int
	zip           bool
	zipPath       string
	nifti         bool
	niftiMode     string
	niftiType     string
	niftiCompress bool
	json          bool
	noProgress    bool
}

func newSortCommand(ctx *commandContext) *cobra.Command {
	var flags sortFlags

	cmd := &cobra.Command{
		Use:   "sort <source-dir>",
		Short: "Sort a directory of DICOM files",
		Long: `Sort every DICOM file under <source-dir> into
<subject>_<id>/<date>_<time>/<series>_<description>_<uid>/ next to the source.

By default files are copied into <source-dir>_translated. With --move the
sorted tree replaces the source directory. With --zip the sorted tree is
written into a zip archive instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := applySortFlags(cmd, *base, flags)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return runSort(cmd, cfg, logger, ctx.logPath, args[0], flags)
		},
	}

	cmd.Flags().BoolVar(&flags.move, "move", false, "Move files instead of copying them; the sorted tree replaces the source")
	cmd.Flags().IntVarP(&flags.workers, "workers", "j", 0, "Number of parallel workers (default from config)")
	cmd.Flags().BoolVar(&flags.zip, "zip", false, "Write the sorted tree into a zip archive")
	cmd.Flags().StringVar(&flags.zipPath, "zip-path", "", "Archive location (default <source>_translated.zip)")
	cmd.Flags().BoolVar(&flags.nifti, "nifti", false, "Convert the sorted tree to NIfTI with dcm2niix")
	cmd.Flags().StringVar(&flags.niftiMode, "nifti-mode", "", "NIfTI output layout: save_in_separate_dir, save_in_folder, save_in_exam_date")
	cmd.Flags().StringVar(&flags.niftiType, "nifti-type", "", "NIfTI output type: unchanged, int32, float32, float64 (ignored: dcm2niix keeps the source data type)")
	cmd.Flags().BoolVar(&flags.niftiCompress, "nifti-compress", true, "Gzip NIfTI output")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Print the run summary as JSON")
	cmd.Flags().BoolVar(&flags.noProgress, "no-progress", false, "Disable the progress bar")

	return cmd
}

// applySortFlags overlays explicitly set flags onto cfg and revalidates.
func applySortFlags(cmd *cobra.Command, cfg config.Config, flags sortFlags) (*config.Config, error) {
	changed := cmd.Flags().Changed
	if flags.move {
		cfg.Sort.Mode = config.ModeMove
	}
	if changed("workers") {
		cfg.Sort.Workers = flags.workers
	}
	if flags.nifti {
		cfg.Nifti.Enabled = true
	}
	if changed("nifti-mode") {
		cfg.Nifti.Mode = strings.ToLower(strings.TrimSpace(flags.niftiMode))
	}
	if changed("nifti-type") {
		outputType := strings.ToLower(strings.TrimSpace(flags.niftiType))
		if outputType == "unchanged" {
			outputType = ""
		}
		cfg.Nifti.OutputType = outputType
	}
	if changed("nifti-compress") {
		cfg.Nifti.Compress = flags.niftiCompress
	}
	// Archive output has no directory tree to convert.
	if flags.zip || strings.TrimSpace(flags.zipPath) != "" {
		cfg.Sort.Archive = true
		cfg.Nifti.Enabled = false
	}
	if p := strings.TrimSpace(flags.zipPath); p != "" {
		expanded, err := config.ExpandPath(p)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "sort", "flags", "resolve --zip-path", err)
		}
		cfg.Sort.ArchivePath = expanded
	}
	if err := cfg.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "sort", "flags", "invalid options", err)
	}
	return &cfg, nil
}

func runSort(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, logPath, sourceArg string, flags sortFlags) error {
	source, err := filepath.Abs(strings.TrimSpace(sourceArg))
	if err != nil {
		return services.Wrap(services.ErrValidation, "sort", "source", "resolve source", err)
	}
	info, err := os.Stat(source)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "sort", "source", "source directory unavailable", err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrValidation, "sort", "source", source+" is not a directory", nil)
	}

	lock, err := runlock.Acquire(cfg.LockDir(), source)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("run lock release failed", logging.Error(err))
		}
	}()

	runID := history.NewRunID()
	runCtx := services.WithSource(services.WithRunID(cmd.Context(), runID), source)
	runLogger := logging.WithContext(runCtx, logging.NewComponentLogger(logger, "cli"))

	opts := pipeline.Options{
		Source:            source,
		Mode:              enumerate.Copy,
		Workers:           cfg.Sort.Workers,
		Archive:           cfg.Sort.Archive,
		ArchivePath:       cfg.Sort.ArchivePath,
		DestinationSuffix: cfg.Sort.DestinationSuffix,
		Logger:            logger,
	}
	if cfg.IsMove() && !cfg.Sort.Archive {
		opts.Mode = enumerate.Move
	}
	if cfg.Nifti.Enabled && !cfg.Sort.Archive {
		opts.Convert = &pipeline.ConvertOptions{
			Client:     newConverter(cfg, logger),
			Mode:       cfg.Nifti.Mode,
			OutputType: cfg.Nifti.OutputType,
			Compress:   cfg.Nifti.Compress,
		}
	}

	if cfg.Sort.Preflight {
		if err := runPreflight(cfg, opts); err != nil {
			return err
		}
	}

	runLogger.Info("sort started",
		logging.String("mode", string(opts.Mode)),
		logging.Bool("archive", opts.Archive),
		logging.Bool("nifti", opts.Convert != nil),
		logging.Int("workers", opts.Workers),
	)

	var stopProgress func()
	if !flags.noProgress && !flags.json && isTerminal(cmd.ErrOrStderr()) {
		progress := make(chan int, 1)
		opts.Progress = progress
		stopProgress = startProgress(cmd.ErrOrStderr(), progress)
	}

	started := time.Now()
	summary, runErr := pipeline.Run(runCtx, opts)
	if stopProgress != nil {
		stopProgress()
	}
	summary.RunID = runID

	if cfg.History.Enabled {
		recordHistory(cfg, runLogger, summary, logPath, runErr, started)
	}

	if runErr != nil && summary.Total == 0 && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	if flags.json {
		if err := writeJSON(cmd, summary); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), summary.Report())
	}

	if runErr != nil {
		return runErr
	}
	runLogger.Info("sort finished",
		logging.Int("dicom", summary.Placed),
		logging.Int("non_dicom", summary.Skipped),
		logging.String("destination", summary.Destination),
	)
	return nil
}

func newConverter(cfg *config.Config, logger *slog.Logger) dcm2niix.Client {
	return dcm2niix.NewCLI(
		dcm2niix.WithBinary(cfg.Dcm2niixBinary()),
		dcm2niix.WithLogger(logger),
	)
}

func runPreflight(cfg *config.Config, opts pipeline.Options) error {
	req := preflight.Request{
		Source:      opts.Source,
		Destination: opts.Destination(),
		Move:        opts.Mode == enumerate.Move,
		Convert:     opts.Convert != nil,
	}
	if !req.Move {
		tasks, err := enumerate.List(opts.Source, req.Destination, opts.Mode)
		if err != nil {
			return services.Wrap(services.ErrNotFound, "preflight", "size", "read source tree", err)
		}
		req.Need = enumerate.TotalSize(tasks)
	}
	return preflight.Err(preflight.RunAll(cfg, req))
}

// recordHistory persists the run; failures are logged, never returned.
func recordHistory(cfg *config.Config, logger *slog.Logger, summary pipeline.Summary, logPath string, runErr error, started time.Time) {
	store, err := history.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run is not recorded"),
		)
		return
	}
	defer store.Close()

	finished := time.Now()
	run := history.Run{
		ID:          summary.RunID,
		Source:      summary.Source,
		Destination: summary.Destination,
		Mode:        string(summary.Mode),
		Archive:     summary.Archive,
		Converted:   summary.Converted,
		Total:       summary.Total,
		DICOM:       summary.Placed,
		NonDICOM:    summary.Skipped,
		Collisions:  summary.Collisions,
		Failed:      summary.Failed,
		Duration:    finished.Sub(started),
		Status:      history.StatusCompleted,
		LogPath:     logPath,
		StartedAt:   started,
		FinishedAt:  finished,
	}
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		run.Status = history.StatusCancelled
		run.ErrorMessage = runErr.Error()
	default:
		run.Status = history.StatusFailed
		run.ErrorMessage = runErr.Error()
	}
	if run.ErrorMessage == "" && summary.ConvertError != "" {
		run.ErrorMessage = summary.ConvertError
	}

	ctx := context.Background()
	if err := store.RecordRun(ctx, run); err != nil {
		logger.Warn("record run failed", logging.Error(err))
	}
	if summary.Source != "" {
		if err := store.SetPreference(ctx, history.PrefLastSourceDir, filepath.Dir(summary.Source)); err != nil {
			logger.Warn("save last source directory failed", logging.Error(err))
		}
	}
}
