package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dicomsort/internal/archive"
	"dicomsort/internal/enumerate"
	"dicomsort/internal/logging"
	"dicomsort/internal/placer"
	"dicomsort/internal/services"
	"dicomsort/internal/services/dcm2niix"
)

// Run sorts opts.Source. Per-file problems never fail the run; they are
// counted in the Summary. Errors are returned for invalid options, an
// unreadable source, archive I/O, cancellation, and move finalization.
// Conversion failures are recorded in Summary.ConvertError only.
func Run(ctx context.Context, opts Options) (summary Summary, err error) {
	if opts.Progress != nil {
		defer close(opts.Progress)
	}
	if err := opts.normalize(); err != nil {
		return Summary{}, err
	}

	ctx = services.WithSource(ctx, opts.Source)
	logger := logging.NewComponentLogger(opts.Logger, "pipeline")

	summary = Summary{
		Source:      opts.Source,
		Destination: opts.Destination(),
		Mode:        opts.Mode,
		Archive:     opts.Archive,
	}
	if id, ok := services.RunIDFromContext(ctx); ok {
		summary.RunID = id
	}

	scanCtx := services.WithStage(ctx, "enumerate")
	scanStart := time.Now()
	scanLogger := logging.WithContext(scanCtx, logger)
	tasks, err := enumerate.List(opts.Source, summary.Destination, opts.Mode,
		enumerate.OnUnreadableDir(func(path string, readErr error) {
			summary.UnreadableDirs++
			logging.WarnWithContext(scanLogger, "unreadable directory skipped", "dir_unreadable",
				logging.String("path", path),
				logging.Error(readErr),
				logging.String(logging.FieldErrorHint, "check directory permissions and rerun"),
				logging.String(logging.FieldImpact, "files below this directory are not sorted"),
			)
		}))
	summary.ScanDuration = time.Since(scanStart)
	if err != nil {
		return summary, services.Wrap(services.ErrNotFound, "enumerate", "list", "read source tree", err)
	}
	summary.Total = len(tasks)
	scanLogger.Info("source scanned",
		logging.Int("files", len(tasks)),
		logging.Duration("elapsed", summary.ScanDuration),
		logging.String("destination", summary.Destination),
	)

	var sink placer.Sink = placer.DirectorySink{}
	var zw *archive.Writer
	if opts.Archive {
		zw, err = archive.Create(summary.Destination)
		if err != nil {
			return summary, services.Wrap(services.ErrTransient, "place", "archive", "create zip", err)
		}
		sink = placer.ArchiveSink{Writer: zw}
		defer func() {
			if closeErr := zw.Close(); closeErr != nil && err == nil {
				err = services.Wrap(services.ErrTransient, "place", "archive", "finalize zip", closeErr)
			}
		}()
	}

	placeCtx := services.WithStage(ctx, "place")
	placeStart := time.Now()
	p := placer.New(sink, opts.Logger)
	dispatchAndCollect(placeCtx, p, tasks, opts.Workers, &summary, opts.Progress, logging.WithContext(placeCtx, logger))
	summary.PlaceDuration = time.Since(placeStart)
	if zw != nil {
		summary.ArchiveEntries = zw.Entries()
	}

	if err := ctx.Err(); err != nil {
		logging.WarnWithContext(logger, "sort cancelled; destination left as is", "sort_cancelled",
			logging.Int("placed", summary.Placed),
			logging.Int("total", summary.Total),
			logging.String(logging.FieldImpact, "partial output, no rollback"),
		)
		return summary, err
	}

	logging.WithContext(placeCtx, logger).Info("placement complete",
		logging.Int("dicom", summary.Placed),
		logging.Int("non_dicom", summary.Skipped),
		logging.Int("collisions", summary.Collisions),
		logging.Int("failed", summary.Failed),
		logging.Duration("elapsed", summary.PlaceDuration),
	)

	if opts.Archive {
		return summary, nil
	}

	if opts.Mode == enumerate.Move {
		root, finalized, err := finalizeMove(services.WithStage(ctx, "finalize"), opts.Source, summary.Destination, summary.Failed+summary.UnreadableDirs, logger)
		if err != nil {
			return summary, err
		}
		summary.Destination = root
		summary.Finalized = finalized
	}

	if opts.Convert != nil && summary.Placed > 0 {
		convertCtx := services.WithStage(ctx, "convert")
		start := time.Now()
		res, convErr := opts.Convert.Client.Convert(convertCtx, dcm2niix.Request{
			Root:       summary.Destination,
			Mode:       opts.Convert.Mode,
			OutputType: opts.Convert.OutputType,
			Workers:    opts.Workers,
			Compress:   opts.Convert.Compress,
		})
		summary.ConvertDuration = time.Since(start)
		summary.Converted = true
		summary.ConvertedSeries = res.Series - res.Failed
		if convErr != nil {
			if errors.Is(convErr, context.Canceled) || errors.Is(convErr, context.DeadlineExceeded) {
				return summary, convErr
			}
			summary.ConvertError = convErr.Error()
			logging.WarnWithContext(logging.WithContext(convertCtx, logger), "nifti conversion incomplete", "convert_failed",
				logging.Error(convErr),
				logging.String(logging.FieldErrorHint, "check that dcm2niix is installed and can read the sorted tree"),
				logging.String(logging.FieldImpact, "sorted DICOM files are unaffected"),
			)
		}
	}

	return summary, nil
}

// dispatchAndCollect feeds tasks to a fixed pool of workers and reduces their
// results on the calling goroutine. Dispatch stops when ctx is cancelled;
// in-flight tasks finish.
func dispatchAndCollect(ctx context.Context, p *placer.Placer, tasks []enumerate.FileTask, workers int, summary *Summary, progress chan<- int, logger *slog.Logger) {
	total := len(tasks)
	if total == 0 {
		if progress != nil {
			progress <- 100
		}
		return
	}
	if workers > total {
		workers = total
	}

	jobs := make(chan enumerate.FileTask)
	results := make(chan placer.Result, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				results <- p.Place(ctx, task)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, task := range tasks {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- task:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	sampler := logging.NewProgressSampler(10)
	completed := 0
	for res := range results {
		summary.add(res)
		completed++
		percent := completed * 100 / total
		if progress != nil {
			progress <- percent
		}
		if sampler.ShouldLog(percent) {
			logger.Info("placement progress",
				logging.Int("percent", percent),
				logging.Int("completed", completed),
				logging.Int("total", total),
			)
		}
	}
}
