package placer

import (
	"context"
	"errors"
	"log/slog"

	"dicomsort/internal/dicommeta"
	"dicomsort/internal/enumerate"
	"dicomsort/internal/fileutil"
	"dicomsort/internal/layout"
	"dicomsort/internal/logging"
)

// Outcome is 1 when a file was placed and 0 when it was skipped, so outcomes
// can be summed into a DICOM count.
type Outcome int

const (
	Skipped Outcome = 0
	Placed  Outcome = 1
)

// Reason explains an outcome.
type Reason string

const (
	ReasonPlaced       Reason = "placed"
	ReasonNotDICOM     Reason = "not_dicom"
	ReasonUnidentified Reason = "unidentified_subject"
	ReasonCollision    Reason = "collision"
	ReasonFailed       Reason = "failed"
)

// Result is the classification of one task.
type Result struct {
	Task    enumerate.FileTask
	Outcome Outcome
	Reason  Reason
	// Path is the destination relative path for placed files.
	Path string
	Err  error
}

// ParseFunc reads placement metadata from a file.
type ParseFunc func(path string) (dicommeta.Record, error)

// Placer classifies tasks and delivers DICOM files to its sink.
type Placer struct {
	sink   Sink
	parse  ParseFunc
	logger *slog.Logger
}

// Option configures a Placer.
type Option func(*Placer)

// WithParser overrides the metadata reader.
func WithParser(parse ParseFunc) Option {
	return func(p *Placer) {
		if parse != nil {
			p.parse = parse
		}
	}
}

// New constructs a Placer writing to sink.
func New(sink Sink, logger *slog.Logger, opts ...Option) *Placer {
	p := &Placer{
		sink:   sink,
		parse:  dicommeta.ParseFile,
		logger: logging.NewComponentLogger(logger, "placer"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Place classifies task and, for identifiable DICOM files, writes it through
// the sink. It never returns an error; failures are reported in the Result.
func (p *Placer) Place(ctx context.Context, task enumerate.FileTask) Result {
	logger := logging.WithContext(ctx, p.logger)
	result := Result{Task: task, Outcome: Skipped}

	rec, err := p.parse(task.Source)
	if err != nil {
		result.Reason = ReasonNotDICOM
		logger.Debug("skipping non-dicom file", logging.String("path", task.Source), logging.Error(err))
		return result
	}

	rel, err := layout.Derive(rec)
	if err != nil {
		result.Reason = ReasonUnidentified
		logger.Info("skipping dicom file without subject name",
			logging.String("path", task.Source),
			logging.String(logging.FieldEventType, "unidentified_subject"),
		)
		return result
	}
	result.Path = rel

	if err := p.sink.Put(task, rel); err != nil {
		if errors.Is(err, fileutil.ErrDestinationExists) {
			result.Outcome = Placed
			result.Reason = ReasonCollision
			logging.WarnWithContext(logger, "destination already exists; source left in place", "move_collision",
				logging.String("path", task.Source),
				logging.String("destination", rel),
				logging.String(logging.FieldErrorHint, "two inputs map to the same destination; inspect the source for duplicates"),
				logging.String(logging.FieldImpact, "the existing destination file is kept"),
			)
			return result
		}
		result.Reason = ReasonFailed
		result.Err = err
		logging.WarnWithContext(logger, "failed to place file", "place_failed",
			logging.String("path", task.Source),
			logging.String("destination", rel),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions and free space at the destination"),
			logging.String(logging.FieldImpact, "file counted as skipped"),
		)
		return result
	}

	result.Outcome = Placed
	result.Reason = ReasonPlaced
	return result
}
