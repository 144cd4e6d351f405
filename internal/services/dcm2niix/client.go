package dcm2niix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"dicomsort/internal/logging"
	"dicomsort/internal/services"
)

var commandContext = exec.CommandContext

// Output placement modes.
const (
	ModeSeparateDir = "save_in_separate_dir"
	ModeInFolder    = "save_in_folder"
	ModeExamDate    = "save_in_exam_date"
)

// NiftiDirSuffix is appended to the sorted root for ModeSeparateDir.
const NiftiDirSuffix = "_nifti"

// Request describes one conversion of a sorted tree.
type Request struct {
	Root       string
	Mode       string
	OutputType string
	Workers    int
	Compress   bool
}

// Result summarizes a conversion.
type Result struct {
	Series int
	Failed int
}

// Client defines NIfTI conversion behaviour.
type Client interface {
	Convert(ctx context.Context, req Request) (Result, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithLogger sets the logger used for per-series diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *CLI) {
		c.logger = logging.NewComponentLogger(logger, "dcm2niix")
	}
}

// CLI drives the dcm2niix binary.
type CLI struct {
	binary string
	logger *slog.Logger
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "dcm2niix", logger: logging.NewComponentLogger(nil, "dcm2niix")}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Convert runs dcm2niix on every series directory under req.Root. Failures of
// individual series are counted and joined into the returned error; the
// remaining series are still converted.
func (c *CLI) Convert(ctx context.Context, req Request) (Result, error) {
	root := strings.TrimSpace(req.Root)
	if root == "" {
		return Result{}, services.Wrap(services.ErrValidation, "convert", "request", "root required", nil)
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeSeparateDir
	}
	if !ValidMode(mode) {
		return Result{}, services.Wrap(services.ErrValidation, "convert", "request", fmt.Sprintf("unknown mode %q", mode), nil)
	}
	if req.OutputType != "" {
		logging.WarnWithContext(c.logger, "output type override not supported by dcm2niix; keeping source data type", "output_type_ignored",
			logging.String("output_type", req.OutputType),
			logging.String(logging.FieldErrorHint, "drop nifti.output_type or set it to unchanged"),
			logging.String(logging.FieldImpact, "nifti files keep the source data type"),
		)
	}

	seriesDirs, err := SeriesDirs(root)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "convert", "scan", "list series directories", err)
	}
	result := Result{Series: len(seriesDirs)}
	if len(seriesDirs) == 0 {
		return result, nil
	}

	workers := req.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(seriesDirs) {
		workers = len(seriesDirs)
	}

	jobs := make(chan string)
	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dir := range jobs {
				if err := c.convertSeries(ctx, root, dir, mode, req.Compress); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

dispatch:
	for _, dir := range seriesDirs {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- dir:
		}
	}
	close(jobs)
	wg.Wait()

	result.Failed = len(errs)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if len(errs) > 0 {
		return result, services.Wrap(services.ErrExternalTool, "convert", "dcm2niix",
			fmt.Sprintf("%d of %d series failed", len(errs), len(seriesDirs)), errors.Join(errs...))
	}
	return result, nil
}

func (c *CLI) convertSeries(ctx context.Context, root, seriesDir, mode string, compress bool) error {
	outDir, err := OutputDir(root, seriesDir, mode)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", outDir, err)
	}

	args := Args(seriesDir, outDir, compress)
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		logging.WarnWithContext(c.logger, "dcm2niix failed for series", "convert_series_failed",
			logging.String("series_dir", seriesDir),
			logging.String("stderr", detail),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run dcm2niix manually on the series directory"),
			logging.String(logging.FieldImpact, "series has no NIfTI output"),
		)
		return fmt.Errorf("dcm2niix %s: %w", seriesDir, err)
	}
	c.logger.Debug("series converted", logging.String("series_dir", seriesDir), logging.String("output_dir", outDir))
	return nil
}

// Args builds the dcm2niix argument list for one series directory.
func Args(seriesDir, outDir string, compress bool) []string {
	z := "n"
	if compress {
		z = "y"
	}
	return []string{"-z", z, "-f", filepath.Base(seriesDir), "-o", outDir, seriesDir}
}

// ValidMode reports whether mode is a known output placement mode.
func ValidMode(mode string) bool {
	switch mode {
	case ModeSeparateDir, ModeInFolder, ModeExamDate:
		return true
	default:
		return false
	}
}

// OutputDir returns where NIfTI files for seriesDir are written.
func OutputDir(root, seriesDir, mode string) (string, error) {
	switch mode {
	case ModeInFolder:
		return seriesDir, nil
	case ModeExamDate:
		return filepath.Dir(seriesDir), nil
	case ModeSeparateDir, "":
		rel, err := filepath.Rel(root, filepath.Dir(seriesDir))
		if err != nil {
			return "", err
		}
		return filepath.Join(filepath.Clean(root)+NiftiDirSuffix, rel), nil
	default:
		return "", fmt.Errorf("unknown nifti mode %q", mode)
	}
}

// SeriesDirs returns every directory under root that directly contains a
// .dcm file, sorted.
func SeriesDirs(root string) ([]string, error) {
	seen := make(map[string]struct{})
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ".dcm") {
			seen[filepath.Dir(path)] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs, nil
}

var _ Client = (*CLI)(nil)
