package pipeline

import (
	"log/slog"
	"path/filepath"
	"strings"

	"dicomsort/internal/archive"
	"dicomsort/internal/enumerate"
	"dicomsort/internal/services"
	"dicomsort/internal/services/dcm2niix"
)

// DefaultDestinationSuffix names the sorted tree next to the source.
const DefaultDestinationSuffix = "_translated"

// ConvertOptions requests NIfTI conversion of the sorted tree.
type ConvertOptions struct {
	Client     dcm2niix.Client
	Mode       string
	OutputType string
	Compress   bool
}

// Options configures a Run.
type Options struct {
	Source            string
	Mode              enumerate.TransferMode
	Workers           int
	Archive           bool
	ArchivePath       string
	DestinationSuffix string
	Convert           *ConvertOptions
	Progress          chan<- int
	Logger            *slog.Logger
}

func (o *Options) normalize() error {
	source := strings.TrimSpace(o.Source)
	if source == "" {
		return services.Wrap(services.ErrValidation, "sort", "options", "source directory required", nil)
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return services.Wrap(services.ErrValidation, "sort", "options", "resolve source", err)
	}
	o.Source = filepath.Clean(abs)

	if o.Mode == "" {
		o.Mode = enumerate.Copy
	}
	if !o.Mode.Valid() {
		return services.Wrap(services.ErrValidation, "sort", "options", "unknown transfer mode "+string(o.Mode), nil)
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.DestinationSuffix == "" {
		o.DestinationSuffix = DefaultDestinationSuffix
	}
	if o.Archive {
		// Archive output reads sources only.
		o.Mode = enumerate.Copy
		o.Convert = nil
	}
	if o.Convert != nil && o.Convert.Client == nil {
		o.Convert = nil
	}
	return nil
}

// Destination returns the sorted tree root (or archive path) for opts.
func (o Options) Destination() string {
	if o.Archive {
		if p := strings.TrimSpace(o.ArchivePath); p != "" {
			return p
		}
		return archive.DefaultPath(o.Source, o.DestinationSuffix)
	}
	return filepath.Clean(o.Source) + o.DestinationSuffix
}
