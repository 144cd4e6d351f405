package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSort(); err != nil {
		return err
	}
	if err := c.validateNifti(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSort() error {
	switch c.Sort.Mode {
	case ModeCopy, ModeMove:
	default:
		return fmt.Errorf("sort.mode must be %q or %q, got %q", ModeCopy, ModeMove, c.Sort.Mode)
	}
	if c.Sort.Workers <= 0 {
		return errors.New("sort.workers must be positive")
	}
	if strings.ContainsAny(c.Sort.DestinationSuffix, `/\`) {
		return errors.New("sort.destination_suffix must not contain path separators")
	}
	if strings.TrimSpace(c.Sort.ArchivePath) != "" && !c.Sort.Archive {
		return errors.New("sort.archive_path is only valid when sort.archive is true")
	}
	return nil
}

func (c *Config) validateNifti() error {
	switch c.Nifti.Mode {
	case NiftiSeparateDir, NiftiInFolder, NiftiExamDate:
	default:
		return fmt.Errorf("nifti.mode: unsupported value %q", c.Nifti.Mode)
	}
	switch c.Nifti.OutputType {
	case "", "int32", "float32", "float64":
	default:
		return fmt.Errorf("nifti.output_type: unsupported value %q (use unchanged, int32, float32 or float64)", c.Nifti.OutputType)
	}
	if c.Nifti.Enabled && c.Sort.Archive {
		return errors.New("nifti.enabled cannot be combined with sort.archive; conversion needs a directory tree")
	}
	return nil
}
