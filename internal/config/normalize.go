package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSort(); err != nil {
		return err
	}
	c.normalizeNifti()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSort() error {
	c.Sort.Mode = strings.ToLower(strings.TrimSpace(c.Sort.Mode))
	if c.Sort.Mode == "" {
		c.Sort.Mode = ModeCopy
	}
	if value, ok := os.LookupEnv("DICOMSORT_WORKERS"); ok {
		workers, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("DICOMSORT_WORKERS: %w", err)
		}
		c.Sort.Workers = workers
	}
	if c.Sort.Workers == 0 {
		c.Sort.Workers = DefaultWorkers()
	}
	c.Sort.DestinationSuffix = strings.TrimSpace(c.Sort.DestinationSuffix)
	if c.Sort.DestinationSuffix == "" {
		c.Sort.DestinationSuffix = defaultDestinationSuffix
	}
	if strings.TrimSpace(c.Sort.ArchivePath) != "" {
		var err error
		if c.Sort.ArchivePath, err = expandPath(c.Sort.ArchivePath); err != nil {
			return fmt.Errorf("sort.archive_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeNifti() {
	c.Nifti.Mode = strings.ToLower(strings.TrimSpace(c.Nifti.Mode))
	if c.Nifti.Mode == "" {
		c.Nifti.Mode = defaultNiftiMode
	}
	c.Nifti.OutputType = strings.ToLower(strings.TrimSpace(c.Nifti.OutputType))
	if c.Nifti.OutputType == "unchanged" {
		c.Nifti.OutputType = ""
	}
	c.Nifti.Binary = strings.TrimSpace(c.Nifti.Binary)
	if c.Nifti.Binary == "" {
		c.Nifti.Binary = defaultNiftiBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
