// Package enumerate lists the files a sort run will classify.
package enumerate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// TransferMode selects how placed files reach the destination.
type TransferMode string

const (
	// Copy leaves the source untouched.
	Copy TransferMode = "copy"
	// Move relocates files and replaces the source tree with the sorted one.
	Move TransferMode = "move"
)

// Valid reports whether m is a known transfer mode.
func (m TransferMode) Valid() bool {
	return m == Copy || m == Move
}

// FileTask pairs one source file with the destination root and mode shared
// by the whole run.
type FileTask struct {
	Source   string
	DestRoot string
	Mode     TransferMode
	Size     int64
}

// ListOption adjusts a List call.
type ListOption func(*listConfig)

type listConfig struct {
	onUnreadable func(path string, err error)
}

// OnUnreadableDir registers fn to be told about each subdirectory that could
// not be read and was left out of the listing.
func OnUnreadableDir(fn func(path string, err error)) ListOption {
	return func(c *listConfig) {
		c.onUnreadable = fn
	}
}

// List walks root recursively and returns a task for every regular file.
// Symlinks and other special files are skipped; directories are descended.
// A subdirectory that cannot be read is skipped and reported through
// OnUnreadableDir; an unreadable root is an error. No filtering by name or
// content happens here.
func List(root, destRoot string, mode TransferMode, opts ...ListOption) ([]FileTask, error) {
	var cfg listConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s: %w", root, ErrNotDirectory)
	}

	var tasks []FileTask
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path != root && d != nil && d.IsDir() {
				if cfg.onUnreadable != nil {
					cfg.onUnreadable(path, walkErr)
				}
				return fs.SkipDir
			}
			return fmt.Errorf("walk %s: %w", path, walkErr)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		tasks = append(tasks, FileTask{
			Source:   path,
			DestRoot: destRoot,
			Mode:     mode,
			Size:     fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ErrNotDirectory is returned when the source root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// TotalSize sums the sizes recorded on tasks.
func TotalSize(tasks []FileTask) int64 {
	var total int64
	for _, task := range tasks {
		total += task.Size
	}
	return total
}
