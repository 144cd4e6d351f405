package placer

import (
	"fmt"
	"os"
	"path/filepath"

	"dicomsort/internal/archive"
	"dicomsort/internal/enumerate"
	"dicomsort/internal/fileutil"
)

// Sink delivers a classified file to its destination. rel is slash-separated
// and relative to the destination root.
type Sink interface {
	Put(task enumerate.FileTask, rel string) error
}

// DirectorySink writes into the task's destination root, copying or moving
// according to the task mode.
type DirectorySink struct{}

// Put creates the three directory levels and transfers the file. A move onto
// an existing file returns fileutil.ErrDestinationExists; a copy overwrites.
func (DirectorySink) Put(task enumerate.FileTask, rel string) error {
	dest := filepath.Join(task.DestRoot, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	switch task.Mode {
	case enumerate.Move:
		return fileutil.Move(task.Source, dest)
	case enumerate.Copy:
		return fileutil.CopyFile(task.Source, dest)
	default:
		return fmt.Errorf("unknown transfer mode %q", task.Mode)
	}
}

// ArchiveSink writes each file as a zip entry named by its relative path.
// The source is never modified.
type ArchiveSink struct {
	Writer *archive.Writer
}

// Put adds the file to the archive.
func (s ArchiveSink) Put(task enumerate.FileTask, rel string) error {
	return s.Writer.Add(rel, task.Source)
}
