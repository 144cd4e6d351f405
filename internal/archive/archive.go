// Package archive writes sorted DICOM files into a single zip file.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

const archiveDirPerm os.FileMode = 0o750

// ErrClosed is returned by Add after Close.
var ErrClosed = errors.New("archive closed")

// Writer appends files to a Deflate-compressed zip. Add is safe for
// concurrent use; entries are written one at a time.
type Writer struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	zw      *zip.Writer
	entries int
	closed  bool
}

// DefaultPath returns the archive path used when none is configured:
// the source directory with a "_translated.zip" suffix.
func DefaultPath(source, suffix string) string {
	return filepath.Clean(source) + suffix + ".zip"
}

// Create creates or truncates the zip at dest, creating parent directories.
func Create(dest string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(dest), archiveDirPerm); err != nil {
		return nil, fmt.Errorf("ensure archive dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	return &Writer{path: dest, file: f, zw: zip.NewWriter(f)}, nil
}

// Path returns the archive location.
func (w *Writer) Path() string {
	return w.path
}

// Add writes the contents of srcPath as an entry named name. The name is
// forced to forward slashes. Duplicate names produce duplicate entries.
func (w *Writer) Add(name, srcPath string) error {
	name = path.Clean(strings.TrimLeft(filepath.ToSlash(name), "/"))
	if name == "." || name == "" {
		return fmt.Errorf("archive entry name required")
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header: %w", err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	entry, err := w.zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("zip entry create: %w", err)
	}
	if _, err := io.Copy(entry, src); err != nil {
		return fmt.Errorf("copy into zip: %w", err)
	}
	w.entries++
	return nil
}

// Entries reports how many entries have been written.
func (w *Writer) Entries() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entries
}

// Close writes the central directory and closes the file. Calling Close more
// than once is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.zw.Close(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("close zip writer: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close zip file: %w", err)
	}
	return nil
}
