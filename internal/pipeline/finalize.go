package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"dicomsort/internal/logging"
	"dicomsort/internal/services"
)

// finalizeMove replaces the source tree with the sorted tree. When the sorted
// tree holds exactly one top-level directory (a single subject), that
// directory is moved beside the source and becomes the final root. Nothing is
// rolled back on failure.
//
// The source is kept when nothing was placed or when failed is non-zero
// (files that did not place, directories that could not be read).
func finalizeMove(ctx context.Context, source, dest string, failed int, logger *slog.Logger) (string, bool, error) {
	logger = logging.WithContext(ctx, logger)

	if _, err := os.Stat(dest); errors.Is(err, fs.ErrNotExist) {
		logger.Info("no dicom files placed; source left in place")
		return source, false, nil
	} else if err != nil {
		return "", false, services.Wrap(services.ErrTransient, "finalize", "stat", "inspect destination", err)
	}
	if failed > 0 {
		logging.WarnWithContext(logger, "placement failures; source tree kept", "finalize_skipped",
			logging.Int("failed", failed),
			logging.String("destination", dest),
			logging.String(logging.FieldErrorHint, "fix the failing files and rerun on the source"),
			logging.String(logging.FieldImpact, "sorted files remain in the destination directory"),
		)
		return dest, false, nil
	}

	fail := func(op, detail, hint string, err error) error {
		logging.ErrorWithContext(logger, "move finalization failed", "finalize_failed",
			logging.String("op", op),
			logging.String("path", detail),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hint),
		)
		return services.Wrap(services.ErrTransient, "finalize", op, detail, err)
	}

	if err := os.RemoveAll(source); err != nil {
		return "", false, fail("remove source", source, "sorted files are complete in "+dest, err)
	}
	if err := os.Rename(dest, source); err != nil {
		return "", false, fail("rename", fmt.Sprintf("%s -> %s", dest, source), "source is gone; sorted files remain in "+dest, err)
	}

	root, err := flattenSingleEntry(source)
	if err != nil {
		return "", false, fail("flatten", source, "sorted files remain in "+source, err)
	}
	logger.Info("move finalized", logging.String("root", root))
	return root, true, nil
}

// flattenSingleEntry lifts the only child directory of dir into dir's parent
// and removes dir. Otherwise dir is returned unchanged.
func flattenSingleEntry(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return dir, nil
	}
	target := filepath.Join(filepath.Dir(dir), entries[0].Name())
	if target == dir {
		return dir, nil
	}
	if _, err := os.Lstat(target); err == nil {
		return "", fmt.Errorf("%s already exists", target)
	}
	if err := os.Rename(filepath.Join(dir, entries[0].Name()), target); err != nil {
		return "", err
	}
	if err := os.Remove(dir); err != nil {
		return "", err
	}
	return target, nil
}
