package preflight

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dicomsort/internal/config"
	"dicomsort/internal/services"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "missing"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", path)
	if result.Passed || !strings.Contains(result.Detail, "not a directory") {
		t.Fatalf("expected not-a-directory failure, got %#v", result)
	}
}

func TestCheckWritableParent_WalksUpToExistingDir(t *testing.T) {
	base := t.TempDir()
	result := CheckWritableParent("dest", filepath.Join(base, "a", "b", "out.zip"))
	if !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if !strings.Contains(result.Detail, base) {
		t.Fatalf("expected detail to name %s, got %s", base, result.Detail)
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if res := CheckFreeSpace("space", filepath.Join(dir, "dest"), 1); !res.Passed {
		t.Fatalf("expected one byte to fit, got %s", res.Detail)
	}
	res := CheckFreeSpace("space", dir, 1<<62)
	if res.Passed {
		t.Fatal("expected failure for absurd requirement")
	}
	if !strings.Contains(res.Detail, "need") {
		t.Fatalf("unexpected detail: %s", res.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil, Request{}); results != nil {
		t.Fatalf("expected nil for nil config, got %v", results)
	}
}

func TestRunAll_SkipsFreeSpaceForMove(t *testing.T) {
	cfg := config.Default()
	src := t.TempDir()
	req := Request{Source: src, Destination: src + "_translated", Need: 10}

	if got := names(RunAll(&cfg, req)); !contains(got, "Free space") {
		t.Fatalf("expected free space check for copy, got %v", got)
	}
	req.Move = true
	if got := names(RunAll(&cfg, req)); contains(got, "Free space") {
		t.Fatalf("expected no free space check for move, got %v", got)
	}
}

func TestRunAll_ReportsMissingConverter(t *testing.T) {
	cfg := config.Default()
	cfg.Nifti.Enabled = true
	cfg.Nifti.Binary = "dicomsort-no-such-converter"
	src := t.TempDir()

	results := RunAll(&cfg, Request{Source: src, Destination: src + "_translated", Convert: true})
	err := Err(results)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "dcm2niix") {
		t.Fatalf("expected error to name dcm2niix, got %v", err)
	}
}

func TestErr_NilWhenAllPass(t *testing.T) {
	results := []Result{{Name: "a", Passed: true}, {Name: "b", Optional: true}}
	if err := Err(results); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func names(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Name)
	}
	return out
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
