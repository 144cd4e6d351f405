package deps

import (
	"os"
	"path/filepath"
	"testing"

	"dicomsort/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

func TestRequirementsFollowNiftiToggle(t *testing.T) {
	cfg := config.Default()
	cfg.Nifti.Binary = "dcm2niix-custom"

	cfg.Nifti.Enabled = false
	reqs := Requirements(&cfg)
	if len(reqs) != 1 || !reqs[0].Optional {
		t.Fatalf("expected optional dcm2niix when conversion disabled, got %#v", reqs)
	}
	if reqs[0].Command != "dcm2niix-custom" {
		t.Fatalf("expected configured binary, got %q", reqs[0].Command)
	}

	cfg.Nifti.Enabled = true
	reqs = Requirements(&cfg)
	if reqs[0].Optional {
		t.Fatal("expected dcm2niix to be required when conversion enabled")
	}
}

func TestMissingRequired(t *testing.T) {
	statuses := []Status{
		{Name: "a", Available: true},
		{Name: "b", Optional: true},
		{Name: "c"},
	}
	missing := MissingRequired(statuses)
	if len(missing) != 1 || missing[0].Name != "c" {
		t.Fatalf("unexpected missing set: %#v", missing)
	}
}
