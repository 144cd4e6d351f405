package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"dicomsort/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_STATE_HOME", "")
	chdirForTest(t, t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogs := filepath.Join(tempHome, ".local", "share", "dicomsort", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	wantState := filepath.Join(tempHome, ".local", "state", "dicomsort")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Sort.Mode != config.ModeCopy {
		t.Fatalf("expected copy mode by default, got %q", cfg.Sort.Mode)
	}
	if cfg.Sort.Workers != config.DefaultWorkers() {
		t.Fatalf("unexpected workers: %d", cfg.Sort.Workers)
	}
	if cfg.Sort.DestinationSuffix != "_translated" {
		t.Fatalf("unexpected destination suffix: %q", cfg.Sort.DestinationSuffix)
	}
	if cfg.Nifti.Enabled {
		t.Fatal("expected nifti conversion disabled by default")
	}
	if cfg.Dcm2niixBinary() != "dcm2niix" {
		t.Fatalf("unexpected dcm2niix binary: %q", cfg.Dcm2niixBinary())
	}
	if !cfg.History.Enabled {
		t.Fatal("expected history enabled by default")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "dicomsort.toml")

	type payload struct {
		Sort struct {
			Mode    string `toml:"mode"`
			Workers int    `toml:"workers"`
		} `toml:"sort"`
		Nifti struct {
			Enabled    bool   `toml:"enabled"`
			Mode       string `toml:"mode"`
			OutputType string `toml:"output_type"`
		} `toml:"nifti"`
	}
	custom := payload{}
	custom.Sort.Mode = "MOVE"
	custom.Sort.Workers = 7
	custom.Nifti.Enabled = true
	custom.Nifti.Mode = "save_in_exam_date"
	custom.Nifti.OutputType = "Unchanged"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if !cfg.IsMove() {
		t.Fatalf("expected move mode, got %q", cfg.Sort.Mode)
	}
	if cfg.Sort.Workers != 7 {
		t.Fatalf("expected 7 workers, got %d", cfg.Sort.Workers)
	}
	if cfg.Nifti.Mode != config.NiftiExamDate {
		t.Fatalf("unexpected nifti mode %q", cfg.Nifti.Mode)
	}
	if cfg.Nifti.OutputType != "" {
		t.Fatalf("expected Unchanged output type to normalize to empty, got %q", cfg.Nifti.OutputType)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "dicomsort.toml")
	if err := os.WriteFile(configPath, []byte("[sort]\nthreads = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestWorkersEnvOverride(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "missing.toml")
	t.Setenv("DICOMSORT_WORKERS", "3")

	cfg, _, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if cfg.Sort.Workers != 3 {
		t.Fatalf("expected workers from env, got %d", cfg.Sort.Workers)
	}

	t.Setenv("DICOMSORT_WORKERS", "many")
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for non-numeric DICOMSORT_WORKERS")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "destination_suffix") {
		t.Fatalf("sample config missing destination_suffix: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.StateDir, "dicomsort") {
		t.Fatalf("expected state dir to contain dicomsort, got %q", cfg.Paths.StateDir)
	}

	loaded, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists || loaded.Sort.Mode != config.ModeCopy {
		t.Fatalf("unexpected sample load result: exists=%v mode=%q", exists, loaded.Sort.Mode)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown mode", func(c *config.Config) { c.Sort.Mode = "link" }},
		{"negative workers", func(c *config.Config) { c.Sort.Workers = -1 }},
		{"suffix with separator", func(c *config.Config) { c.Sort.DestinationSuffix = "a/b" }},
		{"archive path without archive", func(c *config.Config) { c.Sort.ArchivePath = "/tmp/out.zip" }},
		{"unknown nifti mode", func(c *config.Config) { c.Nifti.Mode = "flat" }},
		{"unknown output type", func(c *config.Config) { c.Nifti.OutputType = "int8" }},
		{"nifti with archive", func(c *config.Config) {
			c.Nifti.Enabled = true
			c.Sort.Archive = true
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

// chdirForTest mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
