package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"narrator/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

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

	wantWork := filepath.Join(tempHome, ".local", "share", "narrator", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Paths.OutputDir != "" {
		t.Fatalf("expected empty output dir by default, got %q", cfg.Paths.OutputDir)
	}
	if cfg.Extraction.Command != "narrate-extract" {
		t.Fatalf("unexpected extraction command: %q", cfg.Extraction.Command)
	}
	if cfg.Synthesis.Voice != "am_liam" {
		t.Fatalf("unexpected default voice: %q", cfg.Synthesis.Voice)
	}
	if cfg.Synthesis.LanguageCode != "" {
		t.Fatalf("language code should stay empty until synthesis time, got %q", cfg.Synthesis.LanguageCode)
	}
	if cfg.Combine.ChunkSize != 50 {
		t.Fatalf("unexpected chunk size: %d", cfg.Combine.ChunkSize)
	}
	if cfg.Workflow.MaxRetries != 3 {
		t.Fatalf("unexpected max retries: %d", cfg.Workflow.MaxRetries)
	}
	if !cfg.History.Enabled {
		t.Fatal("expected history enabled by default")
	}
	if cfg.HistoryPath() != filepath.Join(cfg.Paths.LogDir, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be a directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "narrator.toml")

	type payload struct {
		Synthesis struct {
			Voice string  `toml:"voice"`
			Speed float64 `toml:"speed"`
		} `toml:"synthesis"`
		Combine struct {
			ChunkSize int `toml:"chunk_size"`
		} `toml:"combine"`
		Workflow struct {
			MaxRetries int `toml:"max_retries"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Synthesis.Voice = "bf_emma"
	custom.Synthesis.Speed = 1.2
	custom.Combine.ChunkSize = 10
	custom.Workflow.MaxRetries = 5

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q to be used, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Synthesis.Voice != "bf_emma" {
		t.Fatalf("unexpected voice: %q", cfg.Synthesis.Voice)
	}
	if cfg.Synthesis.LanguageCode != "" {
		t.Fatalf("language code should stay empty unless pinned, got %q", cfg.Synthesis.LanguageCode)
	}
	if cfg.Combine.ChunkSize != 10 {
		t.Fatalf("unexpected chunk size: %d", cfg.Combine.ChunkSize)
	}
	if cfg.Workflow.MaxRetries != 5 {
		t.Fatalf("unexpected max retries: %d", cfg.Workflow.MaxRetries)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantSub string
	}{
		{"bad mode", func(c *config.Config) { c.Extraction.Mode = "verses" }, "extraction.mode"},
		{"bad speed", func(c *config.Config) { c.Synthesis.Speed = -1 }, "synthesis.speed"},
		{"bad device", func(c *config.Config) { c.Synthesis.Device = "tpu" }, "synthesis.device"},
		{"bad chunk", func(c *config.Config) { c.Combine.ChunkSize = -1 }, "combine.chunk_size"},
		{"bad retries", func(c *config.Config) { c.Workflow.MaxRetries = -2 }, "workflow.max_retries"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("expected error mentioning %q, got %v", tc.wantSub, err)
			}
		})
	}
}

func TestCreateSampleWritesParseableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Combine.ChunkSize != 50 {
		t.Fatalf("sample chunk size: %d", cfg.Combine.ChunkSize)
	}
}
