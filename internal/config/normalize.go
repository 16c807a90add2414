package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeExtraction()
	c.normalizeSynthesis()
	c.normalizeLogging()
	if c.Combine.ChunkSize == 0 {
		c.Combine.ChunkSize = defaultChunkSize
	}
	if c.Workflow.MaxRetries == 0 {
		c.Workflow.MaxRetries = defaultMaxRetries
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
			return fmt.Errorf("paths.output_dir: %w", err)
		}
	}
	if strings.TrimSpace(c.History.Path) != "" {
		if c.History.Path, err = expandPath(c.History.Path); err != nil {
			return fmt.Errorf("history.path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeExtraction() {
	c.Extraction.Command = strings.TrimSpace(c.Extraction.Command)
	if c.Extraction.Command == "" {
		c.Extraction.Command = defaultExtractionCommand
	}
	c.Extraction.Mode = strings.ToLower(strings.TrimSpace(c.Extraction.Mode))
	if c.Extraction.Mode == "" {
		c.Extraction.Mode = defaultExtractionMode
	}
}

func (c *Config) normalizeSynthesis() {
	c.Synthesis.Command = strings.TrimSpace(c.Synthesis.Command)
	if c.Synthesis.Command == "" {
		c.Synthesis.Command = defaultSynthesisCommand
	}
	c.Synthesis.Voice = strings.TrimSpace(c.Synthesis.Voice)
	if c.Synthesis.Voice == "" {
		c.Synthesis.Voice = defaultVoice
	}
	if c.Synthesis.Speed == 0 {
		c.Synthesis.Speed = defaultSpeed
	}
	c.Synthesis.Device = strings.ToLower(strings.TrimSpace(c.Synthesis.Device))
	if c.Synthesis.Device == "" {
		c.Synthesis.Device = defaultDevice
	}
	// Left empty, the language code is derived from the effective voice at
	// synthesis time, so a per-run voice override carries its own language.
	c.Synthesis.LanguageCode = strings.TrimSpace(c.Synthesis.LanguageCode)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
