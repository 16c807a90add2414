package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateSynthesis(); err != nil {
		return err
	}
	if err := c.validateCombine(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateExtraction() error {
	switch c.Extraction.Mode {
	case "chapters", "pages", "whole":
	default:
		return fmt.Errorf("extraction.mode must be one of chapters, pages, whole (got %q)", c.Extraction.Mode)
	}
	return nil
}

func (c *Config) validateSynthesis() error {
	if c.Synthesis.Speed <= 0 {
		return errors.New("synthesis.speed must be positive")
	}
	switch c.Synthesis.Device {
	case "cpu", "cuda":
	default:
		return fmt.Errorf("synthesis.device must be cpu or cuda (got %q)", c.Synthesis.Device)
	}
	return nil
}

func (c *Config) validateCombine() error {
	if c.Combine.ChunkSize <= 0 {
		return errors.New("combine.chunk_size must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxRetries <= 0 {
		return errors.New("workflow.max_retries must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	return nil
}
