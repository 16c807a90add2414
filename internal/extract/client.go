// Package extract wraps the external text-extraction tool. The tool reads a
// source document (.pdf, .epub, .txt) and writes one plain-text file per
// chapter or page into an output directory.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"narrator/internal/config"
	"narrator/internal/fileutil"
	"narrator/internal/logging"
	"narrator/internal/services"
)

// Client invokes the configured extractor binary.
type Client struct {
	cfg           config.Extraction
	logger        *slog.Logger
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewClient creates an extraction client from configuration.
func NewClient(cfg config.Extraction, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "extractor"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	c.commandRunner = runner
}

// Extract runs the extractor against inputPath, writing text segments into
// outputDir. It fails when the tool exits non-zero or produces no non-empty
// text files.
func (c *Client) Extract(ctx context.Context, inputPath, outputDir string) error {
	if strings.TrimSpace(inputPath) == "" {
		return services.Wrap(services.ErrExtraction, "extract", "validate", "input path required", nil)
	}
	if err := fileutil.EnsureDir(outputDir); err != nil {
		return services.Wrap(services.ErrExtraction, "extract", "prepare output", outputDir, err)
	}

	args := []string{
		"--input", inputPath,
		"--output-dir", outputDir,
		"--mode", c.cfg.Mode,
	}
	if c.cfg.UseTOC {
		args = append(args, "--use-toc")
	}

	c.logger.Info("extracting text",
		logging.String(logging.FieldInput, inputPath),
		logging.String("mode", c.cfg.Mode),
		logging.String("output_dir", outputDir))

	if err := c.run(ctx, c.cfg.Command, args...); err != nil {
		return services.Wrap(services.ErrExtraction, "extract", "run extractor", inputPath, err)
	}
	return c.verifyOutput(outputDir)
}

// verifyOutput guards against an extractor that exits zero without writing
// anything usable.
func (c *Client) verifyOutput(outputDir string) error {
	matches, err := filepath.Glob(filepath.Join(outputDir, "*.txt"))
	if err != nil {
		return services.Wrap(services.ErrExtraction, "extract", "verify output", outputDir, err)
	}
	for _, match := range matches {
		if fileutil.NonEmptyFile(match) {
			return nil
		}
	}
	return services.Wrap(services.ErrExtraction, "extract", "verify output", "extractor produced no text segments", nil)
}

func (c *Client) run(ctx context.Context, name string, args ...string) error {
	if c.commandRunner != nil {
		return c.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
