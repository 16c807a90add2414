// Package synth wraps the external speech-synthesis tool. The tool reads
// the extracted text segments and writes one WAV file per segment, named so
// that lexicographic order matches document order.
package synth

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"narrator/internal/config"
	"narrator/internal/fileutil"
	"narrator/internal/logging"
	"narrator/internal/services"
)

// Client invokes the configured synthesizer binary.
type Client struct {
	cfg           config.Synthesis
	logger        *slog.Logger
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewClient creates a synthesis client from configuration.
func NewClient(cfg config.Synthesis, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "synthesizer"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	c.commandRunner = runner
}

// Voice returns the effective voice, preferring the override when set.
func (c *Client) Voice(override string) string {
	if v := strings.TrimSpace(override); v != "" {
		return v
	}
	return c.cfg.Voice
}

// languageCode derives the synthesizer language from the voice identifier
// unless the config pins one explicitly. Voice packs encode the language in
// their first rune ("am_liam" is American English).
func (c *Client) languageCode(voice string) string {
	if code := strings.TrimSpace(c.cfg.LanguageCode); code != "" {
		return code
	}
	if voice != "" {
		r, _ := utf8.DecodeRuneInString(voice)
		return string(r)
	}
	return "a"
}

// Synthesize runs the synthesizer over every text segment in textDir,
// writing WAV segments into audioDir. voiceOverride replaces the configured
// voice when non-empty.
func (c *Client) Synthesize(ctx context.Context, textDir, audioDir, voiceOverride string) error {
	if strings.TrimSpace(textDir) == "" {
		return services.Wrap(services.ErrGeneration, "synthesize", "validate", "text directory required", nil)
	}
	if err := fileutil.EnsureDir(audioDir); err != nil {
		return services.Wrap(services.ErrGeneration, "synthesize", "prepare output", audioDir, err)
	}

	voice := c.Voice(voiceOverride)
	args := []string{
		"--input-dir", textDir,
		"--output-dir", audioDir,
		"--voice", voice,
		"--lang", c.languageCode(voice),
		"--speed", strconv.FormatFloat(c.cfg.Speed, 'f', -1, 64),
		"--device", c.cfg.Device,
		"--format", "wav",
	}

	c.logger.Info("generating audio",
		logging.String("voice", voice),
		logging.String("device", c.cfg.Device),
		logging.String("output_dir", audioDir))

	if err := c.run(ctx, c.cfg.Command, args...); err != nil {
		return services.Wrap(services.ErrGeneration, "synthesize", "run synthesizer", textDir, err)
	}
	return c.verifyOutput(audioDir)
}

func (c *Client) verifyOutput(audioDir string) error {
	matches, err := filepath.Glob(filepath.Join(audioDir, "*.wav"))
	if err != nil {
		return services.Wrap(services.ErrGeneration, "synthesize", "verify output", audioDir, err)
	}
	for _, match := range matches {
		if fileutil.NonEmptyFile(match) {
			return nil
		}
	}
	return services.Wrap(services.ErrGeneration, "synthesize", "verify output", "synthesizer produced no audio segments", nil)
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
