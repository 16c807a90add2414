package extract_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"narrator/internal/config"
	"narrator/internal/extract"
	"narrator/internal/logging"
	"narrator/internal/services"
	"narrator/internal/testsupport"
)

func TestExtractBuildsExpectedArgs(t *testing.T) {
	dir := t.TempDir()
	outputDir := filepath.Join(dir, "extracted")

	client := extract.NewClient(config.Extraction{
		Command: "narrate-extract",
		Mode:    "chapters",
		UseTOC:  true,
	}, logging.NewNop())

	var gotName string
	var gotArgs []string
	client.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		testsupport.WriteFile(t, filepath.Join(outputDir, "chapter_000.txt"), "Once upon a time")
		return nil
	})

	if err := client.Extract(context.Background(), "/docs/book.pdf", outputDir); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if gotName != "narrate-extract" {
		t.Fatalf("unexpected command %q", gotName)
	}

	want := []string{"--input", "/docs/book.pdf", "--output-dir", outputDir, "--mode", "chapters", "--use-toc"}
	if len(gotArgs) != len(want) {
		t.Fatalf("unexpected args: %v", gotArgs)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Fatalf("arg %d = %q, want %q", i, gotArgs[i], want[i])
		}
	}
}

func TestExtractOmitsTOCFlagWhenDisabled(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "extracted")
	client := extract.NewClient(config.Extraction{Command: "narrate-extract", Mode: "whole"}, logging.NewNop())

	var gotArgs []string
	client.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotArgs = args
		testsupport.WriteFile(t, filepath.Join(outputDir, "document.txt"), "text")
		return nil
	})

	if err := client.Extract(context.Background(), "/docs/book.txt", outputDir); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	for _, arg := range gotArgs {
		if arg == "--use-toc" {
			t.Fatal("--use-toc must not be passed when disabled")
		}
	}
}

func TestExtractWrapsCommandFailure(t *testing.T) {
	client := extract.NewClient(config.Extraction{Command: "narrate-extract", Mode: "chapters"}, logging.NewNop())
	client.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return errors.New("exit status 1")
	})

	err := client.Extract(context.Background(), "/docs/book.pdf", filepath.Join(t.TempDir(), "extracted"))
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction marker, got %v", err)
	}
}

func TestExtractRejectsEmptyOutput(t *testing.T) {
	client := extract.NewClient(config.Extraction{Command: "narrate-extract", Mode: "chapters"}, logging.NewNop())
	client.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return nil
	})

	err := client.Extract(context.Background(), "/docs/book.pdf", filepath.Join(t.TempDir(), "extracted"))
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected failure when no text produced, got %v", err)
	}
}
