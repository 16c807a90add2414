package state_test

import (
	"strings"
	"testing"

	"narrator/internal/state"
)

func TestParseStatus(t *testing.T) {
	for _, status := range state.AllStatuses() {
		parsed, ok := state.ParseStatus(string(status))
		if !ok || parsed != status {
			t.Fatalf("ParseStatus(%q) = %q, %v", status, parsed, ok)
		}
	}
	if parsed, ok := state.ParseStatus(" Pending "); !ok || parsed != state.StatusPending {
		t.Fatalf("expected normalized parse, got %q, %v", parsed, ok)
	}
	if _, ok := state.ParseStatus("uploading"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
	if _, ok := state.ParseStatus(""); ok {
		t.Fatal("expected empty status to be rejected")
	}
}

func TestJobValidateInvariants(t *testing.T) {
	base := func() *state.Job {
		return state.NewJob("book-abc123def456", "/docs/book.pdf", "/docs/book.wav")
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("fresh job should validate: %v", err)
	}

	job := base()
	job.GenerationDone = true
	if err := job.Validate(); err == nil {
		t.Fatal("generation_done without extraction_done should fail")
	}

	job = base()
	job.Status = state.StatusCompleted
	job.ExtractionDone = true
	if err := job.Validate(); err == nil {
		t.Fatal("completed without generation_done should fail")
	}

	job = base()
	job.Status = state.Status("uploading")
	if err := job.Validate(); err == nil {
		t.Fatal("unknown status should fail validation")
	}

	job = base()
	job.RetryCount = -1
	if err := job.Validate(); err == nil {
		t.Fatal("negative retry count should fail validation")
	}

	job = base()
	job.ExtractionDone = true
	job.GenerationDone = true
	job.MarkCompleted()
	if err := job.Validate(); err != nil {
		t.Fatalf("completed job with both flags should validate: %v", err)
	}
	if job.CompletedAt == nil {
		t.Fatal("MarkCompleted should stamp CompletedAt")
	}
	if !job.IsTerminal() {
		t.Fatal("completed job should be terminal")
	}
}

func TestFingerprintDeterministicAndDistinct(t *testing.T) {
	fp1, err := state.Fingerprint("/path/to/book.pdf")
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	fp2, err := state.Fingerprint("/path/to/../to/book.pdf")
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if fp1 != fp2 {
		t.Fatalf("equivalent paths should share a fingerprint: %q vs %q", fp1, fp2)
	}

	fp3, err := state.Fingerprint("/other/dir/book.pdf")
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if fp1 == fp3 {
		t.Fatal("same-named files in different directories must not collide")
	}

	if !strings.HasPrefix(fp1, "book-") {
		t.Fatalf("expected human-readable stem prefix, got %q", fp1)
	}
}

func TestFingerprintSanitizesStem(t *testing.T) {
	fp, err := state.Fingerprint("/docs/my book (v2).pdf")
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if strings.ContainsAny(fp, " ()") {
		t.Fatalf("expected sanitized fingerprint, got %q", fp)
	}
}
