package combine_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"testing"
	"time"

	"narrator/internal/combine"
	"narrator/internal/logging"
	"narrator/internal/services"
	"narrator/internal/testsupport"
)

func TestCombinePreservesOrderAcrossChunkSizes(t *testing.T) {
	dir := t.TempDir()

	var want []int
	var segments []string
	for i := 0; i < 7; i++ {
		samples := []int{i * 100, i*100 + 1, i*100 + 2}
		path := filepath.Join(dir, fmt.Sprintf("segment_%03d.wav", i))
		testsupport.WriteWAV(t, path, 24000, samples)
		segments = append(segments, path)
		want = append(want, samples...)
	}

	for _, chunkSize := range []int{1, 3, 10, 50} {
		output := filepath.Join(dir, fmt.Sprintf("out_%d.wav", chunkSize))
		combiner := combine.New(chunkSize, logging.NewNop())
		if err := combiner.Combine(context.Background(), segments, output); err != nil {
			t.Fatalf("Combine with chunk size %d failed: %v", chunkSize, err)
		}

		rate, got := testsupport.ReadWAV(t, output)
		if rate != 24000 {
			t.Fatalf("chunk size %d: unexpected sample rate %d", chunkSize, rate)
		}
		if len(got) != len(want) {
			t.Fatalf("chunk size %d: expected %d samples, got %d", chunkSize, len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("chunk size %d: sample %d = %d, want %d", chunkSize, i, got[i], want[i])
			}
		}
	}
}

func TestCombineDirSortsSegments(t *testing.T) {
	dir := t.TempDir()
	segDir := filepath.Join(dir, "segments")

	// Written out of order; filenames sort back into document order.
	testsupport.WriteWAV(t, filepath.Join(segDir, "chapter_002.wav"), 24000, []int{20, 21})
	testsupport.WriteWAV(t, filepath.Join(segDir, "chapter_000.wav"), 24000, []int{0, 1})
	testsupport.WriteWAV(t, filepath.Join(segDir, "chapter_001.wav"), 24000, []int{10, 11})

	output := filepath.Join(dir, "book.wav")
	combiner := combine.New(0, logging.NewNop())
	if err := combiner.CombineDir(context.Background(), segDir, output); err != nil {
		t.Fatalf("CombineDir failed: %v", err)
	}

	_, got := testsupport.ReadWAV(t, output)
	want := []int{0, 1, 10, 11, 20, 21}
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

// Peak decoded-audio residency must scale with the chunk size, not the
// segment count. A heap sampler watches a 500-segment run with chunks of 50
// and rejects anything approaching full residency.
func TestCombineBoundedMemory(t *testing.T) {
	if testing.Short() {
		t.Skip("heap sampling run")
	}

	const (
		segmentCount   = 500
		samplesPerFile = 16384
		chunkSize      = 50
	)

	dir := t.TempDir()
	samples := make([]int, samplesPerFile)
	for i := range samples {
		samples[i] = i % 1000
	}
	segments := make([]string, 0, segmentCount)
	for i := 0; i < segmentCount; i++ {
		path := filepath.Join(dir, fmt.Sprintf("segment_%04d.wav", i))
		testsupport.WriteWAV(t, path, 24000, samples)
		segments = append(segments, path)
	}

	// Keep collections frequent so HeapAlloc tracks live data instead of
	// uncollected batch garbage.
	prevGC := debug.SetGCPercent(20)
	defer debug.SetGCPercent(prevGC)

	runtime.GC()
	var base runtime.MemStats
	runtime.ReadMemStats(&base)

	stop := make(chan struct{})
	peakCh := make(chan uint64, 1)
	go func() {
		var peak uint64
		var stats runtime.MemStats
		for {
			runtime.ReadMemStats(&stats)
			if stats.HeapAlloc > peak {
				peak = stats.HeapAlloc
			}
			select {
			case <-stop:
				peakCh <- peak
				return
			case <-time.After(time.Millisecond):
			}
		}
	}()

	output := filepath.Join(dir, "book.wav")
	combiner := combine.New(chunkSize, logging.NewNop())
	if err := combiner.Combine(context.Background(), segments, output); err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	close(stop)
	peak := <-peakCh

	var growth uint64
	if peak > base.HeapAlloc {
		growth = peak - base.HeapAlloc
	}

	// Decoded samples occupy 8-byte ints; holding every segment at once
	// would cost at least segmentCount*samplesPerFile*8 bytes. A chunked
	// run touches only chunkSize segments at a time and must stay well
	// under half of that.
	allResident := uint64(segmentCount) * samplesPerFile * 8
	if growth > allResident/2 {
		t.Fatalf("peak heap growth %d bytes suggests full-set buffering (all segments resident would be %d)", growth, allResident)
	}

	info, err := os.Stat(output)
	if err != nil {
		t.Fatalf("expected combined output: %v", err)
	}
	if want := int64(segmentCount * samplesPerFile * 2); info.Size() < want {
		t.Fatalf("combined output too small: %d bytes, want at least %d", info.Size(), want)
	}
}

func TestCombineSampleRateMismatch(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.wav")
	second := filepath.Join(dir, "b.wav")
	testsupport.WriteWAV(t, first, 24000, []int{1, 2, 3})
	testsupport.WriteWAV(t, second, 22050, []int{4, 5, 6})

	output := filepath.Join(dir, "out.wav")
	combiner := combine.New(10, logging.NewNop())
	err := combiner.Combine(context.Background(), []string{first, second}, output)

	var mismatch *combine.SampleRateMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected SampleRateMismatchError, got %v", err)
	}
	if mismatch.Path != second || mismatch.Got != 22050 || mismatch.Want != 24000 {
		t.Fatalf("unexpected mismatch details: %+v", mismatch)
	}
	if !errors.Is(err, services.ErrCombination) {
		t.Fatalf("expected combination marker, got %v", err)
	}
	if _, statErr := os.Stat(output); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("verification failure must not create output, stat: %v", statErr)
	}
}

func TestCombineRejectsEmptyInput(t *testing.T) {
	combiner := combine.New(10, logging.NewNop())
	err := combiner.Combine(context.Background(), nil, filepath.Join(t.TempDir(), "out.wav"))
	if !errors.Is(err, services.ErrCombination) {
		t.Fatalf("expected combination error for empty input, got %v", err)
	}
}

func TestCombineHonorsCancellation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg.wav")
	testsupport.WriteWAV(t, path, 24000, []int{1, 2, 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	combiner := combine.New(1, logging.NewNop())
	err := combiner.Combine(ctx, []string{path}, filepath.Join(dir, "out.wav"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
