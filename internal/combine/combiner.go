package combine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"narrator/internal/logging"
	"narrator/internal/services"
)

// DefaultChunkSize is the number of segments decoded per batch when no
// explicit chunk size is configured.
const DefaultChunkSize = 50

const outputBitDepth = 16

// SampleRateMismatchError reports a segment whose sample rate differs from
// the first segment. It indicates a data problem, not a transient failure;
// the pipeline fails the job after a single attempt instead of retrying.
type SampleRateMismatchError struct {
	Path string
	Got  int
	Want int
}

func (e *SampleRateMismatchError) Error() string {
	return fmt.Sprintf("sample rate mismatch in %s: %d != %d", filepath.Base(e.Path), e.Got, e.Want)
}

// Is makes the mismatch matchable against the combination marker.
func (e *SampleRateMismatchError) Is(target error) bool {
	return target == services.ErrCombination
}

// Combiner merges an ordered sequence of WAV segments into a single
// mono 16-bit file without ever holding more than one batch of decoded
// audio in memory.
type Combiner struct {
	chunkSize int
	logger    *slog.Logger
}

// New creates a combiner. A non-positive chunkSize falls back to
// DefaultChunkSize.
func New(chunkSize int, logger *slog.Logger) *Combiner {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Combiner{
		chunkSize: chunkSize,
		logger:    logging.NewComponentLogger(logger, "combiner"),
	}
}

// ChunkSize returns the configured batch size.
func (c *Combiner) ChunkSize() int { return c.chunkSize }

// CombineDir merges every *.wav file in dir, in lexicographic filename
// order, into outputPath. Filename order is document order: the synthesizer
// names segments so that sorting reproduces reading order.
func (c *Combiner) CombineDir(ctx context.Context, dir, outputPath string) error {
	segments, err := filepath.Glob(filepath.Join(dir, "*.wav"))
	if err != nil {
		return services.Wrap(services.ErrCombination, "combine", "discover", dir, err)
	}
	sort.Strings(segments)
	return c.Combine(ctx, segments, outputPath)
}

// Combine merges the given segments, in order, into outputPath.
//
// Two passes: a metadata-only verification pass that checks sample rates and
// sums frame counts, then a streaming pass that decodes chunkSize segments
// at a time and appends them to the output encoder. The verification pass
// writes nothing, so a mismatch never leaves a partial output file. An I/O
// failure during the streaming pass may leave a partial file behind;
// success is reported only after the encoder is finalized.
func (c *Combiner) Combine(ctx context.Context, segments []string, outputPath string) error {
	if len(segments) == 0 {
		return services.Wrap(services.ErrCombination, "combine", "verify", "no audio segments to combine", nil)
	}

	sampleRate, totalFrames, err := c.verify(segments)
	if err != nil {
		return err
	}

	duration := time.Duration(float64(totalFrames) / float64(sampleRate) * float64(time.Second))
	c.logger.Info("combining audio segments",
		logging.Int("segment_count", len(segments)),
		logging.Int("sample_rate", sampleRate),
		logging.Int64("total_frames", totalFrames),
		logging.Duration("total_duration", duration),
		logging.Int("chunk_size", c.chunkSize),
		logging.String("output", outputPath))

	if err := c.stream(ctx, segments, sampleRate, outputPath); err != nil {
		return err
	}

	c.logger.Info("combined audio written", logging.String("output", outputPath))
	return nil
}

// verify reads metadata only, never PCM data.
func (c *Combiner) verify(segments []string) (sampleRate int, totalFrames int64, err error) {
	for i, segment := range segments {
		rate, frames, err := probeSegment(segment)
		if err != nil {
			return 0, 0, services.Wrap(services.ErrCombination, "combine", "verify", segment, err)
		}
		if i == 0 {
			sampleRate = rate
		} else if rate != sampleRate {
			return 0, 0, &SampleRateMismatchError{Path: segment, Got: rate, Want: sampleRate}
		}
		totalFrames += frames
	}
	return sampleRate, totalFrames, nil
}

func (c *Combiner) stream(ctx context.Context, segments []string, sampleRate int, outputPath string) error {
	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return services.Wrap(services.ErrCombination, "combine", "prepare output", outputPath, err)
		}
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return services.Wrap(services.ErrCombination, "combine", "create output", outputPath, err)
	}
	defer out.Close()

	enc := wav.NewEncoder(out, sampleRate, outputBitDepth, 1, 1)

	batches := (len(segments) + c.chunkSize - 1) / c.chunkSize
	for start := 0; start < len(segments); start += c.chunkSize {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrCombination, "combine", "stream", "interrupted", err)
		}

		end := start + c.chunkSize
		if end > len(segments) {
			end = len(segments)
		}
		c.logger.Debug("writing batch",
			logging.Int("batch", start/c.chunkSize+1),
			logging.Int("batch_count", batches),
			logging.Int("segments_in_batch", end-start))

		// Decode one batch fully, write it, then drop it before the next
		// batch. Peak memory stays bounded by chunkSize decoded segments.
		var batch []int
		for _, segment := range segments[start:end] {
			samples, err := decodeSegment(segment)
			if err != nil {
				return services.Wrap(services.ErrCombination, "combine", "decode", segment, err)
			}
			batch = append(batch, samples...)
		}

		buf := &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			Data:           batch,
			SourceBitDepth: outputBitDepth,
		}
		if err := enc.Write(buf); err != nil {
			return services.Wrap(services.ErrCombination, "combine", "write", outputPath, err)
		}
	}

	if err := enc.Close(); err != nil {
		return services.Wrap(services.ErrCombination, "combine", "finalize", outputPath, err)
	}
	if err := out.Close(); err != nil {
		return services.Wrap(services.ErrCombination, "combine", "close output", outputPath, err)
	}
	return nil
}

// probeSegment reads WAV headers only and reports sample rate and frame
// count.
func probeSegment(path string) (sampleRate int, frames int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return 0, 0, fmt.Errorf("read wav info: %w", err)
	}
	if d.SampleRate == 0 || d.BitDepth == 0 || d.NumChans == 0 {
		return 0, 0, errors.New("not a valid wav file")
	}
	if err := d.FwdToPCM(); err != nil {
		return 0, 0, fmt.Errorf("locate pcm data: %w", err)
	}

	bytesPerFrame := int64(d.NumChans) * int64(d.BitDepth/8)
	if bytesPerFrame == 0 {
		return 0, 0, errors.New("unsupported wav bit depth")
	}
	return int(d.SampleRate), d.PCMLen() / bytesPerFrame, nil
}

// decodeSegment loads one segment fully and converts it to mono 16-bit
// samples.
func decodeSegment(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	return toMono16(buf), nil
}

// toMono16 downmixes multi-channel audio by averaging and rescales samples
// to 16-bit when the source bit depth differs.
func toMono16(buf *audio.IntBuffer) []int {
	data := buf.Data
	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 1 {
		channels = buf.Format.NumChannels
	}
	if channels > 1 {
		mono := make([]int, 0, len(data)/channels)
		for i := 0; i+channels <= len(data); i += channels {
			sum := 0
			for ch := 0; ch < channels; ch++ {
				sum += data[i+ch]
			}
			mono = append(mono, sum/channels)
		}
		data = mono
	}

	depth := buf.SourceBitDepth
	if depth == 0 || depth == outputBitDepth {
		return data
	}
	shift := depth - outputBitDepth
	out := make([]int, len(data))
	if shift > 0 {
		for i, sample := range data {
			out[i] = sample >> shift
		}
	} else {
		for i, sample := range data {
			out[i] = sample << -shift
		}
	}
	return out
}
