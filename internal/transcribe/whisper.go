package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog"

	"github.com/aman-2709/WizScribe/internal/capture"
)

var _ Engine = (*WhisperEngine)(nil)

// WhisperEngine implements Engine on the whisper.cpp CGO bindings. The
// model is loaded once and shared; each Transcribe call creates its own
// whisper context, which is what makes concurrent calls safe.
type WhisperEngine struct {
	model    whisperlib.Model
	language string
	threads  int
	log      zerolog.Logger
}

// WhisperOption configures a WhisperEngine.
type WhisperOption func(*WhisperEngine)

// WithLanguage sets the transcription language code, e.g. "en".
// "auto" leaves language detection to the model.
func WithLanguage(lang string) WhisperOption {
	return func(e *WhisperEngine) { e.language = lang }
}

// WithThreads sets the inference thread count. Zero keeps the binding
// default.
func WithThreads(n int) WhisperOption {
	return func(e *WhisperEngine) { e.threads = n }
}

// WithLogger sets the engine logger.
func WithLogger(log zerolog.Logger) WhisperOption {
	return func(e *WhisperEngine) { e.log = log }
}

// NewWhisperEngine loads a ggml model from modelPath. A missing or
// unreadable model file maps to ErrModelUnavailable so callers can tell
// a setup problem apart from an inference failure.
func NewWhisperEngine(modelPath string, opts ...WhisperOption) (*WhisperEngine, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("%w: no model path configured", ErrModelUnavailable)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, modelPath)
	}

	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrModelUnavailable, modelPath, err)
	}

	e := &WhisperEngine{
		model:    model,
		language: "en",
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Transcribe runs whisper.cpp inference over the given mono samples and
// returns the recognized segments in time order. Samples at a rate other
// than the model's native 16 kHz are resampled first.
func (e *WhisperEngine) Transcribe(ctx context.Context, samples []float32, sampleRate int) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}
	if sampleRate != whisperlib.SampleRate {
		samples = capture.Resample(samples, sampleRate, whisperlib.SampleRate)
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("transcribe: create context: %w", err)
	}
	if e.threads > 0 {
		wctx.SetThreads(uint(e.threads))
	}
	if e.language != "" && e.language != "auto" {
		if err := wctx.SetLanguage(e.language); err != nil {
			e.log.Warn().Err(err).Str("language", e.language).Msg("Failed to set language, using model default")
		}
	}
	wctx.SetTranslate(false)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("transcribe: process audio: %w", err)
	}

	var out []Segment
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("transcribe: read segment: %w", err)
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		out = append(out, Segment{
			StartMs: seg.Start.Milliseconds(),
			EndMs:   seg.End.Milliseconds(),
			Text:    text,
		})
	}

	e.log.Debug().Int("segments", len(out)).Int("samples", len(samples)).Msg("Transcription complete")
	return out, nil
}

// Close releases the shared model.
func (e *WhisperEngine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}
