package transcribe

import (
	"context"
	"errors"
)

// ErrModelUnavailable indicates that no usable speech model could be
// loaded. Callers should surface a configuration hint rather than retry.
var ErrModelUnavailable = errors.New("transcribe: model unavailable")

// Segment is one timestamped utterance produced by an Engine. Offsets
// are milliseconds from the start of the audio that was submitted.
type Segment struct {
	StartMs int64
	EndMs   int64
	Text    string
}

// Engine converts mono PCM audio into timestamped text. Implementations
// must be safe for concurrent Transcribe calls; the orchestrator runs
// one call per audio channel at the same time.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) ([]Segment, error)
	Close() error
}
