package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aman-2709/WizScribe/internal/observe"
	"github.com/aman-2709/WizScribe/internal/transcript"
	"github.com/aman-2709/WizScribe/internal/wav"
)

// Mode describes which transcription path an orchestration took.
type Mode string

const (
	// ModeDual means both channels were demultiplexed and attributed to
	// speakers.
	ModeDual Mode = "dual"
	// ModeMono means a single channel was transcribed without speaker
	// attribution.
	ModeMono Mode = "mono"
)

// SourceInfo carries what the recorder reported about a finished
// session. Channels that were never captured are skipped instead of
// being transcribed as silence.
type SourceInfo struct {
	MicDevice      string
	SystemDevice   string
	MicCaptured    bool
	SystemCaptured bool
}

// Outcome is the typed result of an orchestration. Dual and mono are
// distinct results rather than an exception path, so callers can tell
// "dual unsupported for this file" apart from "dual failed".
type Outcome struct {
	Mode         Mode
	HasDualAudio bool
	Transcript   *transcript.SpeakerTranscript

	// MonoText is the legacy plain-text rendering. Populated only for
	// ModeMono.
	MonoText string
}

// Orchestrator turns a finished recording into a transcript by
// demultiplexing the file, invoking the engine once per captured
// channel, and merging the results.
type Orchestrator struct {
	engine      Engine
	log         zerolog.Logger
	metrics     *observe.Metrics
	toleranceMs int64
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOverlapTolerance sets the merge overlap tolerance in
// milliseconds. Zero means any interval intersection counts.
func WithOverlapTolerance(ms int64) OrchestratorOption {
	return func(o *Orchestrator) { o.toleranceMs = ms }
}

// WithOrchestratorLogger sets the orchestrator logger.
func WithOrchestratorLogger(log zerolog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.log = log }
}

// WithOrchestratorMetrics sets the metrics sink.
func WithOrchestratorMetrics(m *observe.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator creates an Orchestrator around the given engine.
func NewOrchestrator(engine Engine, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		engine:  engine,
		log:     zerolog.Nop(),
		metrics: observe.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// TranscribeDual transcribes the recording at audioPath. Two-channel
// files with both sources captured produce a speaker-attributed
// transcript; everything else short-circuits to the mono path. The two
// engine calls share no mutable state and run concurrently.
func (o *Orchestrator) TranscribeDual(ctx context.Context, audioPath string, info SourceInfo) (*Outcome, error) {
	samples, spec, err := wav.Decode(audioPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: decode %s: %w", audioPath, err)
	}

	channels := wav.SplitChannels(samples, spec.Channels)

	if spec.Channels < 2 || !info.MicCaptured || !info.SystemCaptured {
		return o.transcribeMono(ctx, channels, spec.SampleRate, info)
	}

	o.log.Info().
		Str("path", audioPath).
		Int("sample_rate", spec.SampleRate).
		Msg("Transcribing dual-channel recording")

	var micSegs, sysSegs []Segment
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		micSegs, err = o.transcribeChannel(gctx, channels[0], spec.SampleRate, string(transcript.SpeakerMe))
		return err
	})
	g.Go(func() error {
		var err error
		sysSegs, err = o.transcribeChannel(gctx, channels[1], spec.SampleRate, string(transcript.SpeakerThem))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tr := transcript.New(info.MicDevice, info.SystemDevice)
	tr.Segments = transcript.Merge(toUtterances(micSegs), toUtterances(sysSegs), o.toleranceMs)

	o.log.Info().Int("segments", len(tr.Segments)).Msg("Dual transcription complete")
	return &Outcome{Mode: ModeDual, HasDualAudio: true, Transcript: tr}, nil
}

// transcribeMono handles single-channel files and degraded dual files
// where one source was never captured. The surviving channel is
// transcribed without speaker attribution and rendered in the legacy
// plain-text format.
func (o *Orchestrator) transcribeMono(ctx context.Context, channels [][]float32, sampleRate int, info SourceInfo) (*Outcome, error) {
	var mono []float32
	speaker := string(transcript.SpeakerMe)
	switch {
	case len(channels) >= 2 && !info.MicCaptured && info.SystemCaptured:
		mono = channels[1]
		speaker = string(transcript.SpeakerThem)
	case len(channels) >= 1:
		mono = channels[0]
	default:
		return nil, fmt.Errorf("transcribe: recording has no audio channels")
	}

	o.log.Info().Str("channel", speaker).Msg("Transcribing mono recording")

	segs, err := o.transcribeChannel(ctx, mono, sampleRate, speaker)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Mode:     ModeMono,
		MonoText: transcript.FormatLegacy(toUtterances(segs)),
	}, nil
}

func (o *Orchestrator) transcribeChannel(ctx context.Context, samples []float32, sampleRate int, speaker string) ([]Segment, error) {
	start := time.Now()
	segs, err := o.engine.Transcribe(ctx, samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %s channel: %w", speaker, err)
	}
	o.metrics.RecordSTT(ctx, speaker, time.Since(start))
	return segs, nil
}

func toUtterances(segs []Segment) []transcript.Utterance {
	out := make([]transcript.Utterance, len(segs))
	for i, s := range segs {
		out[i] = transcript.Utterance{StartMs: s.StartMs, EndMs: s.EndMs, Text: s.Text}
	}
	return out
}
