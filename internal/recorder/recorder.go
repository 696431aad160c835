// Package recorder produces one synchronized two-channel audio artifact
// from two independently clocked capture sources, tolerating partial source
// failure. Channel 0 is the microphone ("Me"), channel 1 system audio
// ("Them").
package recorder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aman-2709/WizScribe/internal/capture"
	"github.com/aman-2709/WizScribe/internal/observe"
	"github.com/aman-2709/WizScribe/internal/wav"
)

// writerTick is how often the writer drains the capture queues. Control
// signals (pause, stop) take effect at the next chunk boundary, not
// instantaneously; that bounded latency is expected.
const writerTick = 10 * time.Millisecond

// ErrBothSourcesFailed is returned when neither capture source could be
// opened.
var ErrBothSourcesFailed = fmt.Errorf("no audio source available: both mic and system capture failed")

// DeviceResolver auto-detects default capture devices. Satisfied by
// device.Catalog.
type DeviceResolver interface {
	Defaults() (mic, system *int, err error)
}

// Config wires a Recorder's collaborators.
type Config struct {
	Opener     capture.Opener
	Devices    DeviceResolver
	SampleRate int    // canonical output rate; 0 means 16000
	OutputDir  string // session WAV files land here
	Logger     zerolog.Logger
	Metrics    *observe.Metrics
}

// StartInfo reports what a freshly started session is capturing.
type StartInfo struct {
	SessionID    string `json:"session_id"`
	OutputPath   string `json:"output_path"`
	MicActive    bool   `json:"mic_active"`
	SystemActive bool   `json:"system_active"`
	MicDevice    string `json:"mic_device"`
	SystemDevice string `json:"system_device"`
}

// Result is the only artifact surviving a finished session.
type Result struct {
	SessionID    string  `json:"session_id"`
	MeetingID    string  `json:"meeting_id"`
	OutputPath   string  `json:"output_path"`
	DurationSecs float64 `json:"duration_secs"`

	// PausedSecs is wall-clock time spent paused; no audio is written
	// during pauses, so DurationSecs already excludes it.
	PausedSecs float64 `json:"paused_secs"`

	MicCaptured    bool   `json:"mic_captured"`
	SystemCaptured bool   `json:"system_captured"`
	MicDevice      string `json:"mic_device"`
	SystemDevice   string `json:"system_device"`
}

// Status is a point-in-time snapshot for boundary callers.
type Status struct {
	State        string `json:"state"`
	MeetingID    string `json:"meeting_id"`
	MicActive    bool   `json:"mic_active"`
	SystemActive bool   `json:"system_active"`
	MicDevice    string `json:"mic_device"`
	SystemDevice string `json:"system_device"`
}

// Recorder owns at most one recording session at a time. All lifecycle
// methods are safe for concurrent use; the state machine rejects anything
// invalid for the current state. Every state transition happens in the
// same mu critical section as the session mutation it implies, so the
// machine's state and the session pointer can never disagree.
type Recorder struct {
	opener  capture.Opener
	devices DeviceResolver
	rate    int
	outDir  string
	log     zerolog.Logger
	metrics *observe.Metrics

	sm     *StateMachine
	events chan SourceError

	mu         sync.Mutex
	session    *session
	lastResult *Result
}

type session struct {
	id        string
	meetingID string
	startedAt time.Time

	mic        capture.Stream // may be nil on degraded start
	system     capture.Stream // may be nil on degraded start
	micName    string
	systemName string

	outputPath string

	paused            bool
	pausedAccumulated time.Duration
	pauseStarted      time.Time

	writerStop  chan struct{}
	monitorStop chan struct{}
	writerWG    sync.WaitGroup

	// set by the writer goroutine before writerWG.Done
	framesWritten uint64
	writerErr     error

	finished bool
}

func New(cfg Config) *Recorder {
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.Default()
	}
	return &Recorder{
		opener:  cfg.Opener,
		devices: cfg.Devices,
		rate:    rate,
		outDir:  cfg.OutputDir,
		log:     cfg.Logger,
		metrics: metrics,
		sm:      NewStateMachine(),
		events:  make(chan SourceError, 16),
	}
}

// State exposes the authoritative recording state.
func (r *Recorder) State() State { return r.sm.State() }

// Events returns the asynchronous source-error stream. Sends never block;
// the caller may ignore the channel entirely.
func (r *Recorder) Events() <-chan SourceError { return r.events }

// LastResult returns the result of the most recently finished session, or
// nil. After a fatal double-source failure this is where the teardown
// result is retrievable.
func (r *Recorder) LastResult() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastResult
}

// Start opens both capture channels and begins writing the session file.
// Either device index may be nil (auto-detect). Each source is optional;
// Start fails only when both fail to open. A requested index that no longer
// exists falls back to auto-detection rather than failing.
func (r *Recorder) Start(meetingID string, micIndex, systemIndex *int) (*StartInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.sm.Start(); err != nil {
		return nil, err
	}
	info, err := r.startLocked(meetingID, micIndex, systemIndex)
	if err != nil {
		r.sm.Stop() // roll back to idle
		return nil, err
	}
	return info, nil
}

func (r *Recorder) startLocked(meetingID string, micIndex, systemIndex *int) (*StartInfo, error) {
	defMic, defSystem, err := r.devices.Defaults()
	if err != nil {
		r.log.Warn().Err(err).Msg("Device auto-detection failed")
	}

	mic := r.openWithFallback(micIndex, defMic, capture.SourceMic)
	system := r.openWithFallback(systemIndex, defSystem, capture.SourceSystem)
	if mic == nil && system == nil {
		return nil, ErrBothSourcesFailed
	}

	if err := os.MkdirAll(r.outDir, 0755); err != nil {
		closeStreams(mic, system)
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(r.outDir, meetingID+".wav")
	w, err := wav.NewWriter(outputPath, wav.Spec{Channels: 2, SampleRate: r.rate})
	if err != nil {
		closeStreams(mic, system)
		return nil, err
	}

	s := &session{
		id:          uuid.NewString(),
		meetingID:   meetingID,
		startedAt:   time.Now(),
		mic:         mic,
		system:      system,
		micName:     streamName(mic),
		systemName:  streamName(system),
		outputPath:  outputPath,
		writerStop:  make(chan struct{}),
		monitorStop: make(chan struct{}),
	}
	r.session = s

	s.writerWG.Add(1)
	go r.writeLoop(s, w)
	go r.monitor(s)

	r.metrics.ActiveSessions.Add(context.Background(), 1)
	r.log.Info().
		Str("session_id", s.id).
		Str("meeting_id", meetingID).
		Str("mic", s.micName).
		Str("system", s.systemName).
		Msg("Recording started")

	return &StartInfo{
		SessionID:    s.id,
		OutputPath:   outputPath,
		MicActive:    mic != nil,
		SystemActive: system != nil,
		MicDevice:    s.micName,
		SystemDevice: s.systemName,
	}, nil
}

// openWithFallback opens the requested device, falling back to the
// auto-detected default when the request cannot be honored. Returns nil if
// no device for this source can be opened; the caller degrades.
func (r *Recorder) openWithFallback(requested, fallback *int, source capture.Source) capture.Stream {
	if requested != nil {
		st, err := r.opener.Open(requested, source)
		if err == nil {
			return st
		}
		r.log.Warn().Err(err).
			Str("source", string(source)).
			Int("index", *requested).
			Msg("Requested device unavailable, falling back to auto-detect")
	}

	if fallback != nil {
		st, err := r.opener.Open(fallback, source)
		if err == nil {
			return st
		}
		r.log.Warn().Err(err).Str("source", string(source)).Msg("Default device failed to open")
		return nil
	}

	if source == capture.SourceMic {
		// Last resort for the mic: whatever the host calls its default
		// input. There is no such fallback for loopback sources.
		st, err := r.opener.Open(nil, source)
		if err == nil {
			return st
		}
		r.log.Warn().Err(err).Msg("System default input failed to open")
	}
	return nil
}

// Pause forwards to both channels. Paused intervals are excluded from the
// recorded duration.
func (r *Recorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.sm.Pause(); err != nil {
		return err
	}
	s := r.session
	pauseStreams(s.mic, s.system, true)
	s.paused = true
	s.pauseStarted = time.Now()
	r.log.Info().Str("session_id", s.id).Msg("Recording paused")
	return nil
}

// Resume re-enables both channels.
func (r *Recorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.sm.Resume(); err != nil {
		return err
	}
	s := r.session
	s.pausedAccumulated += time.Since(s.pauseStarted)
	s.paused = false
	pauseStreams(s.mic, s.system, false)
	r.log.Info().Str("session_id", s.id).Msg("Recording resumed")
	return nil
}

// Stop flushes and closes the session file, closes both channels, and
// finalizes the session. The returned Result is the only surviving
// artifact.
func (r *Recorder) Stop() (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.sm.Stop(); err != nil {
		return nil, err
	}
	return r.finishLocked(false)
}

// Abort stops the session and deletes the partially written output instead
// of leaving a corrupt artifact.
func (r *Recorder) Abort() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.sm.Stop(); err != nil {
		return err
	}
	_, err := r.finishLocked(true)
	return err
}

// Status returns a snapshot for boundary callers.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{State: r.sm.State().String()}
	if s := r.session; s != nil {
		st.MeetingID = s.meetingID
		st.MicActive = s.mic != nil && s.mic.Active()
		st.SystemActive = s.system != nil && s.system.Active()
		st.MicDevice = s.micName
		st.SystemDevice = s.systemName
	}
	return st
}

// finishLocked tears the active session down. Idempotent per session.
// Caller holds r.mu; the lock stays held across the whole teardown so no
// new session can be installed and mistaken for the one being torn down.
func (r *Recorder) finishLocked(discard bool) (*Result, error) {
	s := r.session
	if s == nil || s.finished {
		return r.lastResult, nil
	}
	s.finished = true
	r.session = nil

	// Liveness must be read before Close marks the channels inactive.
	micCaptured := s.mic != nil && s.mic.Active()
	systemCaptured := s.system != nil && s.system.Active()

	if s.paused {
		s.pausedAccumulated += time.Since(s.pauseStarted)
	}

	close(s.monitorStop)
	close(s.writerStop)
	s.writerWG.Wait()
	closeStreams(s.mic, s.system)

	r.metrics.ActiveSessions.Add(context.Background(), -1)

	if discard {
		if err := os.Remove(s.outputPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to discard session file: %w", err)
		}
		r.log.Info().Str("session_id", s.id).Msg("Recording aborted, output discarded")
		return nil, nil
	}
	if s.writerErr != nil {
		return nil, fmt.Errorf("session writer failed: %w", s.writerErr)
	}

	result := &Result{
		SessionID:      s.id,
		MeetingID:      s.meetingID,
		OutputPath:     s.outputPath,
		DurationSecs:   float64(s.framesWritten) / float64(r.rate),
		PausedSecs:     s.pausedAccumulated.Seconds(),
		MicCaptured:    micCaptured,
		SystemCaptured: systemCaptured,
		MicDevice:      s.micName,
		SystemDevice:   s.systemName,
	}
	r.lastResult = result
	r.log.Info().
		Str("session_id", s.id).
		Float64("duration_secs", result.DurationSecs).
		Bool("mic_captured", micCaptured).
		Bool("system_captured", systemCaptured).
		Msg("Recording stopped")
	return result, nil
}

// writeLoop is the only code holding the output file handle. On each tick
// it drains whatever both queues have, resamples to the canonical rate, and
// writes interleaved frames, substituting silence for a starved, paused, or
// failed channel.
func (r *Recorder) writeLoop(s *session, w *wav.Writer) {
	defer s.writerWG.Done()

	var micCh, sysCh <-chan capture.Chunk
	if s.mic != nil {
		micCh = s.mic.Chunks()
	}
	if s.system != nil {
		sysCh = s.system.Chunks()
	}

	var pendingMic, pendingSystem []float32
	ticker := time.NewTicker(writerTick)
	defer ticker.Stop()

	flush := func() {
		if s.writerErr != nil {
			pendingMic, pendingSystem = nil, nil
			return
		}
		n := 0
		for len(pendingMic) > 0 || len(pendingSystem) > 0 {
			var left, right float32
			if len(pendingMic) > 0 {
				left = pendingMic[0]
				pendingMic = pendingMic[1:]
			}
			if len(pendingSystem) > 0 {
				right = pendingSystem[0]
				pendingSystem = pendingSystem[1:]
			}
			if err := w.WriteFrame(left, right); err != nil {
				s.writerErr = err
				return
			}
			n++
		}
		if n > 0 {
			r.metrics.RecordFramesWritten(context.Background(), int64(n))
		}
	}

	drain := func() {
		for {
			progress := false
			if micCh != nil {
				select {
				case c, ok := <-micCh:
					if !ok {
						micCh = nil
					} else {
						pendingMic = append(pendingMic, capture.Resample(c.Samples, c.Rate, r.rate)...)
						progress = true
					}
				default:
				}
			}
			if sysCh != nil {
				select {
				case c, ok := <-sysCh:
					if !ok {
						sysCh = nil
					} else {
						pendingSystem = append(pendingSystem, capture.Resample(c.Samples, c.Rate, r.rate)...)
						progress = true
					}
				default:
				}
			}
			if !progress {
				return
			}
		}
	}

	for {
		select {
		case <-s.writerStop:
			drain()
			flush()
			s.framesWritten = w.Frames()
			if err := w.Finalize(); err != nil && s.writerErr == nil {
				s.writerErr = err
			}
			return
		case <-ticker.C:
			drain()
			flush()
			if s.writerErr != nil {
				// Keep draining so capture queues do not overflow, but
				// the file is already lost.
				s.framesWritten = w.Frames()
			}
		}
	}
}

// monitor relays capture failures as SourceError events and tears the
// session down when every source is gone.
func (r *Recorder) monitor(s *session) {
	var micErrs, sysErrs <-chan error
	if s.mic != nil {
		micErrs = s.mic.Errors()
	}
	if s.system != nil {
		sysErrs = s.system.Errors()
	}

	for {
		select {
		case <-s.monitorStop:
			return
		case err := <-micErrs:
			micErrs = nil
			if r.handleSourceFailure(s, capture.SourceMic, err) {
				return
			}
		case err := <-sysErrs:
			sysErrs = nil
			if r.handleSourceFailure(s, capture.SourceSystem, err) {
				return
			}
		}
	}
}

// handleSourceFailure classifies a capture failure at the recorder
// boundary. Returns true when the failure was fatal and the session has
// been torn down.
func (r *Recorder) handleSourceFailure(s *session, source capture.Source, err error) bool {
	micAlive := s.mic != nil && s.mic.Active()
	systemAlive := s.system != nil && s.system.Active()
	continues := micAlive || systemAlive

	r.metrics.RecordSourceError(context.Background(), string(source), !continues)
	r.emit(SourceError{
		Source:             source,
		Message:            err.Error(),
		Timestamp:          time.Now(),
		RecordingContinues: continues,
	})

	if continues {
		r.log.Warn().Err(err).
			Str("source", string(source)).
			Msg("Capture source failed, continuing with silence on its channel")
		return false
	}

	r.log.Error().Err(err).Msg("All capture sources failed, stopping session")
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != s || s.finished {
		// The session ended while this failure was in flight; whatever
		// session is installed now is not ours to tear down.
		return true
	}
	r.sm.Fail()
	if _, ferr := r.finishLocked(false); ferr != nil {
		r.log.Error().Err(ferr).Msg("Fatal teardown failed")
	}
	r.sm.Stop() // Error → Idle once teardown completes
	return true
}

func (r *Recorder) emit(e SourceError) {
	select {
	case r.events <- e:
	default:
		// Caller is not draining events; drop rather than block.
	}
}

func streamName(s capture.Stream) string {
	if s == nil {
		return "Not available"
	}
	return s.DeviceName()
}

func closeStreams(streams ...capture.Stream) {
	for _, s := range streams {
		if s != nil {
			s.Close()
		}
	}
}

func pauseStreams(mic, system capture.Stream, pause bool) {
	for _, s := range []capture.Stream{mic, system} {
		if s == nil {
			continue
		}
		if pause {
			s.Pause()
		} else {
			s.Resume()
		}
	}
}
