package recorder

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aman-2709/WizScribe/internal/capture"
	"github.com/aman-2709/WizScribe/internal/wav"
)

// Mock implementations for testing

type fakeStream struct {
	name   string
	rate   int
	chunks chan capture.Chunk
	errs   chan error
	active atomic.Bool
	paused atomic.Bool
	seq    uint64
}

func newFakeStream(name string, rate int) *fakeStream {
	s := &fakeStream{
		name:   name,
		rate:   rate,
		chunks: make(chan capture.Chunk, 64),
		errs:   make(chan error, 1),
	}
	s.active.Store(true)
	return s
}

func (s *fakeStream) push(source capture.Source, samples []float32) {
	s.seq++
	s.chunks <- capture.Chunk{Source: source, Seq: s.seq, Rate: s.rate, Samples: samples}
}

func (s *fakeStream) fail(err error) {
	s.active.Store(false)
	s.errs <- err
}

func (s *fakeStream) Chunks() <-chan capture.Chunk { return s.chunks }
func (s *fakeStream) Errors() <-chan error         { return s.errs }
func (s *fakeStream) Pause()                       { s.paused.Store(true) }
func (s *fakeStream) Resume()                      { s.paused.Store(false) }
func (s *fakeStream) Close() error                 { s.active.Store(false); return nil }
func (s *fakeStream) Active() bool                 { return s.active.Load() }
func (s *fakeStream) DeviceName() string           { return s.name }
func (s *fakeStream) SampleRate() int              { return s.rate }
func (s *fakeStream) Dropped() uint64              { return 0 }

type fakeOpener struct {
	mic       capture.Stream
	system    capture.Stream
	micErr    error
	systemErr error
}

func (o *fakeOpener) Open(deviceIndex *int, source capture.Source) (capture.Stream, error) {
	switch source {
	case capture.SourceMic:
		if o.micErr != nil {
			return nil, o.micErr
		}
		return o.mic, nil
	default:
		if o.systemErr != nil {
			return nil, o.systemErr
		}
		return o.system, nil
	}
}

type fakeResolver struct{}

func (fakeResolver) Defaults() (mic, system *int, err error) {
	m, s := 0, 1
	return &m, &s, nil
}

func newTestRecorder(t *testing.T, opener capture.Opener) *Recorder {
	t.Helper()
	return New(Config{
		Opener:     opener,
		Devices:    fakeResolver{},
		SampleRate: 16000,
		OutputDir:  t.TempDir(),
		Logger:     zerolog.Nop(),
	})
}

func samples(n int, value float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func TestRecorderDualCapture(t *testing.T) {
	mic := newFakeStream("Test Mic", 16000)
	system := newFakeStream("Monitor of Test Output", 16000)
	r := newTestRecorder(t, &fakeOpener{mic: mic, system: system})

	info, err := r.Start("meeting-1", nil, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !info.MicActive || !info.SystemActive {
		t.Fatalf("info = %+v, want both sources active", info)
	}
	if r.State() != StateRecording {
		t.Fatalf("state = %v, want recording", r.State())
	}

	// A tenth of a second from each source.
	mic.push(capture.SourceMic, samples(1600, 0.5))
	system.push(capture.SourceSystem, samples(1600, -0.5))

	result, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !result.MicCaptured || !result.SystemCaptured {
		t.Errorf("result = %+v, want both sources captured", result)
	}
	if result.DurationSecs < 0.09 || result.DurationSecs > 0.12 {
		t.Errorf("DurationSecs = %f, want ~0.1", result.DurationSecs)
	}

	decoded, spec, err := wav.Decode(result.OutputPath)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if spec.Channels != 2 {
		t.Errorf("channels = %d, want 2", spec.Channels)
	}
	chans := wav.SplitChannels(decoded, spec.Channels)
	if nonZero(chans[0]) == 0 || nonZero(chans[1]) == 0 {
		t.Error("both channels should carry captured audio")
	}
}

func TestRecorderDegradesWithoutSystemAudio(t *testing.T) {
	mic := newFakeStream("Test Mic", 16000)
	r := newTestRecorder(t, &fakeOpener{mic: mic, systemErr: errors.New("no monitor source")})

	info, err := r.Start("meeting-2", nil, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !info.MicActive {
		t.Error("mic should be active")
	}
	if info.SystemActive {
		t.Error("system should be inactive")
	}

	mic.push(capture.SourceMic, samples(1600, 0.4))

	result, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !result.MicCaptured || result.SystemCaptured {
		t.Errorf("result = %+v, want mic-only", result)
	}

	// The system channel is pure silence.
	decoded, spec, err := wav.Decode(result.OutputPath)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	chans := wav.SplitChannels(decoded, spec.Channels)
	if nonZero(chans[1]) != 0 {
		t.Error("system channel should be silence-filled")
	}
}

func TestRecorderFailsWhenBothSourcesFail(t *testing.T) {
	r := newTestRecorder(t, &fakeOpener{
		micErr:    errors.New("mic gone"),
		systemErr: errors.New("monitor gone"),
	})

	_, err := r.Start("meeting-3", nil, nil)
	if !errors.Is(err, ErrBothSourcesFailed) {
		t.Fatalf("Start = %v, want ErrBothSourcesFailed", err)
	}
	if r.State() != StateIdle {
		t.Errorf("state = %v, want idle after rollback", r.State())
	}
}

func TestRecorderSurvivesMicFailure(t *testing.T) {
	mic := newFakeStream("Test Mic", 16000)
	system := newFakeStream("Monitor of Test Output", 16000)
	r := newTestRecorder(t, &fakeOpener{mic: mic, system: system})

	if _, err := r.Start("meeting-4", nil, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	system.push(capture.SourceSystem, samples(1600, 0.3))
	mic.fail(errors.New("device disconnected"))

	// The failure is relayed as a non-fatal event.
	select {
	case e := <-r.Events():
		if e.Source != capture.SourceMic {
			t.Errorf("event source = %q, want mic", e.Source)
		}
		if !e.RecordingContinues {
			t.Error("recording should continue on single-source failure")
		}
	case <-time.After(time.Second):
		t.Fatal("no source error event received")
	}

	if r.State() != StateRecording {
		t.Errorf("state = %v, session must never enter error with one live source", r.State())
	}

	result, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if result.MicCaptured {
		t.Error("mic should be reported as not captured")
	}
	if !result.SystemCaptured {
		t.Error("system should be reported as captured")
	}
}

func TestRecorderTearsDownWhenAllSourcesFail(t *testing.T) {
	mic := newFakeStream("Test Mic", 16000)
	system := newFakeStream("Monitor of Test Output", 16000)
	r := newTestRecorder(t, &fakeOpener{mic: mic, system: system})

	if _, err := r.Start("meeting-5", nil, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	mic.fail(errors.New("mic disconnected"))
	system.fail(errors.New("monitor disconnected"))

	var sawFatal bool
	deadline := time.After(time.Second)
	for !sawFatal {
		select {
		case e := <-r.Events():
			if !e.RecordingContinues {
				sawFatal = true
			}
		case <-deadline:
			t.Fatal("no fatal event received")
		}
	}

	// Teardown ends in idle, with the result retrievable.
	var idle bool
	for i := 0; i < 100; i++ {
		if r.State() == StateIdle {
			idle = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !idle {
		t.Fatalf("state = %v, want idle after fatal teardown", r.State())
	}
	result := r.LastResult()
	if result == nil {
		t.Fatal("LastResult should hold the fatal teardown result")
	}
	if result.MicCaptured || result.SystemCaptured {
		t.Errorf("result = %+v, want neither source captured", result)
	}
}

func TestRecorderPauseRejectsDouble(t *testing.T) {
	mic := newFakeStream("Test Mic", 16000)
	r := newTestRecorder(t, &fakeOpener{mic: mic, systemErr: errors.New("none")})

	if _, err := r.Start("meeting-6", nil, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if !mic.paused.Load() {
		t.Error("pause should be forwarded to the capture channel")
	}

	err := r.Pause()
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("second Pause = %v, want InvalidTransitionError", err)
	}

	if err := r.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if mic.paused.Load() {
		t.Error("resume should be forwarded to the capture channel")
	}
	if _, err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestRecorderAbortDiscardsOutput(t *testing.T) {
	mic := newFakeStream("Test Mic", 16000)
	r := newTestRecorder(t, &fakeOpener{mic: mic, systemErr: errors.New("none")})

	info, err := r.Start("meeting-7", nil, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	mic.push(capture.SourceMic, samples(1600, 0.2))

	if err := r.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, err := os.Stat(info.OutputPath); !os.IsNotExist(err) {
		t.Errorf("output file should be deleted, stat err = %v", err)
	}
	if r.State() != StateIdle {
		t.Errorf("state = %v, want idle", r.State())
	}
}

func TestRecorderResamplesMismatchedRates(t *testing.T) {
	// Mic at 48 kHz, system at 16 kHz: equal wall-clock spans must land as
	// equal frame counts after resampling.
	mic := newFakeStream("Test Mic", 48000)
	system := newFakeStream("Monitor of Test Output", 16000)
	r := newTestRecorder(t, &fakeOpener{mic: mic, system: system})

	if _, err := r.Start("meeting-8", nil, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	mic.push(capture.SourceMic, samples(4800, 0.5))      // 0.1 s at 48 kHz
	system.push(capture.SourceSystem, samples(1600, 0.5)) // 0.1 s at 16 kHz

	result, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if result.DurationSecs < 0.09 || result.DurationSecs > 0.12 {
		t.Errorf("DurationSecs = %f, want ~0.1", result.DurationSecs)
	}
}

// freshOpener builds a new stream per call, so sessions opened back to
// back never share stream state.
type freshOpener struct{}

func (freshOpener) Open(deviceIndex *int, source capture.Source) (capture.Stream, error) {
	if source == capture.SourceMic {
		return newFakeStream("Test Mic", 16000), nil
	}
	return newFakeStream("Monitor of Test Output", 16000), nil
}

func TestRecorderStopDoesNotDestroySuccessorSession(t *testing.T) {
	r := newTestRecorder(t, freshOpener{})

	// Stop racing a new Start must never leave the machine recording with
	// no session, and must never tear down the successor's streams.
	for i := 0; i < 200; i++ {
		if _, err := r.Start("first", nil, nil); err != nil {
			t.Fatalf("Start first: %v", err)
		}

		var startErr error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Stop()
		}()
		go func() {
			defer wg.Done()
			_, startErr = r.Start("second", nil, nil)
		}()
		wg.Wait()

		if startErr != nil {
			// Start lost the race against the still-recording first
			// session; the Stop that beat it leaves the recorder idle.
			if r.State() != StateIdle {
				t.Fatalf("iteration %d: state = %v with rejected second start", i, r.State())
			}
			continue
		}

		if r.State() != StateRecording {
			t.Fatalf("iteration %d: state = %v, second session was destroyed", i, r.State())
		}
		st := r.Status()
		if st.MeetingID != "second" {
			t.Fatalf("iteration %d: status meeting = %q, want second", i, st.MeetingID)
		}
		result, err := r.Stop()
		if err != nil {
			t.Fatalf("iteration %d: Stop of second session: %v", i, err)
		}
		if result.MeetingID != "second" {
			t.Fatalf("iteration %d: result meeting = %q, want second", i, result.MeetingID)
		}
	}
}

func TestRecorderStatusSnapshot(t *testing.T) {
	mic := newFakeStream("Test Mic", 16000)
	system := newFakeStream("Monitor of Test Output", 16000)
	r := newTestRecorder(t, &fakeOpener{mic: mic, system: system})

	st := r.Status()
	if st.State != "idle" || st.MeetingID != "" {
		t.Fatalf("idle status = %+v", st)
	}

	if _, err := r.Start("meeting-9", nil, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st = r.Status()
	if st.State != "recording" || st.MeetingID != "meeting-9" {
		t.Errorf("status = %+v, want recording meeting-9", st)
	}
	if !st.MicActive || !st.SystemActive {
		t.Errorf("status = %+v, want both sources active", st)
	}
	if st.MicDevice != "Test Mic" || st.SystemDevice != "Monitor of Test Output" {
		t.Errorf("status devices = %q / %q", st.MicDevice, st.SystemDevice)
	}

	if _, err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	st = r.Status()
	if st.State != "idle" || st.MeetingID != "" {
		t.Errorf("post-stop status = %+v, want empty idle snapshot", st)
	}
}

func TestRecorderReportsPausedTime(t *testing.T) {
	mic := newFakeStream("Test Mic", 16000)
	r := newTestRecorder(t, &fakeOpener{mic: mic, systemErr: errors.New("none")})

	if _, err := r.Start("meeting-10", nil, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	mic.push(capture.SourceMic, samples(1600, 0.2))

	if err := r.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := r.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	result, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if result.PausedSecs < 0.04 {
		t.Errorf("PausedSecs = %f, want >= 0.04", result.PausedSecs)
	}
	// The recorded duration comes from written frames, which exclude the
	// paused interval entirely.
	if result.DurationSecs > 0.12 {
		t.Errorf("DurationSecs = %f, pause leaked into recorded audio", result.DurationSecs)
	}
}

func TestRecorderCountsPauseEndedByStop(t *testing.T) {
	mic := newFakeStream("Test Mic", 16000)
	r := newTestRecorder(t, &fakeOpener{mic: mic, systemErr: errors.New("none")})

	if _, err := r.Start("meeting-11", nil, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	result, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop while paused: %v", err)
	}
	if result.PausedSecs < 0.04 {
		t.Errorf("PausedSecs = %f, want the open pause counted", result.PausedSecs)
	}
}

func nonZero(samples []float32) int {
	n := 0
	for _, s := range samples {
		if s != 0 {
			n++
		}
	}
	return n
}

var _ capture.Stream = (*fakeStream)(nil)
