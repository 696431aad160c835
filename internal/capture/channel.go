// Package capture owns single-device audio capture. Each open channel runs
// its own PortAudio read loop and pushes chunks into a bounded queue; the
// loop never blocks on a slow consumer.
package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/aman-2709/WizScribe/internal/observe"
)

const framesPerBuffer = 512

// Stream is the consumer-facing view of one capture channel. A stream is not
// restartable: once closed, a new one must be opened.
type Stream interface {
	// Chunks returns the channel's sample queue. Closed when the channel
	// stops, either by Close or by a device failure.
	Chunks() <-chan Chunk
	// Errors emits at most one capture failure. A failure marks the
	// channel inactive but never touches a sibling channel.
	Errors() <-chan error
	Pause()
	Resume()
	Close() error
	Active() bool
	DeviceName() string
	SampleRate() int
	Dropped() uint64
}

// Opener creates capture streams. A nil deviceIndex binds to the system
// default input device.
type Opener interface {
	Open(deviceIndex *int, source Source) (Stream, error)
}

// PortAudioOpener opens channels against the host PortAudio subsystem. The
// caller must have initialized PortAudio.
type PortAudioOpener struct {
	QueueCapacity int
	Log           zerolog.Logger
	Metrics       *observe.Metrics
}

func (o *PortAudioOpener) Open(deviceIndex *int, source Source) (Stream, error) {
	var device *portaudio.DeviceInfo
	var err error
	if deviceIndex == nil {
		device, err = portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
	} else {
		devices, err := portaudio.Devices()
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate devices: %w", err)
		}
		if *deviceIndex < 0 || *deviceIndex >= len(devices) {
			return nil, fmt.Errorf("device with index %d not found", *deviceIndex)
		}
		device = devices[*deviceIndex]
	}
	if device.MaxInputChannels <= 0 {
		return nil, fmt.Errorf("device %q has no input channels", device.Name)
	}

	capacity := o.QueueCapacity
	if capacity <= 0 {
		capacity = 64
	}
	metrics := o.Metrics
	if metrics == nil {
		metrics = observe.Default()
	}

	rate := int(device.DefaultSampleRate)
	channels := device.MaxInputChannels
	if channels > 2 {
		channels = 2
	}
	ch := &Channel{
		source:   source,
		name:     device.Name,
		rate:     rate,
		channels: channels,
		log:      o.Log.With().Str("source", string(source)).Str("device", device.Name).Logger(),
		metrics:  metrics,
		chunks:   make(chan Chunk, capacity),
		errs:     make(chan error, 1),
	}

	// Open at the device's native rate and layout (stereo for monitor
	// sources, mono mics); the read loop downmixes to mono.
	buffer := make([]float32, framesPerBuffer*channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: framesPerBuffer,
	}, buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}

	ch.stream = stream
	ch.active.Store(true)
	ch.wg.Add(1)
	go ch.readLoop(buffer)

	return ch, nil
}

// Channel is one live capture stream. Created by an Opener; all state is
// mutated only by the read loop and the exported control methods.
type Channel struct {
	source   Source
	name     string
	rate     int
	channels int
	log      zerolog.Logger
	metrics  *observe.Metrics

	stream *portaudio.Stream
	chunks chan Chunk
	errs   chan error

	seq     uint64
	paused  atomic.Bool
	active  atomic.Bool
	closing atomic.Bool
	closed  sync.Once
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

func (c *Channel) readLoop(buffer []float32) {
	defer c.wg.Done()
	defer close(c.chunks)
	defer func() {
		c.stream.Stop()
		c.stream.Close()
	}()

	for {
		if c.closing.Load() {
			return
		}
		if err := c.stream.Read(); err != nil {
			if c.closing.Load() {
				return
			}
			// Device disconnected or driver failure mid-capture.
			c.active.Store(false)
			c.log.Error().Err(err).Msg("Capture stream failed")
			select {
			case c.errs <- fmt.Errorf("capture from %q failed: %w", c.name, err):
			default:
			}
			return
		}

		// Paused channels keep the device open but discard samples, so
		// long pauses never grow memory.
		if c.paused.Load() {
			continue
		}

		c.seq++
		c.push(Chunk{Source: c.source, Seq: c.seq, Rate: c.rate, Samples: monoCopy(buffer, c.channels)})
	}
}

// monoCopy turns one hardware buffer into an independent mono sample
// slice; the buffer is reused by the next stream read.
func monoCopy(buffer []float32, channels int) []float32 {
	if channels > 1 {
		return Downmix(buffer, channels)
	}
	samples := make([]float32, len(buffer))
	copy(samples, buffer)
	return samples
}

// push enqueues a chunk, dropping the oldest queued chunk on overflow. The
// capture loop must never block on the writer.
func (c *Channel) push(chunk Chunk) {
	select {
	case c.chunks <- chunk:
		return
	default:
	}

	select {
	case <-c.chunks:
	default:
	}

	select {
	case c.chunks <- chunk:
	default:
	}

	n := c.dropped.Add(1)
	c.metrics.RecordDroppedChunk(context.Background(), string(c.source))
	if n == 1 || n%100 == 0 {
		c.log.Warn().Uint64("dropped_total", n).Msg("Writer behind, dropping oldest chunk")
	}
}

func (c *Channel) Chunks() <-chan Chunk { return c.chunks }

func (c *Channel) Errors() <-chan error { return c.errs }

func (c *Channel) Pause() { c.paused.Store(true) }

func (c *Channel) Resume() { c.paused.Store(false) }

// Close releases the underlying device. Idempotent. Takes effect at the next
// chunk boundary.
func (c *Channel) Close() error {
	c.closed.Do(func() {
		c.closing.Store(true)
		c.active.Store(false)
		c.wg.Wait()
	})
	return nil
}

func (c *Channel) Active() bool { return c.active.Load() }

func (c *Channel) DeviceName() string { return c.name }

func (c *Channel) SampleRate() int { return c.rate }

// Dropped reports how many chunks were discarded due to queue overflow.
func (c *Channel) Dropped() uint64 { return c.dropped.Load() }
