// Package wav reads and writes interleaved 16-bit PCM WAV files, the
// session capture format: channel 0 is the microphone, channel 1 system
// audio, silence-filled where a source was unavailable.
package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	headerSize     = 44
	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
)

// Spec describes a PCM file layout. Sample format is fixed at 16-bit
// little-endian signed integers.
type Spec struct {
	Channels   int
	SampleRate int
}

// Writer streams interleaved frames to a WAV file. Not safe for concurrent
// use; the recorder's single-writer discipline guarantees one goroutine.
type Writer struct {
	f             *os.File
	spec          Spec
	framesWritten uint64
	buf           []byte
}

// NewWriter creates the output file and reserves the header. Finalize must
// be called to produce a valid file.
func NewWriter(path string, spec Spec) (*Writer, error) {
	if spec.Channels <= 0 || spec.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid wav spec: %d channels at %d Hz", spec.Channels, spec.SampleRate)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create wav file: %w", err)
	}
	w := &Writer{f: f, spec: spec}
	if err := w.writeHeader(0); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// WriteFrame appends one interleaved frame, clamping samples to [-1, 1].
// len(samples) must equal the channel count.
func (w *Writer) WriteFrame(samples ...float32) error {
	if len(samples) != w.spec.Channels {
		return fmt.Errorf("frame has %d samples, file has %d channels", len(samples), w.spec.Channels)
	}
	w.buf = w.buf[:0]
	for _, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(int16(s*32767)))
	}
	if _, err := w.f.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	w.framesWritten++
	return nil
}

// Frames reports how many frames have been written.
func (w *Writer) Frames() uint64 { return w.framesWritten }

// Finalize patches the header with the real data size and closes the file.
func (w *Writer) Finalize() error {
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		w.f.Close()
		return fmt.Errorf("failed to rewind wav header: %w", err)
	}
	dataSize := w.framesWritten * uint64(w.spec.Channels) * bytesPerSample
	if err := w.writeHeader(uint32(dataSize)); err != nil {
		w.f.Close()
		return err
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("failed to close wav file: %w", err)
	}
	return nil
}

func (w *Writer) writeHeader(dataSize uint32) error {
	var h [headerSize]byte
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 36+dataSize)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(h[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(h[22:24], uint16(w.spec.Channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(w.spec.SampleRate))
	byteRate := uint32(w.spec.SampleRate * w.spec.Channels * bytesPerSample)
	binary.LittleEndian.PutUint32(h[28:32], byteRate)
	binary.LittleEndian.PutUint16(h[32:34], uint16(w.spec.Channels*bytesPerSample))
	binary.LittleEndian.PutUint16(h[34:36], bitsPerSample)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)
	if _, err := w.f.Write(h[:]); err != nil {
		return fmt.Errorf("failed to write wav header: %w", err)
	}
	return nil
}

// Decode reads a whole WAV file into interleaved float32 samples.
func Decode(path string) ([]float32, Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Spec{}, fmt.Errorf("failed to read wav file: %w", err)
	}
	if len(data) < headerSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, Spec{}, fmt.Errorf("%s is not a RIFF/WAVE file", path)
	}

	format := binary.LittleEndian.Uint16(data[20:22])
	bits := binary.LittleEndian.Uint16(data[34:36])
	if format != 1 || bits != bitsPerSample {
		return nil, Spec{}, fmt.Errorf("unsupported wav format %d (%d bits); want 16-bit PCM", format, bits)
	}
	spec := Spec{
		Channels:   int(binary.LittleEndian.Uint16(data[22:24])),
		SampleRate: int(binary.LittleEndian.Uint32(data[24:28])),
	}
	if spec.Channels <= 0 || spec.SampleRate <= 0 {
		return nil, Spec{}, fmt.Errorf("malformed wav header in %s", path)
	}

	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))
	payload := data[headerSize:]
	if dataSize > 0 && dataSize < len(payload) {
		payload = payload[:dataSize]
	}

	samples := make([]float32, len(payload)/bytesPerSample)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(payload[i*2 : i*2+2]))
		samples[i] = float32(s) / 32768.0
	}
	return samples, spec, nil
}

// Duration reports the playback length of a WAV file in seconds.
func Duration(path string) (float64, error) {
	samples, spec, err := Decode(path)
	if err != nil {
		return 0, err
	}
	frames := len(samples) / spec.Channels
	return float64(frames) / float64(spec.SampleRate), nil
}

// SplitChannels de-interleaves samples into one mono buffer per channel.
func SplitChannels(samples []float32, channels int) [][]float32 {
	if channels <= 1 {
		return [][]float32{samples}
	}
	frames := len(samples) / channels
	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			out[ch][i] = samples[i*channels+ch]
		}
	}
	return out
}
