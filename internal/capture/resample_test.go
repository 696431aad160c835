package capture

import (
	"math"
	"testing"
)

func TestResampleIdentity(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)
	if len(out) != len(in) {
		t.Fatalf("identity resample changed length: %d -> %d", len(in), len(out))
	}
}

func TestResampleDownsamplesLength(t *testing.T) {
	in := make([]float32, 48000)
	out := Resample(in, 48000, 16000)
	if len(out) != 16000 {
		t.Errorf("48k->16k of 1s produced %d samples, want 16000", len(out))
	}
}

func TestResampleUpsamplesLength(t *testing.T) {
	in := make([]float32, 16000)
	out := Resample(in, 16000, 48000)
	if len(out) != 48000 {
		t.Errorf("16k->48k of 1s produced %d samples, want 48000", len(out))
	}
}

func TestResamplePreservesSineShape(t *testing.T) {
	const (
		inRate  = 44100
		outRate = 16000
		freq    = 440.0
	)
	in := make([]float32, inRate)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / inRate))
	}

	out := Resample(in, inRate, outRate)

	// Compare against an ideally sampled sine at the target rate. Linear
	// interpolation of a 440 Hz tone at these rates stays well under 1%
	// amplitude error.
	var maxErr float64
	for i := range out {
		want := math.Sin(2 * math.Pi * freq * float64(i) / outRate)
		if e := math.Abs(float64(out[i]) - want); e > maxErr {
			maxErr = e
		}
	}
	if maxErr > 0.01 {
		t.Errorf("max interpolation error %f, want < 0.01", maxErr)
	}
}

// A source clocked 0.1% fast against the canonical rate, resampled chunk
// by chunk over a simulated hour, must not accumulate unbounded length
// drift. Resampling absorbs rate mismatch; the residual comes only from
// per-chunk rounding.
func TestResampleBoundsLongSessionDrift(t *testing.T) {
	const (
		canonicalRate = 16000
		skewedRate    = 16016 // 0.1% fast clock
		chunkFrames   = 512
		sessionSecs   = 3600
	)

	totalIn := skewedRate * sessionSecs
	chunks := totalIn / chunkFrames
	chunk := make([]float32, chunkFrames)

	var outFrames int
	for i := 0; i < chunks; i++ {
		outFrames += len(Resample(chunk, skewedRate, canonicalRate))
	}

	wantFrames := chunks * chunkFrames * canonicalRate / skewedRate
	driftFrames := outFrames - wantFrames
	if driftFrames < 0 {
		driftFrames = -driftFrames
	}

	// Rounding loses at most one frame per chunk. Anything past that
	// bound means drift is compounding.
	if driftFrames > chunks {
		t.Errorf("hour-long session drifted %d frames (%.1f ms), want <= %d",
			driftFrames, float64(driftFrames)*1000/canonicalRate, chunks)
	}
	driftMs := float64(driftFrames) * 1000 / canonicalRate
	t.Logf("residual drift after 1h at 0.1%% skew: %d frames (%.1f ms)", driftFrames, driftMs)
}

func TestDownmixAverages(t *testing.T) {
	stereo := []float32{1, 0, 0.5, 0.5, -1, 1}
	mono := Downmix(stereo, 2)
	want := []float32{0.5, 0.5, 0}
	if len(mono) != len(want) {
		t.Fatalf("Downmix() returned %d frames, want %d", len(mono), len(want))
	}
	for i := range want {
		if diff := mono[i] - want[i]; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("frame %d = %f, want %f", i, mono[i], want[i])
		}
	}
}

func TestDownmixMonoPassthrough(t *testing.T) {
	in := []float32{0.1, 0.2}
	if out := Downmix(in, 1); len(out) != 2 {
		t.Errorf("mono passthrough changed length: %d", len(out))
	}
}
