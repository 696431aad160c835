package capture

// Resample converts samples between rates by linear interpolation. Small
// clock drift between independently clocked sources is absorbed here; no
// active drift compensation is attempted.
func Resample(samples []float32, inputRate, outputRate int) []float32 {
	if inputRate == outputRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(outputRate) / float64(inputRate)
	outputLen := int(float64(len(samples)) * ratio)
	output := make([]float32, 0, outputLen)

	for i := 0; i < outputLen; i++ {
		srcIdx := float64(i) / ratio
		idx0 := int(srcIdx)
		idx1 := idx0 + 1
		if idx1 > len(samples)-1 {
			idx1 = len(samples) - 1
		}
		frac := float32(srcIdx - float64(idx0))
		output = append(output, samples[idx0]*(1-frac)+samples[idx1]*frac)
	}

	return output
}

// Downmix averages interleaved multi-channel samples into mono.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
