package audio

// Resample converts mono samples from one rate to another using linear
// interpolation. The input is never modified; equal rates return a copy.
func Resample(samples []float32, from, to int) []float32 {
	if len(samples) == 0 || from <= 0 || to <= 0 {
		return nil
	}
	if from == to {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	n := int(int64(len(samples)) * int64(to) / int64(from))
	if n < 1 {
		n = 1
	}
	out := make([]float32, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1

	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx] + (samples[idx+1]-samples[idx])*frac
	}
	return out
}
