package myaudio

import "github.com/chirpset/chirpset/internal/errors"

// ResampleAudio resamples samples from originalRate to targetRate using cubic
// interpolation. The input is returned unchanged when the rates already match.
func ResampleAudio(samples []float32, originalRate, targetRate int) ([]float32, error) {
	if originalRate <= 0 || targetRate <= 0 {
		return nil, errors.Newf("invalid sample rates: %d -> %d", originalRate, targetRate).
			Component("myaudio").
			Category(errors.CategoryAudio).
			Build()
	}
	if originalRate == targetRate {
		return samples, nil
	}
	if len(samples) < 4 {
		return nil, errors.Newf("too few samples to resample: %d", len(samples)).
			Component("myaudio").
			Category(errors.CategoryAudio).
			Build()
	}

	ratio := float64(targetRate) / float64(originalRate)
	newLength := int(float64(len(samples)) * ratio)
	resampled := make([]float32, newLength)

	lastIndex := len(samples) - 3

	for i := range newLength {
		origPos := float64(i) / ratio
		index := min(max(int(origPos), 1), lastIndex)
		frac := float32(origPos) - float32(index)

		y0, y1, y2, y3 := samples[index-1], samples[index], samples[index+1], samples[index+2]
		mu2 := frac * frac
		a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
		a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
		a2 := -0.5*y0 + 0.5*y2
		a3 := y1

		resampled[i] = a0*frac*mu2 + a1*mu2 + a2*frac + a3
	}

	return resampled, nil
}
