// Package spectrogram turns mono audio into short-time Fourier magnitude
// tensors, sliced into fixed-length windows for the dataset store.
package spectrogram

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/chirpset/chirpset/internal/errors"
	"github.com/chirpset/chirpset/internal/tensor"
)

// Config fixes the transform geometry. The defaults produce slices of shape
// (250, 257) from five seconds of 22 kHz audio.
type Config struct {
	// SampleRate of the input audio in hertz.
	SampleRate int

	// FrameSize is the number of samples per analysis frame.
	FrameSize int

	// HopSize is the stride between frame starts.
	HopSize int

	// FFTLength is the transform length; frames are zero padded up to it.
	// The output carries FFTLength/2+1 frequency bins.
	FFTLength int

	// SliceFrames is the number of frames per output slice.
	SliceFrames int
}

// DefaultConfig returns the pipeline's standard geometry: 22 kHz audio,
// non-overlapping 440-sample frames padded to a 512-point transform, and
// five-second slices of 250 frames by 257 bins.
func DefaultConfig() Config {
	return Config{
		SampleRate:  22000,
		FrameSize:   440,
		HopSize:     440,
		FFTLength:   512,
		SliceFrames: 250,
	}
}

// Bins returns the number of frequency bins per frame.
func (c Config) Bins() int { return c.FFTLength/2 + 1 }

// Extractor computes magnitude spectrograms with a fixed plan. It is not safe
// for concurrent use; give each worker its own.
type Extractor struct {
	cfg Config
	win []float64
	fft *fourier.FFT
}

// New validates cfg and builds an extractor with a precomputed window and
// transform plan.
func New(cfg Config) (*Extractor, error) {
	if cfg.FrameSize <= 0 || cfg.HopSize <= 0 || cfg.SliceFrames <= 0 {
		return nil, errors.Newf("frame, hop and slice sizes must be positive: %+v", cfg).
			Component("spectrogram").
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.FFTLength < cfg.FrameSize {
		return nil, errors.Newf("transform length %d shorter than frame size %d", cfg.FFTLength, cfg.FrameSize).
			Component("spectrogram").
			Category(errors.CategoryValidation).
			Build()
	}
	return &Extractor{
		cfg: cfg,
		win: hann(cfg.FrameSize),
		fft: fourier.NewFFT(cfg.FFTLength),
	}, nil
}

// Config returns the extractor's geometry.
func (e *Extractor) Config() Config { return e.cfg }

// Normalize scales samples in place so the loudest sample sits at full scale.
// Silent input is returned unchanged.
func Normalize(samples []float32) []float32 {
	var peak float32
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return samples
	}
	for i := range samples {
		samples[i] /= peak
	}
	return samples
}

// Compute returns the magnitude spectrogram of samples as a (frames, bins)
// float32 tensor. Input shorter than one frame yields zero frames.
func (e *Extractor) Compute(samples []float32) (*tensor.Array, error) {
	n, hop := e.cfg.FrameSize, e.cfg.HopSize
	frames := 0
	if len(samples) >= n {
		frames = 1 + (len(samples)-n)/hop
	}

	bins := e.cfg.Bins()
	out := make([]float32, frames*bins)
	buf := make([]float64, e.cfg.FFTLength)
	for i := range frames {
		start := i * hop
		for k := range n {
			buf[k] = float64(samples[start+k]) * e.win[k]
		}
		for k := n; k < len(buf); k++ {
			buf[k] = 0
		}
		coeffs := e.fft.Coefficients(nil, buf)
		row := out[i*bins:]
		for f, c := range coeffs {
			row[f] = float32(math.Hypot(real(c), imag(c)))
		}
	}
	return tensor.NewFloat32([]int{frames, bins}, out)
}

// Slices computes the spectrogram of samples and chops it into consecutive
// windows of SliceFrames frames each, dropping the remainder. The result has
// shape (slices, SliceFrames, bins); input too short for one full slice
// yields an empty first axis.
func (e *Extractor) Slices(samples []float32) (*tensor.Array, error) {
	spec, err := e.Compute(samples)
	if err != nil {
		return nil, err
	}

	per := e.cfg.SliceFrames
	bins := e.cfg.Bins()
	count := spec.Len() / per

	vals := spec.Float32s()[:count*per*bins]
	return tensor.NewFloat32([]int{count, per, bins}, vals)
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}
