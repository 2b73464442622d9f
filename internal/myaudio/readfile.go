// Package myaudio loads training clips from disk and normalizes them into
// mono float32 sample buffers at the pipeline sample rate.
package myaudio

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/chirpset/chirpset/internal/errors"
)

// AudioInfo summarizes a clip's format without decoding its samples.
type AudioInfo struct {
	SampleRate   int
	TotalSamples int
	NumChannels  int
	BitDepth     int
}

// audioDivisor returns the divisor that maps integer PCM samples of the given
// bit depth into [-1, 1).
func audioDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, errors.Newf("unsupported audio bit depth: %d", bitDepth).
			Component("myaudio").
			Category(errors.CategoryAudio).
			Context("bit_depth", bitDepth).
			Build()
	}
}

// ReadWAVInfo reads the header of the WAV file at path and validates that the
// format is one the pipeline can decode.
func ReadWAVInfo(path string) (AudioInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return AudioInfo{}, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return AudioInfo{}, errors.Newf("invalid WAV file format: %s", path).
			Component("myaudio").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}

	if decoder.BitDepth != 16 && decoder.BitDepth != 24 && decoder.BitDepth != 32 {
		return AudioInfo{}, errors.Newf("unsupported bit depth: %d", decoder.BitDepth).
			Component("myaudio").
			Category(errors.CategoryAudio).
			Context("path", path).
			Build()
	}
	if decoder.NumChans != 1 && decoder.NumChans != 2 {
		return AudioInfo{}, errors.Newf("unsupported number of channels: %d", decoder.NumChans).
			Component("myaudio").
			Category(errors.CategoryAudio).
			Context("path", path).
			Build()
	}

	fileInfo, err := file.Stat()
	if err != nil {
		return AudioInfo{}, err
	}
	bytesPerSample := int(decoder.BitDepth / 8)
	totalSamples := int(fileInfo.Size()) / bytesPerSample / int(decoder.NumChans)

	return AudioInfo{
		SampleRate:   int(decoder.SampleRate),
		TotalSamples: totalSamples,
		NumChannels:  int(decoder.NumChans),
		BitDepth:     int(decoder.BitDepth),
	}, nil
}

// ReadWAV decodes the WAV file at path into a mono float32 buffer at
// targetRate. Stereo input is downmixed by channel average; clips at a
// different source rate are resampled.
func ReadWAV(path string, targetRate int) ([]float32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.Newf("input is not a valid WAV audio file: %s", path).
			Component("myaudio").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}

	channels := int(decoder.NumChans)
	if channels != 1 && channels != 2 {
		return nil, errors.Newf("unsupported number of channels: %d", channels).
			Component("myaudio").
			Category(errors.CategoryAudio).
			Context("path", path).
			Build()
	}

	divisor, err := audioDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, err
	}

	sourceRate := int(decoder.SampleRate)

	var samples []float32
	buf := &audio.IntBuffer{
		Data:   make([]int, 8192*channels),
		Format: &audio.Format{SampleRate: sourceRate, NumChannels: channels},
	}
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		if n == 0 {
			break
		}

		frames := buf.Data[:n]
		if channels == 2 {
			for i := 0; i+1 < len(frames); i += 2 {
				left := float32(frames[i]) / divisor
				right := float32(frames[i+1]) / divisor
				samples = append(samples, (left+right)/2)
			}
		} else {
			for _, sample := range frames {
				samples = append(samples, float32(sample)/divisor)
			}
		}
	}

	if sourceRate != targetRate {
		samples, err = ResampleAudio(samples, sourceRate, targetRate)
		if err != nil {
			return nil, fmt.Errorf("resampling %s: %w", path, err)
		}
	}
	return samples, nil
}
