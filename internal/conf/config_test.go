package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultSettings() *Settings {
	s := &Settings{}
	s.Output.Path = "preprocessed.hdf5"
	s.Output.Compression = "none"
	s.Audio.SampleRate = 22000
	s.Spectrogram.FrameSize = 440
	s.Spectrogram.HopSize = 440
	s.Spectrogram.FFTLength = 512
	s.Spectrogram.SliceFrames = 250
	s.Dataset.DataType = "float32"
	s.Dataset.LabelType = "int64"
	return s
}

func TestValidateSettingsDefaults(t *testing.T) {
	require.NoError(t, ValidateSettings(defaultSettings()))
}

func TestValidateSettingsRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero sample rate", func(s *Settings) { s.Audio.SampleRate = 0 }},
		{"unknown compression", func(s *Settings) { s.Output.Compression = "lzf" }},
		{"unknown data type", func(s *Settings) { s.Dataset.DataType = "int8" }},
		{"unknown label type", func(s *Settings) { s.Dataset.LabelType = "string" }},
		{"zero hop", func(s *Settings) { s.Spectrogram.HopSize = 0 }},
		{"fft shorter than frame", func(s *Settings) { s.Spectrogram.FFTLength = 256 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := defaultSettings()
			tc.mutate(s)
			assert.Error(t, ValidateSettings(s))
		})
	}
}
