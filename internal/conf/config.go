// Package conf defines the pipeline settings and loads them from the config
// file, environment and command line via viper.
package conf

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

// Settings holds the full pipeline configuration.
type Settings struct {
	Debug bool `yaml:"debug"`

	Input struct {
		// Dir is the corpus root holding train_audio/<code>/*.wav.
		Dir string `yaml:"dir"`
		// Codes restricts processing to the listed species; empty means all.
		Codes []string `yaml:"codes"`
		// CodesFile overrides the embedded species list.
		CodesFile string `yaml:"codesfile"`
	} `yaml:"input"`

	Output struct {
		// Path of the dataset container. Must end in .hdf5 or .h5.
		Path string `yaml:"path"`
		// Compression is "none" or "gzip".
		Compression string `yaml:"compression"`
	} `yaml:"output"`

	Audio struct {
		// SampleRate every clip is resampled to, in hertz.
		SampleRate int `yaml:"samplerate"`
	} `yaml:"audio"`

	Spectrogram struct {
		FrameSize   int `yaml:"framesize"`
		HopSize     int `yaml:"hopsize"`
		FFTLength   int `yaml:"fftlength"`
		SliceFrames int `yaml:"sliceframes"`
	} `yaml:"spectrogram"`

	Dataset struct {
		// DataType is "float32" or "float64".
		DataType string `yaml:"datatype"`
		// LabelType is "int32" or "int64".
		LabelType string `yaml:"labeltype"`
	} `yaml:"dataset"`

	Augmentation struct {
		// Policies names the augmentation policies applied by external
		// tooling; recorded as dataset metadata only.
		Policies []string `yaml:"policies"`
	} `yaml:"augmentation"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and returns the populated settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// GetSettings returns the settings loaded by Load, or nil before it runs.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// No config file; defaults and flags carry the run.
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// ValidateSettings rejects combinations the pipeline cannot run with.
func ValidateSettings(s *Settings) error {
	if s.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio sample rate must be positive, got %d", s.Audio.SampleRate)
	}
	switch s.Output.Compression {
	case "none", "gzip":
	default:
		return fmt.Errorf("unknown compression %q, expected none or gzip", s.Output.Compression)
	}
	switch s.Dataset.DataType {
	case "float32", "float64":
	default:
		return fmt.Errorf("unknown data type %q, expected float32 or float64", s.Dataset.DataType)
	}
	switch s.Dataset.LabelType {
	case "int32", "int64":
	default:
		return fmt.Errorf("unknown label type %q, expected int32 or int64", s.Dataset.LabelType)
	}
	if s.Spectrogram.FrameSize <= 0 || s.Spectrogram.HopSize <= 0 || s.Spectrogram.SliceFrames <= 0 {
		return fmt.Errorf("spectrogram frame, hop and slice sizes must be positive")
	}
	if s.Spectrogram.FFTLength < s.Spectrogram.FrameSize {
		return fmt.Errorf("fft length %d must not be shorter than frame size %d",
			s.Spectrogram.FFTLength, s.Spectrogram.FrameSize)
	}
	return nil
}
