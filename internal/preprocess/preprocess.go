// Package preprocess walks a training corpus, turns every clip into
// spectrogram slices and feeds them to the dataset store.
package preprocess

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chirpset/chirpset/internal/birdcodes"
	"github.com/chirpset/chirpset/internal/conf"
	"github.com/chirpset/chirpset/internal/dataset"
	"github.com/chirpset/chirpset/internal/errors"
	"github.com/chirpset/chirpset/internal/logging"
	"github.com/chirpset/chirpset/internal/myaudio"
	"github.com/chirpset/chirpset/internal/spectrogram"
	"github.com/chirpset/chirpset/internal/tensor"
)

// Augmenter transforms a clip's samples before feature extraction. Policies
// live outside this module; the pipeline only applies them in order and
// records their names as dataset metadata.
type Augmenter interface {
	Name() string
	Apply(samples []float32, sampleRate int) []float32
}

// Result summarizes a pipeline run.
type Result struct {
	Species int // species directories processed
	Files   int // clips decoded and appended
	Skipped int // clips too short or undecodable
	Samples int // spectrogram slices appended
}

// Pipeline drives one preprocessing run into a single store.
type Pipeline struct {
	settings   *conf.Settings
	codes      *birdcodes.Codes
	extractor  *spectrogram.Extractor
	store      *dataset.Store
	augmenters []Augmenter
	log        *slog.Logger
}

// New builds a pipeline over store from the loaded settings. The store must
// be open; the caller keeps ownership and closes it after Run.
func New(settings *conf.Settings, codes *birdcodes.Codes, store *dataset.Store, augmenters ...Augmenter) (*Pipeline, error) {
	extractor, err := spectrogram.New(spectrogram.Config{
		SampleRate:  settings.Audio.SampleRate,
		FrameSize:   settings.Spectrogram.FrameSize,
		HopSize:     settings.Spectrogram.HopSize,
		FFTLength:   settings.Spectrogram.FFTLength,
		SliceFrames: settings.Spectrogram.SliceFrames,
	})
	if err != nil {
		return nil, err
	}
	log := logging.ForService("preprocess")
	if log == nil {
		log = slog.Default().With("service", "preprocess")
	}
	return &Pipeline{
		settings:   settings,
		codes:      codes,
		extractor:  extractor,
		store:      store,
		augmenters: augmenters,
		log:        log,
	}, nil
}

// Run processes every species directory and appends the extracted slices to
// the store, then records the run configuration as metadata. Cancelling ctx
// stops between files; everything appended so far stays staged.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	species := p.settings.Input.Codes
	if len(species) == 0 {
		species = p.codes.Names()
	}

	result := &Result{}
	for _, code := range species {
		id, ok := p.codes.ID(code)
		if !ok {
			return nil, errors.Newf("unknown species code %q", code).
				Component("preprocess").
				Category(errors.CategoryValidation).
				Context("code", code).
				Build()
		}

		dir := filepath.Join(p.settings.Input.Dir, "train_audio", code)
		clips, err := listClips(dir)
		if err != nil {
			if os.IsNotExist(err) {
				p.log.Debug("no clips for species", "code", code)
				continue
			}
			return nil, err
		}

		result.Species++
		for _, path := range clips {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if err := p.processClip(path, id, result); err != nil {
				return result, err
			}
		}
	}

	if result.Samples > 0 {
		if err := p.store.AddMetadata(p.runMetadata()); err != nil {
			return result, err
		}
	}
	p.log.Info("preprocessing finished",
		"species", result.Species,
		"files", result.Files,
		"skipped", result.Skipped,
		"samples", result.Samples)
	return result, nil
}

func (p *Pipeline) processClip(path string, labelID int, result *Result) error {
	samples, err := myaudio.ReadWAV(path, p.settings.Audio.SampleRate)
	if err != nil {
		p.log.Warn("skipping undecodable clip", "path", path, "error", err)
		result.Skipped++
		return nil
	}

	for _, aug := range p.augmenters {
		samples = aug.Apply(samples, p.settings.Audio.SampleRate)
	}
	spectrogram.Normalize(samples)

	slices, err := p.extractor.Slices(samples)
	if err != nil {
		return err
	}
	if slices.Len() == 0 {
		p.log.Debug("skipping short sound file", "path", path)
		result.Skipped++
		return nil
	}

	data, err := convertData(slices, DataDType(p.settings))
	if err != nil {
		return err
	}
	labels, err := labelBatch(slices.Len(), labelID, LabelDType(p.settings))
	if err != nil {
		return err
	}
	if err := p.store.Append(data, labels); err != nil {
		return err
	}
	result.Files++
	result.Samples += slices.Len()
	return nil
}

// runMetadata captures the settings that shaped this dataset.
func (p *Pipeline) runMetadata() map[string]any {
	names := make([]string, 0, len(p.augmenters))
	for _, aug := range p.augmenters {
		names = append(names, aug.Name())
	}
	augmentation := "none"
	if len(names) > 0 {
		augmentation = strings.Join(names, ",")
	}
	return map[string]any{
		"source":       "train_audio",
		"sample_rate":  p.settings.Audio.SampleRate,
		"compression":  p.settings.Output.Compression,
		"augmentation": augmentation,
	}
}

func listClips(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var clips []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			clips = append(clips, filepath.Join(dir, e.Name()))
		}
	}
	return clips, nil
}

// DataDType maps the configured data type name to the tensor element type.
func DataDType(s *conf.Settings) tensor.DType {
	if s.Dataset.DataType == "float64" {
		return tensor.Float64
	}
	return tensor.Float32
}

// LabelDType maps the configured label type name to the tensor element type.
func LabelDType(s *conf.Settings) tensor.DType {
	if s.Dataset.LabelType == "int32" {
		return tensor.Int32
	}
	return tensor.Int64
}

func convertData(slices *tensor.Array, dtype tensor.DType) (*tensor.Array, error) {
	if dtype == tensor.Float32 {
		return slices, nil
	}
	src := slices.Float32s()
	vals := make([]float64, len(src))
	for i, v := range src {
		vals[i] = float64(v)
	}
	return tensor.NewFloat64(slices.Shape(), vals)
}

// labelBatch builds the (n, 1) label array matching a batch of n slices.
func labelBatch(n, labelID int, dtype tensor.DType) (*tensor.Array, error) {
	if dtype == tensor.Int32 {
		vals := make([]int32, n)
		for i := range vals {
			vals[i] = int32(labelID)
		}
		return tensor.NewInt32([]int{n, 1}, vals)
	}
	vals := make([]int64, n)
	for i := range vals {
		vals[i] = int64(labelID)
	}
	return tensor.NewInt64([]int{n, 1}, vals)
}
