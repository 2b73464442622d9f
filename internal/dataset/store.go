// Package dataset implements the extendable two-array container that the
// preprocessing pipeline writes and training code reads. A Store owns one
// HDF5 file holding a resizable `data` array and a resizable `labels` array
// plus descriptive string attributes on `data`.
package dataset

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/chirpset/chirpset/internal/errors"
	"github.com/chirpset/chirpset/internal/hdf5"
	"github.com/chirpset/chirpset/internal/tensor"
)

// Version is the container format version stamped into the `version`
// attribute by AddMetadata.
const Version = "1.0.0"

// Sentinel errors for the store's failure modes. All returned errors wrap
// one of these and match with errors.Is.
var (
	// ErrConfiguration reports an invalid store configuration, such as an
	// output path without a container extension or a batch whose element
	// type disagrees with the configured one.
	ErrConfiguration = errors.NewStd("invalid store configuration")

	// ErrShapeMismatch reports an appended batch whose per-sample shape
	// disagrees with the shape fixed by the first append.
	ErrShapeMismatch = errors.NewStd("per-sample shape mismatch")

	// ErrUninitialized reports an operation that needs at least one
	// appended batch, attempted before any.
	ErrUninitialized = errors.NewStd("store is not initialized")
)

// Config describes a Store before any file is touched.
type Config struct {
	// Path of the container file. Must end in .hdf5 or .h5.
	Path string

	// DataType is the element type of the data array.
	DataType tensor.DType

	// LabelType is the element type of the labels array.
	LabelType tensor.DType

	// Compression applies to both arrays; the zero value is no compression.
	Compression hdf5.Compression
}

// Store is an extendable dataset container. The zero value is not usable;
// construct with New, acquire the file with Open, feed it with Append and
// release it with Close.
//
// A Store is not safe for concurrent use. It owns its backing file
// exclusively between Open and Close.
type Store struct {
	cfg Config

	f      *os.File
	open   bool
	closed bool

	// Per-sample shapes, fixed by the first append. nil until initialized.
	dataShape  []int
	labelShape []int

	dataCount  int
	labelCount int

	// Staged element bytes, flushed to the container on Close.
	dataBuf  []byte
	labelBuf []byte

	metaStamped bool
	meta        map[string]string
}

// New validates the configuration and returns an unopened Store. No file is
// created or touched; a bad configuration fails here, before any side
// effect.
func New(cfg Config) (*Store, error) {
	ext := strings.ToLower(filepath.Ext(cfg.Path))
	if ext != ".hdf5" && ext != ".h5" {
		return nil, errors.Newf("%w: output path %q lacks an .hdf5/.h5 extension", ErrConfiguration, cfg.Path).
			Component("dataset").
			Category(errors.CategoryConfiguration).
			Context("path", cfg.Path).
			Build()
	}
	return &Store{cfg: cfg, meta: make(map[string]string)}, nil
}

// Open creates the backing file, truncating any previous content, and makes
// the store ready for Append. The file stays exclusively owned by the store
// until Close.
func (s *Store) Open() error {
	if s.open || s.closed {
		return errors.Newf("store for %q already opened", s.cfg.Path).
			Component("dataset").
			Category(errors.CategoryState).
			Build()
	}
	f, err := os.OpenFile(s.cfg.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	s.f = f
	s.open = true
	return nil
}

// Initialized reports whether the per-sample shapes have been fixed by a
// first append.
func (s *Store) Initialized() bool { return s.dataShape != nil }

// Len returns the accumulated sample counts of the data and label arrays.
func (s *Store) Len() (dataRows, labelRows int) {
	return s.dataCount, s.labelCount
}

// Append stages a data batch and a label batch. The first call fixes the
// per-sample shape of each array from its batch; later calls must match
// those shapes and grow the first axis only. Earlier rows are never
// modified.
//
// The data and label batches may carry different sample counts; the store
// does not cross-check them. Keeping the two arrays paired 1:1 by row is
// the caller's contract.
func (s *Store) Append(dataBatch, labelBatch *tensor.Array) error {
	if !s.open || s.closed {
		return errors.Newf("append on store for %q outside its open lifetime", s.cfg.Path).
			Component("dataset").
			Category(errors.CategoryState).
			Build()
	}
	if err := s.checkBatch("data", dataBatch, s.cfg.DataType, s.dataShape); err != nil {
		return err
	}
	if err := s.checkBatch("labels", labelBatch, s.cfg.LabelType, s.labelShape); err != nil {
		return err
	}

	if !s.Initialized() {
		s.dataShape = slices.Clone(dataBatch.SampleShape())
		s.labelShape = slices.Clone(labelBatch.SampleShape())
	}
	s.dataBuf = append(s.dataBuf, dataBatch.Bytes()...)
	s.labelBuf = append(s.labelBuf, labelBatch.Bytes()...)
	s.dataCount += dataBatch.Len()
	s.labelCount += labelBatch.Len()
	return nil
}

func (s *Store) checkBatch(array string, batch *tensor.Array, want tensor.DType, fixedShape []int) error {
	if batch == nil || len(batch.Shape()) == 0 {
		return errors.Newf("%w: %s batch must have a leading sample axis", ErrConfiguration, array).
			Component("dataset").
			Category(errors.CategoryValidation).
			Build()
	}
	if batch.DType() != want {
		return errors.Newf("%w: %s batch has element type %s, store is configured for %s",
			ErrConfiguration, array, batch.DType(), want).
			Component("dataset").
			Category(errors.CategoryValidation).
			Context("array", array).
			Build()
	}
	if fixedShape != nil && !slices.Equal(batch.SampleShape(), fixedShape) {
		return errors.Newf("%w: %s batch per-sample shape %v, fixed shape is %v",
			ErrShapeMismatch, array, batch.SampleShape(), fixedShape).
			Component("dataset").
			Category(errors.CategoryValidation).
			Context("array", array).
			Build()
	}
	return nil
}

// AddMetadata stamps the container version and the string form of every
// value in info as attributes on the data array. Repeated calls overwrite
// per key. It fails before the first Append, when no attribute target
// exists yet.
func (s *Store) AddMetadata(info map[string]any) error {
	if !s.open || s.closed {
		return errors.Newf("metadata write on store for %q outside its open lifetime", s.cfg.Path).
			Component("dataset").
			Category(errors.CategoryState).
			Build()
	}
	if !s.Initialized() {
		return errors.Newf("%w: metadata requires at least one appended batch", ErrUninitialized).
			Component("dataset").
			Category(errors.CategoryState).
			Build()
	}
	s.metaStamped = true
	for key, value := range info {
		s.meta[key] = fmt.Sprintf("%v", value)
	}
	return nil
}

// Close finalizes the container and releases the backing file. It runs
// exactly once; later calls are no-ops so it can sit in a defer next to
// error returns. Every completed Append and AddMetadata is durable after
// Close returns.
func (s *Store) Close() error {
	if !s.open || s.closed {
		return nil
	}
	s.closed = true

	w := hdf5.NewFile(s.f)
	if s.Initialized() {
		attrs := []hdf5.Attr{}
		if s.metaStamped {
			attrs = append(attrs, hdf5.Attr{Name: "version", Value: Version})
			for _, k := range slices.Sorted(maps.Keys(s.meta)) {
				attrs = append(attrs, hdf5.Attr{Name: k, Value: s.meta[k]})
			}
		}
		if err := w.WriteDataset(&hdf5.DatasetSpec{
			Name:        "data",
			Shape:       rowsShape(s.dataCount, s.dataShape),
			Unlimited:   true,
			Type:        numericType(s.cfg.DataType),
			Raw:         s.dataBuf,
			Compression: s.cfg.Compression,
			Attrs:       attrs,
		}); err != nil {
			w.Close()
			return err
		}
		if err := w.WriteDataset(&hdf5.DatasetSpec{
			Name:        "labels",
			Shape:       rowsShape(s.labelCount, s.labelShape),
			Unlimited:   true,
			Type:        numericType(s.cfg.LabelType),
			Raw:         s.labelBuf,
			Compression: s.cfg.Compression,
		}); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func rowsShape(rows int, sampleShape []int) []uint64 {
	shape := make([]uint64, 0, len(sampleShape)+1)
	shape = append(shape, uint64(rows))
	for _, d := range sampleShape {
		shape = append(shape, uint64(d))
	}
	return shape
}

func numericType(d tensor.DType) hdf5.NumericType {
	switch d {
	case tensor.Float32:
		return hdf5.Float32
	case tensor.Float64:
		return hdf5.Float64
	case tensor.Int32:
		return hdf5.Int32
	default:
		return hdf5.Int64
	}
}
