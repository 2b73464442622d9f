package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chirpset/chirpset/internal/hdf5"
	"github.com/chirpset/chirpset/internal/tensor"
)

func newTestStore(t *testing.T, compression hdf5.Compression) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train.hdf5")
	s, err := New(Config{
		Path:        path,
		DataType:    tensor.Float32,
		LabelType:   tensor.Int64,
		Compression: compression,
	})
	require.NoError(t, err)
	require.NoError(t, s.Open())
	return s, path
}

// seqFloat32 fills a batch of the given shape with distinct ascending values
// offset by base, so row contents are traceable after round-trips.
func seqFloat32(shape []int, base float32) *tensor.Array {
	vals := make([]float32, tensor.NumElements(shape))
	for i := range vals {
		vals[i] = base + float32(i)
	}
	return tensor.MustFloat32(shape, vals)
}

func seqInt64(shape []int, base int64) *tensor.Array {
	vals := make([]int64, tensor.NumElements(shape))
	for i := range vals {
		vals[i] = base + int64(i)
	}
	return tensor.MustInt64(shape, vals)
}

func TestNewRejectsWrongExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "train.csv")
	_, err := New(Config{Path: path, DataType: tensor.Float32, LabelType: tensor.Int64})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	// The bad path must be rejected before any file exists.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewAcceptsContainerExtensions(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"train.hdf5", "train.h5", "TRAIN.HDF5"} {
		_, err := New(Config{Path: name, DataType: tensor.Float32, LabelType: tensor.Int64})
		assert.NoError(t, err, "extension of %q should be accepted", name)
	}
}

func TestFirstAppendFixesShape(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, hdf5.CompressionNone)
	defer s.Close()

	require.False(t, s.Initialized())
	require.NoError(t, s.Append(seqFloat32([]int{4, 7, 3}, 0), seqInt64([]int{4, 2}, 0)))
	require.True(t, s.Initialized())

	// A later batch with a different per-sample shape must be refused for
	// either array, leaving the counts untouched.
	err := s.Append(seqFloat32([]int{2, 7, 4}, 0), seqInt64([]int{2, 2}, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	err = s.Append(seqFloat32([]int{2, 7, 3}, 0), seqInt64([]int{2, 3}, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	dataRows, labelRows := s.Len()
	assert.Equal(t, 4, dataRows)
	assert.Equal(t, 4, labelRows)
}

func TestCountsAccumulateIndependently(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, hdf5.CompressionNone)
	defer s.Close()

	// Data and label batch counts intentionally differ; the store tracks
	// them independently and does not cross-check.
	require.NoError(t, s.Append(seqFloat32([]int{3, 5}, 0), seqInt64([]int{2, 1}, 0)))
	require.NoError(t, s.Append(seqFloat32([]int{4, 5}, 0), seqInt64([]int{6, 1}, 0)))

	dataRows, labelRows := s.Len()
	assert.Equal(t, 7, dataRows)
	assert.Equal(t, 8, labelRows)
}

func TestAppendAccumulatesAndPreservesRows(t *testing.T) {
	t.Parallel()

	s, path := newTestStore(t, hdf5.CompressionNone)

	first := seqFloat32([]int{10, 10}, 1000)
	firstLabels := seqInt64([]int{10, 5}, 0)
	second := seqFloat32([]int{8, 10}, 9000)
	secondLabels := seqInt64([]int{8, 5}, 500)

	require.NoError(t, s.Append(first, firstLabels))
	require.NoError(t, s.Append(second, secondLabels))
	require.NoError(t, s.Close())

	r, err := OpenReader(path)
	require.NoError(t, err)

	assert.Equal(t, []int{18, 10}, r.DataShape())
	assert.Equal(t, []int{18, 5}, r.LabelShape())

	data, err := r.Data()
	require.NoError(t, err)
	labels, err := r.Labels()
	require.NoError(t, err)

	// Rows 0-9 are the first batch unchanged, rows 10-17 the second.
	head, err := data.Slice(0, 10)
	require.NoError(t, err)
	assert.Equal(t, first.Float32s(), head.Float32s())

	tail, err := data.Slice(10, 18)
	require.NoError(t, err)
	assert.Equal(t, second.Float32s(), tail.Float32s())

	labelHead, err := labels.Slice(0, 10)
	require.NoError(t, err)
	assert.Equal(t, firstLabels.Int64s(), labelHead.Int64s())

	labelTail, err := labels.Slice(10, 18)
	require.NoError(t, err)
	assert.Equal(t, secondLabels.Int64s(), labelTail.Int64s())
}

func TestRankOneSampleShapeMismatch(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, hdf5.CompressionNone)
	defer s.Close()

	require.NoError(t, s.Append(seqFloat32([]int{3, 10}, 0), seqInt64([]int{3, 1}, 0)))

	err := s.Append(seqFloat32([]int{3, 12}, 0), seqInt64([]int{3, 1}, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestAppendRejectsWrongElementType(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, hdf5.CompressionNone)
	defer s.Close()

	err := s.Append(seqFloat32([]int{2, 4}, 0), seqFloat32([]int{2, 1}, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestMetadataBeforeInitFails(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, hdf5.CompressionNone)
	defer s.Close()

	err := s.AddMetadata(map[string]any{"noise": "0.2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUninitialized)
}

func TestMetadataStampsVersionAndOverwrites(t *testing.T) {
	t.Parallel()

	s, path := newTestStore(t, hdf5.CompressionNone)

	require.NoError(t, s.Append(seqFloat32([]int{2, 3}, 0), seqInt64([]int{2, 1}, 0)))
	require.NoError(t, s.AddMetadata(map[string]any{"x": "a", "noise_factor": 0.25}))
	require.NoError(t, s.AddMetadata(map[string]any{"x": "b"}))
	require.NoError(t, s.Close())

	r, err := OpenReader(path)
	require.NoError(t, err)

	attrs := r.Attrs()
	assert.Equal(t, Version, attrs["version"])
	assert.Equal(t, "b", attrs["x"])
	assert.Equal(t, "0.25", attrs["noise_factor"])
}

func TestNoMetadataMeansNoVersionAttr(t *testing.T) {
	t.Parallel()

	s, path := newTestStore(t, hdf5.CompressionNone)
	require.NoError(t, s.Append(seqFloat32([]int{1, 2}, 0), seqInt64([]int{1, 1}, 0)))
	require.NoError(t, s.Close())

	r, err := OpenReader(path)
	require.NoError(t, err)
	assert.Empty(t, r.Attrs())
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, hdf5.CompressionNone)
	require.NoError(t, s.Append(seqFloat32([]int{1, 2}, 0), seqInt64([]int{1, 1}, 0)))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	// Operations after close are state errors, not panics.
	require.Error(t, s.Append(seqFloat32([]int{1, 2}, 0), seqInt64([]int{1, 1}, 0)))
	require.Error(t, s.AddMetadata(map[string]any{"k": "v"}))
}

func TestGzipRoundTrip(t *testing.T) {
	t.Parallel()

	s, path := newTestStore(t, hdf5.CompressionGzip)

	data := seqFloat32([]int{16, 25}, 100)
	labels := seqInt64([]int{16, 1}, 0)
	require.NoError(t, s.Append(data, labels))
	require.NoError(t, s.AddMetadata(map[string]any{"compression": "gzip"}))
	require.NoError(t, s.Close())

	r, err := OpenReader(path)
	require.NoError(t, err)
	assert.Equal(t, hdf5.CompressionGzip, r.Compression())

	got, err := r.Data()
	require.NoError(t, err)
	assert.Equal(t, data.Float32s(), got.Float32s())

	gotLabels, err := r.Labels()
	require.NoError(t, err)
	assert.Equal(t, labels.Int64s(), gotLabels.Int64s())
}

func TestBatches(t *testing.T) {
	t.Parallel()

	s, path := newTestStore(t, hdf5.CompressionNone)
	require.NoError(t, s.Append(seqFloat32([]int{10, 4}, 0), seqInt64([]int{10, 1}, 0)))
	require.NoError(t, s.Close())

	r, err := OpenReader(path)
	require.NoError(t, err)

	batches, err := r.Batches(4)
	require.NoError(t, err)

	var sizes []int
	for b := range batches {
		sizes = append(sizes, b.Data.Len())
		assert.Equal(t, b.Data.Len(), b.Labels.Len())
	}
	assert.Equal(t, []int{4, 4, 2}, sizes)
}
