package hdf5

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float32Bytes(vals []float32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func int64Bytes(vals []int64) []byte {
	buf := make([]byte, len(vals)*8)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
	}
	return buf
}

func TestLookup3Deterministic(t *testing.T) {
	t.Parallel()

	data := []byte("extendable dataset container")
	assert.Equal(t, lookup3(data), lookup3(data))
	assert.NotEqual(t, lookup3(data), lookup3(data[:len(data)-1]))

	// Boundary lengths around the 12-byte mixing block.
	for _, n := range []int{0, 1, 11, 12, 13, 24, 25} {
		b := make([]byte, n)
		for i := range b {
			b[i] = byte(i * 7)
		}
		assert.Equal(t, lookup3(b), lookup3(b), "length %d", n)
	}
}

func TestRoundTripUncompressed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plain.h5")
	vals := []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}

	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.WriteDataset(&DatasetSpec{
		Name:      "data",
		Shape:     []uint64{3, 4},
		Unlimited: true,
		Type:      Float32,
		Raw:       float32Bytes(vals),
		Attrs: []Attr{
			{Name: "version", Value: "1.0.0"},
			{Name: "noise_factor", Value: "0.2"},
		},
	}))
	require.NoError(t, f.WriteDataset(&DatasetSpec{
		Name:      "labels",
		Shape:     []uint64{3, 1},
		Unlimited: true,
		Type:      Int64,
		Raw:       int64Bytes([]int64{7, 8, 9}),
	}))
	require.NoError(t, f.Close())

	r, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"data", "labels"}, r.DatasetNames())

	ds, ok := r.Dataset("data")
	require.True(t, ok)
	assert.Equal(t, []uint64{3, 4}, ds.Shape)
	assert.Equal(t, []uint64{unlimitedDim, 4}, ds.MaxShape)
	assert.Equal(t, Float32, ds.Type)
	assert.Equal(t, CompressionNone, ds.Compression)
	assert.Equal(t, "1.0.0", ds.Attrs["version"])
	assert.Equal(t, "0.2", ds.Attrs["noise_factor"])

	raw, err := ds.Read()
	require.NoError(t, err)
	assert.Equal(t, float32Bytes(vals), raw)

	labels, ok := r.Dataset("labels")
	require.True(t, ok)
	assert.Equal(t, Int64, labels.Type)
	labelRaw, err := labels.Read()
	require.NoError(t, err)
	assert.Equal(t, int64Bytes([]int64{7, 8, 9}), labelRaw)
}

func TestRoundTripGzip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "packed.h5")

	// Highly regular data compresses well below its plain size, so the
	// filtered chunk path is actually exercised.
	vals := make([]float32, 40*17)
	for i := range vals {
		vals[i] = float32(i % 9)
	}

	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.WriteDataset(&DatasetSpec{
		Name:        "data",
		Shape:       []uint64{40, 17},
		Unlimited:   true,
		Type:        Float32,
		Raw:         float32Bytes(vals),
		Compression: CompressionGzip,
	}))
	require.NoError(t, f.Close())

	r, err := Open(path)
	require.NoError(t, err)
	ds, ok := r.Dataset("data")
	require.True(t, ok)
	assert.Equal(t, CompressionGzip, ds.Compression)
	assert.Less(t, ds.filteredSize, uint64(len(vals)*4))

	raw, err := ds.Read()
	require.NoError(t, err)
	assert.Equal(t, float32Bytes(vals), raw)
}

func TestEmptyContainer(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.hdf5")
	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, r.DatasetNames())
}

func TestWriteDatasetRejectsShortRaw(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.h5")
	f, err := Create(path)
	require.NoError(t, err)
	defer f.Close()

	err = f.WriteDataset(&DatasetSpec{
		Name:  "data",
		Shape: []uint64{3, 4},
		Type:  Float32,
		Raw:   make([]byte, 8),
	})
	require.Error(t, err)
}

func TestOpenRejectsCorruptSuperblock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "corrupt.h5")
	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[30] ^= 0xFF // damage the EOF address under the checksum
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
}
