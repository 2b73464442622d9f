package dataset

import (
	"iter"

	"github.com/chirpset/chirpset/internal/errors"
	"github.com/chirpset/chirpset/internal/hdf5"
	"github.com/chirpset/chirpset/internal/tensor"
)

// Reader opens a finished container read-only and hands its contents to
// training code.
type Reader struct {
	data   *hdf5.Dataset
	labels *hdf5.Dataset

	// Decoded lazily on first access.
	dataArr  *tensor.Array
	labelArr *tensor.Array
}

// OpenReader parses the container at path. Both the data and labels arrays
// must be present.
func OpenReader(path string) (*Reader, error) {
	r, err := hdf5.Open(path)
	if err != nil {
		return nil, err
	}
	data, ok := r.Dataset("data")
	if !ok {
		return nil, errors.Newf("container %q has no data array", path).
			Component("dataset").
			Category(errors.CategoryFileParsing).
			Build()
	}
	labels, ok := r.Dataset("labels")
	if !ok {
		return nil, errors.Newf("container %q has no labels array", path).
			Component("dataset").
			Category(errors.CategoryFileParsing).
			Build()
	}
	return &Reader{data: data, labels: labels}, nil
}

// DataShape returns the full shape of the data array, sample axis first.
func (r *Reader) DataShape() []int { return intShape(r.data.Shape) }

// LabelShape returns the full shape of the labels array.
func (r *Reader) LabelShape() []int { return intShape(r.labels.Shape) }

// Attrs returns the attributes stored on the data array.
func (r *Reader) Attrs() map[string]string { return r.data.Attrs }

// Compression returns the compression mode both arrays were written with.
func (r *Reader) Compression() hdf5.Compression { return r.data.Compression }

// Data decodes and returns the full data array.
func (r *Reader) Data() (*tensor.Array, error) {
	if r.dataArr == nil {
		arr, err := decode(r.data)
		if err != nil {
			return nil, err
		}
		r.dataArr = arr
	}
	return r.dataArr, nil
}

// Labels decodes and returns the full labels array.
func (r *Reader) Labels() (*tensor.Array, error) {
	if r.labelArr == nil {
		arr, err := decode(r.labels)
		if err != nil {
			return nil, err
		}
		r.labelArr = arr
	}
	return r.labelArr, nil
}

// Batch is one training batch: matching row slices of the two arrays.
type Batch struct {
	Data   *tensor.Array
	Labels *tensor.Array
}

// Batches returns an iterator over successive row batches of up to size
// samples each. Rows are paired by index; if the arrays hold different row
// counts, iteration stops at the shorter one. The final batch may be short.
func (r *Reader) Batches(size int) (iter.Seq[Batch], error) {
	data, err := r.Data()
	if err != nil {
		return nil, err
	}
	labels, err := r.Labels()
	if err != nil {
		return nil, err
	}
	rows := min(data.Len(), labels.Len())
	return func(yield func(Batch) bool) {
		for lo := 0; lo < rows; lo += size {
			hi := min(lo+size, rows)
			d, err := data.Slice(lo, hi)
			if err != nil {
				return
			}
			l, err := labels.Slice(lo, hi)
			if err != nil {
				return
			}
			if !yield(Batch{Data: d, Labels: l}) {
				return
			}
		}
	}, nil
}

func decode(ds *hdf5.Dataset) (*tensor.Array, error) {
	raw, err := ds.Read()
	if err != nil {
		return nil, err
	}
	return tensor.FromBytes(intShape(ds.Shape), dtypeOf(ds.Type), raw)
}

func intShape(shape []uint64) []int {
	out := make([]int, len(shape))
	for i, d := range shape {
		out[i] = int(d)
	}
	return out
}

func dtypeOf(t hdf5.NumericType) tensor.DType {
	switch t {
	case hdf5.Float32:
		return tensor.Float32
	case hdf5.Float64:
		return tensor.Float64
	case hdf5.Int32:
		return tensor.Int32
	default:
		return tensor.Int64
	}
}
