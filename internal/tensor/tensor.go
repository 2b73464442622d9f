// Package tensor provides the small N-dimensional array value passed between
// the spectrogram pipeline and the dataset store. Arrays are dense, row-major
// and carry an explicit element type.
package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

// DType identifies the element type of an Array.
type DType int

const (
	Float32 DType = iota
	Float64
	Int32
	Int64
)

// String returns the conventional lowercase name of the element type.
func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// Size returns the element size in bytes.
func (d DType) Size() int {
	switch d {
	case Float32, Int32:
		return 4
	default:
		return 8
	}
}

// Array is a dense row-major N-dimensional array. Exactly one of the backing
// slices is populated, matching the element type.
type Array struct {
	shape []int
	dtype DType

	f32 []float32
	f64 []float64
	i32 []int32
	i64 []int64
}

// NumElements returns the product of the dimensions in shape.
func NumElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func checkLen(shape []int, n int) error {
	if want := NumElements(shape); n != want {
		return fmt.Errorf("tensor: %d values do not fill shape %v (want %d)", n, shape, want)
	}
	return nil
}

// NewFloat32 builds a float32 array over values, which must exactly fill shape.
func NewFloat32(shape []int, values []float32) (*Array, error) {
	if err := checkLen(shape, len(values)); err != nil {
		return nil, err
	}
	return &Array{shape: slices.Clone(shape), dtype: Float32, f32: values}, nil
}

// NewFloat64 builds a float64 array over values, which must exactly fill shape.
func NewFloat64(shape []int, values []float64) (*Array, error) {
	if err := checkLen(shape, len(values)); err != nil {
		return nil, err
	}
	return &Array{shape: slices.Clone(shape), dtype: Float64, f64: values}, nil
}

// NewInt32 builds an int32 array over values, which must exactly fill shape.
func NewInt32(shape []int, values []int32) (*Array, error) {
	if err := checkLen(shape, len(values)); err != nil {
		return nil, err
	}
	return &Array{shape: slices.Clone(shape), dtype: Int32, i32: values}, nil
}

// NewInt64 builds an int64 array over values, which must exactly fill shape.
func NewInt64(shape []int, values []int64) (*Array, error) {
	if err := checkLen(shape, len(values)); err != nil {
		return nil, err
	}
	return &Array{shape: slices.Clone(shape), dtype: Int64, i64: values}, nil
}

// MustFloat32 is NewFloat32 that panics on malformed input. For tests and
// literals with statically known shapes.
func MustFloat32(shape []int, values []float32) *Array {
	a, err := NewFloat32(shape, values)
	if err != nil {
		panic(err)
	}
	return a
}

// MustInt64 is NewInt64 that panics on malformed input.
func MustInt64(shape []int, values []int64) *Array {
	a, err := NewInt64(shape, values)
	if err != nil {
		panic(err)
	}
	return a
}

// Shape returns the dimensions of the array. The returned slice is shared;
// callers must not modify it.
func (a *Array) Shape() []int { return a.shape }

// DType returns the element type.
func (a *Array) DType() DType { return a.dtype }

// Len returns the extent of the first axis, or 0 for a zero-rank array.
func (a *Array) Len() int {
	if len(a.shape) == 0 {
		return 0
	}
	return a.shape[0]
}

// SampleShape returns the dimensions excluding the leading sample axis.
func (a *Array) SampleShape() []int {
	if len(a.shape) == 0 {
		return nil
	}
	return a.shape[1:]
}

// Float32s returns the backing float32 slice, or nil for other element types.
func (a *Array) Float32s() []float32 { return a.f32 }

// Float64s returns the backing float64 slice, or nil for other element types.
func (a *Array) Float64s() []float64 { return a.f64 }

// Int32s returns the backing int32 slice, or nil for other element types.
func (a *Array) Int32s() []int32 { return a.i32 }

// Int64s returns the backing int64 slice, or nil for other element types.
func (a *Array) Int64s() []int64 { return a.i64 }

// Bytes encodes the array's elements as little-endian bytes in row-major
// order, matching the container file's on-disk representation.
func (a *Array) Bytes() []byte {
	es := a.dtype.Size()
	buf := make([]byte, NumElements(a.shape)*es)
	switch a.dtype {
	case Float32:
		for i, v := range a.f32 {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
	case Float64:
		for i, v := range a.f64 {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
	case Int32:
		for i, v := range a.i32 {
			binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
		}
	case Int64:
		for i, v := range a.i64 {
			binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
		}
	}
	return buf
}

// FromBytes decodes little-endian row-major bytes into an Array of the given
// shape and element type. The buffer must exactly fill the shape.
func FromBytes(shape []int, dtype DType, buf []byte) (*Array, error) {
	n := NumElements(shape)
	if len(buf) != n*dtype.Size() {
		return nil, fmt.Errorf("tensor: %d bytes do not fill shape %v of %s", len(buf), shape, dtype)
	}
	switch dtype {
	case Float32:
		vals := make([]float32, n)
		for i := range vals {
			vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
		return NewFloat32(shape, vals)
	case Float64:
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		return NewFloat64(shape, vals)
	case Int32:
		vals := make([]int32, n)
		for i := range vals {
			vals[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
		}
		return NewInt32(shape, vals)
	case Int64:
		vals := make([]int64, n)
		for i := range vals {
			vals[i] = int64(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		return NewInt64(shape, vals)
	default:
		return nil, fmt.Errorf("tensor: unsupported dtype %s", dtype)
	}
}

// Row returns sample i as a one-sample Array. The backing slice is shared
// with the parent.
func (a *Array) Row(i int) (*Array, error) {
	if len(a.shape) == 0 || i < 0 || i >= a.shape[0] {
		return nil, fmt.Errorf("tensor: row %d out of range for shape %v", i, a.shape)
	}
	return a.Slice(i, i+1)
}

// Slice returns samples [lo, hi) along the first axis, sharing backing data.
func (a *Array) Slice(lo, hi int) (*Array, error) {
	if len(a.shape) == 0 || lo < 0 || hi < lo || hi > a.shape[0] {
		return nil, fmt.Errorf("tensor: slice [%d:%d] out of range for shape %v", lo, hi, a.shape)
	}
	stride := NumElements(a.shape[1:])
	shape := slices.Clone(a.shape)
	shape[0] = hi - lo
	out := &Array{shape: shape, dtype: a.dtype}
	switch a.dtype {
	case Float32:
		out.f32 = a.f32[lo*stride : hi*stride]
	case Float64:
		out.f64 = a.f64[lo*stride : hi*stride]
	case Int32:
		out.i32 = a.i32[lo*stride : hi*stride]
	case Int64:
		out.i64 = a.i64[lo*stride : hi*stride]
	}
	return out, nil
}
