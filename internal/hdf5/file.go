package hdf5

import (
	"bytes"
	"fmt"
	"os"

	"github.com/klauspost/compress/zlib"
)

// Compression selects the chunk filter applied to a dataset.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
)

// String returns the attribute-friendly name of the compression mode.
func (c Compression) String() string {
	if c == CompressionGzip {
		return "gzip"
	}
	return "none"
}

// gzipLevel is the deflate level recorded in the filter pipeline. It matches
// the HDF5 library default for the deflate filter.
const gzipLevel = 4

// NumericType identifies the element type of a dataset.
type NumericType int

const (
	Float32 NumericType = iota
	Float64
	Int32
	Int64
)

// Size returns the element size in bytes.
func (t NumericType) Size() int {
	switch t {
	case Float32, Int32:
		return 4
	default:
		return 8
	}
}

func (t NumericType) datatype() *datatype {
	switch t {
	case Float32:
		return floatType(4)
	case Float64:
		return floatType(8)
	case Int32:
		return intType(4)
	default:
		return intType(8)
	}
}

// Attr is a string attribute attached to a dataset's object header.
type Attr struct {
	Name  string
	Value string
}

// DatasetSpec describes one dataset to be written.
type DatasetSpec struct {
	Name        string
	Shape       []uint64
	Unlimited   bool // first axis resizable
	Type        NumericType
	Raw         []byte // little-endian row-major element bytes
	Compression Compression
	Attrs       []Attr
}

// File is a write-only HDF5 container. Datasets are linked into the root
// group and everything is finalized by Close, which writes the root group
// header and the superblock.
type File struct {
	f      *os.File
	w      *writer
	eof    int64
	links  []*hardLink
	closed bool
}

// Create opens path for writing, truncating any existing file, and reserves
// space for the superblock at offset 0.
func Create(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return NewFile(f), nil
}

// NewFile wraps an already-open, empty, writable file. The caller hands over
// ownership; Close closes the handle.
func NewFile(f *os.File) *File {
	return &File{f: f, w: newWriter(f), eof: superblockSize}
}

// allocate reserves size bytes at the end of the file and returns their
// address.
func (f *File) allocate(size int64) uint64 {
	addr := f.eof
	f.eof += size
	return uint64(addr)
}

// WriteDataset writes the dataset's chunk data and object header, and links
// it into the root group. The whole extent is stored as a single chunk; the
// expected shape of this container (two arrays, one growing axis) never
// needs more.
func (f *File) WriteDataset(spec *DatasetSpec) error {
	if f.closed {
		return fmt.Errorf("hdf5: file already closed")
	}
	if want := numElements(spec.Shape) * uint64(spec.Type.Size()); uint64(len(spec.Raw)) != want {
		return fmt.Errorf("hdf5: dataset %q raw size %d does not match shape %v (want %d)",
			spec.Name, len(spec.Raw), spec.Shape, want)
	}

	var maxDims []uint64
	if spec.Unlimited {
		maxDims = make([]uint64, len(spec.Shape))
		copy(maxDims, spec.Shape)
		maxDims[0] = unlimitedDim
	}
	space := &dataspace{dims: spec.Shape, maxDims: maxDims}
	dt := spec.Type.datatype()
	layout := newChunkedLayout(spec.Shape, uint32(spec.Type.Size()))

	var pipeline *filterPipeline
	chunk := spec.Raw
	if spec.Compression == CompressionGzip {
		compressed, err := deflate(spec.Raw)
		if err != nil {
			return fmt.Errorf("hdf5: compressing dataset %q: %w", spec.Name, err)
		}
		chunk = compressed
		pipeline = &filterPipeline{level: gzipLevel}
		layout.indexType = chunkIndexSingleChunk
		layout.filteredSize = uint64(len(compressed))
	}

	chunkAddr := f.allocate(int64(len(chunk)))
	if err := f.w.at(int64(chunkAddr)).writeBytes(chunk); err != nil {
		return err
	}
	layout.chunkAddr = chunkAddr

	attrs := make([]*attribute, 0, len(spec.Attrs))
	for _, a := range spec.Attrs {
		attrs = append(attrs, &attribute{name: a.Name, value: a.Value})
	}

	messages := datasetHeader(space, dt, layout, pipeline, attrs)
	headerAddr := f.allocate(int64(headerSize(messages, 0)))
	if err := writeHeader(f.w.at(int64(headerAddr)), messages, 0); err != nil {
		return err
	}

	f.links = append(f.links, &hardLink{name: spec.Name, addr: headerAddr})
	return nil
}

// Close writes the root group header and the superblock, syncs, and closes
// the underlying file. It is safe to call once; later calls return nil so
// deferred cleanup can run unconditionally.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	messages := groupHeader(f.links)
	rootAddr := f.allocate(int64(headerSize(messages, minGroupChunkSize)))
	if err := writeHeader(f.w.at(int64(rootAddr)), messages, minGroupChunkSize); err != nil {
		f.f.Close()
		return err
	}

	sb := &superblock{version: 3, eofAddr: uint64(f.eof), rootAddr: rootAddr}
	if err := sb.write(f.w.at(0)); err != nil {
		f.f.Close()
		return err
	}

	if err := f.f.Sync(); err != nil {
		f.f.Close()
		return err
	}
	return f.f.Close()
}

func numElements(shape []uint64) uint64 {
	n := uint64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

// deflate compresses data in the zlib format used by the HDF5 deflate
// filter.
func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, gzipLevel)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
