package hdf5

import (
	"encoding/binary"
	"fmt"
)

// Header message types used by this writer.
const (
	typeNIL            uint8 = 0x00
	typeDataspace      uint8 = 0x01
	typeLinkInfo       uint8 = 0x02
	typeDatatype       uint8 = 0x03
	typeLink           uint8 = 0x06
	typeDataLayout     uint8 = 0x08
	typeGroupInfo      uint8 = 0x0A
	typeFilterPipeline uint8 = 0x0B
	typeAttribute      uint8 = 0x0C
)

// message is a serializable object header message.
type message interface {
	msgType() uint8
	size() int
	serialize(w *writer) error
}

// dataspace is a version 2 simple dataspace. A nil maxDims means the extents
// are fixed; otherwise maxDims must have the same rank, with unlimitedDim
// marking growable axes.
type dataspace struct {
	dims    []uint64
	maxDims []uint64
}

// unlimitedDim marks an axis with no upper bound.
const unlimitedDim = ^uint64(0)

func (m *dataspace) msgType() uint8 { return typeDataspace }

func (m *dataspace) size() int {
	s := 4 + len(m.dims)*lengthSize
	if m.maxDims != nil {
		s += len(m.maxDims) * lengthSize
	}
	return s
}

func (m *dataspace) serialize(w *writer) error {
	if err := w.writeUint8(2); err != nil { // version 2
		return err
	}
	if err := w.writeUint8(uint8(len(m.dims))); err != nil {
		return err
	}
	flags := uint8(0)
	if m.maxDims != nil {
		flags |= 0x01
	}
	if err := w.writeUint8(flags); err != nil {
		return err
	}
	if err := w.writeUint8(1); err != nil { // simple dataspace
		return err
	}
	for _, d := range m.dims {
		if err := w.writeLength(d); err != nil {
			return err
		}
	}
	for _, d := range m.maxDims {
		if err := w.writeLength(d); err != nil {
			return err
		}
	}
	return nil
}

// Datatype classes.
const (
	classFixedPoint uint8 = 0
	classFloatPoint uint8 = 1
	classString     uint8 = 3
)

// datatype is a version 1 datatype message.
type datatype struct {
	class     uint8
	classBits uint32 // 24-bit class bit field
	byteSize  uint32
	props     []byte // class-specific property bytes
}

// floatType returns an IEEE 754 little-endian float datatype of 4 or 8 bytes.
// The class bits and properties match what h5py writes for native floats.
func floatType(byteSize uint32) *datatype {
	var signLoc uint32
	var props []byte
	switch byteSize {
	case 4:
		signLoc = 31
		props = []byte{
			0, 0, // bit offset
			32, 0, // bit precision
			23,  // exponent location
			8,   // exponent size
			0,   // mantissa location
			23,  // mantissa size
			127, 0, 0, 0, // exponent bias
		}
	case 8:
		signLoc = 63
		props = []byte{
			0, 0,
			64, 0,
			52,
			11,
			0,
			52,
			255, 3, 0, 0, // bias 1023
		}
	default:
		panic(fmt.Sprintf("hdf5: unsupported float size %d", byteSize))
	}
	// byte order LE, normalized mantissa MSB always set, sign bit location
	classBits := uint32(0) | 1<<5 | signLoc<<8
	return &datatype{class: classFloatPoint, classBits: classBits, byteSize: byteSize, props: props}
}

// intType returns a signed little-endian fixed-point datatype of 4 or 8 bytes.
func intType(byteSize uint32) *datatype {
	props := make([]byte, 4)
	binary.LittleEndian.PutUint16(props[0:], 0)                    // bit offset
	binary.LittleEndian.PutUint16(props[2:], uint16(byteSize*8)) // bit precision
	return &datatype{class: classFixedPoint, classBits: 0x08, byteSize: byteSize, props: props}
}

// stringType returns a fixed-length null-terminated ASCII string datatype.
func stringType(byteSize uint32) *datatype {
	return &datatype{class: classString, classBits: 0, byteSize: byteSize}
}

func (m *datatype) msgType() uint8 { return typeDatatype }

func (m *datatype) size() int { return 8 + len(m.props) }

func (m *datatype) serialize(w *writer) error {
	if err := w.writeUint8(m.class | 1<<4); err != nil { // version 1
		return err
	}
	if err := w.writeUint8(uint8(m.classBits)); err != nil {
		return err
	}
	if err := w.writeUint8(uint8(m.classBits >> 8)); err != nil {
		return err
	}
	if err := w.writeUint8(uint8(m.classBits >> 16)); err != nil {
		return err
	}
	if err := w.writeUint32(m.byteSize); err != nil {
		return err
	}
	return w.writeBytes(m.props)
}

// Chunk index types for version 4 chunked layouts.
const (
	chunkIndexSingleChunk uint8 = 0
	chunkIndexImplicit    uint8 = 1
)

// dataLayout is a version 4 chunked data layout. Every dataset is stored as
// one chunk spanning the full extent; unfiltered chunks use the implicit
// index (the address points directly at the chunk bytes), filtered chunks use
// the single-chunk index with the filtered size and mask carried inline.
type dataLayout struct {
	chunkDims    []uint32 // dataset dims plus element size as the last entry
	indexType    uint8
	chunkAddr    uint64
	filteredSize uint64 // filtered byte count, single-chunk index only
	filterMask   uint32
}

func newChunkedLayout(dims []uint64, elementSize uint32) *dataLayout {
	chunkDims := make([]uint32, len(dims)+1)
	for i, d := range dims {
		chunkDims[i] = uint32(d)
	}
	chunkDims[len(dims)] = elementSize
	return &dataLayout{chunkDims: chunkDims, indexType: chunkIndexImplicit}
}

func (m *dataLayout) dimSizeBytes() int {
	n := 1
	for _, d := range m.chunkDims {
		if d > 0xFF && n < 2 {
			n = 2
		}
		if d > 0xFFFF && n < 4 {
			n = 4
		}
	}
	return n
}

func (m *dataLayout) msgType() uint8 { return typeDataLayout }

func (m *dataLayout) size() int {
	// version + class + flags + ndims + dim size width
	s := 5 + len(m.chunkDims)*m.dimSizeBytes() + 1 // index type byte
	if m.indexType == chunkIndexSingleChunk {
		s += lengthSize + 4 // filtered size + filter mask
	}
	return s + offsetSize
}

func (m *dataLayout) serialize(w *writer) error {
	if err := w.writeUint8(4); err != nil { // version 4
		return err
	}
	if err := w.writeUint8(2); err != nil { // chunked
		return err
	}
	if err := w.writeUint8(0); err != nil { // flags
		return err
	}
	if err := w.writeUint8(uint8(len(m.chunkDims))); err != nil {
		return err
	}
	dimBytes := m.dimSizeBytes()
	if err := w.writeUint8(uint8(dimBytes)); err != nil {
		return err
	}
	for _, d := range m.chunkDims {
		if err := w.writeUintN(uint64(d), dimBytes); err != nil {
			return err
		}
	}
	if err := w.writeUint8(m.indexType); err != nil {
		return err
	}
	if m.indexType == chunkIndexSingleChunk {
		if err := w.writeLength(m.filteredSize); err != nil {
			return err
		}
		if err := w.writeUint32(m.filterMask); err != nil {
			return err
		}
	}
	return w.writeOffset(m.chunkAddr)
}

// Filter identifiers.
const filterDeflate uint16 = 1

// filterPipeline is a version 2 filter pipeline carrying a single deflate
// filter with its compression level.
type filterPipeline struct {
	level uint32
}

func (m *filterPipeline) msgType() uint8 { return typeFilterPipeline }

func (m *filterPipeline) size() int {
	// version + nfilters + (id + flags + numCD + one client value)
	return 2 + 2 + 2 + 2 + 4
}

func (m *filterPipeline) serialize(w *writer) error {
	if err := w.writeUint8(2); err != nil { // version 2
		return err
	}
	if err := w.writeUint8(1); err != nil { // one filter
		return err
	}
	if err := w.writeUint16(filterDeflate); err != nil {
		return err
	}
	if err := w.writeUint16(0); err != nil { // flags: mandatory
		return err
	}
	if err := w.writeUint16(1); err != nil { // one client data value
		return err
	}
	return w.writeUint32(m.level)
}

// attribute is a version 3 attribute message. Only scalar fixed-length
// string values are written.
type attribute struct {
	name  string
	value string
}

// scalarDataspaceSize is the serialized size of a rank-0 dataspace.
const scalarDataspaceSize = 4

func (m *attribute) valueBytes() []byte {
	// null-terminated fixed-length string
	data := make([]byte, len(m.value)+1)
	copy(data, m.value)
	return data
}

func (m *attribute) msgType() uint8 { return typeAttribute }

func (m *attribute) size() int {
	dt := stringType(uint32(len(m.value) + 1))
	return 9 + len(m.name) + 1 + dt.size() + scalarDataspaceSize + len(m.value) + 1
}

func (m *attribute) serialize(w *writer) error {
	dt := stringType(uint32(len(m.value) + 1))
	if err := w.writeUint8(3); err != nil { // version 3
		return err
	}
	if err := w.writeUint8(0); err != nil { // flags
		return err
	}
	if err := w.writeUint16(uint16(len(m.name) + 1)); err != nil {
		return err
	}
	if err := w.writeUint16(uint16(dt.size())); err != nil {
		return err
	}
	if err := w.writeUint16(scalarDataspaceSize); err != nil {
		return err
	}
	if err := w.writeUint8(0); err != nil { // ASCII name
		return err
	}
	if err := w.writeBytes([]byte(m.name)); err != nil {
		return err
	}
	if err := w.writeUint8(0); err != nil {
		return err
	}
	if err := dt.serialize(w); err != nil {
		return err
	}
	// scalar dataspace: version 2, rank 0, no flags, scalar type
	if err := w.writeBytes([]byte{2, 0, 0, 0}); err != nil {
		return err
	}
	return w.writeBytes(m.valueBytes())
}

// hardLink is a version 1 hard link message. Names longer than 255 bytes are
// not produced by this writer.
type hardLink struct {
	name string
	addr uint64
}

func (m *hardLink) msgType() uint8 { return typeLink }

func (m *hardLink) size() int {
	return 2 + 1 + len(m.name) + offsetSize
}

func (m *hardLink) serialize(w *writer) error {
	if err := w.writeUint8(1); err != nil { // version 1
		return err
	}
	if err := w.writeUint8(0); err != nil { // hard link, 1-byte name length
		return err
	}
	if err := w.writeUint8(uint8(len(m.name))); err != nil {
		return err
	}
	if err := w.writeBytes([]byte(m.name)); err != nil {
		return err
	}
	return w.writeOffset(m.addr)
}

// linkInfo is a minimal link info message: compact link storage, undefined
// fractal heap and name index addresses. The HDF5 library expects both
// addresses to be present even when unused.
type linkInfo struct{}

func (m *linkInfo) msgType() uint8 { return typeLinkInfo }

func (m *linkInfo) size() int { return 2 + 2*offsetSize }

func (m *linkInfo) serialize(w *writer) error {
	if err := w.writeUint8(0); err != nil { // version
		return err
	}
	if err := w.writeUint8(0); err != nil { // flags
		return err
	}
	if err := w.writeOffset(undefinedAddr); err != nil {
		return err
	}
	return w.writeOffset(undefinedAddr)
}

// groupInfo is a minimal group info message with all defaults.
type groupInfo struct{}

func (m *groupInfo) msgType() uint8 { return typeGroupInfo }

func (m *groupInfo) size() int { return 2 }

func (m *groupInfo) serialize(w *writer) error {
	if err := w.writeUint8(0); err != nil {
		return err
	}
	return w.writeUint8(0)
}
