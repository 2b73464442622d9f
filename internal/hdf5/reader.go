package hdf5

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zlib"
)

// Reader reads containers produced by this package's writer: a version 2/3
// superblock, compact-link root group, and single-chunk datasets with an
// optional deflate filter. The whole file is held in memory.
type Reader struct {
	raw      []byte
	names    []string
	datasets map[string]*Dataset
}

// Dataset is one array parsed from the container.
type Dataset struct {
	Name        string
	Shape       []uint64
	MaxShape    []uint64
	Type        NumericType
	Compression Compression
	Attrs       map[string]string

	raw          []byte
	chunkAddr    uint64
	filteredSize uint64
}

// Open reads and parses the container at path.
func Open(path string) (*Reader, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sb, err := parseSuperblock(raw)
	if err != nil {
		return nil, err
	}

	r := &Reader{raw: raw, datasets: make(map[string]*Dataset)}
	rootMsgs, err := parseHeader(raw, sb.rootAddr)
	if err != nil {
		return nil, fmt.Errorf("hdf5: root group: %w", err)
	}
	for _, m := range rootMsgs {
		if m.typ != typeLink {
			continue
		}
		name, addr, err := parseHardLink(m.data)
		if err != nil {
			return nil, err
		}
		ds, err := r.parseDataset(name, addr)
		if err != nil {
			return nil, fmt.Errorf("hdf5: dataset %q: %w", name, err)
		}
		r.names = append(r.names, name)
		r.datasets[name] = ds
	}
	return r, nil
}

// DatasetNames returns the dataset names in link order.
func (r *Reader) DatasetNames() []string { return r.names }

// Dataset returns the named dataset, if present.
func (r *Reader) Dataset(name string) (*Dataset, bool) {
	ds, ok := r.datasets[name]
	return ds, ok
}

// Read returns the dataset's element bytes in row-major little-endian order,
// decompressed if a filter pipeline is present.
func (ds *Dataset) Read() ([]byte, error) {
	plainSize := numElements(ds.Shape) * uint64(ds.Type.Size())
	if ds.Compression == CompressionNone {
		if ds.chunkAddr+plainSize > uint64(len(ds.raw)) {
			return nil, fmt.Errorf("hdf5: chunk for %q extends past end of file", ds.Name)
		}
		out := make([]byte, plainSize)
		copy(out, ds.raw[ds.chunkAddr:ds.chunkAddr+plainSize])
		return out, nil
	}

	if ds.chunkAddr+ds.filteredSize > uint64(len(ds.raw)) {
		return nil, fmt.Errorf("hdf5: filtered chunk for %q extends past end of file", ds.Name)
	}
	zr, err := zlib.NewReader(bytes.NewReader(ds.raw[ds.chunkAddr : ds.chunkAddr+ds.filteredSize]))
	if err != nil {
		return nil, fmt.Errorf("hdf5: inflating %q: %w", ds.Name, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("hdf5: inflating %q: %w", ds.Name, err)
	}
	if uint64(len(out)) != plainSize {
		return nil, fmt.Errorf("hdf5: %q inflated to %d bytes, want %d", ds.Name, len(out), plainSize)
	}
	return out, nil
}

type rawMessage struct {
	typ  uint8
	data []byte
}

// parseHeader parses a version 2 object header at addr and returns its
// messages. The trailing checksum is verified.
func parseHeader(raw []byte, addr uint64) ([]rawMessage, error) {
	if addr+6 > uint64(len(raw)) {
		return nil, fmt.Errorf("header at %d past end of file", addr)
	}
	b := raw[addr:]
	if !bytes.Equal(b[:4], headerSignature) {
		return nil, fmt.Errorf("bad object header signature at %d", addr)
	}
	if b[4] != 2 {
		return nil, fmt.Errorf("unsupported object header version %d", b[4])
	}
	flags := b[5]
	chunkFieldSize := 1 << (flags & 0x03)
	pos := 6
	if len(b) < pos+chunkFieldSize {
		return nil, fmt.Errorf("truncated object header")
	}
	chunkSize := int(decodeUintN(b[pos:], chunkFieldSize))
	pos += chunkFieldSize

	end := pos + chunkSize
	if len(b) < end+4 {
		return nil, fmt.Errorf("truncated object header chunk")
	}
	sum := uint32(decodeUintN(b[end:], 4))
	if lookup3(b[:end]) != sum {
		return nil, fmt.Errorf("object header checksum mismatch at %d", addr)
	}

	var messages []rawMessage
	for pos+4 <= end {
		typ := b[pos]
		size := int(decodeUintN(b[pos+1:], 2))
		pos += 4
		if pos+size > end {
			return nil, fmt.Errorf("message overruns header chunk")
		}
		if typ != typeNIL {
			messages = append(messages, rawMessage{typ: typ, data: b[pos : pos+size]})
		}
		pos += size
	}
	return messages, nil
}

func (r *Reader) parseDataset(name string, addr uint64) (*Dataset, error) {
	msgs, err := parseHeader(r.raw, addr)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Name: name, raw: r.raw, Attrs: make(map[string]string)}
	for _, m := range msgs {
		switch m.typ {
		case typeDataspace:
			if err := ds.parseDataspace(m.data); err != nil {
				return nil, err
			}
		case typeDatatype:
			if err := ds.parseDatatype(m.data); err != nil {
				return nil, err
			}
		case typeDataLayout:
			if err := ds.parseLayout(m.data); err != nil {
				return nil, err
			}
		case typeFilterPipeline:
			if err := ds.parseFilterPipeline(m.data); err != nil {
				return nil, err
			}
		case typeAttribute:
			if err := ds.parseAttribute(m.data); err != nil {
				return nil, err
			}
		}
	}
	if ds.Shape == nil {
		return nil, fmt.Errorf("missing dataspace message")
	}
	return ds, nil
}

func (ds *Dataset) parseDataspace(b []byte) error {
	if len(b) < 4 || b[0] != 2 {
		return fmt.Errorf("unsupported dataspace message")
	}
	rank := int(b[1])
	hasMax := b[2]&0x01 != 0
	pos := 4
	need := rank * lengthSize
	if hasMax {
		need *= 2
	}
	if len(b) < pos+need {
		return fmt.Errorf("truncated dataspace message")
	}
	ds.Shape = make([]uint64, rank)
	for i := range rank {
		ds.Shape[i] = decodeUintN(b[pos:], lengthSize)
		pos += lengthSize
	}
	if hasMax {
		ds.MaxShape = make([]uint64, rank)
		for i := range rank {
			ds.MaxShape[i] = decodeUintN(b[pos:], lengthSize)
			pos += lengthSize
		}
	}
	return nil
}

func (ds *Dataset) parseDatatype(b []byte) error {
	if len(b) < 8 {
		return fmt.Errorf("truncated datatype message")
	}
	class := b[0] & 0x0F
	size := uint32(decodeUintN(b[4:], 4))
	switch {
	case class == classFloatPoint && size == 4:
		ds.Type = Float32
	case class == classFloatPoint && size == 8:
		ds.Type = Float64
	case class == classFixedPoint && size == 4:
		ds.Type = Int32
	case class == classFixedPoint && size == 8:
		ds.Type = Int64
	default:
		return fmt.Errorf("unsupported datatype class %d size %d", class, size)
	}
	return nil
}

func (ds *Dataset) parseLayout(b []byte) error {
	if len(b) < 5 || b[0] != 4 || b[1] != 2 {
		return fmt.Errorf("unsupported data layout message")
	}
	ndims := int(b[3])
	dimBytes := int(b[4])
	pos := 5 + ndims*dimBytes
	if len(b) < pos+1 {
		return fmt.Errorf("truncated data layout message")
	}
	indexType := b[pos]
	pos++
	switch indexType {
	case chunkIndexSingleChunk:
		if len(b) < pos+lengthSize+4+offsetSize {
			return fmt.Errorf("truncated single-chunk layout")
		}
		ds.filteredSize = decodeUintN(b[pos:], lengthSize)
		pos += lengthSize + 4 // skip filter mask
		ds.chunkAddr = decodeUintN(b[pos:], offsetSize)
	case chunkIndexImplicit:
		if len(b) < pos+offsetSize {
			return fmt.Errorf("truncated implicit-index layout")
		}
		ds.chunkAddr = decodeUintN(b[pos:], offsetSize)
	default:
		return fmt.Errorf("unsupported chunk index type %d", indexType)
	}
	return nil
}

func (ds *Dataset) parseFilterPipeline(b []byte) error {
	if len(b) < 2 || b[0] != 2 {
		return fmt.Errorf("unsupported filter pipeline message")
	}
	nfilters := int(b[1])
	pos := 2
	for range nfilters {
		if len(b) < pos+6 {
			return fmt.Errorf("truncated filter pipeline message")
		}
		id := uint16(decodeUintN(b[pos:], 2))
		numCD := int(decodeUintN(b[pos+4:], 2))
		pos += 6 + numCD*4
		if id == filterDeflate {
			ds.Compression = CompressionGzip
		} else {
			return fmt.Errorf("unsupported filter %d", id)
		}
	}
	return nil
}

func (ds *Dataset) parseAttribute(b []byte) error {
	if len(b) < 9 || b[0] != 3 {
		return fmt.Errorf("unsupported attribute message")
	}
	nameSize := int(decodeUintN(b[2:], 2))
	dtSize := int(decodeUintN(b[4:], 2))
	dsSize := int(decodeUintN(b[6:], 2))
	pos := 9
	if len(b) < pos+nameSize+dtSize+dsSize {
		return fmt.Errorf("truncated attribute message")
	}
	name := string(bytes.TrimRight(b[pos:pos+nameSize], "\x00"))
	dt := b[pos+nameSize : pos+nameSize+dtSize]
	pos += nameSize + dtSize + dsSize

	if len(dt) < 8 || dt[0]&0x0F != classString {
		return fmt.Errorf("attribute %q is not a string", name)
	}
	valueSize := int(decodeUintN(dt[4:], 4))
	if len(b) < pos+valueSize {
		return fmt.Errorf("truncated attribute value for %q", name)
	}
	ds.Attrs[name] = string(bytes.TrimRight(b[pos:pos+valueSize], "\x00"))
	return nil
}

func parseHardLink(b []byte) (name string, addr uint64, err error) {
	if len(b) < 3 || b[0] != 1 {
		return "", 0, fmt.Errorf("hdf5: unsupported link message")
	}
	flags := b[1]
	if flags&0x08 != 0 {
		return "", 0, fmt.Errorf("hdf5: non-hard link in root group")
	}
	nameLenSize := 1 << (flags & 0x03)
	pos := 2
	if len(b) < pos+nameLenSize {
		return "", 0, fmt.Errorf("hdf5: truncated link message")
	}
	nameLen := int(decodeUintN(b[pos:], nameLenSize))
	pos += nameLenSize
	if len(b) < pos+nameLen+offsetSize {
		return "", 0, fmt.Errorf("hdf5: truncated link message")
	}
	name = string(b[pos : pos+nameLen])
	addr = decodeUintN(b[pos+nameLen:], offsetSize)
	return name, addr, nil
}
