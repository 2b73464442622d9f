// Package hdf5 implements the subset of the HDF5 file format used by the
// dataset container: a version 2/3 superblock, version 2 object headers,
// single-chunk dataset storage with an optional deflate filter, and string
// attributes. A narrow reader parses exactly what the writer emits.
//
// All files use little-endian byte order with 8-byte offsets and lengths.
package hdf5

import (
	"encoding/binary"
	"io"
)

const (
	offsetSize = 8
	lengthSize = 8
)

// undefinedAddr is the HDF5 "undefined address" sentinel, all 1-bits.
const undefinedAddr = ^uint64(0)

// writer writes format fields at explicit file offsets. Position state is
// local to each writer so sub-structures can be written independently.
type writer struct {
	w   io.WriterAt
	pos int64
}

func newWriter(w io.WriterAt) *writer {
	return &writer{w: w}
}

// at returns a new writer positioned at offset, sharing the underlying file.
func (w *writer) at(offset int64) *writer {
	return &writer{w: w.w, pos: offset}
}

func (w *writer) writeBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	return err
}

func (w *writer) writeUint8(v uint8) error {
	return w.writeBytes([]byte{v})
}

func (w *writer) writeUint16(v uint16) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return w.writeBytes(buf)
}

func (w *writer) writeUint32(v uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return w.writeBytes(buf)
}

func (w *writer) writeUint64(v uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return w.writeBytes(buf)
}

// writeUintN writes a little-endian unsigned integer of n bytes.
func (w *writer) writeUintN(v uint64, n int) error {
	buf := make([]byte, n)
	for i := range n {
		buf[i] = byte(v >> (8 * i))
	}
	return w.writeBytes(buf)
}

// writeOffset writes a file offset field.
func (w *writer) writeOffset(v uint64) error {
	return w.writeUint64(v)
}

// writeLength writes a length field.
func (w *writer) writeLength(v uint64) error {
	return w.writeUint64(v)
}

// bufferWriterAt is an in-memory WriterAt used to assemble checksummed
// structures before they hit the file.
type bufferWriterAt struct {
	buf []byte
}

func (b *bufferWriterAt) WriteAt(p []byte, off int64) (n int, err error) {
	if int(off)+len(p) > len(b.buf) {
		newBuf := make([]byte, int(off)+len(p))
		copy(newBuf, b.buf)
		b.buf = newBuf
	}
	copy(b.buf[off:], p)
	return len(p), nil
}

func decodeUintN(b []byte, n int) uint64 {
	var v uint64
	for i := range n {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
