package hdf5

import "fmt"

var superblockSignature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// superblockSize is the on-disk size of a version 2/3 superblock with 8-byte
// offsets: signature(8) + version/sizes/flags(4) + 4 addresses + checksum(4).
const superblockSize = 8 + 4 + 4*offsetSize + 4

// superblock holds the fields of a version 2/3 superblock.
type superblock struct {
	version  uint8
	eofAddr  uint64
	rootAddr uint64
}

// write serializes the superblock at the writer's position. The checksum
// covers every field before it, so the block is assembled in memory first.
func (sb *superblock) write(w *writer) error {
	buf := &bufferWriterAt{}
	bw := newWriter(buf)

	if err := bw.writeBytes(superblockSignature); err != nil {
		return err
	}
	if err := bw.writeUint8(sb.version); err != nil {
		return err
	}
	if err := bw.writeUint8(offsetSize); err != nil {
		return err
	}
	if err := bw.writeUint8(lengthSize); err != nil {
		return err
	}
	if err := bw.writeUint8(0); err != nil { // file consistency flags
		return err
	}
	if err := bw.writeOffset(0); err != nil { // base address
		return err
	}
	if err := bw.writeOffset(undefinedAddr); err != nil { // extension unused
		return err
	}
	if err := bw.writeOffset(sb.eofAddr); err != nil {
		return err
	}
	if err := bw.writeOffset(sb.rootAddr); err != nil {
		return err
	}

	checksum := lookup3(buf.buf[:bw.pos])
	if err := bw.writeUint32(checksum); err != nil {
		return err
	}
	return w.writeBytes(buf.buf[:bw.pos])
}

// parseSuperblock reads and validates a version 2/3 superblock from raw
// bytes at the start of the file.
func parseSuperblock(raw []byte) (*superblock, error) {
	if len(raw) < superblockSize {
		return nil, fmt.Errorf("hdf5: file too short for superblock")
	}
	for i, b := range superblockSignature {
		if raw[i] != b {
			return nil, fmt.Errorf("hdf5: bad signature")
		}
	}
	version := raw[8]
	if version != 2 && version != 3 {
		return nil, fmt.Errorf("hdf5: unsupported superblock version %d", version)
	}
	if raw[9] != offsetSize || raw[10] != lengthSize {
		return nil, fmt.Errorf("hdf5: unsupported offset/length sizes %d/%d", raw[9], raw[10])
	}
	sum := uint32(decodeUintN(raw[44:], 4))
	if lookup3(raw[:44]) != sum {
		return nil, fmt.Errorf("hdf5: superblock checksum mismatch")
	}
	return &superblock{
		version:  version,
		eofAddr:  decodeUintN(raw[28:], offsetSize),
		rootAddr: decodeUintN(raw[36:], offsetSize),
	}, nil
}
