package hdf5

var headerSignature = []byte("OHDR")

// minGroupChunkSize pads group object headers to the chunk size the HDF5
// library allocates for small groups, so the file stays readable by h5py.
const minGroupChunkSize = 120

// headerSize returns the total on-disk size of a version 2 object header
// holding the given messages.
func headerSize(messages []message, minChunkSize int) int {
	chunkSize, _ := headerChunkSize(messages, minChunkSize)
	return 4 + 1 + 1 + chunkSizeFieldBytes(chunkSize) + chunkSize + 4
}

func headerChunkSize(messages []message, minChunkSize int) (chunkSize, paddingSize int) {
	var messagesSize int
	for _, msg := range messages {
		messagesSize += 4 + msg.size() // type(1) + size(2) + flags(1)
	}
	chunkSize = messagesSize
	if chunkSize < minChunkSize {
		chunkSize = minChunkSize
	}
	return chunkSize, chunkSize - messagesSize
}

// writeHeader writes a version 2 object header at the writer's position.
// The header is assembled in memory first because the trailing checksum
// covers everything before it. The chunk size field counts message bytes
// only; the checksum sits after the chunk.
func writeHeader(w *writer, messages []message, minChunkSize int) error {
	chunkSize, paddingSize := headerChunkSize(messages, minChunkSize)
	chunkFieldSize := chunkSizeFieldBytes(chunkSize)

	buf := &bufferWriterAt{}
	bw := newWriter(buf)

	if err := bw.writeBytes(headerSignature); err != nil {
		return err
	}
	if err := bw.writeUint8(2); err != nil { // version 2
		return err
	}
	if err := bw.writeUint8(uint8(chunkFieldSize - 1)); err != nil { // flags
		return err
	}
	if err := bw.writeUintN(uint64(chunkSize), chunkFieldSize); err != nil {
		return err
	}

	for _, msg := range messages {
		if err := bw.writeUint8(msg.msgType()); err != nil {
			return err
		}
		if err := bw.writeUint16(uint16(msg.size())); err != nil {
			return err
		}
		if err := bw.writeUint8(0); err != nil { // message flags
			return err
		}
		if err := msg.serialize(bw); err != nil {
			return err
		}
	}

	if paddingSize > 0 {
		// Fill the remainder of the chunk with one NIL message.
		nilDataSize := max(paddingSize-4, 0)
		if err := bw.writeUint8(typeNIL); err != nil {
			return err
		}
		if err := bw.writeUint16(uint16(nilDataSize)); err != nil {
			return err
		}
		if err := bw.writeUint8(0); err != nil {
			return err
		}
		if err := bw.writeBytes(make([]byte, nilDataSize)); err != nil {
			return err
		}
	}

	checksum := lookup3(buf.buf[:bw.pos])
	if err := bw.writeUint32(checksum); err != nil {
		return err
	}

	return w.writeBytes(buf.buf[:bw.pos])
}

func chunkSizeFieldBytes(size int) int {
	switch {
	case size <= 0xFF:
		return 1
	case size <= 0xFFFF:
		return 2
	case size <= 0xFFFFFFFF:
		return 4
	default:
		return 8
	}
}

// datasetHeader assembles the message list for a dataset object header.
// pipeline and attrs may be empty.
func datasetHeader(space *dataspace, dt *datatype, layout *dataLayout, pipeline *filterPipeline, attrs []*attribute) []message {
	messages := []message{space, dt, layout}
	if pipeline != nil {
		messages = append(messages, pipeline)
	}
	for _, a := range attrs {
		messages = append(messages, a)
	}
	return messages
}

// groupHeader assembles the message list for a group with hard links.
func groupHeader(links []*hardLink) []message {
	messages := make([]message, 0, len(links)+2)
	messages = append(messages, &linkInfo{}, &groupInfo{})
	for _, l := range links {
		messages = append(messages, l)
	}
	return messages
}
