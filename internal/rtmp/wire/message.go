// Package wire carries the thin outbound chunk-framing the ingest server
// needs to talk back to a publisher (the control burst, acknowledgements),
// adapted from the teacher's dechunker/writer pair. Outbound encoding is not
// part of the decoder's scope; this package exists only so cmd/rtmp-ingest-server
// has something realistic to drive the decoder end to end.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Message is a complete, unchunked RTMP message ready for outbound framing.
// Field names match the connection/control/rpc layers' existing call sites.
type Message struct {
	CSID            uint32
	Timestamp       uint32
	MessageLength   uint32
	TypeID          uint8
	MessageStreamID uint32
	Payload         []byte
}

// Writer fragments outbound Messages into chunks using a format-0 header per
// message plus format-3 continuation chunks, matching the simplest legal
// encoding the chunk-stream protocol allows. It does not attempt the
// teacher's header-compression optimizations (format 1/2 reuse) since
// outbound encoding sits outside the decoder's tested scope.
type Writer struct {
	w         io.Writer
	chunkSize uint32
}

// NewWriter creates a Writer with the given outbound chunk size (0 defaults
// to 128, the RTMP default before any Set Chunk Size message is sent).
func NewWriter(w io.Writer, chunkSize uint32) *Writer {
	if chunkSize == 0 {
		chunkSize = 128
	}
	return &Writer{w: w, chunkSize: chunkSize}
}

// SetChunkSize updates the outbound chunk size for subsequent messages.
func (w *Writer) SetChunkSize(size uint32) {
	if size >= 1 {
		w.chunkSize = size
	}
}

// WriteMessage encodes and writes msg as one format-0 chunk followed by as
// many format-3 continuation chunks as its payload requires.
func (w *Writer) WriteMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("wire: nil message")
	}
	if m.CSID == 0 {
		m.CSID = 3 // conventional command channel; callers may leave CSID unset
	}
	if m.CSID < 2 {
		return fmt.Errorf("wire: channel id %d reserved", m.CSID)
	}
	if m.MessageLength == 0 {
		m.MessageLength = uint32(len(m.Payload))
	}

	header, err := encodeBasicHeader(0, m.CSID)
	if err != nil {
		return err
	}
	mh := make([]byte, 11)
	writeU24(mh[0:3], m.Timestamp)
	writeU24(mh[3:6], m.MessageLength)
	mh[6] = m.TypeID
	binary.LittleEndian.PutUint32(mh[7:11], m.MessageStreamID)
	header = append(header, mh...)

	cont, err := encodeBasicHeader(3, m.CSID)
	if err != nil {
		return err
	}

	cs := int(w.chunkSize)
	written := 0
	for written < len(m.Payload) {
		hdr := header
		if written > 0 {
			hdr = cont
		}
		end := written + cs
		if end > len(m.Payload) {
			end = len(m.Payload)
		}
		if err := writeAll(w.w, hdr, m.Payload[written:end]); err != nil {
			return err
		}
		written = end
	}
	if len(m.Payload) == 0 {
		return writeAll(w.w, header, nil)
	}
	return nil
}

func writeAll(w io.Writer, header, payload []byte) error {
	buf := make([]byte, 0, len(header)+len(payload))
	buf = append(buf, header...)
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

func writeU24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func encodeBasicHeader(fmtVal uint8, channelID uint32) ([]byte, error) {
	switch {
	case channelID >= 2 && channelID <= 63:
		return []byte{fmtVal<<6 | byte(channelID)}, nil
	case channelID >= 64 && channelID <= 319:
		return []byte{fmtVal << 6, byte(channelID - 64)}, nil
	case channelID >= 320 && channelID <= 65599:
		v := channelID - 64
		return []byte{fmtVal<<6 | 1, byte(v), byte(v >> 8)}, nil
	default:
		return nil, fmt.Errorf("wire: channel id %d out of range", channelID)
	}
}
