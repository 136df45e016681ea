package chunk

// Per-channel state (C4 reassembler). ParseHeader (header.go) owns the
// header-compression bookkeeping; this file owns accumulating chunk payload
// bytes into a complete message.

import (
	protoerr "github.com/flowcast/rtmp-ingest/internal/errors"
	"github.com/flowcast/rtmp-ingest/internal/rtmp/cursor"
)

// Packet is one channel's in-flight message reassembly.
type Packet struct {
	Header  Header
	Payload []byte
}

// channelState is the per-CSID bookkeeping the decoder keeps between feeds:
// the last fully-resolved header (for compressed-header inheritance) and,
// while a message is being reassembled, its in-progress Packet.
type channelState struct {
	ChannelID  uint32
	LastHeader *Header
	Extended   bool // sticky extended-timestamp flag, invariant 5
	Packet     *Packet
}

// abort discards the channel's in-flight packet. Used when an Abort control
// message names this channel (§4.4 "Abort handling").
func (s *channelState) abort() { s.Packet = nil }

// appendChunk implements C4 for a single resolved chunk header: it adopts or
// continues the channel's in-flight Packet and copies up to readChunkSize
// payload bytes out of cur. A short read rewinds cur to packetStart (the
// position before the chunk's basic header was parsed) so the whole chunk —
// header included — is retried on the next feed.
func appendChunk(cur *cursor.Cursor, packetStart int, st *channelState, h *Header, readChunkSize, maxPacketSize uint32) (complete bool, pkt *Packet, short bool, err error) {
	if st.Packet == nil {
		if h.Size > maxPacketSize {
			return false, nil, false, protoerr.NewChunkError("reassembler.oversized", errOversized(h.ChannelID, h.Size, maxPacketSize))
		}
		p := h.clone()
		st.Packet = &Packet{Header: p, Payload: make([]byte, 0, h.Size)}
	}
	pkt = st.Packet

	chunkLen := int(readChunkSize)
	remaining := int(pkt.Header.Size) - len(pkt.Payload)
	if remaining < chunkLen {
		chunkLen = remaining
	}
	if chunkLen < 0 {
		chunkLen = 0
	}

	if cur.Remaining() < chunkLen {
		cur.Reset(packetStart)
		return false, nil, true, nil
	}

	if chunkLen > 0 {
		data, _ := cur.ReadBytes(chunkLen)
		pkt.Payload = append(pkt.Payload, data...)
	}

	if len(pkt.Payload) >= int(pkt.Header.Size) {
		st.Packet = nil
		return true, pkt, false, nil
	}
	return false, pkt, false, nil
}
