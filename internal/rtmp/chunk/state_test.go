package chunk

import (
	"bytes"
	"testing"

	"github.com/flowcast/rtmp-ingest/internal/rtmp/cursor"
)

func newHeaderForSize(channelID, size uint32) *Header {
	return &Header{ChannelID: channelID, Format: 0, Size: size, DataType: 8, StreamID: 1, TimerBase: 1000}
}

func TestAppendChunk_SingleChunkCompletes(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 10)
	cur := cursor.New()
	cur.Feed(payload)

	st := &channelState{ChannelID: 4}
	h := newHeaderForSize(4, 10)
	complete, pkt, short, err := appendChunk(cur, 0, st, h, 128, DefaultMaxPacketSize)
	if err != nil || short || !complete {
		t.Fatalf("expected immediate completion, got complete=%v short=%v err=%v", complete, short, err)
	}
	if !bytes.Equal(pkt.Payload, payload) {
		t.Fatalf("payload mismatch: %x", pkt.Payload)
	}
}

func TestAppendChunk_MultiChunkAcrossChunkSize(t *testing.T) {
	full := bytes.Repeat([]byte{0xCD}, 200)
	cur := cursor.New()
	cur.Feed(full[:128])

	st := &channelState{ChannelID: 4}
	h := newHeaderForSize(4, 200)
	complete, _, short, err := appendChunk(cur, 0, st, h, 128, DefaultMaxPacketSize)
	if err != nil || short || complete {
		t.Fatalf("expected incomplete after first chunk, got complete=%v short=%v err=%v", complete, short, err)
	}

	cur.Feed(full[128:])
	complete, pkt, short, err := appendChunk(cur, cur.Position(), st, h, 128, DefaultMaxPacketSize)
	if err != nil || short || !complete {
		t.Fatalf("expected completion after second chunk, got complete=%v short=%v err=%v", complete, short, err)
	}
	if !bytes.Equal(pkt.Payload, full) {
		t.Fatalf("payload mismatch: len=%d", len(pkt.Payload))
	}
}

func TestAppendChunk_ShortReadRewinds(t *testing.T) {
	cur := cursor.New()
	cur.Feed([]byte{0x01, 0x02, 0x03}) // only 3 of 10 bytes

	st := &channelState{ChannelID: 4}
	h := newHeaderForSize(4, 10)
	start := cur.Position()
	complete, pkt, short, err := appendChunk(cur, start, st, h, 128, DefaultMaxPacketSize)
	if err != nil || complete || !short || pkt != nil {
		t.Fatalf("expected short read, got complete=%v short=%v err=%v pkt=%v", complete, short, err, pkt)
	}
	if cur.Position() != start {
		t.Fatalf("short read must rewind to packet start")
	}
	if st.Packet == nil {
		t.Fatalf("packet should remain open after a short read, ready for retry")
	}
}

func TestAppendChunk_OversizedRejected(t *testing.T) {
	cur := cursor.New()
	cur.Feed(make([]byte, 16))

	st := &channelState{ChannelID: 4}
	h := newHeaderForSize(4, 16)
	_, _, _, err := appendChunk(cur, 0, st, h, 128, 8)
	if err == nil {
		t.Fatalf("expected oversized message to be rejected")
	}
}

func TestChannelState_AbortClearsInFlightPacket(t *testing.T) {
	cur := cursor.New()
	cur.Feed(make([]byte, 500))

	st := &channelState{ChannelID: 5}
	h := newHeaderForSize(5, 1000)
	_, _, _, err := appendChunk(cur, 0, st, h, 500, DefaultMaxPacketSize)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if st.Packet == nil {
		t.Fatalf("expected an in-flight packet before abort")
	}

	st.abort()
	if st.Packet != nil {
		t.Fatalf("abort must clear the in-flight packet")
	}
}
