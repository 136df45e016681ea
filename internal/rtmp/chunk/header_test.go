package chunk

import (
	"testing"

	"github.com/flowcast/rtmp-ingest/internal/rtmp/cursor"
)

func basicHeaderByte(fmtVal uint8, channelID uint32) []byte {
	return []byte{fmtVal<<6 | byte(channelID)}
}

func TestParseHeader_Format0(t *testing.T) {
	cur := cursor.New()
	cur.Feed(basicHeaderByte(0, 4))
	cur.Feed([]byte{0x00, 0x00, 0x64}) // ts=100
	cur.Feed([]byte{0x00, 0x00, 0x0A}) // size=10
	cur.Feed([]byte{0x08})             // audio
	cur.Feed([]byte{0x01, 0x00, 0x00, 0x00})

	states := make(map[uint32]*channelState)
	h, res, err := ParseHeader(cur, states, false)
	if err != nil || res != parseOK {
		t.Fatalf("parse: res=%v err=%v", res, err)
	}
	if h.ChannelID != 4 || h.TimerBase != 100 || h.Size != 10 || h.DataType != 8 || h.StreamID != 1 {
		t.Fatalf("unexpected header: %+v", h)
	}
	if h.Extended {
		t.Fatalf("expected non-extended timestamp")
	}
}

func TestParseHeader_ShortReadRewinds(t *testing.T) {
	cur := cursor.New()
	cur.Feed(basicHeaderByte(0, 4))
	cur.Feed([]byte{0x00, 0x00, 0x64, 0x00}) // only 4 of 11 message-header bytes

	states := make(map[uint32]*channelState)
	start := cur.Position()
	h, res, err := ParseHeader(cur, states, false)
	if err != nil || res != parseShort || h != nil {
		t.Fatalf("expected short read, got h=%v res=%v err=%v", h, res, err)
	}
	if cur.Position() != start {
		t.Fatalf("short read must rewind cursor: start=%d now=%d", start, cur.Position())
	}
}

func TestParseHeader_ExtendedTimestampBoundary(t *testing.T) {
	// exactly 0x00FFFFFF as a LITERAL 3-byte field is indistinguishable from
	// the marker, so it always triggers the 4-byte extended field; the
	// boundary that is "not extended" is one below it.
	cur := cursor.New()
	cur.Feed(basicHeaderByte(0, 4))
	cur.Feed([]byte{0xFF, 0xFF, 0xFE}) // 0x00FFFFFE: not the marker
	cur.Feed([]byte{0x00, 0x00, 0x0A})
	cur.Feed([]byte{0x08})
	cur.Feed([]byte{0x01, 0x00, 0x00, 0x00})

	states := make(map[uint32]*channelState)
	h, res, err := ParseHeader(cur, states, false)
	if err != nil || res != parseOK {
		t.Fatalf("parse: res=%v err=%v", res, err)
	}
	if h.Extended || h.TimerBase != 0x00FFFFFE {
		t.Fatalf("expected non-extended ts=0x00FFFFFE, got extended=%v ts=%d", h.Extended, h.TimerBase)
	}

	cur2 := cursor.New()
	cur2.Feed(basicHeaderByte(0, 5))
	cur2.Feed([]byte{0xFF, 0xFF, 0xFF}) // marker
	cur2.Feed([]byte{0x00, 0x00, 0x0A})
	cur2.Feed([]byte{0x08})
	cur2.Feed([]byte{0x01, 0x00, 0x00, 0x00})
	cur2.Feed([]byte{0x01, 0x00, 0x00, 0x00}) // extended value 0x01000000

	states2 := make(map[uint32]*channelState)
	h2, res2, err2 := ParseHeader(cur2, states2, false)
	if err2 != nil || res2 != parseOK {
		t.Fatalf("parse: res=%v err=%v", res2, err2)
	}
	if !h2.Extended || h2.TimerBase != 0x01000000 {
		t.Fatalf("expected extended ts=0x01000000, got extended=%v ts=%d", h2.Extended, h2.TimerBase)
	}
}

func TestParseHeader_OrphanFormat2Fatal(t *testing.T) {
	cur := cursor.New()
	cur.Feed(basicHeaderByte(2, 6))
	cur.Feed([]byte{0x00, 0x00, 0x01})

	states := make(map[uint32]*channelState)
	_, _, err := ParseHeader(cur, states, false)
	if err == nil {
		t.Fatalf("expected orphan format-2 header to be fatal even in lenient mode")
	}
}

func TestParseHeader_OrphanFormat1BootstrapsInLenientMode(t *testing.T) {
	cur := cursor.New()
	cur.Feed(basicHeaderByte(1, 7))
	cur.Feed([]byte{0x00, 0x00, 0x64}) // delta/base = 100
	cur.Feed([]byte{0x00, 0x00, 0x0A}) // size=10
	cur.Feed([]byte{0x08})

	states := make(map[uint32]*channelState)
	h, res, err := ParseHeader(cur, states, false)
	if err != nil || res != parseOK {
		t.Fatalf("expected lenient-mode bootstrap, got res=%v err=%v", res, err)
	}
	if h.StreamID != 0 || h.TimerBase != 100 || h.Size != 10 {
		t.Fatalf("unexpected bootstrap header: %+v", h)
	}
}

func TestParseHeader_OrphanFormat1FatalInStrictMode(t *testing.T) {
	cur := cursor.New()
	cur.Feed(basicHeaderByte(1, 7))
	cur.Feed([]byte{0x00, 0x00, 0x64})
	cur.Feed([]byte{0x00, 0x00, 0x0A})
	cur.Feed([]byte{0x08})

	states := make(map[uint32]*channelState)
	_, _, err := ParseHeader(cur, states, true)
	if err == nil {
		t.Fatalf("expected orphan format-1 header to be fatal in strict mode")
	}
}

func TestParseHeader_Format3ExtendedStickyReplacesTimestamp(t *testing.T) {
	states := make(map[uint32]*channelState)
	cur := cursor.New()
	cur.Feed(basicHeaderByte(0, 4))
	cur.Feed([]byte{0xFF, 0xFF, 0xFF}) // marker
	cur.Feed([]byte{0x00, 0x00, 0x0A})
	cur.Feed([]byte{0x08})
	cur.Feed([]byte{0x01, 0x00, 0x00, 0x00})
	cur.Feed([]byte{0x00, 0x01, 0x00, 0x00}) // 65536
	h0, _, err := ParseHeader(cur, states, false)
	if err != nil {
		t.Fatalf("format0 parse: %v", err)
	}
	if h0.TimerBase != 65536 {
		t.Fatalf("expected base 65536, got %d", h0.TimerBase)
	}
	// decoder.go normally does this post-completion; emulate it here since
	// this test exercises header.go in isolation.
	states[4].LastHeader.TimerBase = h0.EffectiveTimestamp()
	states[4].LastHeader.TimerDelta = 0

	cur.Feed(basicHeaderByte(3, 4))
	cur.Feed([]byte{0x00, 0x01, 0x00, 0x80}) // 65664
	h3, _, err := ParseHeader(cur, states, false)
	if err != nil {
		t.Fatalf("format3 parse: %v", err)
	}
	if h3.EffectiveTimestamp() != 65664 {
		t.Fatalf("expected effective timestamp 65664, got %d", h3.EffectiveTimestamp())
	}
}
