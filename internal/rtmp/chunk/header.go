package chunk

// Chunk basic/message header parsing (C3). Every header is resolved against
// per-channel state so that compressed formats (1-3) can inherit the fields
// they do not carry on the wire.

import (
	protoerr "github.com/flowcast/rtmp-ingest/internal/errors"
	"github.com/flowcast/rtmp-ingest/internal/rtmp/cursor"
)

const extendedTimestampMarker = 0xFFFFFF

// messageHeaderLen maps a chunk format to the number of message-header bytes
// that follow the basic header (0, 3, 7 or 11).
var messageHeaderLen = [4]int{11, 7, 3, 0}

// Header is one chunk's fully-resolved header: everything the reassembler
// and message decoder need, with compressed fields already filled in from
// the channel's prior state.
type Header struct {
	ChannelID  uint32
	Format     uint8 // 0-3, the wire format that produced this resolution
	Size       uint32
	DataType   uint8
	StreamID   uint32
	TimerBase  uint32
	TimerDelta uint32
	Extended   bool // true iff this chunk carried/inherited an extended timestamp
}

// EffectiveTimestamp is the message timestamp implied by this header.
func (h *Header) EffectiveTimestamp() uint32 { return h.TimerBase + h.TimerDelta }

// clone returns a detached copy suitable for adopting into a new in-flight
// Packet (the channel's running Header keeps mutating after this point).
func (h *Header) clone() Header { return *h }

// parseResult distinguishes the outcomes of a header parse attempt.
type parseResult int

const (
	parseOK    parseResult = iota
	parseShort             // not enough bytes yet; caller must rewind and wait
)

// parseBasicHeader reads the 1-3 byte basic header: format (top 2 bits) and
// channel id (remaining 6 bits, possibly extended by 1 or 2 more bytes).
func parseBasicHeader(cur *cursor.Cursor) (fmtVal uint8, channelID uint32, ok bool) {
	b0, have := cur.PeekByte()
	if !have {
		return 0, 0, false
	}
	fmtVal = b0 >> 6
	raw := b0 & 0x3F
	switch raw {
	case 0: // 2-byte form: channel id 64-319
		b, have := cur.Peek(2)
		if !have {
			return 0, 0, false
		}
		cur.Skip(2)
		channelID = uint32(b[1]) + 64
	case 1: // 3-byte form: channel id 64-65599
		b, have := cur.Peek(3)
		if !have {
			return 0, 0, false
		}
		cur.Skip(3)
		channelID = uint32(b[1]) + 64 + uint32(b[2])<<8
	default:
		cur.Skip(1)
		channelID = uint32(raw)
	}
	return fmtVal, channelID, true
}

// ParseHeader resolves the next chunk header from cur, consulting and
// updating per-channel state. On a short read it rewinds cur to the mark it
// started from and returns parseShort so the caller can wait for more bytes.
// strict controls how an orphan compressed header (format != 0 on a channel
// that has never had a format-0 chunk) is handled.
func ParseHeader(cur *cursor.Cursor, states map[uint32]*channelState, strict bool) (*Header, parseResult, error) {
	mark := cur.Mark()

	fmtVal, channelID, ok := parseBasicHeader(cur)
	if !ok {
		cur.Reset(mark)
		return nil, parseShort, nil
	}
	if fmtVal > 3 {
		return nil, parseOK, protoerr.NewChunkError("header.format", errUnexpectedFormat(fmtVal))
	}

	need := messageHeaderLen[fmtVal]
	if cur.Remaining() < need {
		cur.Reset(mark)
		return nil, parseShort, nil
	}

	st := states[channelID]
	orphan := fmtVal != 0 && (st == nil || st.LastHeader == nil)
	if orphan {
		// Formats 2 and 3 carry no size field, so there is no sound way to
		// "skip until a format-0 arrives" as §4.3 rule 5 suggests for lenient
		// mode: skipping requires knowing how many payload bytes to discard,
		// which an orphan format-2/3 header cannot supply. Both modes treat
		// that case as fatal. Format 1 does carry size+type, so in lenient
		// mode only it is allowed to bootstrap channel state (stream id 0,
		// the delta field read as an absolute base) rather than fail.
		if fmtVal != 1 || strict {
			return nil, parseOK, protoerr.NewChunkError("header.orphan_compressed", errOrphanHeader(channelID, fmtVal))
		}
	}
	if st == nil {
		st = &channelState{ChannelID: channelID}
		states[channelID] = st
	}

	h := &Header{ChannelID: channelID, Format: fmtVal}

	switch fmtVal {
	case 0:
		ts, _ := cur.ReadU24BE()
		size, _ := cur.ReadU24BE()
		dataType, _ := cur.ReadU8()
		streamID, _ := cur.ReadU32LE()

		extended := ts == extendedTimestampMarker
		if extended {
			if cur.Remaining() < 4 {
				cur.Reset(mark)
				return nil, parseShort, nil
			}
			ts, _ = cur.ReadU32BE()
		}

		h.Size, h.DataType, h.StreamID = size, dataType, streamID
		h.TimerBase, h.TimerDelta, h.Extended = ts, 0, extended

		st.LastHeader = &Header{ChannelID: channelID, Format: 0, Size: size, DataType: dataType,
			StreamID: streamID, TimerBase: ts, TimerDelta: 0, Extended: extended}
		st.Extended = extended

	case 1:
		delta, _ := cur.ReadU24BE()
		size, _ := cur.ReadU24BE()
		dataType, _ := cur.ReadU8()

		extended := delta == extendedTimestampMarker
		if extended {
			if cur.Remaining() < 4 {
				cur.Reset(mark)
				return nil, parseShort, nil
			}
			delta, _ = cur.ReadU32BE()
		}

		prev := st.LastHeader
		if prev == nil {
			// Orphan bootstrap (lenient mode only, see above): no channel
			// history exists, so stream id defaults to 0 and the delta field
			// is treated as an absolute base for this first message.
			prev = &Header{ChannelID: channelID, StreamID: 0}
			st.LastHeader = prev
			h.StreamID = 0
			h.TimerBase, h.TimerDelta = delta, 0
		} else {
			h.StreamID = prev.StreamID
			h.TimerBase, h.TimerDelta = prev.TimerBase, delta
		}
		h.Size, h.DataType, h.Extended = size, dataType, extended

		prev.Size, prev.DataType, prev.TimerDelta, prev.Extended = size, dataType, h.TimerDelta, extended
		if h.TimerBase != prev.TimerBase {
			prev.TimerBase = h.TimerBase
		}
		prev.Format = 1
		st.Extended = extended

	case 2:
		delta, _ := cur.ReadU24BE()

		extended := delta == extendedTimestampMarker
		if extended {
			if cur.Remaining() < 4 {
				cur.Reset(mark)
				return nil, parseShort, nil
			}
			delta, _ = cur.ReadU32BE()
		}

		prev := st.LastHeader
		h.Size, h.DataType, h.StreamID = prev.Size, prev.DataType, prev.StreamID
		h.TimerBase, h.TimerDelta, h.Extended = prev.TimerBase, delta, extended

		prev.TimerDelta, prev.Extended = delta, extended
		prev.Format = 2
		st.Extended = extended

	case 3:
		prev := st.LastHeader
		h.Size, h.DataType, h.StreamID = prev.Size, prev.DataType, prev.StreamID
		h.TimerBase, h.TimerDelta = prev.TimerBase, prev.TimerDelta
		h.Extended = st.Extended

		if st.Extended {
			if cur.Remaining() < 4 {
				cur.Reset(mark)
				return nil, parseShort, nil
			}
			// Once extended timestamps are in use, every format-3 chunk
			// still carries its own 4-byte field, but it is the message's
			// new absolute timestamp rather than a delta to compose with
			// whatever came before it.
			ts, _ := cur.ReadU32BE()
			h.TimerBase, h.TimerDelta = ts, 0
		}
		prev.Format = 3
	}

	return h, parseOK, nil
}
