package chunk

// Decoder state machine (C6): orchestrates C3 -> C4 -> C5 across repeated
// Feed calls, reporting short reads precisely and propagating fatal errors.
// A Decoder is a pure function of (state, input bytes) -> (new state,
// events); it owns no goroutines and performs no I/O itself.

import (
	"encoding/hex"

	protoerr "github.com/flowcast/rtmp-ingest/internal/errors"
	"github.com/flowcast/rtmp-ingest/internal/logger"
	"github.com/flowcast/rtmp-ingest/internal/rtmp/cursor"
)

// DefaultMaxPacketSize is the default ceiling on a single message's declared
// size (§6 "max_packet_size", default 3 MiB).
const DefaultMaxPacketSize = 3 * 1024 * 1024

// DefaultReadChunkSize is the chunk payload size assumed before any
// ChunkSize message is received.
const DefaultReadChunkSize = 128

// ConnectionState mirrors the decoder's place in the connection lifecycle
// (§3). The decoder only acts while CONNECTED.
type ConnectionState uint8

const (
	StateConnected ConnectionState = iota
	StateError
	StateDisconnecting
	StateDisconnected
)

// DecoderConfig controls the decoder's limits and strictness.
type DecoderConfig struct {
	// MaxPacketSize rejects any message whose declared size exceeds it,
	// before any payload buffer of that size is allocated.
	MaxPacketSize uint32
	// CloseOnHeaderError makes an orphan compressed header
	// (format != 0 on a channel never primed by format 0) fatal instead of
	// tolerated (subject to header.go's format-1-bootstrap exception).
	CloseOnHeaderError bool
}

// DefaultDecoderConfig returns the spec's defaults.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{MaxPacketSize: DefaultMaxPacketSize, CloseOnHeaderError: false}
}

// Decoder reassembles RTMP chunks into Events. Not safe for concurrent use;
// one Decoder per connection, fed serially by the transport layer.
type Decoder struct {
	cfg       DecoderConfig
	cur       *cursor.Cursor
	states    map[uint32]*channelState
	chunkSize uint32
	state     ConnectionState
	needed    int // buffered-byte count (from the pending packet's start) that must be reached before retrying, 0 when none outstanding
}

// NewDecoder creates a Decoder with the given configuration. A zero
// MaxPacketSize is replaced with DefaultMaxPacketSize.
func NewDecoder(cfg DecoderConfig) *Decoder {
	if cfg.MaxPacketSize == 0 {
		cfg.MaxPacketSize = DefaultMaxPacketSize
	}
	return &Decoder{
		cfg:       cfg,
		cur:       cursor.New(),
		states:    make(map[uint32]*channelState),
		chunkSize: DefaultReadChunkSize,
		state:     StateConnected,
	}
}

// ReadChunkSize returns the currently negotiated inbound chunk size.
func (d *Decoder) ReadChunkSize() uint32 { return d.chunkSize }

// ConnectionState returns the decoder's connection state.
func (d *Decoder) ConnectionState() ConnectionState { return d.state }

// Needed returns how many additional bytes the decoder expects before it can
// make further progress (0 if none outstanding).
func (d *Decoder) Needed() int {
	if d.needed == 0 {
		return 0
	}
	return d.needed - d.cur.Remaining()
}

// Feed appends bytes to the decoder's buffer and decodes as many complete
// messages as possible, returning their Events in arrival order. Feeding the
// concatenation of several byte slices in one call always produces the same
// event sequence as feeding them one at a time (streaming equivalence).
func (d *Decoder) Feed(b []byte) ([]Event, error) {
	if d.state != StateConnected {
		return nil, protoerr.NewProtocolError("decoder.feed", errNotConnected(d.state))
	}
	d.cur.Feed(b)

	var events []Event
	for {
		if d.needed > 0 && d.cur.Remaining() < d.needed {
			break
		}
		start := d.cur.Position()

		h, res, err := ParseHeader(d.cur, d.states, d.cfg.CloseOnHeaderError)
		if err != nil {
			return d.fail(err)
		}
		if res == parseShort {
			d.needed = minNeeded(d.cur, start)
			break
		}

		st := d.states[h.ChannelID]
		complete, pkt, short, err := appendChunk(d.cur, start, st, h, d.chunkSize, d.cfg.MaxPacketSize)
		if err != nil {
			return d.fail(err)
		}
		if short {
			d.needed = minNeeded(d.cur, start)
			break
		}
		d.needed = 0
		if !complete {
			continue
		}

		ev, err := decodeMessage(pkt)
		if err != nil {
			return d.fail(err)
		}
		d.applyControlSideEffects(ev, st)
		events = append(events, ev)
	}

	d.cur.Compact()
	return events, nil
}

// applyControlSideEffects updates decoder/channel state implied by certain
// events, and chains the channel's timer_base forward so the next
// format-1/2 delta composes correctly (§4.5 "Timestamp application").
func (d *Decoder) applyControlSideEffects(ev Event, st *channelState) {
	switch e := ev.(type) {
	case *ChunkSizeEvent:
		if e.Size > 0 {
			d.chunkSize = e.Size
		}
	case *AbortEvent:
		if victim, ok := d.states[e.AbortChannelID]; ok {
			victim.abort()
		}
	}
	if st != nil && st.LastHeader != nil {
		st.LastHeader.TimerBase = ev.Timestamp()
		st.LastHeader.TimerDelta = 0
	}
}

// fail poisons the decoder per §4.6/§7: any ProtocolError during Feed is
// connection-fatal. The error is logged with the cursor position, buffer
// length and a hex dump of the unread bytes, then the cursor is cleared so no
// partial state lingers.
func (d *Decoder) fail(err error) ([]Event, error) {
	d.state = StateError
	rest, _ := d.cur.Peek(d.cur.Remaining())
	logger.Logger().Error("chunk decoder protocol error", "error", err, "position", d.cur.Position(), "limit", d.cur.Len(), "hex", hex.EncodeToString(rest))
	d.cur = cursor.New()
	return nil, err
}

// minNeeded rewinds the cursor to `start` and returns the number of bytes
// that must be buffered from there before the packet is attempted again:
// everything already buffered plus at least one more byte.
func minNeeded(cur *cursor.Cursor, start int) int {
	cur.SetPosition(start)
	if n := cur.Remaining() + 1; n > 0 {
		return n
	}
	return 1
}

func errNotConnected(s ConnectionState) error {
	return &notConnectedError{state: s}
}

type notConnectedError struct{ state ConnectionState }

func (e *notConnectedError) Error() string {
	switch e.state {
	case StateError:
		return "decoder is in ERROR state"
	case StateDisconnecting:
		return "decoder is DISCONNECTING"
	default:
		return "decoder is DISCONNECTED"
	}
}
