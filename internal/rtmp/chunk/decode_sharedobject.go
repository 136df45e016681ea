package chunk

// Shared-object envelope decoding (§4.5), used by types 16 (FLEX_SHARED_OBJECT,
// prefixed by a 1-byte encoding selector) and 19 (SO, always AMF0).
//
// The envelope header (name, version, persistent flag, 4 reserved bytes) is
// raw wire framing, not AMF; only the per-event bodies are AMF-bearing. A
// decode fault in one event's body must not abort the rest of the envelope
// (§7), so faults are accumulated with multierr instead of returned eagerly.

import (
	"encoding/binary"

	"go.uber.org/multierr"

	protoerr "github.com/flowcast/rtmp-ingest/internal/errors"
	"github.com/flowcast/rtmp-ingest/internal/rtmp/amf"
)

func decodeSharedObjectEnvelope(payload []byte, amf3 bool) (name string, version uint32, persistent bool, events []SOEvent, err error) {
	in := amf.NewInput(payload)
	name, err = in.ReadString()
	if err != nil {
		return "", 0, false, nil, protoerr.NewAMFError("sharedobject.name", err)
	}

	off := len(payload) - in.Remaining()
	if len(payload)-off < 8 {
		return name, 0, false, nil, protoerr.NewChunkError("sharedobject.header", errShortEnvelope())
	}
	version = binary.BigEndian.Uint32(payload[off : off+4])
	persistentFlag := binary.BigEndian.Uint32(payload[off+4 : off+8])
	persistent = persistentFlag == 2
	off += 8 + 4 // version, persistent marker, 4 reserved bytes

	var faults error
	for off < len(payload) {
		if len(payload)-off < 5 {
			faults = multierr.Append(faults, protoerr.NewChunkError("sharedobject.event_header", errShortEnvelope()))
			break
		}
		kindByte := payload[off]
		length := binary.BigEndian.Uint32(payload[off+1 : off+5])
		off += 5
		if uint32(len(payload)-off) < length {
			faults = multierr.Append(faults, protoerr.NewChunkError("sharedobject.event_body", errShortEnvelope()))
			break
		}
		body := payload[off : off+int(length)]
		off += int(length)

		ev, decErr := decodeSOEvent(kindByte, body, amf3)
		if decErr != nil {
			ev.DecodeFault = decErr
			faults = multierr.Append(faults, decErr)
		}
		events = append(events, ev)
	}
	return name, version, persistent, events, faults
}

func decodeSOEvent(kindByte byte, body []byte, amf3 bool) (SOEvent, error) {
	ev := SOEvent{Kind: SOEventKind(kindByte), RawKind: kindByte}
	// Keys, codes, and handler names are always plain AMF0 strings even over
	// an AMF3-negotiated shared object; only the carried values follow the
	// envelope's encoding selector, so readValue below picks AMF3 or the
	// normal per-value detection depending on it.
	in := amf.NewInput(body)
	readValue := in.ReadValue
	if amf3 {
		readValue = in.ReadValueForceAMF3
	}

	switch SOEventKind(kindByte) {
	case SOStatus:
		code, err := in.ReadString()
		if err != nil {
			return ev, protoerr.NewAMFError("sharedobject.status.code", err)
		}
		level, err := in.ReadString()
		if err != nil {
			return ev, protoerr.NewAMFError("sharedobject.status.level", err)
		}
		ev.Code, ev.Level = code, level

	case SOChange:
		updates := make(map[string]interface{})
		for in.Remaining() > 0 {
			key, err := in.ReadString()
			if err != nil {
				return ev, protoerr.NewAMFError("sharedobject.change.key", err)
			}
			val, err := readValue()
			if err != nil {
				return ev, protoerr.NewAMFError("sharedobject.change.value", err)
			}
			updates[key] = val
		}
		ev.Updates = updates

	case SOSendMessage:
		handler, err := in.ReadString()
		if err != nil {
			return ev, protoerr.NewAMFError("sharedobject.sendmessage.handler", err)
		}
		ev.HandlerName = handler
		for in.Remaining() > 0 {
			v, err := readValue()
			if err != nil {
				return ev, protoerr.NewAMFError("sharedobject.sendmessage.arg", err)
			}
			ev.Args = append(ev.Args, v)
		}

	default:
		if len(body) == 0 {
			return ev, nil
		}
		key, err := in.ReadString()
		if err != nil {
			return ev, protoerr.NewAMFError("sharedobject.generic.key", err)
		}
		ev.Key = key
		if in.Remaining() > 0 {
			v, err := readValue()
			if err != nil {
				return ev, protoerr.NewAMFError("sharedobject.generic.value", err)
			}
			ev.Value = v
		}
	}
	return ev, nil
}
