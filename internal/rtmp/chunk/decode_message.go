package chunk

// Message decoder (C5): dispatches on header.DataType to produce exactly
// one Event per reassembled message (§4.5).

import (
	protoerr "github.com/flowcast/rtmp-ingest/internal/errors"
	"github.com/flowcast/rtmp-ingest/internal/rtmp/amf"
)

// decodeMessage turns a complete Packet into its Event. An unknown
// data_type is never fatal: it degrades to UnknownEvent.
func decodeMessage(pkt *Packet) (Event, error) {
	h := &pkt.Header
	payload := pkt.Payload

	switch h.DataType {
	case dataTypeChunkSize:
		return decodeChunkSize(h, payload)
	case dataTypeAbort:
		return decodeAbort(h, payload)
	case dataTypeBytesRead:
		return decodeBytesRead(h, payload)
	case dataTypePing:
		return decodePing(h, payload)
	case dataTypeServerBandwidth:
		return decodeServerBandwidth(h, payload)
	case dataTypeClientBandwidth:
		return decodeClientBandwidth(h, payload)
	case dataTypeAudio:
		return decodeAudio(h, payload), nil
	case dataTypeVideo:
		return decodeVideo(h, payload), nil
	case dataTypeAggregate:
		return decodeAggregate(h, payload), nil

	case dataTypeFlexStreamSend:
		if len(payload) < 1 {
			return nil, protoerr.NewChunkError("decode.flex_stream_send", errShortPayload("flex stream send", 1, len(payload)))
		}
		in := amf.NewInput(payload[1:])
		action, params, raw, err := decodeStreamData(in, payload[1:])
		if err != nil {
			return nil, err
		}
		if raw == nil {
			raw = payload[1:]
		}
		return &FlexStreamSendEvent{eventBase: newEventBase(EventFlexStreamSend, h), Action: action, Params: params, Raw: raw}, nil

	case dataTypeFlexSharedObj:
		if len(payload) < 1 {
			return nil, protoerr.NewChunkError("decode.flex_shared_object", errShortPayload("shared object selector", 1, len(payload)))
		}
		selector := payload[0]
		if selector != 0 && selector != 3 {
			return nil, protoerr.NewChunkError("decode.flex_shared_object", errUnknownSharedObjectEncoding(selector))
		}
		name, version, persistent, events, _ := decodeSharedObjectEnvelope(payload[1:], selector == 3)
		// Per-event faults ride along on SOEvent.DecodeFault (§7: one bad
		// event does not stop the rest of the envelope); the message as a
		// whole still decodes successfully.
		return &SharedObjectEvent{eventBase: newEventBase(EventSharedObject, h), Name: name, Version: version, Persistent: persistent, Events: events}, nil

	case dataTypeSharedObject:
		name, version, persistent, events, _ := decodeSharedObjectEnvelope(payload, false)
		return &SharedObjectEvent{eventBase: newEventBase(EventSharedObject, h), Name: name, Version: version, Persistent: persistent, Events: events}, nil

	case dataTypeNotify:
		if h.StreamID != 0 {
			in := amf.NewInput(payload)
			action, params, raw, err := decodeStreamData(in, payload)
			if err != nil {
				return nil, err
			}
			if raw == nil {
				raw = payload
			}
			return &NotifyEvent{eventBase: newEventBase(EventNotify, h), IsStreamData: true, Action: action, StreamParams: params, Raw: raw}, nil
		}
		in := amf.NewInput(payload)
		call, err := decodeAction(in)
		if err != nil {
			return nil, err
		}
		return &NotifyEvent{eventBase: newEventBase(EventNotify, h), Service: call.Service, Method: call.Method,
			TransactionID: call.TransactionID, Params: call.Params, Args: call.Args}, nil

	case dataTypeInvoke:
		in := amf.NewInput(payload)
		call, err := decodeAction(in)
		if err != nil {
			return nil, err
		}
		return &InvokeEvent{eventBase: newEventBase(EventInvoke, h), Service: call.Service, Method: call.Method,
			TransactionID: call.TransactionID, Params: call.Params, Args: call.Args}, nil

	case dataTypeFlexMessage:
		if len(payload) < 1 {
			return nil, protoerr.NewChunkError("decode.flex_message", errShortPayload("flex message", 1, len(payload)))
		}
		// Same base mode as INVOKE (AMF0 with per-value 0x11-marker
		// detection) — only the leading "flex" byte differs.
		in := amf.NewInput(payload[1:])
		call, err := decodeAction(in)
		if err != nil {
			return nil, err
		}
		return &FlexMessageEvent{eventBase: newEventBase(EventFlexMessage, h), Service: call.Service, Method: call.Method,
			TransactionID: call.TransactionID, Params: call.Params, Args: call.Args}, nil

	default:
		return &UnknownEvent{eventBase: newEventBase(EventUnknown, h), DataType: h.DataType, Payload: payload}, nil
	}
}
