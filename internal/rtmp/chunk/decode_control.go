package chunk

// Control message decoding (§4.5): CHUNK_SIZE, ABORT, BYTES_READ, PING
// (user control), SERVER_BW, CLIENT_BW. All of these are raw big-endian
// integers, never AMF.

import (
	"encoding/binary"
	"fmt"

	protoerr "github.com/flowcast/rtmp-ingest/internal/errors"
)

func decodeChunkSize(h *Header, payload []byte) (*ChunkSizeEvent, error) {
	if len(payload) < 4 {
		return nil, protoerr.NewChunkError("decode.chunksize", errShortPayload("chunk size", 4, len(payload)))
	}
	return &ChunkSizeEvent{eventBase: newEventBase(EventChunkSize, h), Size: binary.BigEndian.Uint32(payload[:4])}, nil
}

func decodeAbort(h *Header, payload []byte) (*AbortEvent, error) {
	if len(payload) < 4 {
		return nil, protoerr.NewChunkError("decode.abort", errShortPayload("abort", 4, len(payload)))
	}
	return &AbortEvent{eventBase: newEventBase(EventAbort, h), AbortChannelID: binary.BigEndian.Uint32(payload[:4])}, nil
}

func decodeBytesRead(h *Header, payload []byte) (*BytesReadEvent, error) {
	if len(payload) < 4 {
		return nil, protoerr.NewChunkError("decode.bytesread", errShortPayload("bytes read", 4, len(payload)))
	}
	return &BytesReadEvent{eventBase: newEventBase(EventBytesRead, h), Bytes: binary.BigEndian.Uint32(payload[:4])}, nil
}

func decodePing(h *Header, payload []byte) (*PingEvent, error) {
	if len(payload) < 2 {
		return nil, protoerr.NewChunkError("decode.ping", errShortPayload("ping subtype", 2, len(payload)))
	}
	ev := &PingEvent{eventBase: newEventBase(EventPing, h), Subtype: PingSubtype(binary.BigEndian.Uint16(payload[:2]))}
	rest := payload[2:]
	switch ev.Subtype {
	case PingClientBuffer:
		if len(rest) < 8 {
			return nil, protoerr.NewChunkError("decode.ping.client_buffer", errShortPayload("client buffer", 8, len(rest)))
		}
		ev.TargetStreamID = binary.BigEndian.Uint32(rest[:4])
		ev.BufferMS = binary.BigEndian.Uint32(rest[4:8])
	case PingSWFVerify:
		// no args
	case PingSWFVerifyReply:
		if len(rest) >= 42 {
			ev.Data = append([]byte(nil), rest[:42]...)
		}
	default:
		if len(rest) >= 4 {
			ev.Arg = binary.BigEndian.Uint32(rest[:4])
		}
	}
	return ev, nil
}

func decodeServerBandwidth(h *Header, payload []byte) (*ServerBandwidthEvent, error) {
	if len(payload) < 4 {
		return nil, protoerr.NewChunkError("decode.server_bw", errShortPayload("server bandwidth", 4, len(payload)))
	}
	return &ServerBandwidthEvent{eventBase: newEventBase(EventServerBandwidth, h), Bandwidth: binary.BigEndian.Uint32(payload[:4])}, nil
}

func decodeClientBandwidth(h *Header, payload []byte) (*ClientBandwidthEvent, error) {
	if len(payload) < 5 {
		return nil, protoerr.NewChunkError("decode.client_bw", errShortPayload("client bandwidth", 5, len(payload)))
	}
	return &ClientBandwidthEvent{
		eventBase: newEventBase(EventClientBandwidth, h),
		Bandwidth: binary.BigEndian.Uint32(payload[:4]),
		LimitType: payload[4],
	}, nil
}

func errShortPayload(what string, want, have int) error {
	return fmt.Errorf("%s: need %d bytes, have %d", what, want, have)
}
