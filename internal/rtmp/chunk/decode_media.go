package chunk

// Media payload decoding (§4.5): AUDIO, VIDEO, AGGREGATE. These payloads
// stay opaque beyond the leading codec/frame-type bits; internal/rtmp/media
// owns interpreting codec-specific sequence headers.

func decodeAudio(h *Header, payload []byte) *AudioEvent {
	ev := &AudioEvent{eventBase: newEventBase(EventAudio, h), Payload: payload}
	if len(payload) == 0 {
		return ev
	}
	first := payload[0]
	ev.CodecID = first >> 4
	// AAC (codec id 10) and a handful of other codecs carry a second byte
	// that is 0 for a sequence header (codec config) and 1 for raw frames.
	if ev.CodecID == 10 && len(payload) >= 2 {
		ev.IsSequenceHeader = payload[1] == 0
	}
	return ev
}

func decodeVideo(h *Header, payload []byte) *VideoEvent {
	ev := &VideoEvent{eventBase: newEventBase(EventVideo, h), Payload: payload}
	if len(payload) == 0 {
		return ev
	}
	first := payload[0]
	ev.FrameType = first >> 4
	ev.CodecID = first & 0x0F
	return ev
}

func decodeAggregate(h *Header, payload []byte) *AggregateEvent {
	return &AggregateEvent{eventBase: newEventBase(EventAggregate, h), Payload: payload}
}
