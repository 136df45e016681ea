package chunk

// Event model (C5 output). Every reassembled message decodes to exactly one
// concrete Event. Message types that carry AMF payloads (INVOKE, NOTIFY,
// FLEX_MESSAGE, shared objects) lean on the internal/rtmp/amf package; the
// rest are structured constructors over the raw payload bytes.

// EventType identifies which concrete Event a message decoded to.
type EventType uint8

const (
	EventChunkSize EventType = iota
	EventAbort
	EventBytesRead
	EventPing
	EventServerBandwidth
	EventClientBandwidth
	EventAudio
	EventVideo
	EventFlexStreamSend
	EventSharedObject
	EventNotify
	EventInvoke
	EventFlexMessage
	EventAggregate
	EventUnknown
)

func (t EventType) String() string {
	switch t {
	case EventChunkSize:
		return "ChunkSize"
	case EventAbort:
		return "Abort"
	case EventBytesRead:
		return "BytesRead"
	case EventPing:
		return "Ping"
	case EventServerBandwidth:
		return "ServerBandwidth"
	case EventClientBandwidth:
		return "ClientBandwidth"
	case EventAudio:
		return "Audio"
	case EventVideo:
		return "Video"
	case EventFlexStreamSend:
		return "FlexStreamSend"
	case EventSharedObject:
		return "SharedObject"
	case EventNotify:
		return "Notify"
	case EventInvoke:
		return "Invoke"
	case EventFlexMessage:
		return "FlexMessage"
	case EventAggregate:
		return "Aggregate"
	default:
		return "Unknown"
	}
}

// RTMP message type-id constants (§4.5).
const (
	dataTypeChunkSize       = 1
	dataTypeAbort           = 2
	dataTypeBytesRead       = 3
	dataTypePing            = 4
	dataTypeServerBandwidth = 5
	dataTypeClientBandwidth = 6
	dataTypeAudio           = 8
	dataTypeVideo           = 9
	dataTypeFlexStreamSend  = 15
	dataTypeFlexSharedObj   = 16
	dataTypeFlexMessage     = 17
	dataTypeNotify          = 18
	dataTypeSharedObject    = 19
	dataTypeInvoke          = 20
	dataTypeAggregate       = 22
)

// Event is satisfied by every concrete message event produced by C5.
type Event interface {
	Type() EventType
	Timestamp() uint32
	ChannelID() uint32
	StreamID() uint32
}

// eventBase carries the four fields every Event exposes identically.
type eventBase struct {
	typ       EventType
	timestamp uint32
	channelID uint32
	streamID  uint32
}

func (b eventBase) Type() EventType    { return b.typ }
func (b eventBase) Timestamp() uint32  { return b.timestamp }
func (b eventBase) ChannelID() uint32  { return b.channelID }
func (b eventBase) StreamID() uint32   { return b.streamID }

func newEventBase(typ EventType, h *Header) eventBase {
	return eventBase{typ: typ, timestamp: h.EffectiveTimestamp(), channelID: h.ChannelID, streamID: h.StreamID}
}

// ChunkSizeEvent carries a negotiated read-chunk-size update.
type ChunkSizeEvent struct {
	eventBase
	Size uint32
}

// AbortEvent names a channel whose in-flight packet must be discarded.
type AbortEvent struct {
	eventBase
	AbortChannelID uint32
}

// BytesReadEvent reports the peer's cumulative bytes-read acknowledgement.
type BytesReadEvent struct {
	eventBase
	Bytes uint32
}

// PingSubtype identifies the user-control event carried by a Ping message.
type PingSubtype uint16

const (
	PingStreamBegin      PingSubtype = 0
	PingStreamEOF        PingSubtype = 1
	PingStreamDry        PingSubtype = 2
	PingClientBuffer     PingSubtype = 3
	PingStreamRecorded   PingSubtype = 4
	PingPingRequest      PingSubtype = 6
	PingPongReply        PingSubtype = 7
	PingSWFVerify        PingSubtype = 26
	PingSWFVerifyReply   PingSubtype = 27
)

// PingEvent is the decoded form of a user-control (type 4) message.
type PingEvent struct {
	eventBase
	Subtype       PingSubtype
	TargetStreamID uint32 // CLIENT_BUFFER
	BufferMS      uint32 // CLIENT_BUFFER
	Arg           uint32 // default branch
	Data          []byte // PONG_SWF_VERIFY's 42 bytes, if present
}

// ServerBandwidthEvent is the decoded Window Acknowledgement Size (type 5).
type ServerBandwidthEvent struct {
	eventBase
	Bandwidth uint32
}

// ClientBandwidthEvent is the decoded Set Peer Bandwidth message (type 6).
type ClientBandwidthEvent struct {
	eventBase
	Bandwidth uint32
	LimitType uint8
}

// AudioEvent carries one opaque audio payload plus the codec bits parsed
// out of its leading byte.
type AudioEvent struct {
	eventBase
	CodecID          uint8
	IsSequenceHeader bool
	Payload          []byte
}

// VideoEvent carries one opaque video payload plus the codec/frame-type
// bits parsed out of its leading byte(s).
type VideoEvent struct {
	eventBase
	FrameType uint8
	CodecID   uint8
	Payload   []byte
}

// FlexStreamSendEvent is a type-15 message decoded as stream data.
type FlexStreamSendEvent struct {
	eventBase
	Action string
	Params interface{}
	Raw    []byte
}

// SOEventKind classifies one event inside a shared-object envelope.
type SOEventKind uint8

const (
	SOUse SOEventKind = iota + 1
	SORelease
	SORequestChange
	SOChange // CLIENT_UPDATE_DATA
	SOSuccess
	SOSendMessage // SERVER_SEND_MESSAGE / CLIENT_SEND_MESSAGE
	SOStatus      // CLIENT_STATUS
	SOClear
	SORemove
	SOUseSuccess
	SORequestRemove
)

// SOEvent is one decoded event inside a shared-object envelope.
type SOEvent struct {
	Kind        SOEventKind
	RawKind     uint8
	Code        string        // CLIENT_STATUS
	Level       string        // CLIENT_STATUS
	Updates     map[string]interface{} // CLIENT_UPDATE_DATA
	HandlerName string        // SOSendMessage
	Args        []interface{} // SOSendMessage
	Key         string        // generic fallback
	Value       interface{}   // generic fallback
	DecodeFault error         // set when this one event's body could not be decoded; envelope parsing continues regardless
}

// SharedObjectEvent is the decoded form of types 16 (FLEX_SHARED_OBJECT,
// with a 1-byte encoding selector) and 19 (SO, always AMF0).
type SharedObjectEvent struct {
	eventBase
	Name       string
	Version    uint32
	Persistent bool
	Events     []SOEvent
}

// NotifyEvent is a type-18 message. When the owning chunk's stream id is 0
// it behaves exactly like an Invoke (minus the reply semantics implied by a
// transaction id); otherwise it behaves like stream data (§4.5, §4.6).
type NotifyEvent struct {
	eventBase
	IsStreamData  bool
	Service       string
	Method        string
	TransactionID float64
	Params        map[string]interface{}
	Args          []interface{}
	Action        string // IsStreamData == true
	StreamParams  interface{}
	Raw           []byte
}

// InvokeEvent is the decoded form of a type-20 AMF0/AMF3 remote call.
type InvokeEvent struct {
	eventBase
	Service       string
	Method        string
	TransactionID float64
	Params        map[string]interface{}
	Args          []interface{}
}

// FlexMessageEvent is the decoded form of a type-17 message: one leading
// "flex" byte is skipped, then the body decodes exactly like an Invoke, with
// per-argument AMF0/AMF3 detection.
type FlexMessageEvent struct {
	eventBase
	Service       string
	Method        string
	TransactionID float64
	Params        map[string]interface{}
	Args          []interface{}
}

// AggregateEvent retains the raw back-to-back FLV tag container verbatim.
type AggregateEvent struct {
	eventBase
	Payload []byte
}

// UnknownEvent is produced for any data_type not named by §4.5's table. It
// is not fatal; the caller is expected to log and move on.
type UnknownEvent struct {
	eventBase
	DataType uint8
	Payload  []byte
}
