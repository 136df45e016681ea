package amf

// Input implements the polymorphic AMF0/AMF3 reader described by the
// protocol: a single value stream that starts in one encoding mode but may
// switch to AMF3 mid-message whenever the AMF3 "object" marker (0x11) shows
// up where an AMF0 value was expected. All Inputs derived from the same
// message body share one reference-storage record (refTables) so AMF3
// string/object/trait references stay valid across a mode switch.
import (
	"bytes"
	"io"

	amferrors "github.com/flowcast/rtmp-ingest/internal/errors"
)

// Mode identifies which encoding an Input is currently decoding in.
type Mode int

const (
	ModeAMF0 Mode = iota
	ModeAMF3
)

// Input is a stateful decoder bound to one message body. Not safe for
// concurrent use; a message is decoded by a single goroutine.
type Input struct {
	r    *bytes.Reader
	mode Mode
	refs *refTables
}

// NewInput creates an AMF0-mode Input over data with a fresh reference
// record.
func NewInput(data []byte) *Input {
	return &Input{r: bytes.NewReader(data), mode: ModeAMF0, refs: &refTables{}}
}

// NewAMF3Input creates an AMF3-mode Input, for message types that are
// inherently AMF3 end to end (e.g. FLEX_MESSAGE).
func NewAMF3Input(data []byte) *Input {
	return &Input{r: bytes.NewReader(data), mode: ModeAMF3, refs: &refTables{}}
}

// deriveSwitched returns a new AMF3-mode Input over the same remaining bytes
// and sharing this Input's reference record, per the "new AMF3 Input sharing
// a reference-storage record" rule.
func (in *Input) deriveSwitched() *Input {
	return &Input{r: in.r, mode: ModeAMF3, refs: in.refs}
}

// Mode reports the Input's current encoding.
func (in *Input) Mode() Mode { return in.mode }

// Remaining returns the number of unread bytes in the body.
func (in *Input) Remaining() int { return in.r.Len() }

// ReadValue decodes the next value. In AMF0 mode, if the next byte is the
// AMF3 object marker (0x11), the value is decoded as AMF3 instead (sharing
// this Input's reference record) and control returns to AMF0 mode for the
// Input's *next* call to ReadValue, matching the per-value "detect and
// switch" rule used by shared-object events and Flex message arguments.
func (in *Input) ReadValue() (interface{}, error) {
	if in.mode == ModeAMF3 {
		v, err := decodeAMF3Value(in.r, in.refs)
		if err != nil {
			return nil, amferrors.NewAMFError("decode.amf3.value", err)
		}
		return v, nil
	}

	marker, err := in.r.ReadByte()
	if err != nil {
		return nil, amferrors.NewAMFError("decode.value.marker.read", err)
	}
	if marker == objectMarkerV3 {
		v, err := in.deriveSwitched().ReadValueForceAMF3()
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	v, err := decodeValueWithMarker(marker, in.r)
	if err != nil {
		return nil, amferrors.NewAMFError("decode.value.dispatch", err)
	}
	return v, nil
}

// ReadValueForceAMF3 decodes the next value as AMF3 regardless of the
// Input's current mode, without requiring the 0x11 marker prefix. Used when
// a message type is declared AMF3 for a single value (§4.2: "the decoder may
// also be asked to enforce AMF3 for a single value").
func (in *Input) ReadValueForceAMF3() (interface{}, error) {
	v, err := decodeAMF3Value(in.r, in.refs)
	if err != nil {
		return nil, amferrors.NewAMFError("decode.amf3.forced", err)
	}
	return v, nil
}

// ReadString reads the next value and requires it to be an AMF0 string
// (AMF3 strings are not expected at the positions that call this: action
// names, shared-object names, and event keys are always length-prefixed
// AMF0 strings on the wire even inside otherwise-AMF3 bodies).
func (in *Input) ReadString() (string, error) {
	marker, err := in.r.ReadByte()
	if err != nil {
		return "", amferrors.NewAMFError("decode.input.string.marker.read", err)
	}
	return DecodeString(io.MultiReader(bytes.NewReader([]byte{marker}), in.r))
}

// ReadNumber reads the next value and requires it to be an AMF0 number.
func (in *Input) ReadNumber() (float64, error) {
	marker, err := in.r.ReadByte()
	if err != nil {
		return 0, amferrors.NewAMFError("decode.input.number.marker.read", err)
	}
	return DecodeNumber(io.MultiReader(bytes.NewReader([]byte{marker}), in.r))
}

// TryReadNumber reads the next value only if its marker is the AMF0 number
// marker, leaving the reader positioned at the start of that value
// otherwise. Used where a field is optionally present (e.g. a transaction id
// that may be omitted), so a caller can tell "absent" apart from "malformed"
// without losing its place in the stream.
func (in *Input) TryReadNumber() (value float64, ok bool, err error) {
	marker, err := in.r.ReadByte()
	if err != nil {
		return 0, false, amferrors.NewAMFError("decode.input.number.marker.read", err)
	}
	if marker != markerNumber {
		if uerr := in.r.UnreadByte(); uerr != nil {
			return 0, false, amferrors.NewAMFError("decode.input.number.unread", uerr)
		}
		return 0, false, nil
	}
	v, err := DecodeNumber(io.MultiReader(bytes.NewReader([]byte{marker}), in.r))
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}
