package amf

import (
	"encoding/binary"
	"fmt"
	"io"

	amferrors "github.com/flowcast/rtmp-ingest/internal/errors"
)

// markerEcmaArray is the AMF0 type marker for ECMA Array (0x08): a Object
// with an (advisory, not authoritative) element-count prefix. RTMP metadata
// messages (onMetaData) are the most common carrier of this type.
const markerEcmaArray = 0x08

// EncodeEcmaArray encodes m as an AMF0 ECMA Array.
// Wire format: 0x08 | 4-byte big-endian approximate-count | Object-style
// key/value pairs | object-end marker (0x00 0x00 0x09), identical to
// EncodeObject's body.
func EncodeEcmaArray(w io.Writer, m map[string]interface{}) error {
	var hdr [1 + 4]byte
	hdr[0] = markerEcmaArray
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(m)))
	if _, err := w.Write(hdr[:]); err != nil {
		return amferrors.NewAMFError("encode.ecma_array.header.write", err)
	}
	return encodeObjectBody(w, m)
}

// DecodeEcmaArray decodes an AMF0 ECMA Array into a map[string]interface{}.
// The leading count is advisory per the AMF0 spec; we trust the object-end
// marker to terminate decoding rather than the count.
func DecodeEcmaArray(r io.Reader) (map[string]interface{}, error) {
	var marker [1]byte
	if _, err := io.ReadFull(r, marker[:]); err != nil {
		return nil, amferrors.NewAMFError("decode.ecma_array.marker.read", err)
	}
	if marker[0] != markerEcmaArray {
		return nil, amferrors.NewAMFError("decode.ecma_array.marker", fmt.Errorf("expected 0x%02x got 0x%02x", markerEcmaArray, marker[0]))
	}
	var count [4]byte
	if _, err := io.ReadFull(r, count[:]); err != nil {
		return nil, amferrors.NewAMFError("decode.ecma_array.count.read", err)
	}
	return decodeObjectBody(r)
}
