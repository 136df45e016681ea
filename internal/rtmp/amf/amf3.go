package amf

// AMF3 decoding. RTMP connections negotiate AMF0 by default but are allowed
// to switch to AMF3 mid-message (see input.go) or to carry AMF3 end to end
// for Flex-aware message types. This file implements enough of the AMF3 wire
// format to decode the values RTMP ingest actually sees: primitives, dense/
// associative arrays, and dynamic objects. Externalizable objects (custom
// client serialization) are not parsed: they decode to a map holding only the
// class name under the "__externalizable__" key.
import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	amferrors "github.com/flowcast/rtmp-ingest/internal/errors"
)

// AMF3 type markers.
const (
	amf3Undefined  = 0x00
	amf3Null       = 0x01
	amf3False      = 0x02
	amf3True       = 0x03
	amf3Integer    = 0x04
	amf3Double     = 0x05
	amf3String     = 0x06
	amf3XMLDoc     = 0x07
	amf3Date       = 0x08
	amf3Array      = 0x09
	amf3Object     = 0x0A
	amf3XML        = 0x0B
	amf3ByteArray  = 0x0C
	objectMarkerV3 = 0x11 // AMF0 "AVM+ object" marker signaling an embedded AMF3 value
)

// refTables holds the three AMF3 reference tables (strings, complex objects,
// and traits). A single record is shared across every AMF3 Input created for
// one message body, matching the "shared reference-storage record" rule.
type refTables struct {
	strings []string
	objects []interface{}
	traits  []*traits
}

type traits struct {
	className   string
	dynamic     bool
	externalize bool
	members     []string
}

// Date represents an AMF3 Date value: milliseconds since the Unix epoch.
// Kept as a distinct type (rather than bare float64) so callers can tell a
// Date apart from an AMF3 Number.
type Date struct {
	Millis float64
}

// ByteArray represents an AMF3 ByteArray value.
type ByteArray []byte

func readU29(r io.Reader) (uint32, error) {
	var v uint32
	for i := 0; i < 4; i++ {
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		if i == 3 {
			// 4th byte contributes all 8 bits and terminates unconditionally.
			v = v<<8 | uint32(b[0])
			return v, nil
		}
		v = v<<7 | uint32(b[0]&0x7F)
		if b[0]&0x80 == 0 {
			return v, nil
		}
	}
	return v, nil
}

// decodeAMF3Integer reads a U29 and sign-extends it as AMF3's 29-bit signed
// integer (two's complement over 29 bits).
func decodeAMF3Integer(r io.Reader) (int32, error) {
	u, err := readU29(r)
	if err != nil {
		return 0, err
	}
	if u&0x10000000 != 0 { // bit 28 set => negative
		return int32(u) - 0x20000000, nil
	}
	return int32(u), nil
}

// decodeU29Ref reads a U29 header and splits it into (isReference, value).
// value is either a reference table index (isReference true) or an inline
// length/count (isReference false).
func decodeU29Ref(r io.Reader) (isRef bool, value uint32, err error) {
	h, err := readU29(r)
	if err != nil {
		return false, 0, err
	}
	if h&1 == 0 {
		return true, h >> 1, nil
	}
	return false, h >> 1, nil
}

func decodeAMF3UTF8VR(r io.Reader, refs *refTables) (string, error) {
	isRef, v, err := decodeU29Ref(r)
	if err != nil {
		return "", err
	}
	if isRef {
		if int(v) >= len(refs.strings) {
			return "", fmt.Errorf("string reference %d out of range (have %d)", v, len(refs.strings))
		}
		return refs.strings[v], nil
	}
	if v == 0 {
		return "", nil // empty string is never added to the reference table
	}
	buf := make([]byte, v)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	s := string(buf)
	refs.strings = append(refs.strings, s)
	return s, nil
}

func decodeAMF3Array(r io.Reader, refs *refTables) (interface{}, error) {
	isRef, v, err := decodeU29Ref(r)
	if err != nil {
		return nil, err
	}
	if isRef {
		if int(v) >= len(refs.objects) {
			return nil, fmt.Errorf("object reference %d out of range (have %d)", v, len(refs.objects))
		}
		return refs.objects[v], nil
	}
	denseCount := int(v)

	assoc := make(map[string]interface{})
	for {
		key, err := decodeAMF3UTF8VR(r, refs)
		if err != nil {
			return nil, err
		}
		if key == "" {
			break
		}
		val, err := decodeAMF3Value(r, refs)
		if err != nil {
			return nil, err
		}
		assoc[key] = val
	}

	dense := make([]interface{}, denseCount)
	for i := 0; i < denseCount; i++ {
		val, err := decodeAMF3Value(r, refs)
		if err != nil {
			return nil, err
		}
		dense[i] = val
	}

	if len(assoc) == 0 {
		refs.objects = append(refs.objects, dense)
		return dense, nil
	}
	// Mixed dense+associative array: fold the dense portion in as numeric
	// string keys alongside the associative keys, matching how JS engines
	// commonly flatten this shape into JSON for cross-language consumers.
	for i, val := range dense {
		assoc[fmt.Sprintf("%d", i)] = val
	}
	refs.objects = append(refs.objects, assoc)
	return assoc, nil
}

func decodeAMF3Traits(r io.Reader, refs *refTables, header uint32) (*traits, error) {
	if header&2 == 0 { // bit 1 clear => traits reference
		idx := header >> 2
		if int(idx) >= len(refs.traits) {
			return nil, fmt.Errorf("traits reference %d out of range (have %d)", idx, len(refs.traits))
		}
		return refs.traits[idx], nil
	}
	t := &traits{
		externalize: header&4 != 0,
		dynamic:     header&8 != 0,
	}
	memberCount := int(header >> 4)
	className, err := decodeAMF3UTF8VR(r, refs)
	if err != nil {
		return nil, err
	}
	t.className = className
	for i := 0; i < memberCount; i++ {
		name, err := decodeAMF3UTF8VR(r, refs)
		if err != nil {
			return nil, err
		}
		t.members = append(t.members, name)
	}
	refs.traits = append(refs.traits, t)
	return t, nil
}

func decodeAMF3Object(r io.Reader, refs *refTables) (interface{}, error) {
	isRef, raw, err := decodeU29RefRaw(r)
	if err != nil {
		return nil, err
	}
	if isRef {
		if int(raw) >= len(refs.objects) {
			return nil, fmt.Errorf("object reference %d out of range (have %d)", raw, len(refs.objects))
		}
		return refs.objects[raw], nil
	}

	tr, err := decodeAMF3Traits(r, refs, raw)
	if err != nil {
		return nil, err
	}

	out := make(map[string]interface{})
	refs.objects = append(refs.objects, out)

	if tr.externalize {
		// Custom client serialization is not supported; surface the trait
		// name so callers can at least see what type was dropped.
		out["__externalizable__"] = tr.className
		return out, nil
	}

	for _, name := range tr.members {
		val, err := decodeAMF3Value(r, refs)
		if err != nil {
			return nil, err
		}
		out[name] = val
	}
	if tr.dynamic {
		for {
			key, err := decodeAMF3UTF8VR(r, refs)
			if err != nil {
				return nil, err
			}
			if key == "" {
				break
			}
			val, err := decodeAMF3Value(r, refs)
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
	}
	return out, nil
}

// decodeU29RefRaw is like decodeU29Ref but also returns the reference index
// when isRef, or the raw (un-shifted-by-1) header bits otherwise, since
// object/traits headers pack more than one flag into the inline case.
func decodeU29RefRaw(r io.Reader) (isRef bool, raw uint32, err error) {
	h, err := readU29(r)
	if err != nil {
		return false, 0, err
	}
	if h&1 == 0 {
		return true, h >> 1, nil
	}
	return false, h, nil
}

func decodeAMF3Date(r io.Reader, refs *refTables) (interface{}, error) {
	isRef, v, err := decodeU29Ref(r)
	if err != nil {
		return nil, err
	}
	if isRef {
		if int(v) >= len(refs.objects) {
			return nil, fmt.Errorf("object reference %d out of range (have %d)", v, len(refs.objects))
		}
		return refs.objects[v], nil
	}
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, err
	}
	d := Date{Millis: math.Float64frombits(binary.BigEndian.Uint64(b[:]))}
	refs.objects = append(refs.objects, d)
	return d, nil
}

func decodeAMF3ByteArray(r io.Reader, refs *refTables) (interface{}, error) {
	isRef, v, err := decodeU29Ref(r)
	if err != nil {
		return nil, err
	}
	if isRef {
		if int(v) >= len(refs.objects) {
			return nil, fmt.Errorf("object reference %d out of range (have %d)", v, len(refs.objects))
		}
		return refs.objects[v], nil
	}
	buf := make([]byte, v)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	ba := ByteArray(buf)
	refs.objects = append(refs.objects, ba)
	return ba, nil
}

func decodeAMF3XML(r io.Reader, refs *refTables) (interface{}, error) {
	isRef, v, err := decodeU29Ref(r)
	if err != nil {
		return nil, err
	}
	if isRef {
		if int(v) >= len(refs.objects) {
			return nil, fmt.Errorf("object reference %d out of range (have %d)", v, len(refs.objects))
		}
		return refs.objects[v], nil
	}
	buf := make([]byte, v)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	s := string(buf)
	refs.objects = append(refs.objects, s)
	return s, nil
}

// decodeAMF3Value reads one AMF3 value (marker + payload) from r.
func decodeAMF3Value(r io.Reader, refs *refTables) (interface{}, error) {
	var m [1]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, err
	}
	switch m[0] {
	case amf3Undefined, amf3Null:
		return nil, nil
	case amf3False:
		return false, nil
	case amf3True:
		return true, nil
	case amf3Integer:
		i, err := decodeAMF3Integer(r)
		return float64(i), err
	case amf3Double:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
	case amf3String:
		return decodeAMF3UTF8VR(r, refs)
	case amf3XMLDoc:
		return decodeAMF3XML(r, refs)
	case amf3Date:
		return decodeAMF3Date(r, refs)
	case amf3Array:
		return decodeAMF3Array(r, refs)
	case amf3Object:
		return decodeAMF3Object(r, refs)
	case amf3XML:
		return decodeAMF3XML(r, refs)
	case amf3ByteArray:
		return decodeAMF3ByteArray(r, refs)
	default:
		return nil, amferrors.NewAMFError("decode.amf3.value", fmt.Errorf("unsupported AMF3 marker 0x%02x", m[0]))
	}
}

// DecodeAMF3Value decodes one standalone AMF3 value from r with a fresh,
// unshared reference-storage record. Exposed for callers (tests, FLEX
// message decoding) that need a single AMF3 value outside of an Input.
func DecodeAMF3Value(r io.Reader) (interface{}, error) {
	return decodeAMF3Value(r, &refTables{})
}
