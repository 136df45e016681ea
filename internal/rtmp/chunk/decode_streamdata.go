package chunk

// Stream-data decoding (§4.5): used by NOTIFY when the owning chunk's
// stream id is non-zero, and by FLEX_STREAM_SEND.

import (
	protoerr "github.com/flowcast/rtmp-ingest/internal/errors"
	"github.com/flowcast/rtmp-ingest/internal/rtmp/amf"
)

const setDataFrameAction = "@setDataFrame"

// decodeStreamData reads the leading action string from in. For
// "@setDataFrame" it reads the real metadata method name and a params value,
// then re-encodes (method, params) as AMF0 so downstream consumers always
// see a canonical AMF0 buffer regardless of how the client sent it.
func decodeStreamData(in *amf.Input, raw []byte) (action string, params interface{}, reencoded []byte, err error) {
	action, err = in.ReadString()
	if err != nil {
		return "", nil, nil, protoerr.NewAMFError("streamdata.action", err)
	}
	if action != setDataFrameAction {
		return action, nil, nil, nil
	}

	method, err := in.ReadString()
	if err != nil {
		return action, nil, nil, protoerr.NewAMFError("streamdata.method", err)
	}
	paramsVal, err := in.ReadValue()
	if err != nil {
		return action, nil, nil, protoerr.NewAMFError("streamdata.params", err)
	}

	buf, err := amf.EncodeAll(method, paramsVal)
	if err != nil {
		return action, paramsVal, nil, protoerr.NewAMFError("streamdata.reencode", err)
	}
	return method, paramsVal, buf, nil
}
