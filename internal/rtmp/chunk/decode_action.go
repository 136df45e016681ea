package chunk

// Action decoding shared by INVOKE, the "else" branch of NOTIFY, and
// FLEX_MESSAGE (§4.5 "Action decoding").

import (
	"strings"

	protoerr "github.com/flowcast/rtmp-ingest/internal/errors"
	"github.com/flowcast/rtmp-ingest/internal/rtmp/amf"
)

// actionCall is the generic shape produced by decodeAction, shared by
// Invoke/Notify/FlexMessage before being copied into their distinct event
// types.
type actionCall struct {
	Service       string
	Method        string
	TransactionID float64
	Params        map[string]interface{}
	Args          []interface{}
}

// decodeAction reads an action string, transaction id, optional connection
// params map, and trailing positional args from in.
func decodeAction(in *amf.Input) (actionCall, error) {
	action, err := in.ReadString()
	if err != nil {
		return actionCall{}, protoerr.NewAMFError("action.name", err)
	}

	txn, _, err := in.TryReadNumber()
	if err != nil {
		txn = 0 // "0 if absent" per §4.5
	}
	// A non-number marker leaves the reader positioned at the start of that
	// value, so it falls through to the value loop below as either Params or
	// the first Arg, rather than being consumed and discarded.

	service, method := splitAction(action)

	call := actionCall{Service: service, Method: method, TransactionID: txn}
	first := true
	for in.Remaining() > 0 {
		v, err := in.ReadValue()
		if err != nil {
			break // a malformed trailing value does not abort the whole action
		}
		if m, ok := v.(map[string]interface{}); ok && first {
			call.Params = m
		} else {
			call.Args = append(call.Args, v)
		}
		first = false
	}
	return call, nil
}

// splitAction splits a dotted action "x.y.z.method" into service "x.y.z"
// and method "method", stripping any leading '@' or '|' from either half.
func splitAction(action string) (service, method string) {
	idx := strings.LastIndex(action, ".")
	if idx < 0 {
		return "", strings.TrimLeft(action, "@|")
	}
	service = strings.TrimLeft(action[:idx], "@|")
	method = strings.TrimLeft(action[idx+1:], "@|")
	return service, method
}
