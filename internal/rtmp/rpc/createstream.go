package rpc

import (
	"fmt"

	"github.com/flowcast/rtmp-ingest/internal/errors"
	"github.com/flowcast/rtmp-ingest/internal/rtmp/chunk"
)

// CreateStreamCommand represents a parsed "createStream" command.
// Spec form: ["createStream", transactionID, null]
type CreateStreamCommand struct {
	TransactionID float64
}

// ParseCreateStreamCommand adapts an already-decoded "createStream" invocation.
func ParseCreateStreamCommand(ev *chunk.InvokeEvent) (*CreateStreamCommand, error) {
	if ev == nil {
		return nil, errors.NewProtocolError("createstream.parse", fmt.Errorf("nil invoke event"))
	}
	if ev.Method != "createStream" {
		return nil, errors.NewProtocolError("createstream.parse", fmt.Errorf("unexpected method %q", ev.Method))
	}
	return &CreateStreamCommand{TransactionID: ev.TransactionID}, nil
}
