package rpc

import (
	"testing"

	"github.com/flowcast/rtmp-ingest/internal/rtmp/chunk"
)

func TestParseCreateStreamCommand_Valid(t *testing.T) {
	ev := &chunk.InvokeEvent{Method: "createStream", TransactionID: 2.0}

	cmd, err := ParseCreateStreamCommand(ev)
	if err != nil {
		t.Fatalf("ParseCreateStreamCommand returned error: %v", err)
	}
	if cmd.TransactionID != 2.0 {
		t.Fatalf("unexpected transaction id: %+v", cmd)
	}
}

func TestParseCreateStreamCommand_WrongMethod(t *testing.T) {
	ev := &chunk.InvokeEvent{Method: "connect", TransactionID: 2.0}
	if _, err := ParseCreateStreamCommand(ev); err == nil {
		t.Fatalf("expected error for mismatched method")
	}
}
