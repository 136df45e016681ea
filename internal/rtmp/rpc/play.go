package rpc

import (
	"fmt"

	"github.com/flowcast/rtmp-ingest/internal/errors"
	"github.com/flowcast/rtmp-ingest/internal/rtmp/chunk"
)

// PlayCommand represents a parsed "play" command.
// Spec form (subset we care about): ["play", 0, null, streamName, start, duration, reset]
// Only streamName is strictly required for our current feature scope.
type PlayCommand struct {
	App        string        // application name (passed in separately, from session)
	StreamName string        // raw stream name component
	StreamKey  string        // full key: app/streamName
	Start      int64         // -2=live, -1=recorded, >=0 offset (seconds)
	Duration   int64         // duration if provided (seconds), -1 if not provided
	Reset      bool          // reset flag if provided
	RawValues  []interface{} // retained for debugging / future use
}

// ParsePlayCommand adapts an already-decoded "play" invocation. The caller
// must supply the current application name (from the connect command) so we
// can construct the full stream key.
//
// The null command-object placeholder is not a map, so it lands in
// Args[0]; Args[1]=streamName (required), Args[2]=start, Args[3]=duration,
// Args[4]=reset (all optional).
func ParsePlayCommand(ev *chunk.InvokeEvent, app string) (*PlayCommand, error) {
	if ev == nil {
		return nil, errors.NewProtocolError("play.parse", fmt.Errorf("nil invoke event"))
	}
	if ev.Method != "play" {
		return nil, errors.NewProtocolError("play.parse", fmt.Errorf("unexpected method %q", ev.Method))
	}
	if len(ev.Args) < 2 {
		return nil, errors.NewProtocolError("play.parse", fmt.Errorf("expected >=2 positional args, got %d", len(ev.Args)))
	}

	streamName, ok := ev.Args[1].(string)
	if !ok || streamName == "" {
		return nil, errors.NewProtocolError("play.parse", fmt.Errorf("missing stream name"))
	}

	pc := &PlayCommand{App: app, StreamName: streamName, StreamKey: fmt.Sprintf("%s/%s", app, streamName), RawValues: ev.Args}

	// Optional arguments
	if len(ev.Args) >= 3 {
		if v, ok := ev.Args[2].(float64); ok { // start
			pc.Start = int64(v)
		} else {
			pc.Start = -2
		}
	} else {
		pc.Start = -2
	}
	if len(ev.Args) >= 4 {
		if v, ok := ev.Args[3].(float64); ok { // duration
			pc.Duration = int64(v)
		} else {
			pc.Duration = -1
		}
	} else {
		pc.Duration = -1
	}
	if len(ev.Args) >= 5 {
		if v, ok := ev.Args[4].(bool); ok {
			pc.Reset = v
		}
	}

	return pc, nil
}
