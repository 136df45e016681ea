package rpc

import (
	"fmt"

	"github.com/flowcast/rtmp-ingest/internal/errors"
	"github.com/flowcast/rtmp-ingest/internal/rtmp/chunk"
)

// PublishCommand represents a parsed "publish" command.
// Spec form: ["publish", 0, null, publishingName, publishingType]
// We also augment it with the full stream key constructed as app + "/" + publishingName.
type PublishCommand struct {
	PublishingName string
	PublishingType string // one of: live|record|append
	StreamKey      string // app/publishingName
}

// ParsePublishCommand adapts an already-decoded "publish" invocation. The
// caller must supply the application name (app) that was negotiated during
// the connect command so the full stream key can be constructed.
// The command carries a null command-object placeholder followed by
// publishingName and publishingType; since null is not a map it lands in
// Args[0], leaving Args[1]=publishingName, Args[2]=publishingType.
func ParsePublishCommand(app string, ev *chunk.InvokeEvent) (*PublishCommand, error) {
	if ev == nil {
		return nil, errors.NewProtocolError("publish.parse", fmt.Errorf("nil invoke event"))
	}
	if ev.Method != "publish" {
		return nil, errors.NewProtocolError("publish.parse", fmt.Errorf("unexpected method %q", ev.Method))
	}
	if app == "" {
		return nil, errors.NewProtocolError("publish.parse", fmt.Errorf("app required to build stream key"))
	}
	if len(ev.Args) < 3 {
		return nil, errors.NewProtocolError("publish.parse", fmt.Errorf("expected >=3 positional args, got %d", len(ev.Args)))
	}

	publishingName, ok := ev.Args[1].(string)
	if !ok || publishingName == "" {
		return nil, errors.NewProtocolError("publish.parse", fmt.Errorf("publishingName required"))
	}

	publishingType, ok := ev.Args[2].(string)
	if !ok || publishingType == "" {
		return nil, errors.NewProtocolError("publish.parse", fmt.Errorf("publishingType required"))
	}
	switch publishingType {
	case "live", "record", "append":
		// valid
	default:
		return nil, errors.NewProtocolError("publish.parse", fmt.Errorf("unsupported publishingType %q", publishingType))
	}

	return &PublishCommand{
		PublishingName: publishingName,
		PublishingType: publishingType,
		StreamKey:      app + "/" + publishingName,
	}, nil
}
