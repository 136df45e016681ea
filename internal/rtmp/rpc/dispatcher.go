package rpc

// Command dispatcher (T040)
//
// The dispatcher is responsible for:
//   1. Determining the RTMP command name from an AMF0 command message (type 20)
//   2. Parsing the command into the appropriate strongly-typed struct using
//      the existing Parse* helpers (connect, createStream, publish, play)
//   3. Invoking the registered handler for that command name.
//   4. Logging and safely ignoring unknown commands (optionally a future
//      enhancement could emit an "_error" response – out of scope for now).
//
// Design notes / assumptions:
//   * We only support AMF0 command messages (TypeID=20) per current feature set.
//   * For publish / play parsing we need the application (app) name negotiated
//     during the connect command. Instead of tightly coupling to a Session
//     type (not yet implemented in earlier tasks) we accept an appProvider
//     callback so tests or higher layers can supply the current application
//     name lazily.
//   * deleteStream is routed (if a handler is provided) but not parsed into a
//     dedicated struct yet – it receives the raw decoded AMF value slice so
//     the handler can perform ad‑hoc extraction.
//
// Error handling:
//   * Parsing errors or handler errors are returned to the caller – the caller
//     decides whether to terminate the connection or send an _error response.
//   * Unknown commands return nil (non-fatal) after logging a warning.

import (
	"fmt"
	"log/slog"

	"github.com/flowcast/rtmp-ingest/internal/errors"
	"github.com/flowcast/rtmp-ingest/internal/logger"
	"github.com/flowcast/rtmp-ingest/internal/rtmp/chunk"
)

// Handler function types – kept narrow to the parsed command structure. Each
// handler also receives the originating InvokeEvent so it can reference
// fields (timestamp, channel id) the dispatcher itself does not interpret.
type (
	ConnectHandler      func(*ConnectCommand, *chunk.InvokeEvent) error
	CreateStreamHandler func(*CreateStreamCommand, *chunk.InvokeEvent) error
	PublishHandler      func(*PublishCommand, *chunk.InvokeEvent) error
	PlayHandler         func(*PlayCommand, *chunk.InvokeEvent) error
	DeleteStreamHandler func(args []interface{}, ev *chunk.InvokeEvent) error
)

// Dispatcher routes AMF0 command messages to registered handlers.
type Dispatcher struct {
	appProvider func() string

	OnConnect      ConnectHandler
	OnCreateStream CreateStreamHandler
	OnPublish      PublishHandler
	OnPlay         PlayHandler
	OnDeleteStream DeleteStreamHandler

	log *slog.Logger
}

// NewDispatcher creates a dispatcher. appProvider may be nil; in that case
// publish/play parsing that relies on app will return a protocol error until
// a connect handler sets application state and a new dispatcher is built (or
// caller supplies a non-nil provider referencing mutable state).
func NewDispatcher(appProvider func() string) *Dispatcher {
	return &Dispatcher{appProvider: appProvider, log: logger.Logger().With("component", "dispatcher")}
}

// Dispatch examines an already-decoded Invoke event and routes it to the
// appropriate handler. It returns an error for parse/handler failures.
// Unknown commands are logged at warn level and produce no error.
func (d *Dispatcher) Dispatch(ev *chunk.InvokeEvent) error {
	if ev == nil {
		return errors.NewProtocolError("dispatch", fmt.Errorf("nil invoke event"))
	}
	name := ev.Method

	switch name {
	case "connect":
		if d.OnConnect == nil {
			return d.noHandlerErr(name)
		}
		cc, err := ParseConnectCommand(ev)
		if err != nil {
			return err
		}
		return d.OnConnect(cc, ev)
	case "createStream":
		if d.OnCreateStream == nil {
			return d.noHandlerErr(name)
		}
		cs, err := ParseCreateStreamCommand(ev)
		if err != nil {
			return err
		}
		return d.OnCreateStream(cs, ev)
	case "publish":
		if d.OnPublish == nil {
			return d.noHandlerErr(name)
		}
		app := d.currentApp()
		pc, err := ParsePublishCommand(app, ev)
		if err != nil {
			return err
		}
		return d.OnPublish(pc, ev)
	case "play":
		if d.OnPlay == nil {
			return d.noHandlerErr(name)
		}
		app := d.currentApp()
		pl, err := ParsePlayCommand(ev, app)
		if err != nil {
			return err
		}
		return d.OnPlay(pl, ev)
	case "deleteStream":
		if d.OnDeleteStream == nil {
			return d.noHandlerErr(name)
		}
		return d.OnDeleteStream(ev.Args, ev)
	default:
		d.log.Warn("unknown command", "name", name, "args", len(ev.Args))
		return nil
	}
}

func (d *Dispatcher) currentApp() string {
	if d.appProvider == nil {
		return ""
	}
	return d.appProvider()
}

func (d *Dispatcher) noHandlerErr(name string) error {
	return errors.NewProtocolError("dispatch", fmt.Errorf("no handler registered for command %q", name))
}
