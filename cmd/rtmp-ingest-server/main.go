// Command rtmp-ingest-server is a thin binary demonstrating the decoder and
// the WebSocket endpoint registry end to end: a TCP listener feeds accepted
// connections through the chunk decoder to a logging event sink, while an
// HTTP mux resolves /ws/... requests through the same registry instance.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowcast/rtmp-ingest/internal/logger"
	"github.com/flowcast/rtmp-ingest/internal/rtmp/chunk"
	"github.com/flowcast/rtmp-ingest/internal/rtmp/conn"
	"github.com/flowcast/rtmp-ingest/internal/ws"
	"github.com/flowcast/rtmp-ingest/internal/ws/registry"
	"github.com/flowcast/rtmp-ingest/internal/ws/routeconfig"
)

func main() {
	listenAddr := flag.String("listen", ":1935", "RTMP TCP listen address")
	httpAddr := flag.String("http", ":8080", "HTTP listen address for the WebSocket registry")
	routeFile := flag.String("routes", "", "Path to a JSON route table for the WebSocket registry (optional)")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	logFile := flag.String("log-file", "", "If set, rotate logs to this file via lumberjack instead of stdout")
	enforceNoAddAfterHandshake := flag.Bool("enforce-no-add-after-handshake", false, "Reject AddEndpoint calls once the first request has been routed")
	flag.Parse()

	logger.Init()
	if err := logger.SetLevel(*logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q, using default\n", *logLevel)
	}
	if *logFile != "" {
		logger.UseRotatingFile(logger.RotateConfig{Filename: *logFile, MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28, Compress: true})
	}
	log := logger.Logger().With("component", "cli")

	reg := registry.New(registry.Config{EnforceNoAddAfterHandshake: *enforceNoAddAfterHandshake})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *routeFile != "" {
		stopWatch := make(chan struct{})
		go func() {
			<-ctx.Done()
			close(stopWatch)
		}()
		go func() {
			if err := routeconfig.Watch(*routeFile, reg, stopWatch); err != nil {
				log.Error("route config watcher exited", "error", err)
			}
		}()
	}

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		log.Error("failed to listen", "addr", *listenAddr, "error", err)
		os.Exit(1)
	}
	log.Info("rtmp listener started", "addr", ln.Addr().String())
	go acceptLoop(ctx, ln, log)

	mux := http.NewServeMux()
	mux.Handle("/ws/", ws.NewHandler(reg))
	httpServer := &http.Server{Addr: *httpAddr, Handler: mux}
	go func() {
		log.Info("http listener started", "addr", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	_ = ln.Close()
	_ = httpServer.Close()
}

func acceptLoop(ctx context.Context, ln net.Listener, log *slog.Logger) {
	for {
		c, err := conn.Accept(ln)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			log.Error("accept failed", "error", err)
			return
		}
		go serveConnection(c, log)
	}
}

func serveConnection(c *conn.Connection, log *slog.Logger) {
	connLog := log.With("conn_id", c.ID(), "peer_addr", c.NetConn().RemoteAddr().String())
	c.SetEventHandler(func(ev chunk.Event) {
		connLog.Debug("event", "type", ev.Type(), "channel_id", ev.ChannelID(), "stream_id", ev.StreamID(), "timestamp", ev.Timestamp())
	})
	connLog.Info("connection accepted")
	c.Start()
}
