package logger

import (
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotateConfig configures the rotating file sink used by UseRotatingFile.
type RotateConfig struct {
	Filename   string // required
	MaxSizeMB  int    // megabytes before rotation; lumberjack default 100 if 0
	MaxBackups int    // old files to keep
	MaxAgeDays int    // days to keep old files
	Compress   bool   // gzip rotated files
}

// UseRotatingFile swaps the global logger's output to a lumberjack-backed
// rotating file, keeping the current level. Intended for long-running
// server processes (cmd/rtmp-ingest-server); tests should keep using
// UseWriter.
func UseRotatingFile(cfg RotateConfig) {
	Init()
	sink := &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	global = slog.New(slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: atomicLevel}))
}
