// Package logger wires log/slog to the BerinIA sinks: a colorized console
// handler plus size-rotated files under the log directory. A single logical
// record is fanned out atomically to every sink whose predicate accepts it:
//
//	system.log   every record
//	error.log    WARN and above
//	agents.log   records tagged with an "agent" attribute (Speak)
//	webhook.log  records tagged with a "webhook_source" attribute
//
// Rotated files are moved into an archives/ subdirectory.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Attribute keys that drive sink routing. Agents tag their records with
// KeyAgent (and optionally sender/target); webhook handlers tag theirs with
// KeyWebhookSource and KeyWebhookEvent.
const (
	KeyAgent         = "agent"
	KeySenderAgent   = "sender_agent"
	KeyTargetAgent   = "target_agent"
	KeyWebhookSource = "webhook_source"
	KeyWebhookEvent  = "webhook_event"
	KeySource        = "source"
)

// Config controls the sinks. Zero values fall back to defaults.
type Config struct {
	Dir        string `yaml:"dir"`
	Level      string `yaml:"level"`
	MaxSizeKB  int    `yaml:"max_size_kb"`
	MaxBackups int    `yaml:"max_backups"`
	Console    *bool  `yaml:"console"`
}

const (
	defaultMaxSizeKB  = 150
	defaultMaxBackups = 5
)

// Directory returns the configured log directory, defaulting to logs.
func (c Config) Directory() string {
	if c.Dir == "" {
		return "logs"
	}
	return c.Dir
}

// ParseLevel converts a string log level to slog.Level.
// Valid levels: debug, info, warn/warning, error. Unknown strings map to info.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init builds the multi-sink handler and installs it as the slog default.
// It returns a close function that flushes and closes the file sinks.
func Init(cfg Config) (func(), error) {
	dir := cfg.Directory()
	if err := os.MkdirAll(filepath.Join(dir, "archives"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	maxSize := cfg.MaxSizeKB
	if maxSize <= 0 {
		maxSize = defaultMaxSizeKB
	}
	backups := cfg.MaxBackups
	if backups <= 0 {
		backups = defaultMaxBackups
	}
	level := ParseLevel(cfg.Level)

	open := func(name string) (*rotatingWriter, error) {
		return newRotatingWriter(filepath.Join(dir, name), maxSize*1024, backups)
	}

	var writers []*rotatingWriter
	var sinks []sink

	addFileSink := func(name string, minLevel slog.Level, tag string) error {
		w, err := open(name)
		if err != nil {
			return err
		}
		writers = append(writers, w)
		sinks = append(sinks, sink{
			handler: slog.NewTextHandler(w, &slog.HandlerOptions{Level: minLevel}),
			accept:  acceptFunc(minLevel, tag),
		})
		return nil
	}

	closeAll := func() {
		for _, w := range writers {
			_ = w.Close()
		}
	}

	if err := addFileSink("system.log", level, ""); err != nil {
		return nil, err
	}
	if err := addFileSink("error.log", slog.LevelWarn, ""); err != nil {
		closeAll()
		return nil, err
	}
	if err := addFileSink("agents.log", slog.LevelDebug, KeyAgent); err != nil {
		closeAll()
		return nil, err
	}
	if err := addFileSink("webhook.log", slog.LevelDebug, KeyWebhookSource); err != nil {
		closeAll()
		return nil, err
	}

	if cfg.Console == nil || *cfg.Console {
		sinks = append(sinks, sink{
			handler: newConsoleHandler(os.Stderr, level),
			accept:  acceptFunc(level, ""),
		})
	}

	slog.SetDefault(slog.New(&routingHandler{sinks: sinks}))
	return closeAll, nil
}

// acceptFunc builds a sink predicate: minimum level plus an optional
// required attribute key.
func acceptFunc(minLevel slog.Level, tag string) func(slog.Level, map[string]string) bool {
	return func(level slog.Level, attrs map[string]string) bool {
		if level < minLevel {
			return false
		}
		if tag == "" {
			return true
		}
		_, ok := attrs[tag]
		return ok
	}
}
