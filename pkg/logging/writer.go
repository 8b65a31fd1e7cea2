package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// WriterConfig selects log destinations for the process logger.
type WriterConfig struct {
	Level    string   // trace|debug|info|warn|error
	Writers  []string // any of "console", "file"
	FilePath string   // used when "file" is enabled
}

// NewLogger builds the process root logger. Unknown levels fall back to info,
// no writers falls back to console.
func NewLogger(cfg WriterConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	for _, w := range cfg.Writers {
		switch strings.ToLower(strings.TrimSpace(w)) {
		case "console":
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		case "file":
			if cfg.FilePath != "" {
				writers = append(writers, &lumberjack.Logger{
					Filename:   cfg.FilePath,
					MaxSize:    20, // megabytes
					MaxBackups: 5,
					MaxAge:     14, // days
					Compress:   true,
				})
			}
		}
	}
	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
}
