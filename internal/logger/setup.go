package logger

import (
	"io"
	"log/slog"
	"os"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Setup builds the daemon's own slog logger: colorized text on stderr, plus
// an optional rotated file when filePath is non-empty. Levels below info are
// dropped unless debug is set.
func Setup(filePath string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var w io.Writer = os.Stderr
	if filePath != "" {
		file := &lj.Logger{
			Filename:   filePath,
			MaxSize:    DefaultMaxSizeMB,
			MaxBackups: DefaultMaxBackups,
			MaxAge:     DefaultMaxAgeDays,
		}
		w = io.MultiWriter(os.Stderr, file)
	}
	return slog.New(NewColorTextHandler(w, opts, true))
}
