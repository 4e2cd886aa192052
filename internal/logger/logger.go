package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level  string
	Format string
	File   string
}

// New builds the process logger. Output goes to stdout, or to a rotating file
// when opts.File is set; the returned closer releases that file.
func New(opts Options) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if strings.TrimSpace(opts.File) != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		out = rotating
		closer = rotating
	}

	return slog.New(newHandler(out, opts)), closer
}

func newHandler(out io.Writer, opts Options) slog.Handler {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	// Colors only make sense on a terminal.
	if strings.EqualFold(opts.Format, "json") || strings.TrimSpace(opts.File) != "" {
		handlerOpts.ReplaceAttr = redactAttr
		return slog.NewJSONHandler(out, handlerOpts)
	}

	return NewPrettyHandler(out, handlerOpts)
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindGroup && isSensitive(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}

func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
