package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

var (
	rootLogger  *slog.Logger
	stdoutLevel = new(slog.LevelVar)
	logFile     = &fileSink{}
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorWhite  = "\033[37m"
	colorGray   = "\033[90m"
)

func init() {
	debugEnabled, _ := strconv.ParseBool(os.Getenv("TABLEMAP_DEBUG"))
	SetDebug(debugEnabled)

	// File handler with no colors
	fileHandler := &customHandler{
		w:          logFile,
		level:      slog.LevelDebug,
		withColors: false,
		gate:       logFile.active,
	}

	// Stderr handler with colors
	colorHandler := &customHandler{
		w:          os.Stderr,
		level:      stdoutLevel,
		withColors: true,
	}

	rootLogger = slog.New(&multiHandler{
		file:   fileHandler,
		stdout: colorHandler,
	})
}

// GetLogger returns a logger with the given prefix for easier filtering
func GetLogger(prefix string) *slog.Logger {
	return rootLogger.With("module", prefix)
}

// SetDebug switches the console handler between Debug and Info.
func SetDebug(on bool) {
	if on {
		stdoutLevel.Set(slog.LevelDebug)
	} else {
		stdoutLevel.Set(slog.LevelInfo)
	}
}

// SetLogFile mirrors every record, Debug included, into path. An empty path
// closes the current file.
func SetLogFile(path string) error {
	return logFile.open(path)
}

type fileSink struct {
	mu sync.Mutex
	f  *os.File
}

func (s *fileSink) open(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f != nil {
		s.f.Close()
		s.f = nil
	}
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	s.f = f
	return nil
}

func (s *fileSink) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f != nil
}

func (s *fileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return len(p), nil
	}
	return s.f.Write(p)
}

type customHandler struct {
	w          io.Writer
	level      slog.Leveler
	attrs      []slog.Attr
	group      string
	withColors bool
	gate       func() bool
}

func (h *customHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.gate != nil && !h.gate() {
		return false
	}
	return level >= h.level.Level()
}

func (h *customHandler) Handle(_ context.Context, record slog.Record) error {
	var color string
	var levelStr string

	switch record.Level {
	case slog.LevelDebug:
		color = colorWhite
		levelStr = "DEBUG"
	case slog.LevelInfo:
		color = colorBlue
		levelStr = "INFO"
	case slog.LevelWarn:
		color = colorYellow
		levelStr = "WARNING"
	case slog.LevelError:
		color = colorRed
		levelStr = "ERROR"
	default:
		color = colorWhite
		levelStr = record.Level.String()
	}

	timeStr := record.Time.Format("15:04:05")

	var modulePrefix string
	var argsStr string
	hasOtherAttrs := false

	appendAttr := func(a slog.Attr) {
		if a.Key == "module" {
			modulePrefix = a.Value.String()
			return
		}
		if !hasOtherAttrs {
			argsStr = " ("
			hasOtherAttrs = true
		} else {
			argsStr += ", "
		}
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		argsStr += fmt.Sprintf("%s=%v", key, a.Value)
	}

	for _, a := range h.attrs {
		appendAttr(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		appendAttr(a)
		return true
	})

	if hasOtherAttrs {
		argsStr += ")"
	}

	// Format: [module] <LEVEL>: <msg> (<args>) [HH:MM:SS]
	var prefix string
	if modulePrefix != "" {
		if h.withColors {
			prefix = fmt.Sprintf("%s[%s]%s ", colorGray, modulePrefix, colorReset)
		} else {
			prefix = fmt.Sprintf("[%s] ", modulePrefix)
		}
	}

	if h.withColors {
		_, err := fmt.Fprintf(h.w, "%s%s%s%s: %s%s [%s]\n",
			prefix,
			color, levelStr, colorReset,
			record.Message,
			argsStr,
			timeStr)
		return err
	}
	_, err := fmt.Fprintf(h.w, "%s%s: %s%s [%s]\n",
		prefix,
		levelStr,
		record.Message,
		argsStr,
		timeStr)
	return err
}

func (h *customHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)
	clone := *h
	clone.attrs = newAttrs
	return &clone
}

func (h *customHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.group = name
	return &clone
}

type multiHandler struct {
	file   slog.Handler
	stdout slog.Handler
}

func (mh *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return mh.file.Enabled(ctx, level) || mh.stdout.Enabled(ctx, level)
}

func (mh *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	if mh.file.Enabled(ctx, record.Level) {
		if err := mh.file.Handle(ctx, record); err != nil {
			return err
		}
	}

	if mh.stdout.Enabled(ctx, record.Level) {
		if err := mh.stdout.Handle(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

func (mh *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &multiHandler{
		file:   mh.file.WithAttrs(attrs),
		stdout: mh.stdout.WithAttrs(attrs),
	}
}

func (mh *multiHandler) WithGroup(name string) slog.Handler {
	return &multiHandler{
		file:   mh.file.WithGroup(name),
		stdout: mh.stdout.WithGroup(name),
	}
}
