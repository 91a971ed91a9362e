package logger

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// PrettyOptions configures a PrettyHandler.
type PrettyOptions struct {
	slog.HandlerOptions
	// Color enables ANSI escapes. Leave it off when writing to a file or pipe.
	Color bool
}

// PrettyHandler is a slog.Handler producing one aligned line per record:
//
//	15:04:05 INFO  message key=value [file.go:42]
type PrettyHandler struct {
	opts  PrettyOptions
	w     io.Writer
	mu    *sync.Mutex
	group string
	attrs []slog.Attr
}

// NewPrettyHandler creates a new PrettyHandler.
func NewPrettyHandler(w io.Writer, opts *PrettyOptions) *PrettyHandler {
	if opts == nil {
		opts = &PrettyOptions{}
	}
	return &PrettyHandler{
		opts: *opts,
		w:    w,
		mu:   &sync.Mutex{},
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle formats and writes a log record.
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	buf = h.paint(buf, colorGray)
	buf = r.Time.AppendFormat(buf, time.TimeOnly)
	buf = h.paint(buf, colorReset)
	buf = append(buf, ' ')

	buf = h.paint(buf, levelColor(r.Level))
	buf = h.paint(buf, colorBold)
	buf = append(buf, padLevel(r.Level.String())...)
	buf = h.paint(buf, colorReset)
	buf = append(buf, ' ')

	buf = append(buf, r.Message...)

	n := 0
	emit := func(a slog.Attr, group string) {
		if a.Equal(slog.Attr{}) {
			return
		}
		buf = append(buf, ' ')
		if n == 0 {
			buf = h.paint(buf, colorCyan)
		}
		n++
		buf = appendAttr(buf, a, group)
	}
	for _, a := range h.attrs {
		emit(a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		emit(a, h.group)
		return true
	})
	if n > 0 {
		buf = h.paint(buf, colorReset)
	}

	if h.opts.AddSource && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := frames.Next()
		buf = append(buf, ' ')
		buf = h.paint(buf, colorGray)
		buf = append(buf, '[')
		buf = append(buf, filepath.Base(f.File)...)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, int64(f.Line), 10)
		buf = append(buf, ']')
		buf = h.paint(buf, colorReset)
	}

	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

// WithAttrs returns a new handler with additional attributes. They are
// qualified with the current group at the time of the call.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		newAttrs = append(newAttrs, a)
	}

	c := *h
	c.attrs = newAttrs
	return &c
}

// WithGroup returns a new handler with a group name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	if h.group != "" {
		c.group = h.group + "." + name
	} else {
		c.group = name
	}
	return &c
}

func (h *PrettyHandler) paint(buf []byte, color string) []byte {
	if !h.opts.Color {
		return buf
	}
	return append(buf, color...)
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorBlue
	default:
		return colorGray
	}
}

// padLevel pads level names to five columns.
func padLevel(level string) string {
	if len(level) < 5 {
		return level + "     "[:5-len(level)]
	}
	return level
}

func appendAttr(buf []byte, attr slog.Attr, group string) []byte {
	attr.Value = attr.Value.Resolve()
	key := attr.Key
	if group != "" {
		key = group + "." + key
	}

	if attr.Value.Kind() == slog.KindGroup {
		for i, a := range attr.Value.Group() {
			if i > 0 {
				buf = append(buf, ' ')
			}
			buf = appendAttr(buf, a, key)
		}
		return buf
	}

	buf = append(buf, key...)
	buf = append(buf, '=')

	switch attr.Value.Kind() {
	case slog.KindString:
		s := attr.Value.String()
		if needsQuoting(s) {
			buf = strconv.AppendQuote(buf, s)
		} else {
			buf = append(buf, s...)
		}
	case slog.KindFloat64:
		buf = strconv.AppendFloat(buf, attr.Value.Float64(), 'g', -1, 64)
	case slog.KindInt64:
		buf = strconv.AppendInt(buf, attr.Value.Int64(), 10)
	case slog.KindUint64:
		buf = strconv.AppendUint(buf, attr.Value.Uint64(), 10)
	case slog.KindDuration:
		buf = append(buf, attr.Value.Duration().String()...)
	case slog.KindTime:
		buf = attr.Value.Time().AppendFormat(buf, time.RFC3339)
	default:
		s := attr.Value.String()
		if needsQuoting(s) {
			buf = strconv.AppendQuote(buf, s)
		} else {
			buf = append(buf, s...)
		}
	}
	return buf
}

func needsQuoting(s string) bool {
	for _, c := range s {
		if c == ' ' || c == '\t' || c == '\n' || c == '"' || c == '=' {
			return true
		}
	}
	return false
}
