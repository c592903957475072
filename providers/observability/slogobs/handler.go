package slogobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Handler is a slog.Handler writing compact or JSON lines.
type Handler struct {
	format Format
	level  slog.Leveler
	output io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Format Format
	Level  slog.Leveler
	// Output defaults to os.Stderr.
	Output io.Writer
}

// NewHandler creates a Handler. A nil opts yields compact INFO output on
// stderr.
func NewHandler(opts *HandlerOptions) *Handler {
	if opts == nil {
		opts = &HandlerOptions{}
	}
	h := &Handler{
		format: opts.Format,
		level:  opts.Level,
		output: opts.Output,
		mu:     &sync.Mutex{},
	}
	if h.format == "" {
		h.format = FormatCompact
	}
	if h.level == nil {
		h.level = slog.LevelInfo
	}
	if h.output == nil {
		h.output = os.Stderr
	}
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	attrs := h.collectAttrs(r)

	var line []byte
	switch h.format {
	case FormatJSON:
		data := make(map[string]any, len(attrs)+3)
		for key, value := range attrs {
			data[key] = value
		}
		data["time"] = r.Time.Format("2006-01-02T15:04:05")
		data["level"] = levelString(r.Level)
		data["msg"] = r.Message

		encoded, err := json.Marshal(data)
		if err != nil {
			return err
		}
		line = append(encoded, '\n')
	default:
		line = make([]byte, 0, 256)
		line = append(line, r.Time.Format("2006-01-02 15:04:05")...)
		line = append(line, fmt.Sprintf(" %5s ", levelString(r.Level))...)
		line = append(line, r.Message...)
		if len(attrs) > 0 {
			line = append(line, " -> "...)
			if encoded, err := json.Marshal(attrs); err != nil {
				line = append(line, "[json-error]"...)
			} else {
				line = append(line, encoded...)
			}
		}
		line = append(line, '\n')
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.output.Write(line)
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func (h *Handler) collectAttrs(r slog.Record) map[string]any {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	prefix := ""
	for _, group := range h.groups {
		prefix += group + "."
	}
	for _, attr := range h.attrs {
		attrs[prefix+attr.Key] = attrValue(attr.Value)
	}
	r.Attrs(func(attr slog.Attr) bool {
		attrs[prefix+attr.Key] = attrValue(attr.Value)
		return true
	})
	return attrs
}

// attrValue keeps durations readable in JSON output.
func attrValue(v slog.Value) any {
	if v.Kind() == slog.KindDuration {
		return v.Duration().String()
	}
	return v.Any()
}

func levelString(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return "TRACE"
	case level < slog.LevelInfo:
		return "DEBUG"
	case level < slog.LevelWarn:
		return "INFO"
	case level < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}
