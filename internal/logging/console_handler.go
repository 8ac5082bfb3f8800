package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// prettyHandler renders a one-line header followed by indented detail lines.
// Info records show only highlighted fields; debug records show everything.
type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&kvs, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})
	line := consoleLine{record: record, fields: make([]kv, 0, len(kvs))}
	for _, item := range dedupeKVsByKey(kvs) {
		switch item.key {
		case FieldComponent:
			line.component = attrString(item.value)
			continue
		case FieldSessionID:
			line.sessionID = attrString(item.value)
		case FieldChannel:
			line.channel = attrString(item.value)
		}
		line.fields = append(line.fields, item)
	}

	var buf bytes.Buffer
	buf.Grow(256 + len(line.fields)*32)
	line.writeHeader(&buf, h.addSource)
	if record.Level < slog.LevelInfo {
		line.writeAllFields(&buf)
	} else {
		line.writeHighlights(&buf)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

// consoleLine is one record split into its subject and remaining fields.
type consoleLine struct {
	record    slog.Record
	component string
	sessionID string
	channel   string
	fields    []kv
}

func (l consoleLine) writeHeader(buf *bytes.Buffer, addSource bool) {
	timestamp := l.record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	message := strings.TrimSpace(l.record.Message)
	if message == "" {
		message = "(no message)"
	}

	buf.WriteString(formatTimestamp(timestamp))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(l.record.Level))
	if l.component != "" {
		fmt.Fprintf(buf, " [%s]", l.component)
	}
	if subject := composeSubject(l.sessionID, l.channel); subject != "" {
		buf.WriteByte(' ')
		buf.WriteString(subject)
	}
	buf.WriteString(" - ")
	buf.WriteString(message)
	if src := l.record.Source(); addSource && src != nil {
		fmt.Fprintf(buf, " [%s:%d]", filepath.Base(src.File), src.Line)
	}
	buf.WriteByte('\n')
}

// writeAllFields prints every field raw; used below INFO.
func (l consoleLine) writeAllFields(buf *bytes.Buffer) {
	for _, item := range l.fields {
		fmt.Fprintf(buf, "    %s: %s\n", item.key, formatValue(item.value))
	}
}

func (l consoleLine) writeHighlights(buf *bytes.Buffer) {
	shown, hidden := selectInfoFields(l.fields)
	for _, field := range shown {
		fmt.Fprintf(buf, "    - %s: %s\n", field.label, field.value)
	}
	switch {
	case hidden == 1:
		buf.WriteString("    + 1 more field hidden\n")
	case hidden > 1:
		fmt.Fprintf(buf, "    + %d more fields hidden\n", hidden)
	}
}

// composeSubject renders "Session 1a2b3c4d (webcam)" style subjects.
func composeSubject(sessionID, channel string) string {
	sessionID = strings.TrimSpace(sessionID)
	channel = strings.TrimSpace(channel)
	if len(sessionID) > 8 {
		sessionID = sessionID[:8]
	}
	switch {
	case sessionID != "" && channel != "":
		return "Session " + sessionID + " (" + channel + ")"
	case sessionID != "":
		return "Session " + sessionID
	default:
		return ""
	}
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *prettyHandler) clone() *prettyHandler {
	return &prettyHandler{
		mu:        h.mu,
		writer:    h.writer,
		level:     h.level,
		addSource: h.addSource,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
	}
}

type kv struct {
	key   string
	value slog.Value
}

// dedupeKVsByKey keeps the first position of each key with its last value.
func dedupeKVsByKey(attrs []kv) []kv {
	if len(attrs) < 2 {
		return attrs
	}
	positions := make(map[string]int, len(attrs))
	deduped := make([]kv, 0, len(attrs))
	for _, attr := range attrs {
		if attr.key == "" {
			continue
		}
		if pos, ok := positions[attr.key]; ok {
			deduped[pos].value = attr.value
			continue
		}
		positions[attr.key] = len(deduped)
		deduped = append(deduped, attr)
	}
	return deduped
}

func flattenAttrs(dst *[]kv, prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		flattenAttr(dst, prefix, attr)
	}
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(append([]string(nil), prefix...), attr.Key)
		}
		flattenAttrs(dst, next, attr.Value.Group())
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(append(append([]string(nil), prefix...), key), ".")
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
