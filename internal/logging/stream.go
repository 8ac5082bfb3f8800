package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEvent represents a structured log line published to the streaming hub.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
	UserID        int64             `json:"user_id,omitempty"`
	Channel       string            `json:"channel,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	Details       []DetailField     `json:"details,omitempty"`
}

// DetailField mirrors one highlighted field of the console info line.
type DetailField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// StreamHub keeps the most recent log events in a ring and lets API readers
// poll or long-poll for events newer than a sequence number.
type StreamHub struct {
	mu      sync.Mutex
	ring    []LogEvent
	head    int // index of the oldest event
	size    int
	lastSeq uint64
	wake    chan struct{}
}

// NewStreamHub constructs a hub holding at most capacity events.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = 512
	}
	return &StreamHub{ring: make([]LogEvent, capacity), wake: make(chan struct{})}
}

// Publish stamps evt with the next sequence number and wakes blocked readers.
// The oldest event is overwritten once the ring is full.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.lastSeq++
	evt.Sequence = h.lastSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if h.size < len(h.ring) {
		h.ring[(h.head+h.size)%len(h.ring)] = evt
		h.size++
	} else {
		h.ring[h.head] = evt
		h.head = (h.head + 1) % len(h.ring)
	}
	close(h.wake)
	h.wake = make(chan struct{})
	h.mu.Unlock()
}

// Fetch returns up to limit events with a sequence above since, plus the
// latest sequence published. With wait set it blocks until an event arrives
// or ctx ends.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEvent, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	limit = h.clampLimit(limit)
	for {
		h.mu.Lock()
		events := h.collectLocked(since, limit)
		last, wake := h.lastSeq, h.wake
		h.mu.Unlock()

		if len(events) > 0 || !wait {
			return events, last, ctx.Err()
		}
		select {
		case <-ctx.Done():
			return nil, last, ctx.Err()
		case <-wake:
		}
	}
}

// Tail returns the newest limit events without blocking.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	limit = h.clampLimit(limit)
	h.mu.Lock()
	defer h.mu.Unlock()
	skip := h.size - limit
	if skip < 0 {
		skip = 0
	}
	return h.sliceLocked(skip, h.size), h.lastSeq
}

// FirstSequence reports the oldest sequence still held, or the latest
// sequence when the ring is empty.
func (h *StreamHub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.size == 0 {
		return h.lastSeq
	}
	return h.ring[h.head].Sequence
}

func (h *StreamHub) clampLimit(limit int) int {
	if limit <= 0 || limit > len(h.ring) {
		return len(h.ring)
	}
	return limit
}

// collectLocked relies on sequences being contiguous inside the ring.
func (h *StreamHub) collectLocked(since uint64, limit int) []LogEvent {
	if h.size == 0 || since >= h.lastSeq {
		return nil
	}
	oldest := h.ring[h.head].Sequence
	skip := 0
	if since >= oldest {
		skip = int(since - oldest + 1)
	}
	end := skip + limit
	if end > h.size {
		end = h.size
	}
	return h.sliceLocked(skip, end)
}

func (h *StreamHub) sliceLocked(from, to int) []LogEvent {
	if from >= to {
		return nil
	}
	out := make([]LogEvent, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, h.ring[(h.head+i)%len(h.ring)])
	}
	return out
}

type streamHandler struct {
	next  slog.Handler
	hub   *StreamHub
	attrs []slog.Attr
}

func newStreamHandler(next slog.Handler, hub *StreamHub) slog.Handler {
	if hub == nil || next == nil {
		return next
	}
	return &streamHandler{next: next, hub: hub}
}

func (h *streamHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *streamHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.hub != nil {
		h.hub.Publish(eventFromRecordWithAttrs(record, h.attrs))
	}
	return h.next.Handle(ctx, record.Clone())
}

func (h *streamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	newAttrs = append(newAttrs, attrs...)
	return &streamHandler{
		next:  h.next.WithAttrs(attrs),
		hub:   h.hub,
		attrs: newAttrs,
	}
}

func (h *streamHandler) WithGroup(name string) slog.Handler {
	return &streamHandler{
		next: h.next.WithGroup(name),
		hub:  h.hub,
	}
}

func eventFromRecordWithAttrs(record slog.Record, preAttrs []slog.Attr) LogEvent {
	event := LogEvent{
		Timestamp: record.Time,
		Level:     strings.ToUpper(record.Level.String()),
		Message:   strings.TrimSpace(record.Message),
		Fields:    make(map[string]string),
	}

	processAttr := func(attr slog.Attr) {
		key := strings.TrimSpace(attr.Key)
		if key == "" {
			return
		}
		switch key {
		case FieldSessionID:
			event.SessionID = attrString(attr.Value)
		case FieldUserID:
			if attr.Value.Kind() == slog.KindInt64 {
				event.UserID = attr.Value.Int64()
			}
		case FieldChannel:
			event.Channel = attrString(attr.Value)
		case FieldCorrelationID:
			event.CorrelationID = attrString(attr.Value)
		case FieldComponent:
			event.Component = attrString(attr.Value)
		default:
			if event.Fields == nil {
				event.Fields = make(map[string]string)
			}
			event.Fields[key] = attrString(attr.Value)
		}
	}

	for _, attr := range preAttrs {
		processAttr(attr)
	}

	// call-site attrs override logger attrs
	var attrs []kv
	record.Attrs(func(attr slog.Attr) bool {
		processAttr(attr)
		key := strings.TrimSpace(attr.Key)
		if key != "" {
			attrs = append(attrs, kv{key: key, value: attr.Value})
		}
		return true
	})

	if len(attrs) > 0 {
		if info, _ := selectInfoFields(attrs); len(info) > 0 {
			event.Details = make([]DetailField, 0, len(info))
			for _, field := range info {
				event.Details = append(event.Details, DetailField{
					Label: field.label,
					Value: field.value,
				})
			}
		}
	}

	return event
}
