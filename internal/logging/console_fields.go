package logging

import (
	"log/slog"
	"strconv"
	"strings"
)

type infoField struct {
	label string
	value string
}

const infoAttrLimit = 8

// infoHighlightKeys are shown on info-level console lines, in this order.
var infoHighlightKeys = []string{
	FieldAlert,
	FieldEventType,
	"error",
	FieldErrorKind,
	FieldErrorHint,
	FieldImpact,
	FieldUserID,
	FieldLabel,
	FieldSource,
	"frames",
	"labels",
	"duration_seconds",
	"dominant_emotion",
	"confidence",
	"snapshot_path",
	"stream_path",
	"model_path",
	"api_bind",
	"storage_root",
	"database_path",
	FieldProgressPercent,
	"reason",
	"path",
	"method",
	"status",
	"elapsed",
}

// debugOnlyKeys never appear on info lines.
var debugOnlyKeys = map[string]struct{}{
	FieldCorrelationID: {},
	FieldRunID:         {},
	"width":            {},
	"height":           {},
	"frame_index":      {},
}

// selectInfoFields returns highlighted fields in priority order and the
// number of remaining fields left off the info line.
func selectInfoFields(attrs []kv) ([]infoField, int) {
	if len(attrs) == 0 {
		return nil, 0
	}
	index := make(map[string]int, len(attrs))
	for i, attr := range attrs {
		index[attr.key] = i
	}
	used := make(map[string]bool, len(attrs))
	result := make([]infoField, 0, infoAttrLimit)
	for _, key := range infoHighlightKeys {
		if len(result) >= infoAttrLimit {
			break
		}
		i, ok := index[key]
		if !ok {
			continue
		}
		used[key] = true
		result = append(result, infoField{label: displayLabel(key), value: formatValueForKey(key, attrs[i].value)})
	}
	hidden := 0
	for _, attr := range attrs {
		if used[attr.key] || attr.key == FieldSessionID || attr.key == FieldChannel {
			continue
		}
		if _, ok := debugOnlyKeys[attr.key]; ok {
			continue
		}
		hidden++
	}
	return result, hidden
}

func formatValueForKey(key string, v slog.Value) string {
	v = v.Resolve()
	switch {
	case key == "confidence" && v.Kind() == slog.KindFloat64:
		return strconv.FormatFloat(v.Float64()*100, 'f', 1, 64) + "%"
	case key == FieldProgressPercent && v.Kind() == slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', 0, 64) + "%"
	case strings.HasSuffix(key, "_seconds") && v.Kind() == slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', 1, 64) + "s"
	case key == "error":
		return attrString(v)
	}
	return formatValue(v)
}

var labelOverrides = map[string]string{
	FieldEventType:     "Event",
	FieldErrorHint:     "Hint",
	FieldErrorKind:     "Error kind",
	FieldUserID:        "User",
	FieldLabel:         "Emotion",
	"dominant_emotion": "Dominant",
	"api_bind":         "API",
	"duration_seconds": "Duration",
}

func displayLabel(key string) string {
	if label, ok := labelOverrides[key]; ok {
		return label
	}
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	if len(words) == 0 {
		return key
	}
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ")
}
