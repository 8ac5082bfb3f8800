package main

import (
	"fmt"
	"strconv"

	"emotrack/internal/api"
	"emotrack/internal/emotion"
)

// countsTable lists per-emotion face counts in first-seen order, with the
// best confidence per emotion when known.
func countsTable(counts emotion.Counts, confidences map[string]float64) string {
	rows := make([][]string, 0, counts.Len())
	for _, label := range counts.Labels() {
		conf := "-"
		if value, ok := confidences[string(label)]; ok {
			conf = formatConfidence(value)
		}
		rows = append(rows, []string{string(label), strconv.Itoa(counts.Get(label)), conf})
	}
	return renderTable([]column{
		{Header: "Emotion"},
		{Header: "Faces", Align: alignRight},
		{Header: "Confidence", Align: alignRight},
	}, rows)
}

func analysesTable(items []api.Analysis) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		name := item.OriginalFilename
		if name == "" {
			name = item.Channel
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.CreatedAt.Local().Format("2006-01-02 15:04"),
			item.SourceType,
			item.DominantEmotion,
			formatConfidence(item.Confidence),
			strconv.Itoa(item.Counts.Get(emotion.Label(item.DominantEmotion))),
			strconv.FormatInt(item.UserID, 10),
			name,
		})
	}
	return renderTable([]column{
		{Header: "ID", Align: alignRight},
		{Header: "Created"},
		{Header: "Source"},
		{Header: "Emotion"},
		{Header: "Confidence", Align: alignRight},
		{Header: "Faces", Align: alignRight},
		{Header: "User", Align: alignRight},
		{Header: "Origin"},
	}, rows)
}

func formatConfidence(value float64) string {
	return fmt.Sprintf("%.1f%%", value*100)
}
