package emotion

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Label is one of the fixed emotion categories the classifier outputs.
type Label string

const (
	Angry    Label = "Angry"
	Disgust  Label = "Disgust"
	Fear     Label = "Fear"
	Happy    Label = "Happy"
	Neutral  Label = "Neutral"
	Sad      Label = "Sad"
	Surprise Label = "Surprise"
)

// labelOrder matches the classifier's output vector.
var labelOrder = []Label{Angry, Disgust, Fear, Happy, Neutral, Sad, Surprise}

var titleCaser = cases.Title(language.Und)

// Labels returns the label set in classifier output order.
func Labels() []Label {
	out := make([]Label, len(labelOrder))
	copy(out, labelOrder)
	return out
}

// LabelAt maps a classifier output index to its label.
func LabelAt(index int) (Label, bool) {
	if index < 0 || index >= len(labelOrder) {
		return "", false
	}
	return labelOrder[index], true
}

// ParseLabel resolves a label name regardless of casing.
func ParseLabel(value string) (Label, bool) {
	normalized := Label(titleCaser.String(strings.ToLower(strings.TrimSpace(value))))
	for _, label := range labelOrder {
		if label == normalized {
			return label, true
		}
	}
	return "", false
}

// Slug returns the filesystem bucket name for the label.
func (l Label) Slug() string {
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(string(l))), " ", "-")
	if slug == "" {
		return "otros"
	}
	return slug
}

func (l Label) String() string { return string(l) }
