package emotion_test

import (
	"testing"

	"emotrack/internal/emotion"
)

func TestLabelsOrder(t *testing.T) {
	labels := emotion.Labels()
	want := []emotion.Label{"Angry", "Disgust", "Fear", "Happy", "Neutral", "Sad", "Surprise"}
	if len(labels) != len(want) {
		t.Fatalf("expected %d labels, got %d", len(want), len(labels))
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("label %d: expected %s, got %s", i, want[i], labels[i])
		}
	}
	labels[0] = "mutated"
	if emotion.Labels()[0] != emotion.Angry {
		t.Fatal("Labels must return a copy")
	}
}

func TestParseLabel(t *testing.T) {
	cases := map[string]emotion.Label{
		"happy":      emotion.Happy,
		"  SURPRISE": emotion.Surprise,
		"Neutral":    emotion.Neutral,
	}
	for input, want := range cases {
		got, ok := emotion.ParseLabel(input)
		if !ok || got != want {
			t.Fatalf("ParseLabel(%q) = %q, %v; want %q", input, got, ok, want)
		}
	}
	if _, ok := emotion.ParseLabel("bored"); ok {
		t.Fatal("expected unknown label to fail")
	}
}

func TestLabelAtBounds(t *testing.T) {
	if label, ok := emotion.LabelAt(3); !ok || label != emotion.Happy {
		t.Fatalf("unexpected label at 3: %s %v", label, ok)
	}
	if _, ok := emotion.LabelAt(7); ok {
		t.Fatal("expected out-of-range index to fail")
	}
	if _, ok := emotion.LabelAt(-1); ok {
		t.Fatal("expected negative index to fail")
	}
}

func TestSlug(t *testing.T) {
	if got := emotion.Label("Very Happy").Slug(); got != "very-happy" {
		t.Fatalf("unexpected slug %q", got)
	}
	if got := emotion.Label("").Slug(); got != "otros" {
		t.Fatalf("unexpected empty slug %q", got)
	}
}

func TestRoundConfidence(t *testing.T) {
	if got := emotion.RoundConfidence(0.123456); got != 0.1235 {
		t.Fatalf("unexpected rounding: %v", got)
	}
}
