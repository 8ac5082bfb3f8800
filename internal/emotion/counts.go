package emotion

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Counts is a label tally that remembers the order in which labels were first
// inserted. The zero value is ready to use.
type Counts struct {
	order  []Label
	values map[Label]int
}

// NewCounts builds counts from labels in the given order.
func NewCounts(labels ...Label) Counts {
	var c Counts
	for _, label := range labels {
		c.Add(label, 1)
	}
	return c
}

// Add increments label by n. Non-positive n is ignored so that every stored
// value stays at least one.
func (c *Counts) Add(label Label, n int) {
	if n <= 0 {
		return
	}
	if c.values == nil {
		c.values = make(map[Label]int)
	}
	if _, ok := c.values[label]; !ok {
		c.order = append(c.order, label)
	}
	c.values[label] += n
}

// Merge folds other into c, preserving c's existing order and appending labels
// new to c in other's order.
func (c *Counts) Merge(other Counts) {
	for _, label := range other.order {
		c.Add(label, other.values[label])
	}
}

// Get returns the count for label.
func (c Counts) Get(label Label) int {
	return c.values[label]
}

// Has reports whether label has been counted.
func (c Counts) Has(label Label) bool {
	_, ok := c.values[label]
	return ok
}

// Len returns the number of distinct labels.
func (c Counts) Len() int {
	return len(c.order)
}

// Total returns the sum of all counts.
func (c Counts) Total() int {
	total := 0
	for _, v := range c.values {
		total += v
	}
	return total
}

// Labels returns the counted labels in first-insertion order.
func (c Counts) Labels() []Label {
	out := make([]Label, len(c.order))
	copy(out, c.order)
	return out
}

// Dominant returns the label with the highest count. Ties go to the label
// inserted first. ok is false when nothing has been counted.
func (c Counts) Dominant() (label Label, count int, ok bool) {
	for _, l := range c.order {
		if v := c.values[l]; v > count {
			label, count, ok = l, v, true
		}
	}
	return label, count, ok
}

// Clone returns an independent copy.
func (c Counts) Clone() Counts {
	var out Counts
	out.Merge(c)
	return out
}

// Map returns a plain map copy keyed by label name.
func (c Counts) Map() map[string]int {
	out := make(map[string]int, len(c.order))
	for _, l := range c.order {
		out[string(l)] = c.values[l]
	}
	return out
}

// MarshalJSON encodes the counts as an object whose keys follow insertion order.
func (c Counts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, l := range c.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(l))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(c.values[l])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of label counts, keeping document order.
func (c *Counts) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = Counts{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("counts: expected object, got %v", tok)
	}
	var out Counts
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var n int
		if err := dec.Decode(&n); err != nil {
			return err
		}
		out.Add(Label(key), n)
	}
	*c = out
	return nil
}
