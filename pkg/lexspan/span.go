// Package lexspan provides half-open character offset intervals and the
// small algebra (overlap, widen, gaps) used to address regions of note text.
package lexspan

import (
	"errors"
	"fmt"
	"sort"
)

// ErrEmptyInput is returned by Widen when given no spans.
var ErrEmptyInput = errors.New("lexspan: empty input")

// Span is the half-open interval [Begin, End) of character offsets.
type Span struct {
	Begin int `json:"begin" yaml:"begin"`
	End   int `json:"end" yaml:"end"`
}

// New returns the span [begin, end).
func New(begin, end int) (Span, error) {
	if begin > end {
		return Span{}, fmt.Errorf("lexspan: begin %d is greater than end %d", begin, end)
	}
	return Span{Begin: begin, End: end}, nil
}

// Must is like New but panics on an invalid span.
func Must(begin, end int) Span {
	s, err := New(begin, end)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Span) Len() int { return s.End - s.Begin }

func (s Span) IsEmpty() bool { return s.Begin == s.End }

// Overlaps reports whether s and o share at least one offset. Touching
// endpoints do not overlap.
func (s Span) Overlaps(o Span) bool {
	return s.Begin < o.End && o.Begin < s.End
}

// Contains reports whether o lies entirely within s.
func (s Span) Contains(o Span) bool {
	return s.Begin <= o.Begin && o.End <= s.End
}

// Less orders spans by begin, then end.
func (s Span) Less(o Span) bool {
	if s.Begin != o.Begin {
		return s.Begin < o.Begin
	}
	return s.End < o.End
}

// Slice returns the text covered by s, clamped to the bounds of text.
func (s Span) Slice(text string) string {
	b, e := s.Begin, s.End
	if b < 0 {
		b = 0
	}
	if e > len(text) {
		e = len(text)
	}
	if b >= e {
		return ""
	}
	return text[b:e]
}

func (s Span) String() string {
	return fmt.Sprintf("[%d, %d)", s.Begin, s.End)
}

// Widen returns the bounding span of all spans.
func Widen(spans ...Span) (Span, error) {
	if len(spans) == 0 {
		return Span{}, ErrEmptyInput
	}
	w := spans[0]
	for _, s := range spans[1:] {
		if s.Begin < w.Begin {
			w.Begin = s.Begin
		}
		if s.End > w.End {
			w.End = s.End
		}
	}
	return w, nil
}

// Sort orders spans in place by (begin, end).
func Sort(spans []Span) {
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Less(spans[j]) })
}

// Gaps returns the sorted spans within [0, end) not covered by spans. The
// input is assumed pairwise non-overlapping and is not modified. Zero length
// gaps are omitted.
func Gaps(spans []Span, end int) []Span {
	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	Sort(sorted)

	var gaps []Span
	pos := 0
	for _, s := range sorted {
		if s.Begin > pos {
			gaps = append(gaps, Span{Begin: pos, End: s.Begin})
		}
		if s.End > pos {
			pos = s.End
		}
	}
	if end > pos {
		gaps = append(gaps, Span{Begin: pos, End: end})
	}
	return gaps
}
