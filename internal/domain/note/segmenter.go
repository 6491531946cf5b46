package note

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mimic/mimic/pkg/lexspan"
)

// DefaultSectionName names the single section of an unsegmented note.
const DefaultSectionName = "default"

// Boundary is one segmented section: its header spans and its body span.
type Boundary struct {
	Headers []lexspan.Span
	Body    lexspan.Span
}

// Segmenter finds section boundaries in note text. A Segmenter returns
// boundaries in scan order and never fails; an empty result means the
// caller falls back to the whole note.
type Segmenter interface {
	Segment(text string) []Boundary
	AnnotatorType() AnnotatorType
}

// WholeNoteSegmenter yields one headerless section spanning the text.
type WholeNoteSegmenter struct{}

func (WholeNoteSegmenter) Segment(text string) []Boundary {
	return []Boundary{{Body: lexspan.Span{Begin: 0, End: len(text)}}}
}

func (WholeNoteSegmenter) AnnotatorType() AnnotatorType { return AnnotatorNone }

// SectionPattern is a regular expression with "header" and "body" named
// groups. When is an optional predicate on the note text selecting the
// pattern.
type SectionPattern struct {
	Regex *regexp.Regexp
	When  func(text string) bool

	header int
	body   int
}

// NewSectionPattern compiles expr and checks it names both groups.
func NewSectionPattern(expr string, when func(string) bool) (SectionPattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return SectionPattern{}, fmt.Errorf("compile section pattern: %w", err)
	}
	p := SectionPattern{Regex: re, When: when, header: re.SubexpIndex("header"), body: re.SubexpIndex("body")}
	if p.header < 0 || p.body < 0 {
		return SectionPattern{}, fmt.Errorf("section pattern %q must name header and body groups", expr)
	}
	return p, nil
}

func mustSectionPattern(expr string, when func(string) bool) SectionPattern {
	p, err := NewSectionPattern(expr, when)
	if err != nil {
		panic(err)
	}
	return p
}

// RegexSegmenter matches the first applicable pattern against the note text
// with two newlines appended. Matches with an empty body are dropped.
type RegexSegmenter struct {
	Name     string
	patterns []SectionPattern
}

func NewRegexSegmenter(name string, patterns ...SectionPattern) *RegexSegmenter {
	return &RegexSegmenter{Name: name, patterns: patterns}
}

func (s *RegexSegmenter) AnnotatorType() AnnotatorType { return AnnotatorRegex }

func (s *RegexSegmenter) pattern(text string) (SectionPattern, bool) {
	for _, p := range s.patterns {
		if p.When == nil || p.When(text) {
			return p, true
		}
	}
	return SectionPattern{}, false
}

func (s *RegexSegmenter) Segment(text string) []Boundary {
	ext := text + "\n\n"
	p, ok := s.pattern(ext)
	if !ok {
		return nil
	}
	clamp := func(b, e int) lexspan.Span {
		if e > len(text) {
			e = len(text)
		}
		if b > e {
			b = e
		}
		return lexspan.Span{Begin: b, End: e}
	}

	var out []Boundary
	for _, m := range p.Regex.FindAllStringSubmatchIndex(ext, -1) {
		hb, he := m[2*p.header], m[2*p.header+1]
		bb, be := m[2*p.body], m[2*p.body+1]
		if bb < 0 || be-bb == 0 {
			continue
		}
		body := clamp(bb, be)
		if body.IsEmpty() {
			continue
		}
		var headers []lexspan.Span
		if hb >= 0 {
			headers = []lexspan.Span{clamp(hb, he)}
		}
		out = append(out, Boundary{Headers: headers, Body: body})
	}
	return out
}

const hpiHeader = "HISTORY OF PRESENT ILLNESS:"

var (
	dischargeSummarySegmenter = NewRegexSegmenter(CategoryDischargeSummary.String(),
		mustSectionPattern(`(?s)(?P<header>[A-Z ]+):[ ]{2,}(?P<body>.+?)\n{2,}`,
			func(text string) bool { return strings.Contains(text, hpiHeader) }),
		mustSectionPattern(`(?s)(?P<header>[a-zA-Z ]+):\n+(?P<body>.+?)\n{2,}`, nil),
	)

	nursingSegmenter = NewRegexSegmenter(CategoryNursing.String(),
		mustSectionPattern(`(?s)(?P<header>[a-zA-Z ]+):[ ](?P<body>.+?)\n{2,}`, nil),
	)

	echoSegmenter = NewRegexSegmenter(CategoryEcho.String(),
		mustSectionPattern(`(?is)(?P<header>conclusions|findings|impression|indication|`+
			`patient/test information|clinical implications):[\n ]+(?P<body>.+?)\n{2,}`, nil),
	)

	physicianSegmenter = NewRegexSegmenter(CategoryPhysician.String(),
		mustSectionPattern(`(?is)[ ]{3}(?P<header>HPI|Current medications|24 Hour Events|`+
			`Last dose of Antibiotics|Flowsheet Data|physical examination|labs / radiology|`+
			`assessment and plan|code status|disposition):?\n(?P<body>.+?)\n[ ]{3}[a-zA-Z0-9/ ]+:`, nil),
	)

	radiologySegmenter = NewRegexSegmenter(CategoryRadiology.String(),
		mustSectionPattern(`(?s)\s*(?P<header>[A-Z ]+):[\n ]{2,}(?P<body>.+?)\n{2,}`, nil),
	)

	consultSegmenter = NewRegexSegmenter(CategoryConsult.String(),
		mustSectionPattern(`(?s)\s*(?P<header>[a-zA-Z/ ]+):\n+(?P<body>.+?)(?:\n{2,}|\s+\.\n)`, nil),
	)
)

// SegmenterFor returns the segmenter of a category. Unknown categories use
// the whole note.
func SegmenterFor(c Category) Segmenter {
	switch c {
	case CategoryDischargeSummary:
		return dischargeSummarySegmenter
	case CategoryNursing:
		return nursingSegmenter
	case CategoryEcho:
		return echoSegmenter
	case CategoryPhysician:
		return physicianSegmenter
	case CategoryRadiology:
		return radiologySegmenter
	case CategoryConsult:
		return consultSegmenter
	case CategoryUnknown:
		return WholeNoteSegmenter{}
	default:
		return WholeNoteSegmenter{}
	}
}

// segment runs seg and falls back to the whole note when nothing matched.
func segment(seg Segmenter, text string) (bounds []Boundary, fallback bool) {
	bounds = seg.Segment(text)
	if len(bounds) == 0 {
		return WholeNoteSegmenter{}.Segment(text), true
	}
	return bounds, false
}
