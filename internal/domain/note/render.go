package note

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mimic/mimic/pkg/lexspan"
)

// Format selects how a note is rendered.
type Format string

const (
	FormatText     Format = "text"
	FormatRaw      Format = "raw"
	FormatVerbose  Format = "verbose"
	FormatSummary  Format = "summary"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

func Formats() []Format {
	return []Format{FormatText, FormatRaw, FormatVerbose, FormatSummary, FormatJSON, FormatYAML, FormatMarkdown}
}

func ParseFormat(s string) (Format, error) {
	for _, f := range Formats() {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown note format %q", s)
}

// SectionView is the serialized form of a section.
type SectionView struct {
	ID          int            `json:"id" yaml:"id"`
	OriginalID  int            `json:"original_id" yaml:"original_id"`
	Name        string         `json:"name" yaml:"name"`
	Headers     []string       `json:"headers" yaml:"headers"`
	HeaderSpans []lexspan.Span `json:"header_spans" yaml:"header_spans"`
	BodySpan    lexspan.Span   `json:"body_span" yaml:"body_span"`
	Body        string         `json:"body" yaml:"body"`
}

// NoteView is the serialized form of a note and its sections.
type NoteView struct {
	NoteEvent `yaml:",inline"`
	ID        string        `json:"id" yaml:"id"`
	Annotator AnnotatorType `json:"section_annotator_type" yaml:"section_annotator_type"`
	Sections  []SectionView `json:"sections" yaml:"sections"`
}

func newSectionView(s *Section) SectionView {
	return SectionView{
		ID:          s.ID,
		OriginalID:  s.OriginalID,
		Name:        s.Name,
		Headers:     s.Headers(),
		HeaderSpans: s.HeaderSpans,
		BodySpan:    s.BodySpan,
		Body:        s.Body(),
	}
}

// View builds the serialized form of n with the sections of c, or of n
// itself when c is nil.
func View(n *Note, c SectionContainer) NoteView {
	if c == nil {
		c = n
	}
	secs := c.SectionsOrdered()
	v := NoteView{
		NoteEvent: n.NoteEvent,
		ID:        n.ID(),
		Annotator: n.AnnotatorType(),
		Sections:  make([]SectionView, len(secs)),
	}
	for i, s := range secs {
		v.Sections[i] = newSectionView(s)
	}
	return v
}

// Render writes n in format f using the sections of c, or of n when c is
// nil.
func Render(w io.Writer, n *Note, c SectionContainer, f Format) error {
	if c == nil {
		c = n
	}
	switch f {
	case FormatRaw:
		_, err := io.WriteString(w, n.Text())
		return err
	case FormatText:
		return renderText(w, n, c)
	case FormatVerbose:
		return renderVerbose(w, n, c)
	case FormatSummary:
		return renderSummary(w, n, c)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(View(n, c))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(View(n, c)); err != nil {
			return err
		}
		return enc.Close()
	case FormatMarkdown:
		return renderMarkdown(w, n, c)
	default:
		return fmt.Errorf("unknown note format %q", f)
	}
}

func renderText(w io.Writer, n *Note, c SectionContainer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d):\n", n.Category, n.RowID)
	for _, s := range c.SectionsOrdered() {
		fmt.Fprintf(&b, "  %s (%d):\n", s.Name, s.ID)
		for _, line := range strings.Split(s.Body(), "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func renderVerbose(w io.Writer, n *Note, c SectionContainer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "row_id: %d\n", n.RowID)
	fmt.Fprintf(&b, "subject_id: %d\n", n.SubjectID)
	fmt.Fprintf(&b, "hadm_id: %d\n", n.HadmID)
	if n.ChartDate != nil {
		fmt.Fprintf(&b, "chartdate: %s\n", n.ChartDate.Format("2006-01-02"))
	}
	if n.ChartTime != nil {
		fmt.Fprintf(&b, "charttime: %s\n", n.ChartTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "category: %s\n", n.Category)
	fmt.Fprintf(&b, "description: %s\n", n.Description)
	fmt.Fprintf(&b, "annotator: %s\n", n.AnnotatorType())
	fmt.Fprintf(&b, "sections:\n")
	for _, s := range c.SectionsOrdered() {
		fmt.Fprintf(&b, "  %s (id=%d, original_id=%d, span=%s):\n", s.Name, s.ID, s.OriginalID, s.LexSpan())
		for i, h := range s.Headers() {
			fmt.Fprintf(&b, "    header %s: %q\n", s.HeaderSpans[i], h)
		}
		fmt.Fprintf(&b, "    body %s:\n", s.BodySpan)
		for _, line := range strings.Split(s.Body(), "\n") {
			fmt.Fprintf(&b, "      %s\n", line)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func renderSummary(w io.Writer, n *Note, c SectionContainer) error {
	var b strings.Builder
	secs := c.SectionsOrdered()
	fmt.Fprintf(&b, "%s (%d): %d sections, %d chars\n", n.Category, n.RowID, len(secs), len(n.Text()))
	for _, s := range secs {
		fmt.Fprintf(&b, "  %d %s %s %d\n", s.ID, s.Name, s.LexSpan(), s.BodySpan.Len())
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func renderMarkdown(w io.Writer, n *Note, c SectionContainer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%d)\n\n", n.Category, n.RowID)
	for _, s := range c.SectionsOrdered() {
		header := NameToHeader(s.Name)
		if hs := s.Headers(); len(hs) > 0 {
			header = strings.TrimSpace(strings.Join(hs, " "))
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", header, strings.TrimSpace(s.Body()))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
