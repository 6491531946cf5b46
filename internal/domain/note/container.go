package note

import (
	"context"
	"sort"

	"github.com/mimic/mimic/internal/nlp"
	"github.com/mimic/mimic/pkg/lexspan"
)

// SectionContainer owns the sections of one note text.
type SectionContainer interface {
	// Text is the full note text the sections index into.
	Text() string
	// Sections maps section id to section.
	Sections() map[int]*Section
	// SectionsOrdered returns the sections sorted by span.
	SectionsOrdered() []*Section
	// SectionsByName groups sections by name in scan order.
	SectionsByName() map[string][]*Section
	Section(id int) (*Section, bool)
}

// sectionTable is the section storage shared by container implementations.
// Sections are kept in insertion order.
type sectionTable struct {
	byID  map[int]*Section
	order []*Section
}

func newSectionTable(secs []*Section) *sectionTable {
	t := &sectionTable{byID: make(map[int]*Section, len(secs)), order: secs}
	for _, s := range secs {
		t.byID[s.ID] = s
	}
	return t
}

func (t *sectionTable) sections() map[int]*Section {
	out := make(map[int]*Section, len(t.byID))
	for id, s := range t.byID {
		out[id] = s
	}
	return out
}

func (t *sectionTable) ordered() []*Section {
	out := append([]*Section(nil), t.order...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].lexspan.Less(out[j].lexspan) })
	return out
}

func (t *sectionTable) byName() map[string][]*Section {
	out := make(map[string][]*Section)
	for _, s := range t.order {
		out[s.Name] = append(out[s.Name], s)
	}
	return out
}

func (t *sectionTable) get(id int) (*Section, bool) {
	s, ok := t.byID[id]
	return s, ok
}

// BuildGapFilled returns clones of sections plus a headerless section for
// every uncovered region of [0, textLen), sorted by span and renumbered from
// zero. OriginalID holds each section's id before renumbering; synthetic
// sections have an OriginalID of -1. When filterEmpty is set, gaps holding
// only whitespace are skipped. The input is not modified.
func BuildGapFilled(sections []*Section, textLen int, filterEmpty bool) []*Section {
	if len(sections) == 0 {
		return nil
	}
	out := make([]*Section, 0, len(sections))
	spans := make([]lexspan.Span, 0, len(sections))
	for _, s := range sections {
		out = append(out, s.Clone())
		spans = append(spans, s.lexspan)
	}
	ref := sections[0]
	for _, g := range lexspan.Gaps(spans, textLen) {
		gs := newSection(-1, "", nil, g, ref.rowID, ref.text, ref.res, ref.noteDoc)
		if filterEmpty && gs.IsEmpty() {
			continue
		}
		out = append(out, gs)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].lexspan.Less(out[j].lexspan) })
	for i, s := range out {
		s.OriginalID = s.ID
		s.ID = i
	}
	return out
}

// GapSectionContainer covers the whole note text by filling the regions its
// delegate's sections leave uncovered.
type GapSectionContainer struct {
	delegate SectionContainer
	table    *sectionTable
}

func NewGapSectionContainer(delegate SectionContainer, filterEmpty bool) *GapSectionContainer {
	secs := BuildGapFilled(delegate.SectionsOrdered(), len(delegate.Text()), filterEmpty)
	return &GapSectionContainer{delegate: delegate, table: newSectionTable(secs)}
}

func (c *GapSectionContainer) Delegate() SectionContainer { return c.delegate }

func (c *GapSectionContainer) Text() string { return c.delegate.Text() }
func (c *GapSectionContainer) Sections() map[int]*Section { return c.table.sections() }
func (c *GapSectionContainer) SectionsOrdered() []*Section { return c.table.ordered() }
func (c *GapSectionContainer) SectionsByName() map[string][]*Section { return c.table.byName() }
func (c *GapSectionContainer) Section(id int) (*Section, bool) { return c.table.get(id) }

// SectionRow is the tabular view of one section.
type SectionRow struct {
	Name      string   `json:"name" yaml:"name"`
	ID        int      `json:"id" yaml:"id"`
	Body      string   `json:"body" yaml:"body"`
	Headers   []string `json:"headers" yaml:"headers"`
	BodyBegin int      `json:"body_begin" yaml:"body_begin"`
	BodyEnd   int      `json:"body_end" yaml:"body_end"`
}

// SectionRows returns one row per section in span order.
func SectionRows(c SectionContainer) []SectionRow {
	secs := c.SectionsOrdered()
	rows := make([]SectionRow, len(secs))
	for i, s := range secs {
		rows[i] = SectionRow{
			Name:      s.Name,
			ID:        s.ID,
			Body:      s.Body(),
			Headers:   s.Headers(),
			BodyBegin: s.BodySpan.Begin,
			BodyEnd:   s.BodySpan.End,
		}
	}
	return rows
}

// FeatureRows projects each section's body document and adds the section
// name and id to every row.
func FeatureRows(ctx context.Context, c SectionContainer, proj nlp.FeatureProjector) ([]nlp.FeatureRow, error) {
	var rows []nlp.FeatureRow
	for _, s := range c.SectionsOrdered() {
		doc, err := s.BodyDoc(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range proj.Project(doc) {
			r["section"] = s.Name
			r["section_id"] = s.ID
			rows = append(rows, r)
		}
	}
	return rows, nil
}
