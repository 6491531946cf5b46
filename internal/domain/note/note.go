package note

import (
	"context"
	"fmt"
	"time"

	"github.com/mimic/mimic/internal/nlp"
	"github.com/mimic/mimic/internal/platform/apperr"
)

// SegmentationObserver is told about every note segmentation.
type SegmentationObserver interface {
	ObserveSegmentation(category string, sections int, fallback bool, elapsed time.Duration)
}

// Note is a NoteEvent together with its sections. Sections are computed on
// first access and kept for the life of the note.
type Note struct {
	NoteEvent

	category  Category
	segmenter Segmenter
	res       *Resources
	observer  SegmentationObserver

	table     *lazy[*sectionTable]
	doc       *lazy[*nlp.Document]
	annotator AnnotatorType
}

func newNote(ev *NoteEvent, category Category, seg Segmenter, res *Resources, obs SegmentationObserver) (*Note, error) {
	if ev == nil || ev.RowID == 0 {
		return nil, &apperr.ConstructionError{
			Entity: "note",
			Field:  "row_id",
			Err:    apperr.NotFound("note", "row", "<nil>"),
		}
	}
	return &Note{
		NoteEvent: *ev,
		category:  category,
		segmenter: seg,
		res:       res,
		observer:  obs,
		table:     &lazy[*sectionTable]{},
		doc:       &lazy[*nlp.Document]{},
	}, nil
}

// Kind is the category the note was dispatched on.
func (n *Note) Kind() Category { return n.category }

// Event returns the underlying record.
func (n *Note) Event() *NoteEvent { return &n.NoteEvent }

// Text is the full note text.
func (n *Note) Text() string { return n.NoteEvent.Text }

// AnnotatorType reports where the note's sections came from. A regex note
// that fell back to the whole note reports AnnotatorNone.
func (n *Note) AnnotatorType() AnnotatorType {
	n.sections()
	return n.annotator
}

func (n *Note) sections() *sectionTable {
	t, _ := n.table.get(func() (*sectionTable, error) {
		start := time.Now()
		text := n.NoteEvent.Text
		bounds, fallback := segment(n.segmenter, text)
		_, whole := n.segmenter.(WholeNoteSegmenter)
		n.annotator = n.segmenter.AnnotatorType()
		if fallback {
			n.annotator = AnnotatorNone
		}
		secs := make([]*Section, len(bounds))
		for i, b := range bounds {
			name := ""
			if fallback || whole {
				name = DefaultSectionName
			}
			secs[i] = newSection(i, name, b.Headers, b.Body, n.RowID, text, n.res, n.doc)
		}
		if n.observer != nil {
			n.observer.ObserveSegmentation(n.category.String(), len(secs), fallback, time.Since(start))
		}
		return newSectionTable(secs), nil
	})
	return t
}

// Doc is the parsed document of the note, fetched from the document store
// on first use and shared with every section.
func (n *Note) Doc(ctx context.Context) (*nlp.Document, error) {
	return n.doc.get(func() (*nlp.Document, error) {
		if n.res == nil || n.res.Documents == nil {
			return nil, fmt.Errorf("note %d: no document store", n.RowID)
		}
		return n.res.Documents.Get(ctx, n.RowID)
	})
}

func (n *Note) Sections() map[int]*Section { return n.sections().sections() }
func (n *Note) SectionsOrdered() []*Section { return n.sections().ordered() }
func (n *Note) SectionsByName() map[string][]*Section { return n.sections().byName() }
func (n *Note) Section(id int) (*Section, bool) { return n.sections().get(id) }

// WithGaps returns a container whose sections cover the whole note.
func (n *Note) WithGaps(filterEmpty bool) *GapSectionContainer {
	return NewGapSectionContainer(n, filterEmpty)
}

// StaticSegmenter returns boundaries supplied from outside, such as human
// or model annotations.
type StaticSegmenter struct {
	Bounds    []Boundary
	Annotator AnnotatorType
}

func (s StaticSegmenter) Segment(string) []Boundary { return s.Bounds }
func (s StaticSegmenter) AnnotatorType() AnnotatorType { return s.Annotator }

// FactoryConfig configures a NoteFactory.
type FactoryConfig struct {
	Categories CategoryTable
	Resources  *Resources
	Observer   SegmentationObserver
	// DefaultOnly disables category segmenters so that every note has one
	// whole note section.
	DefaultOnly bool
}

// NoteFactory builds notes, choosing a segmenter from the note category.
type NoteFactory struct {
	cfg FactoryConfig
}

func NewNoteFactory(cfg FactoryConfig) *NoteFactory {
	if cfg.Categories == nil {
		cfg.Categories = DefaultCategoryTable()
	}
	return &NoteFactory{cfg: cfg}
}

func (f *NoteFactory) Resources() *Resources { return f.cfg.Resources }

// Create builds a note using the segmenter mapped to its category.
func (f *NoteFactory) Create(ev *NoteEvent) (*Note, error) {
	if f.cfg.DefaultOnly {
		return f.CreateDefault(ev)
	}
	var c Category
	if ev != nil {
		c = f.cfg.Categories.Lookup(ev.Category)
	}
	return newNote(ev, c, SegmenterFor(c), f.cfg.Resources, f.cfg.Observer)
}

// CreateDefault builds a note with a single whole note section.
func (f *NoteFactory) CreateDefault(ev *NoteEvent) (*Note, error) {
	var c Category
	if ev != nil {
		c = f.cfg.Categories.Lookup(ev.Category)
	}
	return newNote(ev, c, WholeNoteSegmenter{}, f.cfg.Resources, f.cfg.Observer)
}

// CreateWith builds a note with an explicit segmenter.
func (f *NoteFactory) CreateWith(ev *NoteEvent, seg Segmenter) (*Note, error) {
	var c Category
	if ev != nil {
		c = f.cfg.Categories.Lookup(ev.Category)
	}
	return newNote(ev, c, seg, f.cfg.Resources, f.cfg.Observer)
}
