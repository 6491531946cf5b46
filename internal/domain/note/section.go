package note

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/mimic/mimic/internal/nlp"
	"github.com/mimic/mimic/internal/platform/apperr"
	"github.com/mimic/mimic/pkg/lexspan"
)

// UnknownSectionName names sections that have no header.
const UnknownSectionName = "unknown"

// enumSentRegex matches sentences that lead with a list number, i.e. "1.".
var enumSentRegex = regexp.MustCompile(`^\s*\d+\.\s*`)

// Resources are the collaborators shared by every section of a note and by
// its clones.
type Resources struct {
	Documents  DocumentStore
	Paragraphs ParagraphFactory
	// FilterEnums drops list number sentences from body documents.
	FilterEnums bool
}

// Section is a labeled region of a note: zero or more header spans followed
// by a body span. Offsets are relative to the note text.
type Section struct {
	ID          int            `json:"id" yaml:"id"`
	OriginalID  int            `json:"original_id" yaml:"original_id"`
	Name        string         `json:"name" yaml:"name"`
	HeaderSpans []lexspan.Span `json:"header_spans" yaml:"header_spans"`
	BodySpan    lexspan.Span   `json:"body_span" yaml:"body_span"`

	rowID   int64
	text    string
	lexspan lexspan.Span
	res     *Resources
	// noteDoc is shared by every section of a note and by their clones.
	noteDoc *lazy[*nlp.Document]

	doc        *lazy[*nlp.Document]
	bodyDoc    *lazy[*nlp.Document]
	paragraphs *lazy[iter.Seq[*nlp.Document]]
}

// NewSection builds a section of the note identified by rowID with full
// text text. An empty name is inferred from the headers.
func NewSection(id int, name string, headers []lexspan.Span, body lexspan.Span,
	rowID int64, text string, res *Resources) (*Section, error) {
	if rowID == 0 {
		return nil, &apperr.ConstructionError{
			Entity: "section",
			Field:  "row_id",
			Err:    apperr.NotFound("section", "row", "<nil>"),
		}
	}
	if body.Begin > body.End || body.End > len(text) {
		return nil, &apperr.ConstructionError{
			Entity: "section",
			Field:  "body_span",
			Err:    fmt.Errorf("span %s outside text of length %d", body, len(text)),
		}
	}
	for _, h := range headers {
		if h.Overlaps(body) {
			return nil, &apperr.ConstructionError{
				Entity: "section",
				Field:  "header_spans",
				Err:    fmt.Errorf("header %s overlaps body %s", h, body),
			}
		}
	}
	s := newSection(id, name, headers, body, rowID, text, res, nil)
	return s, nil
}

func newSection(id int, name string, headers []lexspan.Span, body lexspan.Span,
	rowID int64, text string, res *Resources, noteDoc *lazy[*nlp.Document]) *Section {
	if noteDoc == nil {
		noteDoc = &lazy[*nlp.Document]{}
	}
	hs := make([]lexspan.Span, len(headers))
	copy(hs, headers)
	lexspan.Sort(hs)
	s := &Section{
		ID:          id,
		OriginalID:  id,
		Name:        name,
		HeaderSpans: hs,
		BodySpan:    body,
		rowID:       rowID,
		text:        text,
		res:         res,
		noteDoc:     noteDoc,
	}
	s.lexspan, _ = lexspan.Widen(append([]lexspan.Span{body}, hs...)...)
	if s.Name == "" {
		s.Name = inferName(s.Headers())
	}
	s.resetCaches()
	return s
}

func (s *Section) resetCaches() {
	s.doc = &lazy[*nlp.Document]{}
	s.bodyDoc = &lazy[*nlp.Document]{}
	s.paragraphs = &lazy[iter.Seq[*nlp.Document]]{}
}

func inferName(headers []string) string {
	if len(headers) == 0 {
		return UnknownSectionName
	}
	return HeaderToName(strings.Join(headers, " "))
}

func (s *Section) RowID() int64 { return s.rowID }

// LexSpan is the widest span covering the headers and the body.
func (s *Section) LexSpan() lexspan.Span { return s.lexspan }

// Headers returns the header texts in span order.
func (s *Section) Headers() []string {
	out := make([]string, len(s.HeaderSpans))
	for i, h := range s.HeaderSpans {
		out[i] = h.Slice(s.text)
	}
	return out
}

func (s *Section) Body() string { return s.BodySpan.Slice(s.text) }

// Text is the note text covered by LexSpan.
func (s *Section) Text() string { return s.lexspan.Slice(s.text) }

func (s *Section) Len() int { return s.lexspan.Len() }

// IsEmpty reports whether the section has no headers and a blank body.
func (s *Section) IsEmpty() bool {
	return len(s.HeaderSpans) == 0 && strings.TrimSpace(s.Body()) == ""
}

// Doc narrows the note document to the section's full span.
func (s *Section) Doc(ctx context.Context) (*nlp.Document, error) {
	return s.doc.get(func() (*nlp.Document, error) {
		return s.narrow(ctx, s.lexspan, false)
	})
}

// BodyDoc narrows the note document to the body span, dropping list number
// sentences when the resources enable it.
func (s *Section) BodyDoc(ctx context.Context) (*nlp.Document, error) {
	return s.bodyDoc.get(func() (*nlp.Document, error) {
		return s.narrow(ctx, s.BodySpan, s.res != nil && s.res.FilterEnums)
	})
}

// NoteDoc is the parsed document of the whole note. It is fetched once per
// note and shared with the note's other sections.
func (s *Section) NoteDoc(ctx context.Context) (*nlp.Document, error) {
	return s.noteDoc.get(func() (*nlp.Document, error) {
		if s.res == nil || s.res.Documents == nil {
			return nil, fmt.Errorf("section %d of note %d: no document store", s.ID, s.rowID)
		}
		return s.res.Documents.Get(ctx, s.rowID)
	})
}

func (s *Section) narrow(ctx context.Context, span lexspan.Span, filterEnums bool) (*nlp.Document, error) {
	doc, err := s.NoteDoc(ctx)
	if err != nil {
		return nil, err
	}
	sub := doc.OverlappingDocument(span, true)
	if filterEnums {
		sents := sub.Sents[:0]
		for _, sent := range sub.Sents {
			if !enumSentRegex.MatchString(sent.Text) {
				sents = append(sents, sent)
			}
		}
		sub.Sents = sents
	}
	return sub, nil
}

// HeaderTokens returns the tokens that fall in a header span.
func (s *Section) HeaderTokens(ctx context.Context) ([]nlp.Token, error) {
	doc, err := s.Doc(ctx)
	if err != nil {
		return nil, err
	}
	var out []nlp.Token
	for _, t := range doc.Tokens() {
		for _, h := range s.HeaderSpans {
			if h.Contains(t.Span) {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

// BodyTokens returns the tokens of the unfiltered body.
func (s *Section) BodyTokens(ctx context.Context) ([]nlp.Token, error) {
	doc, err := s.Doc(ctx)
	if err != nil {
		return nil, err
	}
	var out []nlp.Token
	for _, t := range doc.Tokens() {
		if s.BodySpan.Contains(t.Span) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Paragraphs splits the body with the configured paragraph factory. The
// returned sequence may be ranged over more than once.
func (s *Section) Paragraphs(ctx context.Context) (iter.Seq[*nlp.Document], error) {
	return s.paragraphs.get(func() (iter.Seq[*nlp.Document], error) {
		if s.res == nil || s.res.Paragraphs == nil {
			return nil, fmt.Errorf("section %d of note %d: no paragraph factory", s.ID, s.rowID)
		}
		return s.res.Paragraphs.Create(ctx, s)
	})
}

// Clone returns a copy that shares the note text, note document and
// resources but has its own section caches.
func (s *Section) Clone() *Section {
	c := *s
	c.HeaderSpans = append([]lexspan.Span(nil), s.HeaderSpans...)
	c.resetCaches()
	return &c
}

func (s *Section) String() string {
	return fmt.Sprintf("%s (%d): %s", s.Name, s.ID, s.lexspan)
}
