package note

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mimic/mimic/internal/nlp"
	"github.com/mimic/mimic/internal/platform/apperr"
	"github.com/mimic/mimic/pkg/lexspan"
)

func TestNewSection_InfersName(t *testing.T) {
	text := "Discharge Medications:\nAspirin"
	s, err := NewSection(0, "", []lexspan.Span{{Begin: 0, End: 21}}, lexspan.Span{Begin: 23, End: 30}, 1, text, nil)
	if err != nil {
		t.Fatalf("NewSection() error: %v", err)
	}
	if s.Name != "discharge-medications" {
		t.Errorf("expected discharge-medications, got %q", s.Name)
	}
	if s.LexSpan() != (lexspan.Span{Begin: 0, End: 30}) {
		t.Errorf("unexpected lexspan %s", s.LexSpan())
	}
	if s.Body() != "Aspirin" || s.Text() != text {
		t.Errorf("unexpected body %q text %q", s.Body(), s.Text())
	}

	u, _ := NewSection(1, "", nil, lexspan.Span{Begin: 23, End: 30}, 1, text, nil)
	if u.Name != UnknownSectionName {
		t.Errorf("expected %q for a headerless section, got %q", UnknownSectionName, u.Name)
	}
}

func TestNewSection_NullRowID(t *testing.T) {
	_, err := NewSection(0, "", nil, lexspan.Span{Begin: 0, End: 1}, 0, "x", nil)
	if err == nil {
		t.Fatal("expected construction error")
	}
	if !apperr.IsConstruction(err) || !apperr.IsNotFound(err) {
		t.Errorf("expected a construction error signalling a missing record, got %v", err)
	}
}

func TestNewSection_HeaderOverlapsBody(t *testing.T) {
	_, err := NewSection(0, "", []lexspan.Span{{Begin: 0, End: 5}}, lexspan.Span{Begin: 3, End: 8}, 1, "0123456789", nil)
	if !apperr.IsConstruction(err) {
		t.Errorf("expected construction error, got %v", err)
	}
	_, err = NewSection(0, "", nil, lexspan.Span{Begin: 3, End: 80}, 1, "0123456789", nil)
	if !apperr.IsConstruction(err) {
		t.Errorf("expected construction error for span beyond text, got %v", err)
	}
}

func TestSection_IsEmpty(t *testing.T) {
	text := "A:\n \n"
	blank, _ := NewSection(0, "", nil, lexspan.Span{Begin: 2, End: 5}, 1, text, nil)
	if !blank.IsEmpty() {
		t.Error("expected whitespace-only headerless section to be empty")
	}
	headed, _ := NewSection(0, "", []lexspan.Span{{Begin: 0, End: 1}}, lexspan.Span{Begin: 2, End: 5}, 1, text, nil)
	if headed.IsEmpty() {
		t.Error("a section with a header is not empty")
	}
}

func TestSection_CloneIsIndependent(t *testing.T) {
	text := "Plan:\nrest"
	s, _ := NewSection(3, "", []lexspan.Span{{Begin: 0, End: 4}}, lexspan.Span{Begin: 6, End: 10}, 9, text, &Resources{})
	c := s.Clone()
	c.ID = 0
	c.HeaderSpans[0] = lexspan.Span{Begin: 1, End: 2}
	if s.ID != 3 || s.HeaderSpans[0] != (lexspan.Span{Begin: 0, End: 4}) {
		t.Error("mutating the clone changed the original")
	}
	if c.res != s.res || c.RowID() != s.RowID() {
		t.Error("clone should share resources and row id")
	}
	if c.doc == s.doc {
		t.Error("clone should not share caches")
	}
}

func TestSection_Docs(t *testing.T) {
	text := "Discharge Medications:\n1. Aspirin 81 mg\n2. Lisinopril 10 mg"
	repo := newMockNoteRepo(mustEvent(5, 10, "Discharge summary", text))
	n := mustNote(newTestFactory(repo, nil), repo.notes[5])
	sec := n.SectionsOrdered()[0]
	ctx := context.Background()

	doc, err := sec.Doc(ctx)
	if err != nil {
		t.Fatalf("Doc() error: %v", err)
	}
	if doc.Tokens()[0].Text != "Discharge" {
		t.Errorf("full document should start with the header, got %q", doc.Tokens()[0].Text)
	}
	headers, _ := sec.HeaderTokens(ctx)
	if len(headers) != 2 {
		t.Errorf("expected 2 header tokens, got %d", len(headers))
	}

	body, err := sec.BodyDoc(ctx)
	if err != nil {
		t.Fatalf("BodyDoc() error: %v", err)
	}
	for _, s := range body.Sents {
		if enumSentRegex.MatchString(s.Text) {
			t.Errorf("list number sentence %q should be filtered", s.Text)
		}
	}
	if body.Tokens()[0].Text != "Aspirin" {
		t.Errorf("expected body to start at Aspirin, got %q", body.Tokens()[0].Text)
	}
	unfiltered, _ := sec.BodyTokens(ctx)
	if unfiltered[0].Text != "1" {
		t.Errorf("BodyTokens should not filter, got %q", unfiltered[0].Text)
	}

	again, _ := sec.BodyDoc(ctx)
	if again != body {
		t.Error("BodyDoc should be memoized")
	}
}

func TestSection_DocsWithoutStore(t *testing.T) {
	s, _ := NewSection(0, "", nil, lexspan.Span{Begin: 0, End: 1}, 1, "x", nil)
	if _, err := s.Doc(context.Background()); err == nil {
		t.Error("expected error without a document store")
	}
	if _, err := s.Paragraphs(context.Background()); err == nil {
		t.Error("expected error without a paragraph factory")
	}
}

func TestSection_NoteDocParsedOnce(t *testing.T) {
	text := "Chief Complaint:\nchest pain\n\nDischarge Medications:\n1. Aspirin 81 mg\n\nfollow up in clinic"
	repo := newMockNoteRepo(mustEvent(5, 10, "Discharge summary", text))
	parser := nlp.NewTokenizer(nlp.NewMimicTokenDecorator(nil, nil))
	store := &countingStore{DocumentStore: NewParsingDocumentStore(repo, parser, nil, zerolog.Nop())}
	f := NewNoteFactory(FactoryConfig{Resources: &Resources{Documents: store, Paragraphs: defaultChunker()}})
	n := mustNote(f, repo.notes[5])
	ctx := context.Background()

	for _, sec := range n.SectionsOrdered() {
		if _, err := sec.BodyDoc(ctx); err != nil {
			t.Fatalf("BodyDoc() error: %v", err)
		}
		if _, err := sec.Clone().Doc(ctx); err != nil {
			t.Fatalf("clone Doc() error: %v", err)
		}
	}
	for _, sec := range n.WithGaps(false).SectionsOrdered() {
		if _, err := sec.Doc(ctx); err != nil {
			t.Fatalf("gap Doc() error: %v", err)
		}
	}
	if _, err := n.Doc(ctx); err != nil {
		t.Fatalf("note Doc() error: %v", err)
	}
	if store.calls != 1 {
		t.Errorf("expected the note to be parsed once, got %d parses", store.calls)
	}
}

func TestEnumSentRegex(t *testing.T) {
	tests := []struct {
		sent string
		want bool
	}{
		{"1.", true},
		{"  12. ", true},
		{"3. Aspirin 81 mg", true},
		{"Aspirin 1.", false},
		{"x1.", false},
		{"1", false},
	}
	for _, tt := range tests {
		if got := enumSentRegex.MatchString(tt.sent); got != tt.want {
			t.Errorf("enumSentRegex(%q) = %v, want %v", tt.sent, got, tt.want)
		}
	}
}
