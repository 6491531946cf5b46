package note

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mimic/mimic/internal/nlp"
)

func TestCategoryTable_Lookup(t *testing.T) {
	table := DefaultCategoryTable()
	tests := []struct {
		raw  string
		want Category
	}{
		{"Discharge summary", CategoryDischargeSummary},
		{"  discharge SUMMARY ", CategoryDischargeSummary},
		{"Nursing/other", CategoryNursing},
		{"Radiology", CategoryRadiology},
		{"Nutrition", CategoryUnknown},
		{"", CategoryUnknown},
	}
	for _, tt := range tests {
		if got := table.Lookup(tt.raw); got != tt.want {
			t.Errorf("Lookup(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestParseCategoryTable(t *testing.T) {
	table, err := ParseCategoryTable([]string{"Nursing=Nursing/other", " ", "Case Management = Consult"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := table.Lookup("Nursing"); got != CategoryNursing {
		t.Errorf("expected Nursing to map to %s, got %s", CategoryNursing, got)
	}
	if got := table.Lookup("case management"); got != CategoryConsult {
		t.Errorf("expected case management to map to %s, got %s", CategoryConsult, got)
	}
	if got := table.Lookup("Echo"); got != CategoryEcho {
		t.Errorf("default mappings should be kept, got %s", got)
	}

	if _, err := ParseCategoryTable([]string{"Nursing"}); err == nil {
		t.Error("expected error for a pair without '='")
	}
	if _, err := ParseCategoryTable([]string{"Nursing=Social Work"}); err == nil {
		t.Error("expected error for an unknown target category")
	}
}

func TestNoteFactory_Create(t *testing.T) {
	repo := newMockNoteRepo(mustEvent(1, 10, "Echo", "Indication: chest pain\nConclusions: normal"))
	n := mustNote(newTestFactory(repo, nil), repo.notes[1])
	if n.Kind() != CategoryEcho {
		t.Errorf("expected kind %s, got %s", CategoryEcho, n.Kind())
	}
	if n.AnnotatorType() != AnnotatorRegex {
		t.Errorf("expected regex annotator, got %s", n.AnnotatorType())
	}
	if n.ID() != "echo" {
		t.Errorf("expected id echo, got %s", n.ID())
	}
}

func TestNoteFactory_DefaultOnly(t *testing.T) {
	repo := newMockNoteRepo(mustEvent(1, 10, "Echo", "Indication: chest pain\nConclusions: normal"))
	f := newTestFactory(repo, nil)
	f = NewNoteFactory(FactoryConfig{Resources: f.Resources(), DefaultOnly: true})
	n := mustNote(f, repo.notes[1])
	secs := n.SectionsOrdered()
	if len(secs) != 1 || secs[0].Name != DefaultSectionName {
		t.Fatalf("expected one default section, got %v", secs)
	}
	if secs[0].Body() != n.Text() {
		t.Errorf("default section should cover the note")
	}
	if n.AnnotatorType() != AnnotatorNone {
		t.Errorf("expected no annotator, got %s", n.AnnotatorType())
	}
}

func TestNoteFactory_CustomCategories(t *testing.T) {
	repo := newMockNoteRepo(mustEvent(1, 10, "Nursing", "Neuro: alert\nResp: clear"))
	table, err := ParseCategoryTable([]string{"Nursing=Nursing/other"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := NewNoteFactory(FactoryConfig{Categories: table, Resources: newTestFactory(repo, nil).Resources()})
	n := mustNote(f, repo.notes[1])
	if n.Kind() != CategoryNursing {
		t.Errorf("expected kind %s, got %s", CategoryNursing, n.Kind())
	}
	if len(n.SectionsByName()["neuro"]) != 1 {
		t.Errorf("expected a neuro section, got %v", n.SectionsByName())
	}
}

func TestNoteFactory_NilEvent(t *testing.T) {
	f := NewNoteFactory(FactoryConfig{})
	if _, err := f.Create(nil); err == nil {
		t.Error("expected error for nil note event")
	}
}

func TestParsingDocumentStore_Cache(t *testing.T) {
	repo := newMockNoteRepo(mustEvent(1, 10, "Echo", "Seen by [**Last Name 2**]."))
	cache := newMemCache()
	store := NewParsingDocumentStore(repo, nlp.NewTokenizer(nlp.NewMimicTokenDecorator(nil, nil)), cache, zerolog.Nop())
	ctx := context.Background()

	first, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if cache.hits != 0 {
		t.Errorf("expected a cache miss first, got %d hits", cache.hits)
	}
	second, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if cache.hits != 1 {
		t.Errorf("expected a cache hit, got %d hits", cache.hits)
	}
	if first.TokenLen() != second.TokenLen() || first.Norm() != second.Norm() {
		t.Errorf("cached document differs: %q vs %q", first.Norm(), second.Norm())
	}
	mask := second.Tokens()[2]
	if mask.Feature(nlp.FeatureMimic) != nlp.MaskFeature {
		t.Errorf("features should survive the cache, got %q", mask.Feature(nlp.FeatureMimic))
	}

	if _, err := store.Get(ctx, 99); err == nil {
		t.Error("expected error for a missing note")
	}
}
