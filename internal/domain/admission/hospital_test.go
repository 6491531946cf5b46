package admission

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/mimic/mimic/internal/domain/note"
	"github.com/mimic/mimic/internal/platform/apperr"
)

func buildNotes(t *testing.T, f *fixture, events ...*note.NoteEvent) []*note.Note {
	t.Helper()
	var notes []*note.Note
	for _, ev := range events {
		n, err := f.svc.Factory.Create(ev)
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		notes = append(notes, n)
	}
	return notes
}

func loadFixture(t *testing.T) (*fixture, *HospitalAdmission) {
	t.Helper()
	f := newFixture()
	h, err := f.svc.Load(context.Background(), 10)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return f, h
}

func rowIDs(notes []*note.Note) []int64 {
	ids := make([]int64, len(notes))
	for i, n := range notes {
		ids[i] = n.RowID
	}
	return ids
}

func TestNewHospitalAdmission_Validation(t *testing.T) {
	f := newFixture()
	pat := Patient{SubjectID: 100}

	_, err := NewHospitalAdmission(Admission{SubjectID: 100}, pat, nil, nil, nil)
	if !apperr.IsConstruction(err) {
		t.Errorf("expected construction error for zero hadm_id, got %v", err)
	}

	_, err = NewHospitalAdmission(*testAdmission(10), Patient{SubjectID: 7}, nil, nil, nil)
	if !errors.Is(err, apperr.ErrMimic) {
		t.Errorf("expected ErrMimic for a patient mismatch, got %v", err)
	}

	other := buildNotes(t, f, mustEvent(9, 11, "Echo", "Findings:\nnormal"))
	_, err = NewHospitalAdmission(*testAdmission(10), pat, nil, nil, other)
	if !errors.Is(err, apperr.ErrMimic) {
		t.Errorf("expected ErrMimic for a note of another admission, got %v", err)
	}

	twice := buildNotes(t, f, mustEvent(9, 10, "Echo", "a"), mustEvent(9, 10, "Echo", "b"))
	_, err = NewHospitalAdmission(*testAdmission(10), pat, nil, nil, twice)
	if !errors.Is(err, apperr.ErrMimic) {
		t.Errorf("expected ErrMimic for a repeated row id, got %v", err)
	}
}

func TestHospitalAdmission_Notes(t *testing.T) {
	_, h := loadFixture(t)

	if got := rowIDs(h.Notes()); !slices.Equal(got, []int64{1, 2, 3, 4}) {
		t.Errorf("notes should be in row id order, got %v", got)
	}
	for _, n := range h.Notes() {
		if n.HadmID != h.HadmID() {
			t.Errorf("note %d has hadm_id %d", n.RowID, n.HadmID)
		}
	}
	if !h.Contains(3) || h.Contains(5) {
		t.Error("Contains() should report admission notes only")
	}
	if n, err := h.Note(4); err != nil || n.Category != "Radiology" {
		t.Errorf("Note(4) = %v, %v", n, err)
	}
	if _, err := h.Note(5); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if len(h.NotesByID()) != 4 {
		t.Errorf("expected 4 notes by id, got %d", len(h.NotesByID()))
	}
}

func TestHospitalAdmission_NotesByCategory(t *testing.T) {
	_, h := loadFixture(t)

	want := []string{"Discharge summary", "Nursing", "Nursing/other", "Radiology"}
	if got := h.Categories(); !slices.Equal(got, want) {
		t.Errorf("Categories() = %v, want %v", got, want)
	}
	by := h.NotesByCategory()
	if got := rowIDs(by["Nursing/other"]); !slices.Equal(got, []int64{2}) {
		t.Errorf("unexpected nursing notes %v", got)
	}
}

func TestHospitalAdmission_DuplicateNotes(t *testing.T) {
	_, h := loadFixture(t)

	groups := h.DuplicateNotes(0)
	if len(groups) != 1 || !slices.Equal(groups[0], []int64{2, 3}) {
		t.Fatalf("expected one group [2 3], got %v", groups)
	}

	f := newFixture()
	notes := buildNotes(t, f,
		mustEvent(20, 10, "Echo", "Neuro: a"),
		mustEvent(21, 10, "Echo", "Neuro: b"),
		mustEvent(22, 10, "Echo", "Other"),
	)
	h2, err := NewHospitalAdmission(*testAdmission(10), Patient{SubjectID: 100}, nil, nil, notes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if groups := h2.DuplicateNotes(0); len(groups) != 0 {
		t.Errorf("expected no duplicates on full text, got %v", groups)
	}
	if groups := h2.DuplicateNotes(5); len(groups) != 1 || !slices.Equal(groups[0], []int64{20, 21}) {
		t.Errorf("expected prefix duplicates [20 21], got %v", groups)
	}
}

func TestHospitalAdmission_NonDuplicateNotes(t *testing.T) {
	_, h := loadFixture(t)
	groups := h.DuplicateNotes(0)

	choices := h.NonDuplicateNotes(groups, nil)
	var ids []int64
	var dups []bool
	for _, c := range choices {
		ids = append(ids, c.Note.RowID)
		dups = append(dups, c.Duplicate)
	}
	if !slices.Equal(ids, []int64{1, 4, 2}) || !slices.Equal(dups, []bool{false, false, true}) {
		t.Errorf("unexpected choices ids=%v dups=%v", ids, dups)
	}

	prefer := func(n *note.Note) bool { return n.Category == "Nursing" }
	choices = h.NonDuplicateNotes(groups, prefer)
	if last := choices[len(choices)-1]; last.Note.RowID != 3 || !last.Duplicate {
		t.Errorf("expected preferred note 3, got %d", last.Note.RowID)
	}

	none := func(*note.Note) bool { return false }
	choices = h.NonDuplicateNotes(groups, none)
	if last := choices[len(choices)-1]; last.Note.RowID != 2 {
		t.Errorf("expected the lowest row id when nothing is preferred, got %d", last.Note.RowID)
	}

	if got := h.NonDuplicateNotes(nil, nil); len(got) != 4 {
		t.Errorf("expected every note without groups, got %d", len(got))
	}
}

func TestHospitalAdmission_FeatureRows(t *testing.T) {
	f, h := loadFixture(t)
	rows, err := h.FeatureRows(context.Background(), f.svc.Projector)
	if err != nil {
		t.Fatalf("FeatureRows() error: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("expected feature rows")
	}
	for _, r := range rows {
		if r["hadm_id"] != int64(10) {
			t.Fatalf("expected hadm_id 10, got %v", r["hadm_id"])
		}
	}
	if rows[0]["row_id"] != int64(1) {
		t.Errorf("discharge summary rows should come first, got row %v", rows[0]["row_id"])
	}
	if last := rows[len(rows)-1]; last["row_id"] != int64(4) {
		t.Errorf("radiology rows should come last, got row %v", last["row_id"])
	}
}

func TestHospitalAdmission_Record(t *testing.T) {
	_, h := loadFixture(t)
	rec := h.Record()
	if rec.Admission.HadmID != 10 || len(rec.Notes) != 4 || len(rec.Diagnoses) != 1 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Notes[0].Text == "" {
		t.Error("record notes should carry their text")
	}
}
