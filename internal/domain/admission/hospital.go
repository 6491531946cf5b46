package admission

import (
	"context"
	"fmt"
	"sort"

	"github.com/mimic/mimic/internal/domain/note"
	"github.com/mimic/mimic/internal/nlp"
	"github.com/mimic/mimic/internal/platform/apperr"
)

// HospitalAdmission is one hospital stay with its patient, ICD-9 codes and
// notes. Every note belongs to the admission's hadm_id and notes are kept
// in row id order.
type HospitalAdmission struct {
	Admission  Admission
	Patient    Patient
	Diagnoses  []Diagnosis
	Procedures []Procedure

	notes      []*note.Note
	byID       map[int64]*note.Note
	byCategory map[string][]*note.Note
}

func NewHospitalAdmission(adm Admission, pat Patient, diags []Diagnosis, procs []Procedure,
	notes []*note.Note) (*HospitalAdmission, error) {
	if adm.HadmID == 0 {
		return nil, &apperr.ConstructionError{
			Entity: "hospital admission",
			Field:  "hadm_id",
			Err:    apperr.NotFound("hospital admission", "hadm", "<nil>"),
		}
	}
	if pat.SubjectID != adm.SubjectID {
		return nil, fmt.Errorf("%w: admission %d is for subject %d, not %d",
			apperr.ErrMimic, adm.HadmID, adm.SubjectID, pat.SubjectID)
	}

	h := &HospitalAdmission{
		Admission:  adm,
		Patient:    pat,
		Diagnoses:  diags,
		Procedures: procs,
		notes:      make([]*note.Note, 0, len(notes)),
		byID:       make(map[int64]*note.Note, len(notes)),
		byCategory: make(map[string][]*note.Note),
	}
	for _, n := range notes {
		if n.HadmID != adm.HadmID {
			return nil, fmt.Errorf("%w: note %d belongs to admission %d, not %d",
				apperr.ErrMimic, n.RowID, n.HadmID, adm.HadmID)
		}
		if _, dup := h.byID[n.RowID]; dup {
			return nil, fmt.Errorf("%w: note %d appears twice in admission %d", apperr.ErrMimic, n.RowID, adm.HadmID)
		}
		h.byID[n.RowID] = n
		h.notes = append(h.notes, n)
	}
	sort.Slice(h.notes, func(i, j int) bool { return h.notes[i].RowID < h.notes[j].RowID })
	for _, n := range h.notes {
		h.byCategory[n.Category] = append(h.byCategory[n.Category], n)
	}
	return h, nil
}

func (h *HospitalAdmission) HadmID() int64 { return h.Admission.HadmID }

// Notes returns the notes in row id order. The slice must not be modified.
func (h *HospitalAdmission) Notes() []*note.Note { return h.notes }

func (h *HospitalAdmission) Len() int { return len(h.notes) }

// NotesByCategory groups the notes by their raw category string.
func (h *HospitalAdmission) NotesByCategory() map[string][]*note.Note { return h.byCategory }

// Categories returns the note categories of the admission, sorted.
func (h *HospitalAdmission) Categories() []string {
	cats := make([]string, 0, len(h.byCategory))
	for c := range h.byCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

func (h *HospitalAdmission) NotesByID() map[int64]*note.Note { return h.byID }

func (h *HospitalAdmission) Note(rowID int64) (*note.Note, error) {
	n, ok := h.byID[rowID]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("hospital admission %d", h.HadmID()), "note row", rowID)
	}
	return n, nil
}

func (h *HospitalAdmission) Contains(rowID int64) bool {
	_, ok := h.byID[rowID]
	return ok
}

// DuplicateNotes groups the row ids of notes with identical text. When
// textPrefix is positive only the first textPrefix bytes are compared.
// Groups hold at least two row ids in ascending order and are ordered by
// their first row id.
func (h *HospitalAdmission) DuplicateNotes(textPrefix int) [][]int64 {
	byText := make(map[string][]int64)
	var keys []string
	for _, n := range h.notes {
		key := n.Text()
		if textPrefix > 0 && len(key) > textPrefix {
			key = key[:textPrefix]
		}
		if _, ok := byText[key]; !ok {
			keys = append(keys, key)
		}
		byText[key] = append(byText[key], n.RowID)
	}

	var groups [][]int64
	for _, k := range keys {
		if ids := byText[k]; len(ids) > 1 {
			groups = append(groups, ids)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

// NoteChoice is a note kept after duplicate removal. Duplicate is set when
// the note was chosen from a duplicate group.
type NoteChoice struct {
	Note      *note.Note
	Duplicate bool
}

// NonDuplicateNotes keeps every note outside the duplicate groups followed
// by one note per group. From each group the lowest row id accepted by
// prefer is chosen, or the lowest row id when prefer is nil or accepts none.
func (h *HospitalAdmission) NonDuplicateNotes(groups [][]int64, prefer func(*note.Note) bool) []NoteChoice {
	inGroup := make(map[int64]bool)
	for _, g := range groups {
		for _, id := range g {
			inGroup[id] = true
		}
	}

	var out []NoteChoice
	for _, n := range h.notes {
		if !inGroup[n.RowID] {
			out = append(out, NoteChoice{Note: n})
		}
	}
	for _, g := range groups {
		var members []*note.Note
		for _, id := range g {
			if n, ok := h.byID[id]; ok {
				members = append(members, n)
			}
		}
		if len(members) == 0 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].RowID < members[j].RowID })
		choice := members[0]
		if prefer != nil {
			for _, n := range members {
				if prefer(n) {
					choice = n
					break
				}
			}
		}
		out = append(out, NoteChoice{Note: choice, Duplicate: true})
	}
	return out
}

// FeatureRows concatenates the token feature rows of every note, with
// categories in sorted order, adding the hadm_id and row_id columns.
func (h *HospitalAdmission) FeatureRows(ctx context.Context, proj nlp.FeatureProjector) ([]nlp.FeatureRow, error) {
	var rows []nlp.FeatureRow
	for _, cat := range h.Categories() {
		for _, n := range h.byCategory[cat] {
			nrows, err := note.FeatureRows(ctx, n, proj)
			if err != nil {
				return nil, fmt.Errorf("note %d features: %w", n.RowID, err)
			}
			for _, r := range nrows {
				r["hadm_id"] = h.HadmID()
				r["row_id"] = n.RowID
			}
			rows = append(rows, nrows...)
		}
	}
	return rows, nil
}

// Record is the cacheable form of a hospital admission.
type Record struct {
	Admission  Admission         `json:"admission"`
	Patient    Patient           `json:"patient"`
	Diagnoses  []Diagnosis       `json:"diagnoses"`
	Procedures []Procedure       `json:"procedures"`
	Notes      []*note.NoteEvent `json:"notes"`
}

func (h *HospitalAdmission) Record() *Record {
	rec := &Record{
		Admission:  h.Admission,
		Patient:    h.Patient,
		Diagnoses:  h.Diagnoses,
		Procedures: h.Procedures,
		Notes:      make([]*note.NoteEvent, len(h.notes)),
	}
	for i, n := range h.notes {
		rec.Notes[i] = n.Event()
	}
	return rec
}

func (h *HospitalAdmission) String() string {
	return fmt.Sprintf("%d: subject=%d, notes=%d", h.HadmID(), h.Patient.SubjectID, len(h.notes))
}
