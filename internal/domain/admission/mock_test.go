package admission

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mimic/mimic/internal/domain/note"
	"github.com/mimic/mimic/internal/nlp"
	"github.com/mimic/mimic/internal/platform/apperr"
	"github.com/mimic/mimic/internal/platform/cache"
)

type mockAdmissionRepo struct {
	mu    sync.Mutex
	items map[int64]*Admission
	gets  int
}

func (r *mockAdmissionRepo) GetByHadmID(_ context.Context, hadmID int64) (*Admission, error) {
	r.mu.Lock()
	r.gets++
	r.mu.Unlock()
	a, ok := r.items[hadmID]
	if !ok {
		return nil, apperr.NotFound("admission", "hadm", hadmID)
	}
	return a, nil
}

func (r *mockAdmissionRepo) GetBySubjectID(_ context.Context, subjectID int64) ([]*Admission, error) {
	var out []*Admission
	for _, a := range r.items {
		if a.SubjectID == subjectID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AdmitTime.Equal(out[j].AdmitTime) {
			return out[i].HadmID < out[j].HadmID
		}
		return out[i].AdmitTime.Before(out[j].AdmitTime)
	})
	return out, nil
}

func (r *mockAdmissionRepo) HadmIDsBySubject(ctx context.Context, subjectID int64) ([]int64, error) {
	adms, _ := r.GetBySubjectID(ctx, subjectID)
	var ids []int64
	for _, a := range adms {
		ids = append(ids, a.HadmID)
	}
	return ids, nil
}

func (r *mockAdmissionRepo) AdmissionCounts(context.Context, int) ([]SubjectAdmissionCount, error) {
	return nil, nil
}

func (r *mockAdmissionRepo) Keys(context.Context) ([]int64, error) {
	var ids []int64
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *mockAdmissionRepo) Exists(_ context.Context, hadmID int64) (bool, error) {
	_, ok := r.items[hadmID]
	return ok, nil
}

func (r *mockAdmissionRepo) Count(context.Context) (int, error) { return len(r.items), nil }

type mockPatientRepo struct {
	items map[int64]*Patient
}

func (r *mockPatientRepo) GetBySubjectID(_ context.Context, subjectID int64) (*Patient, error) {
	p, ok := r.items[subjectID]
	if !ok {
		return nil, apperr.NotFound("patient", "subject", subjectID)
	}
	return p, nil
}

func (r *mockPatientRepo) Count(context.Context) (int, error) { return len(r.items), nil }

type mockCodeRepo struct {
	codes map[int64][]ICD9
}

func (r *mockCodeRepo) ListByHadmID(_ context.Context, hadmID int64) ([]ICD9, error) {
	return r.codes[hadmID], nil
}

func (r *mockCodeRepo) HeartFailureHadmIDs(context.Context) ([]int64, error) {
	var ids []int64
	for hadm, codes := range r.codes {
		for _, c := range codes {
			if len(c.Code) >= 3 && c.Code[:3] == "428" {
				ids = append(ids, hadm)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// mockNoteRepo implements the note repository methods the admission service
// uses; the embedded interface is nil.
type mockNoteRepo struct {
	note.NoteEventRepository
	events map[int64]*note.NoteEvent
}

func (r *mockNoteRepo) ListByHadmID(_ context.Context, hadmID int64) ([]*note.NoteEvent, error) {
	var out []*note.NoteEvent
	for _, ev := range r.events {
		if ev.HadmID == hadmID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowID < out[j].RowID })
	return out, nil
}

func (r *mockNoteRepo) Text(_ context.Context, rowID int64) (string, error) {
	ev, ok := r.events[rowID]
	if !ok {
		return "", apperr.NotFound("note event", "row", rowID)
	}
	return ev.Text, nil
}

func (r *mockNoteRepo) HadmIDByRowID(_ context.Context, rowID int64) (int64, error) {
	ev, ok := r.events[rowID]
	if !ok {
		return 0, apperr.NotFound("note event", "row", rowID)
	}
	return ev.HadmID, nil
}

func (r *mockNoteRepo) Count(context.Context) (int, error) { return len(r.events), nil }

func (r *mockNoteRepo) RowIDsByHadmID(_ context.Context, hadmID int64) ([]int64, error) {
	var ids []int64
	for _, ev := range r.events {
		if ev.HadmID == hadmID {
			ids = append(ids, ev.RowID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *mockNoteRepo) CountsBySubject(_ context.Context, subjectID int64) ([]note.SubjectNoteCount, error) {
	counts := map[int64]int{}
	for _, ev := range r.events {
		if ev.SubjectID == subjectID {
			counts[ev.HadmID]++
		}
	}
	var out []note.SubjectNoteCount
	for h, n := range counts {
		out = append(out, note.SubjectNoteCount{HadmID: h, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HadmID < out[j].HadmID })
	return out, nil
}

type countingObserver struct {
	mu    sync.Mutex
	loads map[string]int
	prime int
}

func (o *countingObserver) ObserveAdmissionLoad(source string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loads[source]++
}

func (o *countingObserver) ObservePrime(notes int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prime += notes
}

func mustEvent(rowID, hadmID int64, category, text string) *note.NoteEvent {
	ev, err := note.NewNoteEvent(note.NoteEvent{RowID: rowID, SubjectID: 100, HadmID: hadmID, Category: category, Text: text})
	if err != nil {
		panic(err)
	}
	return ev
}

func testAdmission(hadmID int64) *Admission {
	admit := time.Date(2150, 3, 1, 8, 0, 0, 0, time.UTC)
	return &Admission{
		RowID:         hadmID,
		SubjectID:     100,
		HadmID:        hadmID,
		AdmitTime:     admit,
		DischTime:     admit.Add(72 * time.Hour),
		AdmissionType: "EMERGENCY",
		Ethnicity:     "WHITE",
		Diagnosis:     "CONGESTIVE HEART FAILURE",
	}
}

type fixture struct {
	svc      *Service
	adms     *mockAdmissionRepo
	notes    *mockNoteRepo
	cache    *cache.Memory
	observer *countingObserver
}

// newFixture builds a service over admission 10 with four notes, two of
// which share their text, and admission 11 with one note.
func newFixture() *fixture {
	return newFixtureWithDocs(nil)
}

// newFixtureWithDocs is newFixture with parsed documents kept in docs.
func newFixtureWithDocs(docs note.DocumentCache) *fixture {
	adms := &mockAdmissionRepo{items: map[int64]*Admission{10: testAdmission(10), 11: testAdmission(11)}}
	pats := &mockPatientRepo{items: map[int64]*Patient{
		100: {RowID: 1, SubjectID: 100, Gender: "F", DOB: time.Date(2080, 1, 1, 0, 0, 0, 0, time.UTC)},
	}}
	diags := &mockCodeRepo{codes: map[int64][]ICD9{
		10: {{RowID: 1, SubjectID: 100, HadmID: 10, SeqNum: 1, Code: "4280", ShortTitle: "CHF NOS"}},
	}}
	procs := &mockCodeRepo{codes: map[int64][]ICD9{}}
	notes := &mockNoteRepo{events: map[int64]*note.NoteEvent{}}
	for _, ev := range []*note.NoteEvent{
		mustEvent(4, 10, "Radiology", "CHEST X-RAY: no change"),
		mustEvent(1, 10, "Discharge summary", "Plan:\nrest at home\n\nMedications:\naspirin"),
		mustEvent(2, 10, "Nursing/other", "Neuro: alert and oriented"),
		mustEvent(3, 10, "Nursing", "Neuro: alert and oriented"),
		mustEvent(5, 11, "Echo", "Findings:\nnormal"),
	} {
		notes.events[ev.RowID] = ev
	}

	parser := nlp.NewTokenizer(nlp.NewMimicTokenDecorator(nil, nil))
	store := note.NewParsingDocumentStore(notes, parser, docs, zerolog.Nop())
	factory := note.NewNoteFactory(note.FactoryConfig{
		Resources: &note.Resources{
			Documents:   store,
			Paragraphs:  note.WhitespaceParagraphFactory{},
			FilterEnums: true,
		},
	})

	mem := cache.NewMemory()
	obs := &countingObserver{loads: map[string]int{}}
	svc := NewService(Deps{
		Admissions: adms,
		Patients:   pats,
		Diagnoses:  diags,
		Procedures: procs,
		Notes:      notes,
		Factory:    factory,
		Projector:  nlp.NewTokenFeatureProjector(),
		Cache:      mem,
		CacheTTL:   time.Hour,
		Observer:   obs,
	}, zerolog.Nop())
	return &fixture{svc: svc, adms: adms, notes: notes, cache: mem, observer: obs}
}

type memDocCache struct {
	mu   sync.Mutex
	data map[int64][]byte
}

func (c *memDocCache) Get(rowID int64) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.data[rowID]
	return d, ok, nil
}

func (c *memDocCache) Put(rowID int64, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[rowID] = data
	return nil
}
