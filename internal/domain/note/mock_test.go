package note

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mimic/mimic/internal/nlp"
	"github.com/mimic/mimic/internal/platform/apperr"
)

type mockNoteRepo struct {
	notes map[int64]*NoteEvent
}

func newMockNoteRepo(events ...*NoteEvent) *mockNoteRepo {
	r := &mockNoteRepo{notes: make(map[int64]*NoteEvent)}
	for _, ev := range events {
		r.notes[ev.RowID] = ev
	}
	return r
}

func (r *mockNoteRepo) sorted() []*NoteEvent {
	var out []*NoteEvent
	for _, ev := range r.notes {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowID < out[j].RowID })
	return out
}

func (r *mockNoteRepo) GetByRowID(_ context.Context, rowID int64) (*NoteEvent, error) {
	ev, ok := r.notes[rowID]
	if !ok {
		return nil, apperr.NotFound("note event", "row", rowID)
	}
	return ev, nil
}

func (r *mockNoteRepo) ListByHadmID(_ context.Context, hadmID int64) ([]*NoteEvent, error) {
	var out []*NoteEvent
	for _, ev := range r.sorted() {
		if ev.HadmID == hadmID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *mockNoteRepo) RowIDsByHadmID(ctx context.Context, hadmID int64) ([]int64, error) {
	evs, _ := r.ListByHadmID(ctx, hadmID)
	ids := make([]int64, len(evs))
	for i, ev := range evs {
		ids[i] = ev.RowID
	}
	return ids, nil
}

func (r *mockNoteRepo) HadmIDByRowID(_ context.Context, rowID int64) (int64, error) {
	ev, ok := r.notes[rowID]
	if !ok {
		return 0, apperr.NotFound("note event", "row", rowID)
	}
	return ev.HadmID, nil
}

func (r *mockNoteRepo) Text(_ context.Context, rowID int64) (string, error) {
	ev, ok := r.notes[rowID]
	if !ok {
		return "", apperr.NotFound("note event", "row", rowID)
	}
	return ev.Text, nil
}

func (r *mockNoteRepo) Categories(context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, ev := range r.sorted() {
		if !seen[ev.Category] {
			seen[ev.Category] = true
			out = append(out, ev.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *mockNoteRepo) CountsBySubject(_ context.Context, subjectID int64) ([]SubjectNoteCount, error) {
	counts := map[int64]int{}
	for _, ev := range r.notes {
		if ev.SubjectID == subjectID {
			counts[ev.HadmID]++
		}
	}
	var out []SubjectNoteCount
	for h, n := range counts {
		out = append(out, SubjectNoteCount{HadmID: h, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HadmID < out[j].HadmID })
	return out, nil
}

func (r *mockNoteRepo) ListByCategory(_ context.Context, category string, limit, offset int) ([]*NoteEvent, int, error) {
	var all []*NoteEvent
	for _, ev := range r.sorted() {
		if ev.Category == category {
			all = append(all, ev)
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *mockNoteRepo) DischargeReports(_ context.Context, limit int) ([]*NoteEvent, error) {
	var out []*NoteEvent
	for _, ev := range r.sorted() {
		if ev.Category == "Discharge summary" && ev.Description == "Report" && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *mockNoteRepo) SampleHadmIDs(_ context.Context, limit int) ([]int64, error) {
	var ids []int64
	for _, ev := range r.sorted() {
		if len(ids) < limit {
			ids = append(ids, ev.HadmID)
		}
	}
	return ids, nil
}

func (r *mockNoteRepo) Keys(context.Context) ([]int64, error) {
	var ids []int64
	for _, ev := range r.sorted() {
		ids = append(ids, ev.RowID)
	}
	return ids, nil
}

func (r *mockNoteRepo) Count(context.Context) (int, error) { return len(r.notes), nil }

type memCache struct {
	mu   sync.Mutex
	data map[int64][]byte
	hits int
}

func newMemCache() *memCache { return &memCache{data: make(map[int64][]byte)} }

func (c *memCache) Get(rowID int64) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.data[rowID]
	if ok {
		c.hits++
	}
	return d, ok, nil
}

func (c *memCache) Put(rowID int64, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[rowID] = data
	return nil
}

type countingObserver struct {
	calls     int
	fallbacks int
	sections  int
}

func (o *countingObserver) ObserveSegmentation(_ string, sections int, fallback bool, _ time.Duration) {
	o.calls++
	o.sections += sections
	if fallback {
		o.fallbacks++
	}
}

func defaultChunker() *ChunkingParagraphFactory {
	return &ChunkingParagraphFactory{
		MinSentLen:     1,
		MinListMatches: 3,
		MaxSentListLen: 1000,
		FilterSentText: map[string]bool{".": true},
	}
}

// newTestFactory returns a factory whose notes resolve documents through
// repo with a tokenizer and the MIMIC decorator.
func newTestFactory(repo *mockNoteRepo, paras ParagraphFactory) *NoteFactory {
	parser := nlp.NewTokenizer(nlp.NewMimicTokenDecorator(nil, nil))
	store := NewParsingDocumentStore(repo, parser, newMemCache(), zerolog.Nop())
	if paras == nil {
		paras = defaultChunker()
	}
	res := &Resources{Documents: store, Paragraphs: paras, FilterEnums: true}
	return NewNoteFactory(FactoryConfig{Resources: res})
}

func mustEvent(rowID, hadmID int64, category, text string) *NoteEvent {
	ev, err := NewNoteEvent(NoteEvent{RowID: rowID, HadmID: hadmID, SubjectID: 1, Category: category, Text: text})
	if err != nil {
		panic(err)
	}
	return ev
}

func mustNote(f *NoteFactory, ev *NoteEvent) *Note {
	n, err := f.Create(ev)
	if err != nil {
		panic(err)
	}
	return n
}

type countingStore struct {
	DocumentStore
	mu    sync.Mutex
	calls int
}

func (s *countingStore) Get(ctx context.Context, rowID int64) (*nlp.Document, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.DocumentStore.Get(ctx, rowID)
}
