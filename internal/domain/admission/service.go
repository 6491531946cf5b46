package admission

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mimic/mimic/internal/domain/note"
	"github.com/mimic/mimic/internal/nlp"
	"github.com/mimic/mimic/internal/platform/apperr"
	"github.com/mimic/mimic/internal/platform/cache"
)

// Observer receives admission loading events.
type Observer interface {
	ObserveAdmissionLoad(source string)
	ObservePrime(notes int)
}

type nopObserver struct{}

func (nopObserver) ObserveAdmissionLoad(string) {}
func (nopObserver) ObservePrime(int)            {}

type Deps struct {
	Admissions AdmissionRepository
	Patients   PatientRepository
	Diagnoses  DiagnosisRepository
	Procedures ProcedureRepository
	Notes      note.NoteEventRepository
	Factory    *note.NoteFactory
	Projector  nlp.FeatureProjector
	// Cache holds admission records between loads; nil disables caching.
	Cache    cache.Cache
	CacheTTL time.Duration
	Observer Observer
}

type Service struct {
	Deps
	logger zerolog.Logger
}

func NewService(d Deps, logger zerolog.Logger) *Service {
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	return &Service{
		Deps:   d,
		logger: logger.With().Str("component", "admission_service").Logger(),
	}
}

func cacheKey(hadmID int64) string {
	return "adm:" + strconv.FormatInt(hadmID, 10)
}

// Load returns the hospital admission, reading its record from the cache
// when present and from the database otherwise.
func (s *Service) Load(ctx context.Context, hadmID int64) (*HospitalAdmission, error) {
	if rec, ok := s.cached(ctx, hadmID); ok {
		s.Observer.ObserveAdmissionLoad("cache")
		return s.build(rec)
	}

	rec, err := s.fetch(ctx, hadmID)
	if err != nil {
		return nil, err
	}
	h, err := s.build(rec)
	if err != nil {
		return nil, err
	}
	s.Observer.ObserveAdmissionLoad("db")
	s.store(ctx, rec)
	return h, nil
}

func (s *Service) cached(ctx context.Context, hadmID int64) (*Record, bool) {
	if s.Cache == nil {
		return nil, false
	}
	data, ok, err := s.Cache.Get(ctx, cacheKey(hadmID))
	if err != nil {
		s.logger.Warn().Err(err).Int64("hadm_id", hadmID).Msg("admission cache read failed")
		return nil, false
	}
	if !ok {
		s.logger.Debug().Int64("hadm_id", hadmID).Msg("admission cache miss")
		return nil, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn().Err(err).Int64("hadm_id", hadmID).Msg("discarding undecodable cached admission")
		return nil, false
	}
	if rec.Admission.HadmID != hadmID {
		s.logger.Warn().Int64("hadm_id", hadmID).Int64("cached_hadm_id", rec.Admission.HadmID).
			Msg("discarding cached admission for another hadm_id")
		return nil, false
	}
	s.logger.Debug().Int64("hadm_id", hadmID).Msg("admission cache hit")
	return &rec, true
}

func (s *Service) store(ctx context.Context, rec *Record) {
	if s.Cache == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err == nil {
		err = s.Cache.Set(ctx, cacheKey(rec.Admission.HadmID), data, s.CacheTTL)
	}
	if err != nil {
		s.logger.Warn().Err(err).Int64("hadm_id", rec.Admission.HadmID).Msg("admission cache write failed")
	}
}

func (s *Service) fetch(ctx context.Context, hadmID int64) (*Record, error) {
	adm, err := s.Admissions.GetByHadmID(ctx, hadmID)
	if err != nil {
		return nil, err
	}
	pat, err := s.Patients.GetBySubjectID(ctx, adm.SubjectID)
	if err != nil {
		return nil, err
	}
	diags, err := s.Diagnoses.ListByHadmID(ctx, hadmID)
	if err != nil {
		return nil, fmt.Errorf("diagnoses of %d: %w", hadmID, err)
	}
	procs, err := s.Procedures.ListByHadmID(ctx, hadmID)
	if err != nil {
		return nil, fmt.Errorf("procedures of %d: %w", hadmID, err)
	}
	notes, err := s.Notes.ListByHadmID(ctx, hadmID)
	if err != nil {
		return nil, fmt.Errorf("notes of %d: %w", hadmID, err)
	}
	return &Record{Admission: *adm, Patient: *pat, Diagnoses: diags, Procedures: procs, Notes: notes}, nil
}

func (s *Service) build(rec *Record) (*HospitalAdmission, error) {
	notes := make([]*note.Note, 0, len(rec.Notes))
	for _, ev := range rec.Notes {
		n, err := s.Factory.Create(ev)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return NewHospitalAdmission(rec.Admission, rec.Patient, rec.Diagnoses, rec.Procedures, notes)
}

// Evict drops the cached record of an admission.
func (s *Service) Evict(ctx context.Context, hadmID int64) error {
	if s.Cache == nil {
		return nil
	}
	return s.Cache.Delete(ctx, cacheKey(hadmID))
}

// NoteAdmission loads the admission a note belongs to.
func (s *Service) NoteAdmission(ctx context.Context, rowID int64) (*HospitalAdmission, error) {
	hadmID, err := s.Notes.HadmIDByRowID(ctx, rowID)
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, hadmID)
}

func (s *Service) Exists(ctx context.Context, hadmID int64) (bool, error) {
	return s.Admissions.Exists(ctx, hadmID)
}

func (s *Service) SubjectAdmissions(ctx context.Context, subjectID int64) ([]*Admission, error) {
	adms, err := s.Admissions.GetBySubjectID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if len(adms) == 0 {
		return nil, apperr.NotFound("admission", "subject", subjectID)
	}
	return adms, nil
}

// SubjectNoteCounts counts the notes of every admission of a subject in
// admission order. Admissions without notes have a zero count.
func (s *Service) SubjectNoteCounts(ctx context.Context, subjectID int64) ([]note.SubjectNoteCount, error) {
	ids, err := s.Admissions.HadmIDsBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, apperr.NotFound("admission", "subject", subjectID)
	}
	counts, err := s.Notes.CountsBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("note counts of subject %d: %w", subjectID, err)
	}
	byHadm := make(map[int64]int, len(counts))
	for _, c := range counts {
		byHadm[c.HadmID] = c.Count
	}
	out := make([]note.SubjectNoteCount, len(ids))
	for i, id := range ids {
		out[i] = note.SubjectNoteCount{HadmID: id, Count: byHadm[id]}
	}
	return out, nil
}

// NoteRowIDs lists the row ids of an admission's notes without building
// the admission.
func (s *Service) NoteRowIDs(ctx context.Context, hadmID int64) ([]int64, error) {
	ok, err := s.Admissions.Exists(ctx, hadmID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("admission", "hadm", hadmID)
	}
	return s.Notes.RowIDsByHadmID(ctx, hadmID)
}

func (s *Service) HeartFailureHadmIDs(ctx context.Context) ([]int64, error) {
	return s.Diagnoses.HeartFailureHadmIDs(ctx)
}

// PrimeResult counts the work done by Prime.
type PrimeResult struct {
	Admissions int `json:"admissions"`
	Notes      int `json:"notes"`
	Documents  int `json:"documents"`
}

// Prime loads each admission so that later reads are served from the
// admission cache. Note documents are parsed only when the document store
// persists them. At most workers admissions are processed at once and the
// first error cancels the rest.
func (s *Service) Prime(ctx context.Context, hadmIDs []int64, workers int) (PrimeResult, error) {
	if workers < 1 {
		workers = 1
	}
	var docs note.DocumentStore
	if res := s.Factory.Resources(); res != nil {
		if p, ok := res.Documents.(note.PersistentStore); ok && p.Persistent() {
			docs = res.Documents
		}
	}
	var adms, notes, parsed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, id := range hadmIDs {
		g.Go(func() error {
			h, err := s.Load(ctx, id)
			if err != nil {
				return fmt.Errorf("prime admission %d: %w", id, err)
			}
			for _, n := range h.Notes() {
				if err := ctx.Err(); err != nil {
					return err
				}
				if docs != nil {
					if _, err := n.Doc(ctx); err != nil {
						return fmt.Errorf("prime note %d: %w", n.RowID, err)
					}
					parsed.Add(1)
				}
				n.SectionsOrdered()
			}
			adms.Add(1)
			notes.Add(int64(h.Len()))
			s.Observer.ObservePrime(h.Len())
			s.logger.Debug().Int64("hadm_id", id).Int("notes", h.Len()).Msg("primed admission")
			return nil
		})
	}

	err := g.Wait()
	res := PrimeResult{Admissions: int(adms.Load()), Notes: int(notes.Load()), Documents: int(parsed.Load())}
	s.logger.Info().Int("admissions", res.Admissions).Int("notes", res.Notes).
		Int("documents", res.Documents).Msg("prime finished")
	return res, err
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Patients, err = s.Patients.Count(ctx); err != nil {
		return st, fmt.Errorf("count patients: %w", err)
	}
	if st.Admissions, err = s.Admissions.Count(ctx); err != nil {
		return st, fmt.Errorf("count admissions: %w", err)
	}
	if st.Notes, err = s.Notes.Count(ctx); err != nil {
		return st, fmt.Errorf("count notes: %w", err)
	}
	return st, nil
}
