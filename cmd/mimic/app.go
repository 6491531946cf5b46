package main

import (
	"context"
	"fmt"
	"maps"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mimic/mimic/internal/config"
	"github.com/mimic/mimic/internal/domain/admission"
	"github.com/mimic/mimic/internal/domain/note"
	"github.com/mimic/mimic/internal/nlp"
	"github.com/mimic/mimic/internal/platform/cache"
	"github.com/mimic/mimic/internal/platform/db"
	"github.com/mimic/mimic/internal/platform/doccache"
	"github.com/mimic/mimic/internal/platform/metrics"
)

// app holds the services shared by the commands.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	pool       *pgxpool.Pool
	metrics    *metrics.Metrics
	noteRepo   note.NoteEventRepository
	notes      *note.Service
	admissions *admission.Service
	closers    []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Schema:   cfg.DBSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	var docCache note.DocumentCache
	if cfg.DocCachePath != "" {
		store, err := doccache.Open(cfg.DocCachePath)
		if err != nil {
			a.Close()
			return nil, err
		}
		docCache = store
		a.closers = append(a.closers, store.Close)
		logger.Info().Str("path", cfg.DocCachePath).Msg("document cache opened")
	}

	var admCache cache.Cache
	if cfg.RedisURL != "" {
		r, err := cache.NewRedis(ctx, cfg.RedisURL, "mimic:")
		if err != nil {
			a.Close()
			return nil, err
		}
		admCache = r
		a.closers = append(a.closers, r.Close)
		logger.Info().Msg("admission cache using redis")
	} else {
		admCache = cache.NewMemory()
	}

	paras, err := paragraphFactory(cfg.ParagraphConfig())
	if err != nil {
		a.Close()
		return nil, err
	}

	a.noteRepo = note.NewNoteEventRepoPG(pool)
	parser := nlp.NewTokenizer(nlp.NewMimicTokenDecorator(nil, nil))
	res := &note.Resources{
		Documents:   note.NewParsingDocumentStore(a.noteRepo, parser, docCache, logger),
		Paragraphs:  paras,
		FilterEnums: cfg.SectionFilterEnum,
	}
	factory, err := noteFactory(cfg, res, a.metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	projector := nlp.NewTokenFeatureProjector()
	a.notes = note.NewService(a.noteRepo, factory, projector, cfg.GapFilterEmpty, logger)
	a.admissions = admission.NewService(admission.Deps{
		Admissions: admission.NewAdmissionRepoPG(pool),
		Patients:   admission.NewPatientRepoPG(pool),
		Diagnoses:  admission.NewDiagnosisRepoPG(pool),
		Procedures: admission.NewProcedureRepoPG(pool),
		Notes:      a.noteRepo,
		Factory:    factory,
		Projector:  projector,
		Cache:      admCache,
		CacheTTL:   cfg.AdmissionCacheTTL,
		Observer:   a.metrics,
	}, logger)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}

func paragraphFactory(p config.Paragraph) (note.ParagraphFactory, error) {
	switch p.Strategy {
	case config.ParagraphWhitespace:
		return note.WhitespaceParagraphFactory{}, nil
	case config.ParagraphChunking:
		return &note.ChunkingParagraphFactory{
			MinSentLen:     p.MinSentLen,
			MinListMatches: p.MinListMatches,
			MaxSentListLen: p.MaxSentListLen,
			IncludeHeaders: p.IncludeHeaders,
			FilterSentText: maps.Clone(p.FilterSentText),
		}, nil
	default:
		return nil, fmt.Errorf("unknown paragraph strategy %q", p.Strategy)
	}
}

func noteFactory(cfg *config.Config, res *note.Resources, obs note.SegmentationObserver) (*note.NoteFactory, error) {
	categories, err := note.ParseCategoryTable(cfg.NoteCategoryMap)
	if err != nil {
		return nil, err
	}
	return note.NewNoteFactory(note.FactoryConfig{
		Categories:  categories,
		Resources:   res,
		Observer:    obs,
		DefaultOnly: cfg.NoteFactory == config.FactoryDefault,
	}), nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, s := range args {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
