package note

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/mimic/mimic/internal/nlp"
	"github.com/mimic/mimic/internal/platform/apperr"
)

type Service struct {
	notes          NoteEventRepository
	factory        *NoteFactory
	projector      nlp.FeatureProjector
	gapFilterEmpty bool
	logger         zerolog.Logger
}

func NewService(notes NoteEventRepository, factory *NoteFactory, projector nlp.FeatureProjector,
	gapFilterEmpty bool, logger zerolog.Logger) *Service {
	return &Service{
		notes:          notes,
		factory:        factory,
		projector:      projector,
		gapFilterEmpty: gapFilterEmpty,
		logger:         logger.With().Str("component", "note_service").Logger(),
	}
}

func (s *Service) Factory() *NoteFactory { return s.factory }

func (s *Service) GetNote(ctx context.Context, rowID int64) (*Note, error) {
	ev, err := s.notes.GetByRowID(ctx, rowID)
	if err != nil {
		return nil, err
	}
	return s.factory.Create(ev)
}

// Container returns the note and its sections, gap filled when gaps is set.
func (s *Service) Container(ctx context.Context, rowID int64, gaps bool) (*Note, SectionContainer, error) {
	n, err := s.GetNote(ctx, rowID)
	if err != nil {
		return nil, nil, err
	}
	if gaps {
		return n, n.WithGaps(s.gapFilterEmpty), nil
	}
	return n, n, nil
}

func (s *Service) Paragraphs(ctx context.Context, rowID int64, sectionID int, gaps bool) ([]*nlp.Document, error) {
	_, c, err := s.Container(ctx, rowID, gaps)
	if err != nil {
		return nil, err
	}
	sec, ok := c.Section(sectionID)
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("note %d", rowID), "section", sectionID)
	}
	paras, err := sec.Paragraphs(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Collect(paras), nil
}

func (s *Service) FeatureRows(ctx context.Context, rowID int64, gaps bool) ([]nlp.FeatureRow, error) {
	_, c, err := s.Container(ctx, rowID, gaps)
	if err != nil {
		return nil, err
	}
	return FeatureRows(ctx, c, s.projector)
}

func (s *Service) ListByCategory(ctx context.Context, category string, limit, offset int) ([]*NoteEvent, int, error) {
	if category == "" {
		return nil, 0, fmt.Errorf("category is required")
	}
	return s.notes.ListByCategory(ctx, category, limit, offset)
}

// DischargeReports lists discharge summaries that are reports rather than
// addenda, in row order.
func (s *Service) DischargeReports(ctx context.Context, limit int) ([]*NoteEvent, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	return s.notes.DischargeReports(ctx, limit)
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.notes.Categories(ctx)
}
