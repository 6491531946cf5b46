package note

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mimic/mimic/internal/nlp"
)

// DocumentStore returns the parsed document of a note by row id. It must be
// safe for concurrent use.
type DocumentStore interface {
	Get(ctx context.Context, rowID int64) (*nlp.Document, error)
}

// TextSource fetches the text of a note by row id.
type TextSource interface {
	Text(ctx context.Context, rowID int64) (string, error)
}

// DocumentCache stores encoded documents by row id.
type DocumentCache interface {
	Get(rowID int64) ([]byte, bool, error)
	Put(rowID int64, data []byte) error
}

// PersistentStore is implemented by document stores that can report whether
// parsed documents outlive the notes that request them.
type PersistentStore interface {
	Persistent() bool
}

// ParsingDocumentStore parses note text on demand and keeps the result in
// a DocumentCache.
type ParsingDocumentStore struct {
	texts  TextSource
	parser nlp.Parser
	cache  DocumentCache
	logger zerolog.Logger
}

func NewParsingDocumentStore(texts TextSource, parser nlp.Parser, cache DocumentCache, logger zerolog.Logger) *ParsingDocumentStore {
	return &ParsingDocumentStore{
		texts:  texts,
		parser: parser,
		cache:  cache,
		logger: logger.With().Str("component", "document_store").Logger(),
	}
}

// Persistent reports whether parsed documents are kept in a cache.
func (s *ParsingDocumentStore) Persistent() bool { return s.cache != nil }

func (s *ParsingDocumentStore) Get(ctx context.Context, rowID int64) (*nlp.Document, error) {
	if s.cache != nil {
		data, ok, err := s.cache.Get(rowID)
		if err != nil {
			return nil, fmt.Errorf("read cached document %d: %w", rowID, err)
		}
		if ok {
			var doc nlp.Document
			if err := json.Unmarshal(data, &doc); err != nil {
				return nil, fmt.Errorf("decode cached document %d: %w", rowID, err)
			}
			s.logger.Debug().Int64("row_id", rowID).Msg("document cache hit")
			return &doc, nil
		}
	}

	text, err := s.texts.Text(ctx, rowID)
	if err != nil {
		return nil, err
	}
	doc, err := s.parser.Parse(text)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int64("row_id", rowID).Int("tokens", doc.TokenLen()).Msg("parsed note")

	if s.cache != nil {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode document %d: %w", rowID, err)
		}
		if err := s.cache.Put(rowID, data); err != nil {
			return nil, fmt.Errorf("cache document %d: %w", rowID, err)
		}
	}
	return doc, nil
}
