package nlp

// FeatureRow is one tabular row of token features.
type FeatureRow map[string]any

// FeatureProjector projects a document into tabular rows.
type FeatureProjector interface {
	Project(doc *Document) []FeatureRow
}

// TokenFeatureProjector emits one row per token with its position, surface
// forms and the configured token features.
type TokenFeatureProjector struct {
	Features []string
}

func NewTokenFeatureProjector(features ...string) *TokenFeatureProjector {
	if len(features) == 0 {
		features = []string{FeatureMimic, FeatureOnto}
	}
	return &TokenFeatureProjector{Features: features}
}

func (p *TokenFeatureProjector) Project(doc *Document) []FeatureRow {
	rows := make([]FeatureRow, 0, doc.TokenLen())
	for si := range doc.Sents {
		for ti := range doc.Sents[si].Tokens {
			tok := &doc.Sents[si].Tokens[ti]
			row := FeatureRow{
				"idx":      tok.Index,
				"sent_idx": tok.SentIndex,
				"text":     tok.Text,
				"norm":     tok.Norm,
				"begin":    tok.Span.Begin,
				"end":      tok.Span.End,
			}
			for _, f := range p.Features {
				row[f] = tok.Feature(f)
			}
			rows = append(rows, row)
		}
	}
	return rows
}
