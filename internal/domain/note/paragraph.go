package note

import (
	"context"
	"iter"
	"regexp"
	"sort"
	"strings"

	"github.com/mimic/mimic/internal/nlp"
	"github.com/mimic/mimic/pkg/lexspan"
)

// ParagraphFactory splits a section into paragraph documents.
type ParagraphFactory interface {
	Create(ctx context.Context, sec *Section) (iter.Seq[*nlp.Document], error)
}

var whitespaceParaRegex = regexp.MustCompile(`\n[\s.]*\n`)

// WhitespaceParagraphFactory splits a section body on blank lines, where a
// line holding only whitespace or periods counts as blank.
type WhitespaceParagraphFactory struct{}

func (WhitespaceParagraphFactory) Create(ctx context.Context, sec *Section) (iter.Seq[*nlp.Document], error) {
	bdoc, err := sec.BodyDoc(ctx)
	if err != nil {
		return nil, err
	}
	begin := sec.BodySpan.Begin
	marks := []int{begin}
	for _, loc := range whitespaceParaRegex.FindAllStringIndex(sec.Body(), -1) {
		marks = append(marks, loc[0]+begin, loc[1]+begin)
	}
	marks = append(marks, sec.BodySpan.End)

	spans := make([]lexspan.Span, 0, len(marks)/2)
	for i := 0; i+1 < len(marks); i += 2 {
		spans = append(spans, lexspan.Span{Begin: marks[i], End: marks[i+1]})
	}

	return func(yield func(*nlp.Document) bool) {
		for _, ps := range spans {
			para := bdoc.OverlappingDocument(ps, true)
			if para.TokenLen() == 0 {
				continue
			}
			texts := make([]string, len(para.Sents))
			for i := range para.Sents {
				texts[i] = strings.TrimSpace(para.Sents[i].Text)
			}
			para.Text = strings.Join(texts, " ")
			para.Reindex()
			if !yield(para) {
				return
			}
		}
	}, nil
}

// listItemRegex matches numbered, bulleted and "label:" list lines.
var listItemRegex = regexp.MustCompile(`(?m)^((?:[0-9-+]+|[a-zA-Z]+:)[^\n]+)$`)

// ChunkingParagraphFactory splits sections at runs of newlines and periods
// and then cleans each chunk. List lines are folded into one sentence each
// when at least MinListMatches are found and none normalizes to
// MaxSentListLen characters or more. Separator and blank tokens are removed,
// as are sentences shorter than MinSentLen tokens or whose norm is in
// FilterSentText. Norms are reset to the token text and chunks left without
// tokens are dropped.
type ChunkingParagraphFactory struct {
	MinSentLen     int
	MinListMatches int
	MaxSentListLen int
	IncludeHeaders bool
	FilterSentText map[string]bool
}

func (f *ChunkingParagraphFactory) Create(ctx context.Context, sec *Section) (iter.Seq[*nlp.Document], error) {
	parent, err := sec.NoteDoc(ctx)
	if err != nil {
		return nil, err
	}
	var doc *nlp.Document
	var span lexspan.Span
	if f.IncludeHeaders {
		doc, err = sec.Doc(ctx)
		span = sec.LexSpan()
	} else {
		doc, err = sec.BodyDoc(ctx)
		span = sec.BodySpan
	}
	if err != nil {
		return nil, err
	}
	if len(doc.Sents) == 0 {
		return func(func(*nlp.Document) bool) {}, nil
	}
	chunks := chunkSpans(span.Slice(parent.Text), span.Begin)

	return func(yield func(*nlp.Document) bool) {
		for _, cs := range chunks {
			para := f.normalize(parent, doc.OverlappingDocument(cs, true))
			if para == nil {
				continue
			}
			if !yield(para) {
				return
			}
		}
	}, nil
}

func isParaSep(b byte) bool { return b == '\n' || b == '.' }

// chunkSpans splits text before every position followed by two newline or
// period characters. Each chunk holds at least one character, so separator
// runs lead the chunk that follows them.
func chunkSpans(text string, offset int) []lexspan.Span {
	var spans []lexspan.Span
	n := len(text)
	for start := 0; start < n; {
		q := start + 1
		for q < n && !(q+1 < n && isParaSep(text[q]) && isParaSep(text[q+1])) {
			q++
		}
		spans = append(spans, lexspan.Span{Begin: start + offset, End: q + offset})
		start = q
	}
	return spans
}

func (f *ChunkingParagraphFactory) normalize(parent, doc *nlp.Document) *nlp.Document {
	sents := make([]nlp.Sentence, 0, len(doc.Sents))
	for _, s := range doc.Sents {
		toks := s.Tokens[:0]
		for _, t := range s.Tokens {
			if t.Feature(nlp.FeatureMimic) == nlp.SeparatorFeature || strings.TrimSpace(t.Norm) == "" {
				continue
			}
			toks = append(toks, t)
		}
		s.Tokens = toks
		if len(toks) == 0 || len(toks) < f.MinSentLen || f.FilterSentText[s.Norm()] {
			continue
		}
		sents = append(sents, s)
	}
	doc.Sents = sents

	if f.MinListMatches > 0 {
		doc = f.foldLists(parent, doc)
	}

	doc = doc.Clone()
	for si := range doc.Sents {
		for ti := range doc.Sents[si].Tokens {
			tok := &doc.Sents[si].Tokens[ti]
			tok.Norm = tok.Text
		}
	}
	if doc.TokenLen() == 0 {
		return nil
	}
	span := doc.Span()
	doc.Text = parent.TextOf(span)
	doc.Offset = span.Begin
	doc.Reindex()
	return doc
}

// foldLists merges the tokens of each list line into one sentence. Tokens
// outside any list line keep their sentences.
func (f *ChunkingParagraphFactory) foldLists(parent, doc *nlp.Document) *nlp.Document {
	var items []lexspan.Span
	for _, loc := range listItemRegex.FindAllStringSubmatchIndex(doc.Text, -1) {
		items = append(items, lexspan.Span{Begin: loc[2] + doc.Offset, End: loc[3] + doc.Offset})
	}
	if len(items) == 0 {
		return doc
	}

	inItem := func(t nlp.Token) int {
		for i, it := range items {
			if it.Contains(t.Span) {
				return i
			}
		}
		return -1
	}
	folded := make([]nlp.Sentence, len(items))
	var rest []nlp.Sentence
	for _, s := range doc.Sents {
		var keep []nlp.Token
		for _, t := range s.Tokens {
			if i := inItem(t); i >= 0 {
				folded[i].Tokens = append(folded[i].Tokens, t)
			} else {
				keep = append(keep, t)
			}
		}
		if len(keep) > 0 {
			rest = append(rest, nlp.Sentence{Text: parent.TextOf(tokenSpan(keep)), Tokens: keep})
		}
	}

	var lists []nlp.Sentence
	maxLen := 0
	for i, s := range folded {
		if len(s.Tokens) == 0 {
			continue
		}
		s.Text = parent.TextOf(items[i])
		if n := len(s.Norm()); n > maxLen {
			maxLen = n
		}
		lists = append(lists, s)
	}
	if len(lists) < f.MinListMatches || maxLen >= f.MaxSentListLen {
		return doc
	}

	sents := append(lists, rest...)
	sort.SliceStable(sents, func(i, j int) bool {
		return sents[i].Tokens[0].Span.Less(sents[j].Tokens[0].Span)
	})
	return &nlp.Document{Text: doc.Text, Offset: doc.Offset, Sents: sents}
}

func tokenSpan(toks []nlp.Token) lexspan.Span {
	spans := make([]lexspan.Span, len(toks))
	for i := range toks {
		spans[i] = toks[i].Span
	}
	w, _ := lexspan.Widen(spans...)
	return w
}
