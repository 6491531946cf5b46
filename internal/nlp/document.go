// Package nlp holds the token annotated document model used by sections
// and paragraphs, along with a regex tokenizer tuned for MIMIC-III notes.
package nlp

import (
	"strings"

	"github.com/mimic/mimic/pkg/lexspan"
)

// NoneValue is the feature value given to tokens without an annotation.
const NoneValue = "<none>"

// Token is one parsed token. Span offsets are relative to the full note text.
type Token struct {
	Index     int               `json:"i"`
	SentIndex int               `json:"i_sent"`
	Span      lexspan.Span      `json:"span"`
	Text      string            `json:"text"`
	Norm      string            `json:"norm"`
	Features  map[string]string `json:"features,omitempty"`
}

// Feature returns the named feature or NoneValue when unset.
func (t *Token) Feature(name string) string {
	if v, ok := t.Features[name]; ok {
		return v
	}
	return NoneValue
}

func (t *Token) SetFeature(name, value string) {
	if t.Features == nil {
		t.Features = make(map[string]string)
	}
	t.Features[name] = value
}

func (t Token) clone() Token {
	if t.Features != nil {
		f := make(map[string]string, len(t.Features))
		for k, v := range t.Features {
			f[k] = v
		}
		t.Features = f
	}
	return t
}

// Sentence is an ordered run of tokens.
type Sentence struct {
	Text   string  `json:"text"`
	Tokens []Token `json:"tokens"`
}

func (s *Sentence) TokenLen() int { return len(s.Tokens) }

// Span is the bounding span of the sentence's tokens.
func (s *Sentence) Span() lexspan.Span {
	return tokensSpan(s.Tokens)
}

// Norm joins the normalized token text with single spaces.
func (s *Sentence) Norm() string {
	norms := make([]string, len(s.Tokens))
	for i := range s.Tokens {
		norms[i] = s.Tokens[i].Norm
	}
	return strings.Join(norms, " ")
}

func (s Sentence) clone() Sentence {
	toks := make([]Token, len(s.Tokens))
	for i, t := range s.Tokens {
		toks[i] = t.clone()
	}
	s.Tokens = toks
	return s
}

// Document is a sequence of sentences over a contiguous region of a note.
// Text holds the surface text of that region, which starts at note offset
// Offset; the root document of a note has Offset 0.
type Document struct {
	Text   string     `json:"text"`
	Offset int        `json:"offset"`
	Sents  []Sentence `json:"sents"`
}

// Tokens returns the tokens of all sentences in order.
func (d *Document) Tokens() []Token {
	toks := make([]Token, 0, d.TokenLen())
	for i := range d.Sents {
		toks = append(toks, d.Sents[i].Tokens...)
	}
	return toks
}

func (d *Document) TokenLen() int {
	n := 0
	for i := range d.Sents {
		n += len(d.Sents[i].Tokens)
	}
	return n
}

// Span is the bounding span of the document's tokens, or the empty span at
// Offset when there are none.
func (d *Document) Span() lexspan.Span {
	s := tokensSpan(d.Tokens())
	if s.IsEmpty() {
		return lexspan.Span{Begin: d.Offset, End: d.Offset}
	}
	return s
}

func (d *Document) Norm() string {
	norms := make([]string, 0, len(d.Sents))
	for i := range d.Sents {
		if n := d.Sents[i].Norm(); n != "" {
			norms = append(norms, n)
		}
	}
	return strings.Join(norms, " ")
}

// TextOf returns the surface text of span, which is given in note offsets.
func (d *Document) TextOf(span lexspan.Span) string {
	return lexspan.Span{Begin: span.Begin - d.Offset, End: span.End - d.Offset}.Slice(d.Text)
}

// OverlappingDocument narrows the document to span. When inclusive is true
// only tokens lying entirely within span are kept, otherwise any token
// sharing an offset with span is kept. Token offsets are preserved.
func (d *Document) OverlappingDocument(span lexspan.Span, inclusive bool) *Document {
	sub := &Document{Text: d.TextOf(span), Offset: span.Begin}
	for i := range d.Sents {
		var toks []Token
		for _, t := range d.Sents[i].Tokens {
			keep := t.Span.Overlaps(span)
			if inclusive {
				keep = span.Contains(t.Span) && !t.Span.IsEmpty()
			}
			if keep {
				toks = append(toks, t.clone())
			}
		}
		if len(toks) == 0 {
			continue
		}
		sub.Sents = append(sub.Sents, Sentence{
			Text:   d.TextOf(tokensSpan(toks)),
			Tokens: toks,
		})
	}
	return sub
}

// ToSentence flattens the document into one sentence whose text is the
// sentence texts joined by delim.
func (d *Document) ToSentence(delim string) Sentence {
	texts := make([]string, len(d.Sents))
	for i := range d.Sents {
		texts[i] = d.Sents[i].Text
	}
	toks := make([]Token, 0, d.TokenLen())
	for _, t := range d.Tokens() {
		toks = append(toks, t.clone())
	}
	return Sentence{Text: strings.Join(texts, delim), Tokens: toks}
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := &Document{Text: d.Text, Offset: d.Offset, Sents: make([]Sentence, len(d.Sents))}
	for i, s := range d.Sents {
		c.Sents[i] = s.clone()
	}
	return c
}

// Reindex renumbers token and sentence positions from zero after the token
// list has been changed.
func (d *Document) Reindex() {
	idx := 0
	for si := range d.Sents {
		for ti := range d.Sents[si].Tokens {
			d.Sents[si].Tokens[ti].Index = idx
			d.Sents[si].Tokens[ti].SentIndex = si
			idx++
		}
	}
}

func tokensSpan(toks []Token) lexspan.Span {
	if len(toks) == 0 {
		return lexspan.Span{}
	}
	spans := make([]lexspan.Span, len(toks))
	for i := range toks {
		spans[i] = toks[i].Span
	}
	w, _ := lexspan.Widen(spans...)
	return w
}
