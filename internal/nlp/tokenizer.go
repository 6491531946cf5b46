package nlp

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mimic/mimic/internal/platform/apperr"
	"github.com/mimic/mimic/pkg/lexspan"
)

// Parser turns note text into a token annotated document.
type Parser interface {
	Parse(text string) (*Document, error)
}

// TokenDecorator annotates or rewrites a token after tokenization.
type TokenDecorator interface {
	Decorate(tok *Token)
}

// Mask tokens and long separators are matched before anything else so that
// punctuation glued to either side of a mask is split off.
var tokenRegex = regexp.MustCompile(
	`\[\*\*[^*\n]*\*\*\]` +
		`|_{5,}|\*{5,}|-{5,}` +
		`|[0-9]+(?:[.,:/-][0-9]+)*` +
		`|\pL+(?:['’]\pL+)*` +
		`|\S`)

var errInvalidUTF8 = errors.New("text is not valid utf-8")

// Tokenizer is a regular expression Parser. Sentences end at terminal
// punctuation and at blank lines, and a line initial "N." enumeration marker
// starts a new sentence.
type Tokenizer struct {
	decorators []TokenDecorator
}

func NewTokenizer(decorators ...TokenDecorator) *Tokenizer {
	return &Tokenizer{decorators: decorators}
}

func (t *Tokenizer) Parse(text string) (*Document, error) {
	if !utf8.ValidString(text) {
		return nil, &apperr.ParseError{Text: text, Err: errInvalidUTF8}
	}

	doc := &Document{Text: text}
	var sent []Token
	flush := func() {
		if len(sent) == 0 {
			return
		}
		doc.Sents = append(doc.Sents, Sentence{
			Text:   doc.TextOf(tokensSpan(sent)),
			Tokens: sent,
		})
		sent = nil
	}

	prevEnd := 0
	for i, loc := range tokenRegex.FindAllStringIndex(text, -1) {
		gap := text[prevEnd:loc[0]]
		lineStart := i == 0 || strings.Contains(gap, "\n")
		if len(sent) > 0 {
			switch {
			case strings.Count(gap, "\n") >= 2:
				flush()
			case isTerminal(sent[len(sent)-1].Text):
				flush()
			case lineStart && isEnumMarker(text, loc):
				flush()
			}
		}
		tok := text[loc[0]:loc[1]]
		sent = append(sent, Token{
			Span: lexspan.Span{Begin: loc[0], End: loc[1]},
			Text: tok,
			Norm: tok,
		})
		prevEnd = loc[1]
	}
	flush()

	for si := range doc.Sents {
		for ti := range doc.Sents[si].Tokens {
			for _, dec := range t.decorators {
				dec.Decorate(&doc.Sents[si].Tokens[ti])
			}
		}
	}
	doc.Reindex()
	return doc, nil
}

func isTerminal(tok string) bool {
	return tok == "." || tok == "!" || tok == "?"
}

func isEnumMarker(text string, loc []int) bool {
	for _, r := range text[loc[0]:loc[1]] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return loc[1] < len(text) && text[loc[1]] == '.'
}
