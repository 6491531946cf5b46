package note

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/mimic/mimic/internal/platform/apperr"
)

// NoteEvent is one row of the noteevents table.
type NoteEvent struct {
	RowID       int64      `db:"row_id" json:"row_id" yaml:"row_id"`
	SubjectID   int64      `db:"subject_id" json:"subject_id" yaml:"subject_id"`
	HadmID      int64      `db:"hadm_id" json:"hadm_id" yaml:"hadm_id"`
	ChartDate   *time.Time `db:"chartdate" json:"chartdate,omitempty" yaml:"chartdate,omitempty"`
	ChartTime   *time.Time `db:"charttime" json:"charttime,omitempty" yaml:"charttime,omitempty"`
	StoreTime   *time.Time `db:"storetime" json:"storetime,omitempty" yaml:"storetime,omitempty"`
	Category    string     `db:"category" json:"category" yaml:"category"`
	Description string     `db:"description" json:"description" yaml:"description"`
	CGID        *int64     `db:"cgid" json:"cgid,omitempty" yaml:"cgid,omitempty"`
	IsError     bool       `db:"iserror" json:"iserror" yaml:"iserror"`
	Text        string     `db:"text" json:"text" yaml:"-"`
}

// NewNoteEvent validates and normalizes a raw row: the category is trimmed
// and trailing whitespace is removed from the text.
func NewNoteEvent(ev NoteEvent) (*NoteEvent, error) {
	if ev.RowID == 0 {
		return nil, &apperr.ConstructionError{
			Entity: "note event",
			Field:  "row_id",
			Err:    apperr.NotFound("note event", "row", "<nil>"),
		}
	}
	if ev.HadmID == 0 {
		return nil, &apperr.ConstructionError{Entity: "note event", Field: "hadm_id"}
	}
	ev.Category = strings.TrimSpace(ev.Category)
	ev.Text = strings.TrimRightFunc(ev.Text, unicode.IsSpace)
	return &ev, nil
}

// ID is the hyphenated category identifier, i.e. "discharge-summary".
func (e *NoteEvent) ID() string {
	return CategoryToID(e.Category)
}

func (e *NoteEvent) Truncated(n int) string {
	if len(e.Text) <= n {
		return e.Text
	}
	return e.Text[:n] + "..."
}

// AnnotatorType records where a note's sections came from.
type AnnotatorType int

const (
	AnnotatorNone AnnotatorType = iota
	AnnotatorRegex
	AnnotatorHuman
	AnnotatorModel
)

func (a AnnotatorType) String() string {
	switch a {
	case AnnotatorRegex:
		return "regular_expression"
	case AnnotatorHuman:
		return "human"
	case AnnotatorModel:
		return "model"
	default:
		return "none"
	}
}

func (a AnnotatorType) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AnnotatorType) UnmarshalText(b []byte) error {
	for _, t := range []AnnotatorType{AnnotatorNone, AnnotatorRegex, AnnotatorHuman, AnnotatorModel} {
		if t.String() == string(b) {
			*a = t
			return nil
		}
	}
	return fmt.Errorf("unknown annotator type: %q", b)
}

var (
	headerNameRegex = regexp.MustCompile(`[_/ ]+`)
	categoryIDRegex = regexp.MustCompile(`[/ ]+`)
)

// HeaderToName converts section header text to a section name, i.e.
// "Discharge Medications" becomes "discharge-medications".
func HeaderToName(header string) string {
	return strings.ToLower(headerNameRegex.ReplaceAllString(strings.TrimSpace(header), "-"))
}

// NameToHeader is a best effort inverse of HeaderToName.
func NameToHeader(name string) string {
	s := strings.ToLower(strings.ReplaceAll(name, "-", " "))
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func CategoryToID(category string) string {
	return strings.ToLower(categoryIDRegex.ReplaceAllString(strings.TrimSpace(category), "-"))
}

// IDToCategory converts a category id back to its display form, i.e.
// "discharge-summary" becomes "Discharge summary".
func IDToCategory(id string) string {
	return NameToHeader(id)
}
