package admission

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mimic/mimic/internal/domain/note"
)

// View is the serialized form of a hospital admission.
type View struct {
	Admission  Admission       `json:"admission" yaml:"admission"`
	Patient    Patient         `json:"patient" yaml:"patient"`
	Diagnoses  []Diagnosis     `json:"diagnoses" yaml:"diagnoses"`
	Procedures []Procedure     `json:"procedures" yaml:"procedures"`
	Notes      []note.NoteView `json:"notes" yaml:"notes"`
}

// RenderOptions selects the sections rendered for each note.
type RenderOptions struct {
	Gaps        bool
	FilterEmpty bool
	// NoteLimit caps the notes written in text formats; zero means all.
	NoteLimit int
}

func (o RenderOptions) container(n *note.Note) note.SectionContainer {
	if o.Gaps {
		return n.WithGaps(o.FilterEmpty)
	}
	return n
}

func NewView(h *HospitalAdmission, opts RenderOptions) View {
	v := View{
		Admission:  h.Admission,
		Patient:    h.Patient,
		Diagnoses:  h.Diagnoses,
		Procedures: h.Procedures,
		Notes:      make([]note.NoteView, len(h.notes)),
	}
	for i, n := range h.notes {
		v.Notes[i] = note.View(n, opts.container(n))
	}
	return v
}

// Render writes the admission in format f. Structured formats encode the
// whole View; the others write an admission header followed by each note
// in that format.
func Render(w io.Writer, h *HospitalAdmission, f note.Format, opts RenderOptions) error {
	switch f {
	case note.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewView(h, opts))
	case note.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewView(h, opts)); err != nil {
			return err
		}
		return enc.Close()
	}

	if err := writeHeader(w, h, f == note.FormatMarkdown); err != nil {
		return err
	}
	for i, n := range h.notes {
		if opts.NoteLimit > 0 && i >= opts.NoteLimit {
			break
		}
		if err := note.Render(w, n, opts.container(n), f); err != nil {
			return fmt.Errorf("render note %d: %w", n.RowID, err)
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(w io.Writer, h *HospitalAdmission, markdown bool) error {
	var b strings.Builder
	a, p := h.Admission, h.Patient
	if markdown {
		fmt.Fprintf(&b, "# Admission %d\n\n", a.HadmID)
	} else {
		fmt.Fprintf(&b, "hadm_id: %d\n", a.HadmID)
	}
	fmt.Fprintf(&b, "subject_id: %d, gender: %s, dob: %s\n", p.SubjectID, p.Gender, p.DOB.Format("2006-01-02"))
	fmt.Fprintf(&b, "admitted: %s, discharged: %s, type: %s\n",
		a.AdmitTime.Format("2006-01-02 15:04"), a.DischTime.Format("2006-01-02 15:04"), a.AdmissionType)
	if a.Diagnosis != "" {
		fmt.Fprintf(&b, "diagnosis: %s\n", a.Diagnosis)
	}
	writeCodes(&b, "diagnoses", h.Diagnoses)
	writeCodes(&b, "procedures", h.Procedures)
	fmt.Fprintf(&b, "notes: %d\n\n", len(h.notes))
	_, err := io.WriteString(w, b.String())
	return err
}

func writeCodes(b *strings.Builder, label string, codes []ICD9) {
	if len(codes) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, c := range codes {
		fmt.Fprintf(b, "  %s: %s\n", c.Code, c.ShortTitle)
	}
}
