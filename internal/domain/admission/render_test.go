package admission

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/mimic/mimic/internal/domain/note"
)

func TestRender_Raw(t *testing.T) {
	_, h := loadFixture(t)
	var buf bytes.Buffer
	if err := Render(&buf, h, note.FormatRaw, RenderOptions{NoteLimit: 1}); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"hadm_id: 10\n",
		"subject_id: 100, gender: F, dob: 2080-01-01\n",
		"diagnosis: CONGESTIVE HEART FAILURE\n",
		"  4280: CHF NOS\n",
		"notes: 4\n",
		"rest at home",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "CHEST X-RAY") || strings.Contains(out, "procedures:") {
		t.Errorf("unexpected content:\n%s", out)
	}
}

func TestRender_Markdown(t *testing.T) {
	_, h := loadFixture(t)
	var buf bytes.Buffer
	if err := Render(&buf, h, note.FormatMarkdown, RenderOptions{}); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "# Admission 10\n\n") {
		t.Errorf("unexpected header:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "CHEST X-RAY") {
		t.Error("every note should be rendered without a limit")
	}
}

func TestRender_Structured(t *testing.T) {
	_, h := loadFixture(t)

	var buf bytes.Buffer
	if err := Render(&buf, h, note.FormatJSON, RenderOptions{Gaps: true, FilterEmpty: true}); err != nil {
		t.Fatalf("Render(json) error: %v", err)
	}
	var v struct {
		Admission struct {
			HadmID int64 `json:"hadm_id"`
		} `json:"admission"`
		Notes []struct {
			RowID    int64             `json:"row_id"`
			Sections []json.RawMessage `json:"sections"`
		} `json:"notes"`
	}
	if err := json.Unmarshal(buf.Bytes(), &v); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if v.Admission.HadmID != 10 || len(v.Notes) != 4 {
		t.Fatalf("unexpected view: %+v", v)
	}
	if v.Notes[0].RowID != 1 || len(v.Notes[0].Sections) != 2 {
		t.Errorf("unexpected first note: row %d with %d sections", v.Notes[0].RowID, len(v.Notes[0].Sections))
	}

	buf.Reset()
	if err := Render(&buf, h, note.FormatYAML, RenderOptions{}); err != nil {
		t.Fatalf("Render(yaml) error: %v", err)
	}
	var y map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &y); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if notes, ok := y["notes"].([]any); !ok || len(notes) != 4 {
		t.Errorf("unexpected yaml notes: %v", y["notes"])
	}
}
