package admission

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mimic/mimic/internal/domain/note"
	"github.com/mimic/mimic/internal/platform/apperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/admissions/heart-failure", h.HeartFailure)
	api.GET("/admissions/:hadm_id", h.GetAdmission)
	api.GET("/admissions/:hadm_id/notes", h.ListNotes)
	api.GET("/admissions/:hadm_id/notes/ids", h.NoteRowIDs)
	api.GET("/admissions/:hadm_id/duplicates", h.GetDuplicates)
	api.GET("/admissions/:hadm_id/features", h.GetFeatures)
	api.GET("/subjects/:subject_id/admissions", h.SubjectAdmissions)
	api.GET("/subjects/:subject_id/notes/counts", h.SubjectNoteCounts)
	api.GET("/notes/:row_id/admission", h.NoteAdmission)
	api.GET("/stats", h.GetStats)
}

func httpError(err error) error {
	return echo.NewHTTPError(apperr.StatusCode(err), err.Error())
}

func idParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) load(c echo.Context) (*HospitalAdmission, error) {
	hadmID, err := idParam(c, "hadm_id")
	if err != nil {
		return nil, err
	}
	adm, err := h.svc.Load(c.Request().Context(), hadmID)
	if err != nil {
		return nil, httpError(err)
	}
	return adm, nil
}

func renderOptions(c echo.Context) RenderOptions {
	gaps, _ := strconv.ParseBool(c.QueryParam("gaps"))
	limit, _ := strconv.Atoi(c.QueryParam("note_limit"))
	return RenderOptions{Gaps: gaps, NoteLimit: limit}
}

// GetAdmission returns the admission as JSON, or rendered in the format
// query parameter.
func (h *Handler) GetAdmission(c echo.Context) error {
	adm, err := h.load(c)
	if err != nil {
		return err
	}
	opts := renderOptions(c)
	format := note.FormatJSON
	if f := c.QueryParam("format"); f != "" {
		if format, err = note.ParseFormat(f); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	if format == note.FormatJSON {
		return c.JSON(http.StatusOK, NewView(adm, opts))
	}
	var buf bytes.Buffer
	if err := Render(&buf, adm, format, opts); err != nil {
		return httpError(err)
	}
	return c.String(http.StatusOK, buf.String())
}

type noteSummary struct {
	RowID       int64              `json:"row_id"`
	Category    string             `json:"category"`
	Description string             `json:"description"`
	Annotator   note.AnnotatorType `json:"section_annotator_type"`
	Sections    []string           `json:"sections"`
	Chars       int                `json:"chars"`
}

func (h *Handler) ListNotes(c echo.Context) error {
	adm, err := h.load(c)
	if err != nil {
		return err
	}
	category := c.QueryParam("category")
	out := []noteSummary{}
	for _, n := range adm.Notes() {
		if category != "" && n.Category != category {
			continue
		}
		s := noteSummary{
			RowID:       n.RowID,
			Category:    n.Category,
			Description: n.Description,
			Annotator:   n.AnnotatorType(),
			Chars:       len(n.Text()),
		}
		for _, sec := range n.SectionsOrdered() {
			s.Sections = append(s.Sections, sec.Name)
		}
		out = append(out, s)
	}
	return c.JSON(http.StatusOK, out)
}

type duplicatesView struct {
	Groups [][]int64      `json:"groups"`
	Kept   []keptNoteView `json:"kept"`
}

type keptNoteView struct {
	RowID     int64 `json:"row_id"`
	Duplicate bool  `json:"duplicate"`
}

// GetDuplicates reports notes with duplicate text. The prefix query
// parameter limits the comparison to the first prefix bytes and prefer
// names a category to keep from each duplicate group.
func (h *Handler) GetDuplicates(c echo.Context) error {
	adm, err := h.load(c)
	if err != nil {
		return err
	}
	prefix := 0
	if p := c.QueryParam("prefix"); p != "" {
		if prefix, err = strconv.Atoi(p); err != nil || prefix < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid prefix")
		}
	}
	var prefer func(*note.Note) bool
	if cat := c.QueryParam("prefer"); cat != "" {
		prefer = func(n *note.Note) bool { return n.Category == cat }
	}

	groups := adm.DuplicateNotes(prefix)
	v := duplicatesView{Groups: groups, Kept: []keptNoteView{}}
	if v.Groups == nil {
		v.Groups = [][]int64{}
	}
	for _, ch := range adm.NonDuplicateNotes(groups, prefer) {
		v.Kept = append(v.Kept, keptNoteView{RowID: ch.Note.RowID, Duplicate: ch.Duplicate})
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) GetFeatures(c echo.Context) error {
	adm, err := h.load(c)
	if err != nil {
		return err
	}
	rows, err := adm.FeatureRows(c.Request().Context(), h.svc.Projector)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) SubjectAdmissions(c echo.Context) error {
	subjectID, err := idParam(c, "subject_id")
	if err != nil {
		return err
	}
	adms, err := h.svc.SubjectAdmissions(c.Request().Context(), subjectID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, adms)
}

func (h *Handler) SubjectNoteCounts(c echo.Context) error {
	subjectID, err := idParam(c, "subject_id")
	if err != nil {
		return err
	}
	counts, err := h.svc.SubjectNoteCounts(c.Request().Context(), subjectID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, counts)
}

type noteIDsView struct {
	HadmID int64   `json:"hadm_id"`
	RowIDs []int64 `json:"row_ids"`
	Count  int     `json:"count"`
}

func (h *Handler) NoteRowIDs(c echo.Context) error {
	hadmID, err := idParam(c, "hadm_id")
	if err != nil {
		return err
	}
	ids, err := h.svc.NoteRowIDs(c.Request().Context(), hadmID)
	if err != nil {
		return httpError(err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return c.JSON(http.StatusOK, noteIDsView{HadmID: hadmID, RowIDs: ids, Count: len(ids)})
}

func (h *Handler) NoteAdmission(c echo.Context) error {
	rowID, err := idParam(c, "row_id")
	if err != nil {
		return err
	}
	adm, err := h.svc.NoteAdmission(c.Request().Context(), rowID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, NewView(adm, renderOptions(c)))
}

func (h *Handler) HeartFailure(c echo.Context) error {
	ids, err := h.svc.HeartFailureHadmIDs(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return c.JSON(http.StatusOK, ids)
}

func (h *Handler) GetStats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}
