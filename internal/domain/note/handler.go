package note

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mimic/mimic/internal/platform/apperr"
	"github.com/mimic/mimic/pkg/lexspan"
	"github.com/mimic/mimic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/notes", h.ListNotes)
	api.GET("/notes/categories", h.ListCategories)
	api.GET("/notes/discharge-reports", h.ListDischargeReports)
	api.GET("/notes/:row_id", h.GetNote)
	api.GET("/notes/:row_id/sections", h.GetSections)
	api.GET("/notes/:row_id/sections/:id/paragraphs", h.GetParagraphs)
	api.GET("/notes/:row_id/features", h.GetFeatures)
}

func httpError(err error) error {
	return echo.NewHTTPError(apperr.StatusCode(err), err.Error())
}

func rowIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("row_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid row_id")
	}
	return id, nil
}

func gapsParam(c echo.Context) bool {
	gaps, _ := strconv.ParseBool(c.QueryParam("gaps"))
	return gaps
}

func (h *Handler) ListNotes(c echo.Context) error {
	p := pagination.FromContext(c)
	category := c.QueryParam("category")
	if category == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "category is required")
	}
	items, total, err := h.svc.ListByCategory(c.Request().Context(), category, p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, "/api/v1/notes?category="+url.QueryEscape(category)))
}

func (h *Handler) ListCategories(c echo.Context) error {
	cats, err := h.svc.Categories(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cats)
}

func (h *Handler) ListDischargeReports(c echo.Context) error {
	p := pagination.FromContext(c)
	items, err := h.svc.DischargeReports(c.Request().Context(), p.Limit)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*NoteEvent{}
	}
	return c.JSON(http.StatusOK, items)
}

// GetNote returns the note as JSON, or rendered in the format query
// parameter.
func (h *Handler) GetNote(c echo.Context) error {
	rowID, err := rowIDParam(c)
	if err != nil {
		return err
	}
	n, sc, err := h.svc.Container(c.Request().Context(), rowID, gapsParam(c))
	if err != nil {
		return httpError(err)
	}
	format := FormatJSON
	if f := c.QueryParam("format"); f != "" {
		if format, err = ParseFormat(f); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	if format == FormatJSON {
		return c.JSON(http.StatusOK, View(n, sc))
	}
	var buf bytes.Buffer
	if err := Render(&buf, n, sc, format); err != nil {
		return httpError(err)
	}
	return c.String(http.StatusOK, buf.String())
}

func (h *Handler) GetSections(c echo.Context) error {
	rowID, err := rowIDParam(c)
	if err != nil {
		return err
	}
	_, sc, err := h.svc.Container(c.Request().Context(), rowID, gapsParam(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, SectionRows(sc))
}

type paragraphView struct {
	Text      string       `json:"text"`
	Span      lexspan.Span `json:"span"`
	Sentences []string     `json:"sentences"`
}

func (h *Handler) GetParagraphs(c echo.Context) error {
	rowID, err := rowIDParam(c)
	if err != nil {
		return err
	}
	secID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid section id")
	}
	paras, err := h.svc.Paragraphs(c.Request().Context(), rowID, secID, gapsParam(c))
	if err != nil {
		return httpError(err)
	}
	out := make([]paragraphView, len(paras))
	for i, p := range paras {
		v := paragraphView{Text: p.Text, Span: p.Span()}
		for _, s := range p.Sents {
			v.Sentences = append(v.Sentences, s.Text)
		}
		out[i] = v
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetFeatures(c echo.Context) error {
	rowID, err := rowIDParam(c)
	if err != nil {
		return err
	}
	rows, err := h.svc.FeatureRows(c.Request().Context(), rowID, gapsParam(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rows)
}
