// Package httpapi exposes the patient registry over a JSON API.
package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"medicopro/internal/adapters/export"
	"medicopro/internal/core"
	"medicopro/pkg/domain"
)

// DegradedHeader is set on read responses computed from an empty collection
// because the stored table could not be decoded.
const DegradedHeader = "X-Store-Degraded"

// Handler serves the registry routes under /api/v1.
type Handler struct {
	svc       *core.Service
	exporter  *export.Exporter
	dashboard core.DashboardOptions
	logger    zerolog.Logger
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithDashboardDefaults sets the window and top-N used when a dashboard request
// does not specify them.
func WithDashboardDefaults(opts core.DashboardOptions) HandlerOption {
	return func(h *Handler) { h.dashboard = opts }
}

// WithHandlerLogger sets the logger used for unexpected failures.
func WithHandlerLogger(logger zerolog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler wires the routes to svc. A nil exporter exports through an
// exporter without an object store.
func NewHandler(svc *core.Service, exporter *export.Exporter, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc, exporter: exporter, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	if h.exporter == nil {
		h.exporter = export.New(svc, export.WithLogger(h.logger))
	}
	return h
}

// RegisterRoutes mounts every route on api.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id_number", h.GetPatient)
	api.POST("/patients", h.CreatePatient)
	api.PUT("/patients/:id_number", h.UpdatePatient)

	api.GET("/dashboard", h.GetDashboard)
	api.GET("/aggregates/:field", h.GetAggregate)

	api.GET("/export", h.DownloadExport)
	api.GET("/exports", h.ListExports)
	api.POST("/exports", h.StoreExport)
	api.GET("/exports/*", h.GetExportLink)
	api.DELETE("/exports/*", h.DeleteExport)
}

// -- Patients --

// ListPatients returns the collection, or only the records registered within
// recent_days when that query parameter is set.
func (h *Handler) ListPatients(c echo.Context) error {
	days, err := intQuery(c, "recent_days", 0)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	var records []domain.PatientRecord
	if days > 0 {
		records, err = h.svc.Recent(ctx, days)
	} else {
		records, err = h.svc.Load(ctx)
	}
	if err := h.readError(c, err); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"patients": records,
		"total":    len(records),
	})
}

// GetPatient returns the record carrying the id number in the path.
func (h *Handler) GetPatient(c echo.Context) error {
	rec, err := h.svc.FindByIDNumber(c.Request().Context(), c.Param("id_number"))
	if err != nil {
		return h.mapError(err, false)
	}
	return c.JSON(http.StatusOK, rec)
}

// CreatePatient registers a new patient.
func (h *Handler) CreatePatient(c echo.Context) error {
	var f domain.Fields
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Create(c.Request().Context(), f)
	if err != nil {
		return h.mapError(err, true)
	}
	return c.JSON(http.StatusCreated, rec)
}

// UpdatePatient replaces the editable fields of an existing record.
func (h *Handler) UpdatePatient(c echo.Context) error {
	var f domain.Fields
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// The bound body may also carry id_number; an empty one keeps the path value.
	if f.IDNumber == "" {
		f.IDNumber = c.Param("id_number")
	}
	rec, err := h.svc.Update(c.Request().Context(), c.Param("id_number"), f)
	if err != nil {
		return h.mapError(err, true)
	}
	return c.JSON(http.StatusOK, rec)
}

// -- Summaries --

// GetDashboard returns the summary statistics.
func (h *Handler) GetDashboard(c echo.Context) error {
	opts := h.dashboard
	var err error
	if opts.WindowDays, err = intQuery(c, "window_days", opts.WindowDays); err != nil {
		return err
	}
	if opts.Top, err = intQuery(c, "top", opts.Top); err != nil {
		return err
	}
	d, err := h.svc.Dashboard(c.Request().Context(), opts)
	if err := h.readError(c, err); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// GetAggregate counts records grouped by one field.
func (h *Handler) GetAggregate(c echo.Context) error {
	field, err := core.ParseAggregateField(c.Param("field"))
	if err != nil {
		return h.mapError(err, false)
	}
	counts, err := h.svc.Aggregate(c.Request().Context(), field)
	if err := h.readError(c, err); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"field":  field,
		"groups": counts,
	})
}

// -- Exports --

// DownloadExport streams a CSV backup as an attachment.
func (h *Handler) DownloadExport(c echo.Context) error {
	days, err := intQuery(c, "window_days", 0)
	if err != nil {
		return err
	}
	artifact, data, err := h.exporter.Export(c.Request().Context(), export.Request{
		WindowDays:  days,
		RequestedBy: requestedBy(c),
	})
	if err != nil {
		return h.mapError(err, true)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	return c.Blob(http.StatusOK, artifact.ContentType, data)
}

type storeExportRequest struct {
	WindowDays int `json:"window_days"`
}

// StoreExport uploads a backup to the blob store and returns the artifact.
func (h *Handler) StoreExport(c echo.Context) error {
	var req storeExportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.WindowDays < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "window_days must not be negative")
	}
	artifact, _, err := h.exporter.Export(c.Request().Context(), export.Request{
		WindowDays:  req.WindowDays,
		RequestedBy: requestedBy(c),
		Store:       true,
	})
	if err != nil {
		return h.mapError(err, true)
	}
	return c.JSON(http.StatusCreated, artifact)
}

// ListExports lists stored backups.
func (h *Handler) ListExports(c echo.Context) error {
	items, err := h.exporter.List(c.Request().Context())
	if err != nil {
		return h.mapError(err, false)
	}
	return c.JSON(http.StatusOK, map[string]any{"exports": items})
}

// GetExportLink signs a fresh download URL for a stored backup.
func (h *Handler) GetExportLink(c echo.Context) error {
	info, url, err := h.exporter.Link(c.Request().Context(), export.KeyPrefix+c.Param("*"), 0)
	if err != nil {
		return h.mapError(err, false)
	}
	return c.JSON(http.StatusOK, map[string]any{"export": info, "url": url})
}

// DeleteExport removes a stored backup.
func (h *Handler) DeleteExport(c echo.Context) error {
	if err := h.exporter.Remove(c.Request().Context(), export.KeyPrefix+c.Param("*"), requestedBy(c)); err != nil {
		return h.mapError(err, true)
	}
	return c.NoContent(http.StatusNoContent)
}

// readError tolerates decode failures on reads by flagging the response.
func (h *Handler) readError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsDegraded(err) {
		c.Response().Header().Set(DegradedHeader, "true")
		return nil
	}
	return h.mapError(err, false)
}

func (h *Handler) mapError(err error, mutation bool) error {
	var (
		validationErr *domain.ValidationError
		notFoundErr   *domain.NotFoundError
		parseErr      *domain.ParseError
	)
	switch {
	case errors.As(err, &validationErr):
		body := map[string]any{"message": validationErr.Error()}
		if len(validationErr.Violations) > 0 {
			body["violations"] = violationBodies(validationErr.Violations)
		}
		return echo.NewHTTPError(http.StatusBadRequest, body)
	case errors.As(err, &notFoundErr):
		return echo.NewHTTPError(http.StatusNotFound, notFoundErr.Error())
	case domain.IsDegraded(err):
		if mutation {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "patient collection unreadable, refusing to overwrite it")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, "patient collection unreadable")
	case errors.Is(err, export.ErrArtifactNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, export.ErrNoObjectStore):
		return echo.NewHTTPError(http.StatusNotImplemented, err.Error())
	case errors.As(err, &parseErr):
		h.logger.Error().Err(err).Msg("stored patient table is corrupt")
		return echo.NewHTTPError(http.StatusInternalServerError, "stored patient table is corrupt")
	default:
		h.logger.Error().Err(err).Msg("request failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

type violationBody struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

func violationBodies(vs []domain.Violation) []violationBody {
	out := make([]violationBody, 0, len(vs))
	for _, v := range vs {
		out = append(out, violationBody{Rule: v.Rule, Severity: string(v.Severity), Field: v.Field, Message: v.Message})
	}
	return out
}

func intQuery(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be a non-negative integer", name))
	}
	return n, nil
}

func requestedBy(c echo.Context) string {
	if user := c.Request().Header.Get("X-Requested-By"); user != "" {
		return user
	}
	rid, _ := c.Get("request_id").(string)
	return rid
}
