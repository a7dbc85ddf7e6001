package growth

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pedcare/clinic/internal/platform/auth"
	"github.com/pedcare/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinical := auth.RequireRole(auth.RoleDoctor, auth.RoleNurse)

	read := api.Group("", clinical)
	read.GET("/patients/:id/growth", h.ListRecords)
	read.GET("/patients/:id/growth/trend", h.GetTrend)
	read.GET("/patients/:id/growth/velocity", h.GetVelocity)
	read.GET("/patients/:id/growth/analysis", h.GetAnalysis)

	write := api.Group("", clinical)
	write.POST("/patients/:id/growth", h.RecordMeasurement)
	write.PUT("/growth/:id", h.UpdateMeasurement)
	write.DELETE("/growth/:id", h.DeleteMeasurement)
}

func patientParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	return id, nil
}

func (h *Handler) RecordMeasurement(c echo.Context) error {
	pid, err := patientParam(c)
	if err != nil {
		return err
	}
	var m Measurement
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.PatientID = pid

	rec, err := h.svc.RecordMeasurement(c.Request().Context(), &m)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ListRecords(c echo.Context) error {
	pid, err := patientParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)

	items, total, err := h.svc.History(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateMeasurement(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var upd MeasurementUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rec, err := h.svc.UpdateMeasurement(c.Request().Context(), id, &upd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) DeleteMeasurement(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteMeasurement(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetTrend(c echo.Context) error {
	pid, err := patientParam(c)
	if err != nil {
		return err
	}
	trend, err := h.svc.Trend(c.Request().Context(), pid)
	if err != nil {
		return err
	}
	if trend == nil {
		return c.JSON(http.StatusOK, map[string]any{"trend": nil, "reason": "need at least two measurements"})
	}
	return c.JSON(http.StatusOK, trend)
}

func (h *Handler) GetVelocity(c echo.Context) error {
	pid, err := patientParam(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Velocity(c.Request().Context(), pid)
	if err != nil {
		return err
	}
	if v == nil {
		return c.JSON(http.StatusOK, map[string]any{"velocity": nil, "reason": "need two measurements at least a week apart"})
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) GetAnalysis(c echo.Context) error {
	pid, err := patientParam(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Analysis(c.Request().Context(), pid)
	if err != nil {
		return err
	}
	if a == nil {
		return c.JSON(http.StatusOK, map[string]any{"analysis": nil, "reason": "need at least two assessed measurements"})
	}
	return c.JSON(http.StatusOK, a)
}
