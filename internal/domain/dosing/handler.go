package dosing

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pedcare/clinic/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinical := auth.RequireRole(auth.RoleDoctor, auth.RoleNurse)
	admin := auth.RequireRole()

	api.GET("/dosing/rules", h.ListRules, clinical)
	api.POST("/dosing/rules", h.CreateRule, admin)
	api.DELETE("/dosing/rules/:id", h.DeleteRule, admin)
	api.GET("/patients/:id/dose", h.Calculate, clinical)
}

func (h *Handler) CreateRule(c echo.Context) error {
	var rule DoseRule
	if err := c.Bind(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateRule(c.Request().Context(), &rule); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rule)
}

func (h *Handler) DeleteRule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteRule(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListRules(c echo.Context) error {
	rules, err := h.svc.ListRules(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rules)
}

func (h *Handler) Calculate(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	result, err := h.svc.Calculate(c.Request().Context(),
		c.QueryParam("drug"), c.QueryParam("route"), pid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
