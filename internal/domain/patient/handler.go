package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	ctl   *Controller
	store *Store
}

func NewHandler(ctl *Controller, store *Store) *Handler {
	return &Handler{ctl: ctl, store: store}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/view", h.GetView)
	api.PUT("/view/search", h.SetSearch)
	api.PUT("/view/sort", h.SetSort)
	api.PUT("/view/page", h.SetPage)

	api.GET("/patients/:id", h.GetPatient)
	api.POST("/patients/:id/expand", h.ToggleExpand)
	api.POST("/patients/:id/avatar-error", h.ReportAvatarError)
	api.POST("/patients/:id/form", h.OpenEditForm)

	api.POST("/form", h.OpenCreateForm)
	api.PATCH("/form", h.ChangeField)
	api.POST("/form/submit", h.SubmitForm)
	api.DELETE("/form", h.CancelForm)

	api.DELETE("/notification", h.DismissNotification)
}

func (h *Handler) GetView(c echo.Context) error {
	return c.JSON(http.StatusOK, h.ctl.View())
}

type searchRequest struct {
	Term string `json:"term"`
}

func (h *Handler) SetSearch(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.ctl.SetSearch(req.Term)
	return c.JSON(http.StatusOK, h.ctl.View())
}

type sortRequest struct {
	Sort string `json:"sort"`
}

func (h *Handler) SetSort(c echo.Context) error {
	var req sortRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	key, err := ParseSortKey(req.Sort)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.ctl.SetSort(key)
	return c.JSON(http.StatusOK, h.ctl.View())
}

type pageRequest struct {
	Page int `json:"page"`
}

func (h *Handler) SetPage(c echo.Context) error {
	var req pageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Page < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "page must be at least 1")
	}
	h.ctl.SetPage(req.Page)
	return c.JSON(http.StatusOK, h.ctl.View())
}

func (h *Handler) GetPatient(c echo.Context) error {
	rec, err := h.store.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ToggleExpand(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.store.Get(id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	expanded := h.ctl.ToggleExpand(id)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":       id,
		"expanded": expanded,
	})
}

func (h *Handler) ReportAvatarError(c echo.Context) error {
	if err := h.ctl.ReportAvatarError(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) OpenCreateForm(c echo.Context) error {
	h.ctl.OpenCreate()
	return c.JSON(http.StatusOK, h.ctl.View().Form)
}

func (h *Handler) OpenEditForm(c echo.Context) error {
	if _, err := h.ctl.OpenEdit(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, h.ctl.View().Form)
}

type fieldChangeRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (h *Handler) ChangeField(c echo.Context) error {
	var req fieldChangeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if _, err := h.ctl.ChangeField(req.Field, req.Value); err != nil {
		return formError(err)
	}
	return c.JSON(http.StatusOK, h.ctl.View().Form)
}

func (h *Handler) SubmitForm(c echo.Context) error {
	rec, err := h.ctl.Submit()
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return c.JSON(http.StatusUnprocessableEntity, h.ctl.View().Form)
		}
		return formError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) CancelForm(c echo.Context) error {
	h.ctl.Cancel()
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DismissNotification(c echo.Context) error {
	h.ctl.Dismiss()
	return c.NoContent(http.StatusNoContent)
}

func formError(err error) error {
	switch {
	case errors.Is(err, ErrFormClosed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrUnknownField):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrRecordNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
