package handler

import (
	"net/http"
	"strconv"

	"tireshop_backend/internal/estimates/service"
	"tireshop_backend/internal/estimates/transport"
	"tireshop_backend/platform/apperr"
	"tireshop_backend/platform/httpkit"
	"tireshop_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the back-office estimate endpoints.
type AdminHandler struct {
	svc      *service.Service
	validate *validator.Validator
}

// NewAdminHandler creates the admin estimates handler.
func NewAdminHandler(svc *service.Service, validate *validator.Validator) *AdminHandler {
	return &AdminHandler{svc: svc, validate: validate}
}

// Create handles POST /admin/estimates.
func (h *AdminHandler) Create(c *gin.Context) {
	var req transport.CreateEstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		validationError(c, err)
		return
	}

	resp, err := h.svc.Create(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, resp)
}

// List handles GET /admin/estimates?status=.
func (h *AdminHandler) List(c *gin.Context) {
	items, err := h.svc.AdminList(c.Request.Context(), c.Query("status"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, items)
}

// Get handles GET /admin/estimates/:id.
func (h *AdminHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if httpkit.HandleError(c, err) {
		return
	}
	resp, err := h.svc.AdminGet(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// Send handles POST /admin/estimates/:id/send.
func (h *AdminHandler) Send(c *gin.Context) {
	id, err := parseID(c)
	if httpkit.HandleError(c, err) {
		return
	}
	resp, err := h.svc.Send(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// Supersede handles POST /admin/estimates/:id/supersede.
func (h *AdminHandler) Supersede(c *gin.Context) {
	id, err := parseID(c)
	if httpkit.HandleError(c, err) {
		return
	}
	if httpkit.HandleError(c, h.svc.Supersede(c.Request.Context(), id)) {
		return
	}
	httpkit.OK(c, gin.H{"status": "superseded"})
}

func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperr.BadRequest("id must be an integer")
	}
	return id, nil
}
