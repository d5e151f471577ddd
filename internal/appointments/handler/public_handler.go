package handler

import (
	"tireshop_backend/internal/appointments/service"
	"tireshop_backend/internal/appointments/transport"
	"tireshop_backend/platform/httpkit"
	"tireshop_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// PublicHandler serves the customer-facing appointment endpoints.
type PublicHandler struct {
	svc      *service.Service
	validate *validator.Validator
}

// NewPublicHandler creates the public appointments handler.
func NewPublicHandler(svc *service.Service, validate *validator.Validator) *PublicHandler {
	return &PublicHandler{svc: svc, validate: validate}
}

// Book handles POST /public/appointments.
func (h *PublicHandler) Book(c *gin.Context) {
	var req transport.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		validationError(c, err)
		return
	}

	resp, err := h.svc.Book(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// Availability handles GET /public/appointments/availability?date=YYYY-MM-DD.
func (h *PublicHandler) Availability(c *gin.Context) {
	resp, err := h.svc.Availability(c.Request.Context(), c.Query("date"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// GetByToken handles GET /public/appointments/:token.
func (h *PublicHandler) GetByToken(c *gin.Context) {
	resp, err := h.svc.GetByToken(c.Request.Context(), c.Param("token"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// Cancel handles POST /public/appointments/:token/cancel. The body is
// optional; an empty or malformed one just means no reason was given.
func (h *PublicHandler) Cancel(c *gin.Context) {
	var req transport.CancelAppointmentRequest
	_ = c.ShouldBindJSON(&req)

	resp, err := h.svc.Cancel(c.Request.Context(), c.Param("token"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// Reschedule handles POST /public/appointments/:token/reschedule.
func (h *PublicHandler) Reschedule(c *gin.Context) {
	var req transport.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		validationError(c, err)
		return
	}

	resp, err := h.svc.Reschedule(c.Request.Context(), c.Param("token"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}
