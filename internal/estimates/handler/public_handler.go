// Package handler exposes the estimates module over HTTP.
package handler

import (
	"net/http"

	"tireshop_backend/internal/estimates/service"
	"tireshop_backend/internal/estimates/transport"
	"tireshop_backend/platform/httpkit"
	"tireshop_backend/platform/validator"

	"github.com/gin-gonic/gin"
	playgroundvalidator "github.com/go-playground/validator/v10"
)

// PublicHandler serves the customer-facing estimate endpoints.
type PublicHandler struct {
	svc      *service.Service
	validate *validator.Validator
}

// NewPublicHandler creates the public estimates handler.
func NewPublicHandler(svc *service.Service, validate *validator.Validator) *PublicHandler {
	return &PublicHandler{svc: svc, validate: validate}
}

// Get handles GET /public/estimates/:token.
func (h *PublicHandler) Get(c *gin.Context) {
	resp, err := h.svc.GetPublic(c.Request.Context(), c.Param("token"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// Respond handles POST /public/estimates/:token/respond.
func (h *PublicHandler) Respond(c *gin.Context) {
	var req transport.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		validationError(c, err)
		return
	}

	resp, err := h.svc.Respond(c.Request.Context(), c.Param("token"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func bindError(c *gin.Context, err error) {
	httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
	c.Error(err) //nolint:errcheck
}

func validationError(c *gin.Context, err error) {
	details := map[string]string{}
	if fieldErrs, ok := err.(playgroundvalidator.ValidationErrors); ok {
		for _, fe := range fieldErrs {
			details[fe.Field()] = "invalid value for " + fe.Tag()
		}
	}
	httpkit.Error(c, http.StatusBadRequest, "validation failed", details)
	c.Error(err) //nolint:errcheck
}
