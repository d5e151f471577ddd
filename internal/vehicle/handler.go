package vehicle

import (
	"github.com/gin-gonic/gin"

	"tireshop_backend/platform/httpkit"
)

// Handler serves the public vehicle lookup endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates the vehicle HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// DecodeVIN handles GET /vehicles/vin/:vin.
func (h *Handler) DecodeVIN(c *gin.Context) {
	result, err := h.svc.DecodeVIN(c.Request.Context(), c.Param("vin"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// TireSizes handles GET /vehicles/tires?make=&model=&year=.
func (h *Handler) TireSizes(c *gin.Context) {
	sizes, err := h.svc.TireSizes(c.Request.Context(), c.Query("make"), c.Query("model"), c.Query("year"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"sizes": sizes})
}
