package handler

import (
	"strconv"
	"time"

	"tireshop_backend/internal/appointments/service"
	"tireshop_backend/platform/apperr"
	"tireshop_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the back-office appointment endpoints.
type AdminHandler struct {
	svc *service.Service
}

// NewAdminHandler creates the admin appointments handler.
func NewAdminHandler(svc *service.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// List handles GET /admin/appointments?from=&to=&status=.
func (h *AdminHandler) List(c *gin.Context) {
	from, err := parseDateQuery(c, "from")
	if httpkit.HandleError(c, err) {
		return
	}
	to, err := parseDateQuery(c, "to")
	if httpkit.HandleError(c, err) {
		return
	}

	items, err := h.svc.AdminList(c.Request.Context(), from, to, c.Query("status"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, items)
}

// Confirm handles POST /admin/appointments/:id/confirm.
func (h *AdminHandler) Confirm(c *gin.Context) {
	id, err := parseID(c)
	if httpkit.HandleError(c, err) {
		return
	}
	if httpkit.HandleError(c, h.svc.Confirm(c.Request.Context(), id)) {
		return
	}
	httpkit.OK(c, gin.H{"status": "confirmed"})
}

// Complete handles POST /admin/appointments/:id/complete.
func (h *AdminHandler) Complete(c *gin.Context) {
	id, err := parseID(c)
	if httpkit.HandleError(c, err) {
		return
	}
	if httpkit.HandleError(c, h.svc.Complete(c.Request.Context(), id)) {
		return
	}
	httpkit.OK(c, gin.H{"status": "completed"})
}

func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperr.BadRequest("id must be an integer")
	}
	return id, nil
}

func parseDateQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperr.Validation(name + " must be a date in YYYY-MM-DD format")
	}
	return &parsed, nil
}
