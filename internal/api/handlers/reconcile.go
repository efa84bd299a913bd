package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/memento/internal/reconciler"
	"github.com/your-org/memento/pkg/dto"
)

// ReconcileHandler exposes an on-demand reconciliation pass alongside
// the scheduled one, for operators who need a collection converged now.
type ReconcileHandler struct {
	rec           *reconciler.Reconciler
	windowMinutes int
}

func NewReconcileHandler(rec *reconciler.Reconciler, windowMinutes int) *ReconcileHandler {
	return &ReconcileHandler{rec: rec, windowMinutes: windowMinutes}
}

func (h *ReconcileHandler) Trigger(c *gin.Context) {
	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	window := h.windowMinutes
	if req.WindowMinutes > 0 {
		window = req.WindowMinutes
	}

	report, err := h.rec.Run(c.Request.Context(), window)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation pass failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}
