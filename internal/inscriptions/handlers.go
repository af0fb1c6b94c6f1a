package inscriptions

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vistapay/merchant-radar/internal/logging"
	"github.com/vistapay/merchant-radar/internal/metrics"
	"github.com/vistapay/merchant-radar/internal/validation"
)

// Handler exposes the registration listing endpoint.
type Handler struct {
	store Store
}

// NewHandler creates a new inscriptions handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// List handles GET /inscriptions?start_date=...&end_date=...
// Both bounds are required ISO dates; the range is inclusive.
func (h *Handler) List(c *gin.Context) {
	startParam := c.Query("start_date")
	endParam := c.Query("end_date")

	if errs := validation.Validate(
		validation.Required("start_date", startParam),
		validation.Required("end_date", endParam),
		validation.ValidDate("start_date", startParam),
		validation.ValidDate("end_date", endParam),
	); len(errs) > 0 {
		metrics.InscriptionQueriesTotal.WithLabelValues("invalid_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": errs.Error()})
		return
	}

	start, _ := validation.ParseDate(startParam)
	end, _ := validation.ParseDate(endParam)

	records, err := h.store.ListValidated(c.Request.Context(), start, end)
	if err != nil {
		logging.L(c.Request.Context()).Error("inscription listing failed",
			"start", startParam, "end", endParam, "error", err)
		metrics.InscriptionQueriesTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if records == nil {
		records = []*Inscription{}
	}
	metrics.InscriptionQueriesTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{"inscriptions": records})
}
