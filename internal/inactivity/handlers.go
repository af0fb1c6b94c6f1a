package inactivity

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vistapay/merchant-radar/internal/logging"
)

// Handler exposes the prediction endpoint.
type Handler struct {
	service *Service
}

// NewHandler creates a new inactivity handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// PredictRequest is the request body for POST /predict/inactive-merchants.
type PredictRequest struct {
	MerchantIDs []int64 `json:"marchands_ids"`
}

// PredictInactive handles POST /predict/inactive-merchants.
// An empty merchant set is rejected before any store or model work
// happens. The response always carries an inactive_merchants array,
// empty when nothing qualifies.
func (h *Handler) PredictInactive(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.MerchantIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrNoMerchantsSelected.Error()})
		return
	}

	result, err := h.service.Predict(c.Request.Context(), req.MerchantIDs)
	if err != nil {
		logging.L(c.Request.Context()).Error("prediction failed",
			"merchants", len(req.MerchantIDs), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"inactive_merchants": result})
}
