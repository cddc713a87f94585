package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func medicationParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("medication_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid medication ID"})
		return 0, false
	}
	return id, true
}

// GetStock handles GET /api/medications/:medication_id/stock.
func (h *Handler) GetStock(c *gin.Context) {
	medicationID, ok := medicationParam(c)
	if !ok {
		return
	}

	stock, err := h.store.StockForMedication(c.Request.Context(), medicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no stock tracked for medication"})
			return
		}
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"medication_id":    stock.MedicationID,
		"units_left":       stock.UnitsLeft,
		"units_total":      stock.UnitsTotal,
		"projected_end_at": stock.ProjectedEndAt,
	})
}

// GetStreak handles GET /api/medications/:medication_id/streak.
func (h *Handler) GetStreak(c *gin.Context) {
	medicationID, ok := medicationParam(c)
	if !ok {
		return
	}

	streak, err := h.doses.Streak(c.Request.Context(), medicationID, time.Now().UTC())
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"streak": streak})
}
