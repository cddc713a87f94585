package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func doseParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("dose_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dose ID"})
		return 0, false
	}
	return id, true
}

type takeDoseRequest struct {
	TakenAt *time.Time `json:"taken_at"`
}

// TakeDose handles POST /api/doses/:dose_id/take.
func (h *Handler) TakeDose(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	doseID, ok := doseParam(c)
	if !ok {
		return
	}

	var req takeDoseRequest
	// The body is optional; an absent taken_at means "now".
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.doses.MarkTaken(c.Request.Context(), userID, doseID, req.TakenAt)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"streak":          result.Streak,
		"medication_name": result.MedicationName,
	})
}

type skipDoseRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// SkipDose handles POST /api/doses/:dose_id/skip.
func (h *Handler) SkipDose(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	doseID, ok := doseParam(c)
	if !ok {
		return
	}

	var req skipDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.doses.Skip(c.Request.Context(), userID, doseID, req.Reason)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"medication_name": result.MedicationName,
	})
}

type snoozeDoseRequest struct {
	Minutes int `json:"minutes" binding:"required"`
}

// SnoozeDose handles POST /api/doses/:dose_id/snooze.
func (h *Handler) SnoozeDose(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	doseID, ok := doseParam(c)
	if !ok {
		return
	}

	var req snoozeDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newDueAt, err := h.doses.Snooze(c.Request.Context(), userID, doseID, req.Minutes)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"new_due_at": newDueAt,
	})
}
