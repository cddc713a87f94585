package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type scheduleNotificationRequest struct {
	UserID      int64     `json:"user_id" binding:"required"`
	DoseID      *int64    `json:"dose_id"`
	Type        string    `json:"type" binding:"required"`
	Title       string    `json:"title" binding:"required"`
	Body        string    `json:"body"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

// ScheduleNotification handles POST /api/notifications.
func (h *Handler) ScheduleNotification(c *gin.Context) {
	var req scheduleNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.scheduler.Schedule(c.Request.Context(),
		req.UserID, req.DoseID, req.Type, req.Title, req.Body, req.ScheduledAt)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type processNotificationsRequest struct {
	BatchLimit int `json:"batch_limit"`
}

// ProcessNotifications handles POST /api/notifications/process. It runs one
// bounded sweep of due notifications, for external triggers that prefer an
// HTTP call over the daemon's internal timer.
func (h *Handler) ProcessNotifications(c *gin.Context) {
	var req processNotificationsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	limit := req.BatchLimit
	if limit <= 0 {
		limit = h.defaultBatch
	}

	report, err := h.scheduler.Sweep(c.Request.Context(), time.Now().UTC(), limit)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"processed": report.Processed,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	})
}
