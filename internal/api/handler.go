package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"medtrack-backend/internal/dose"
	"medtrack-backend/internal/notify"
	"medtrack-backend/internal/store"
)

// userIDHeader carries the caller's identity, resolved by the auth layer in
// front of this service.
const userIDHeader = "X-User-ID"

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store        store.Store
	doses        *dose.Service
	scheduler    *notify.Scheduler
	defaultBatch int
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, doses *dose.Service, scheduler *notify.Scheduler, defaultBatch int) *Handler {
	return &Handler{
		store:        s,
		doses:        doses,
		scheduler:    scheduler,
		defaultBatch: defaultBatch,
	}
}

// callerID extracts the authenticated user id from the request. Writes a
// 400 response and returns false when the header is missing or malformed.
func callerID(c *gin.Context) (int64, bool) {
	raw := c.GetHeader(userIDHeader)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid " + userIDHeader + " header"})
		return 0, false
	}
	return id, true
}

// respondErr maps service errors to HTTP statuses.
func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dose.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "dose not found"})
	case errors.Is(err, dose.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "dose already actioned"})
	case errors.Is(err, dose.ErrValidation), errors.Is(err, notify.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	default:
		log.Printf("Internal error handling %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
