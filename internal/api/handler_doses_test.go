package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"medtrack-backend/config"
	"medtrack-backend/internal/db"
	"medtrack-backend/internal/dose"
	"medtrack-backend/internal/model"
	"medtrack-backend/internal/notify"
	"medtrack-backend/internal/stock"
	"medtrack-backend/internal/store"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(testDB))

	appStore := store.NewGormStore(testDB)
	doseSvc := dose.NewService(appStore, stock.NewLedger(appStore), 30*time.Minute)
	scheduler := notify.NewScheduler(appStore, notify.NewDispatcher(time.Second), 15*time.Minute)
	handler := NewHandler(appStore, doseSvc, scheduler, 50)

	serverCfg := config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 1}

	return NewRouter(handler, &serverCfg), testDB
}

func seedTakeableDose(t *testing.T, testDB *gorm.DB, userID int64, dueAt time.Time) (model.Medication, model.DoseInstance) {
	t.Helper()
	med := model.Medication{UserID: userID, Name: "Metformin"}
	require.NoError(t, testDB.Create(&med).Error)
	require.NoError(t, testDB.Create(&model.Stock{MedicationID: med.ID, UnitsLeft: 10, UnitsTotal: 30}).Error)
	d := model.DoseInstance{MedicationID: med.ID, UserID: userID, DueAt: dueAt, Status: model.DoseScheduled}
	require.NoError(t, testDB.Create(&d).Error)
	return med, d
}

func doJSON(router *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.RequestURI = path
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTakeDoseEndpoint(t *testing.T) {
	router, testDB := setupTestRouter(t)

	dueAt := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	_, d := seedTakeableDose(t, testDB, 1, dueAt)

	takenAt := dueAt.Add(10 * time.Minute)
	w := doJSON(router, "POST", fmt.Sprintf("/api/doses/%d/take", d.ID), "1",
		gin.H{"taken_at": takenAt.Format(time.RFC3339)})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success        bool   `json:"success"`
		Streak         int    `json:"streak"`
		MedicationName string `json:"medication_name"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Streak)
	assert.Equal(t, "Metformin", resp.MedicationName)

	// Second submission of the same action conflicts.
	w = doJSON(router, "POST", fmt.Sprintf("/api/doses/%d/take", d.ID), "1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTakeDoseRequiresCaller(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, "POST", "/api/doses/1/take", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTakeDoseForeignDoseIsNotFound(t *testing.T) {
	router, testDB := setupTestRouter(t)

	_, d := seedTakeableDose(t, testDB, 1, time.Now().UTC())

	w := doJSON(router, "POST", fmt.Sprintf("/api/doses/%d/take", d.ID), "2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "foreign doses must not be distinguishable from missing ones")
}

func TestSkipDoseEndpoint(t *testing.T) {
	router, testDB := setupTestRouter(t)

	_, d := seedTakeableDose(t, testDB, 1, time.Now().UTC())

	w := doJSON(router, "POST", fmt.Sprintf("/api/doses/%d/skip", d.ID), "1", gin.H{"reason": "out of town"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Reason is required.
	_, d2 := seedTakeableDose(t, testDB, 1, time.Now().UTC())
	w = doJSON(router, "POST", fmt.Sprintf("/api/doses/%d/skip", d2.ID), "1", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSnoozeDoseEndpoint(t *testing.T) {
	router, testDB := setupTestRouter(t)

	dueAt := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	_, d := seedTakeableDose(t, testDB, 1, dueAt)

	w := doJSON(router, "POST", fmt.Sprintf("/api/doses/%d/snooze", d.ID), "1", gin.H{"minutes": 15})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		NewDueAt time.Time `json:"new_due_at"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dueAt.Add(15*time.Minute).Unix(), resp.NewDueAt.Unix())
}

func TestScheduleAndProcessNotificationsEndpoint(t *testing.T) {
	router, testDB := setupTestRouter(t)

	require.NoError(t, testDB.Create(&model.User{ID: 1, Email: "user@example.com"}).Error)

	w := doJSON(router, "POST", "/api/notifications", "1", gin.H{
		"user_id":      1,
		"type":         "dose_reminder",
		"title":        "Time for Metformin",
		"body":         "500mg with food",
		"scheduled_at": time.Now().UTC().Add(-time.Minute).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)

	// No channels are configured in this router, so processing fails the row
	// but still counts it.
	w = doJSON(router, "POST", "/api/notifications/process", "1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report struct {
		Processed int `json:"processed"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Failed)
}

func TestGetStockEndpoint(t *testing.T) {
	router, testDB := setupTestRouter(t)

	med, _ := seedTakeableDose(t, testDB, 1, time.Now().UTC())

	w := doJSON(router, "GET", fmt.Sprintf("/api/medications/%d/stock", med.ID), "1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		UnitsLeft  int `json:"units_left"`
		UnitsTotal int `json:"units_total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.UnitsLeft)
	assert.Equal(t, 30, resp.UnitsTotal)

	w = doJSON(router, "GET", "/api/medications/99999/stock", "1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
