package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"medtrack-backend/internal/db"
	"medtrack-backend/internal/model"
	"medtrack-backend/internal/store"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDB, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(testDB))
	return testDB
}

func seedUser(t *testing.T, testDB *gorm.DB, id int64) {
	t.Helper()
	require.NoError(t, testDB.Create(&model.User{ID: id, Email: "user@example.com", Name: "Sam"}).Error)
	require.NoError(t, testDB.Create(&model.UserPreference{UserID: id, EmailEnabled: true}).Error)
}

func newTestScheduler(t *testing.T, channels ...Channel) (*Scheduler, store.Store, *gorm.DB) {
	t.Helper()
	testDB := newTestDB(t)
	appStore := store.NewGormStore(testDB)
	dispatcher := NewDispatcher(time.Second, channels...)
	return NewScheduler(appStore, dispatcher, 15*time.Minute), appStore, testDB
}

func TestSchedule(t *testing.T) {
	s, appStore, _ := newTestScheduler(t)
	ctx := context.Background()

	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	doseID := int64(42)
	id, err := s.Schedule(ctx, 1, &doseID, "dose_reminder", "Time for Metformin", "500mg with food", at)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	row, err := appStore.NotificationByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryScheduled, row.DeliveryStatus)
	assert.Equal(t, at.Unix(), row.ScheduledAt.Unix())
	require.NotNil(t, row.DoseID)
	assert.Equal(t, doseID, *row.DoseID)
}

func TestScheduleValidation(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	ctx := context.Background()

	_, err := s.Schedule(ctx, 0, nil, "dose_reminder", "title", "", time.Now())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.Schedule(ctx, 1, nil, "", "title", "", time.Now())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.Schedule(ctx, 1, nil, "dose_reminder", "", "", time.Now())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSweepDeliversDueNotification(t *testing.T) {
	// Push fails with an invalid token, email succeeds: the notification is
	// still delivered.
	push := &fakeChannel{name: "push", enabled: true, err: errors.New("invalid token")}
	email := &fakeChannel{name: "email", enabled: true}
	s, appStore, testDB := newTestScheduler(t, push, email)
	ctx := context.Background()

	seedUser(t, testDB, 1)

	scheduledAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	id, err := s.Schedule(ctx, 1, nil, "dose_reminder", "Time for Metformin", "", scheduledAt)
	require.NoError(t, err)

	report, err := s.Sweep(ctx, scheduledAt.Add(2*time.Minute), 50)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Processed: 1, Succeeded: 1}, report)

	row, err := appStore.NotificationByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryDelivered, row.DeliveryStatus)
	assert.Empty(t, row.ErrorMessage)
	require.Len(t, row.ChannelResults, 2)
	assert.Equal(t, "push", row.ChannelResults[0].Channel)
	assert.False(t, row.ChannelResults[0].Success)
	assert.Equal(t, "invalid token", row.ChannelResults[0].Error)
	assert.Equal(t, "email", row.ChannelResults[1].Channel)
	assert.True(t, row.ChannelResults[1].Success)
}

func TestSweepTotalFailure(t *testing.T) {
	push := &fakeChannel{name: "push", enabled: true, err: errors.New("invalid token")}
	email := &fakeChannel{name: "email", enabled: true, err: errors.New("smtp unreachable")}
	s, appStore, testDB := newTestScheduler(t, push, email)
	ctx := context.Background()

	seedUser(t, testDB, 1)

	scheduledAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	id, err := s.Schedule(ctx, 1, nil, "dose_reminder", "Time for Metformin", "", scheduledAt)
	require.NoError(t, err)

	report, err := s.Sweep(ctx, scheduledAt.Add(time.Minute), 50)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Processed: 1, Failed: 1}, report)

	row, err := appStore.NotificationByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryFailed, row.DeliveryStatus)
	assert.Contains(t, row.ErrorMessage, "push: invalid token")
	assert.Contains(t, row.ErrorMessage, "email: smtp unreachable")
}

func TestSweepIgnoresFutureNotifications(t *testing.T) {
	email := &fakeChannel{name: "email", enabled: true}
	s, appStore, testDB := newTestScheduler(t, email)
	ctx := context.Background()

	seedUser(t, testDB, 1)

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	id, err := s.Schedule(ctx, 1, nil, "dose_reminder", "Later", "", now.Add(time.Hour))
	require.NoError(t, err)

	report, err := s.Sweep(ctx, now, 50)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report)
	assert.Equal(t, 0, email.calls)

	row, err := appStore.NotificationByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryScheduled, row.DeliveryStatus)
}

func TestSweepOldestFirstAndBounded(t *testing.T) {
	email := &fakeChannel{name: "email", enabled: true}
	s, appStore, testDB := newTestScheduler(t, email)
	ctx := context.Background()

	seedUser(t, testDB, 1)

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	newest, err := s.Schedule(ctx, 1, nil, "dose_reminder", "newest", "", base.Add(2*time.Minute))
	require.NoError(t, err)
	oldest, err := s.Schedule(ctx, 1, nil, "dose_reminder", "oldest", "", base)
	require.NoError(t, err)

	report, err := s.Sweep(ctx, base.Add(10*time.Minute), 1)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Processed: 1, Succeeded: 1}, report)

	row, err := appStore.NotificationByID(ctx, oldest)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryDelivered, row.DeliveryStatus, "the oldest due row goes first")

	row, err = appStore.NotificationByID(ctx, newest)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryScheduled, row.DeliveryStatus)
}

func TestSweepSkipsFreshClaims(t *testing.T) {
	email := &fakeChannel{name: "email", enabled: true}
	s, appStore, testDB := newTestScheduler(t, email)
	ctx := context.Background()

	seedUser(t, testDB, 1)

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	id, err := s.Schedule(ctx, 1, nil, "dose_reminder", "claimed", "", now.Add(-time.Minute))
	require.NoError(t, err)

	// Another sweep claimed the row moments ago; it must be left alone.
	claimed, err := appStore.ClaimNotification(ctx, id, now, 15*time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	report, err := s.Sweep(ctx, now, 50)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report)
	assert.Equal(t, 0, email.calls)
}

func TestSweepRetakesStaleClaims(t *testing.T) {
	email := &fakeChannel{name: "email", enabled: true}
	s, appStore, testDB := newTestScheduler(t, email)
	ctx := context.Background()

	seedUser(t, testDB, 1)

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	id, err := s.Schedule(ctx, 1, nil, "dose_reminder", "abandoned", "", base)
	require.NoError(t, err)

	// A sweep claimed the row and crashed before finishing.
	claimed, err := appStore.ClaimNotification(ctx, id, base, 15*time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	report, err := s.Sweep(ctx, base.Add(20*time.Minute), 50)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Processed: 1, Succeeded: 1}, report)

	row, err := appStore.NotificationByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryDelivered, row.DeliveryStatus)
}

func TestClaimNotificationIsExclusive(t *testing.T) {
	s, appStore, _ := newTestScheduler(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	id, err := s.Schedule(ctx, 1, nil, "dose_reminder", "race", "", now)
	require.NoError(t, err)

	first, err := appStore.ClaimNotification(ctx, id, now, 15*time.Minute)
	require.NoError(t, err)
	second, err := appStore.ClaimNotification(ctx, id, now, 15*time.Minute)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second, "only one claimer may win")
}

func TestFinishNotificationExactlyOnce(t *testing.T) {
	s, appStore, _ := newTestScheduler(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	id, err := s.Schedule(ctx, 1, nil, "dose_reminder", "once", "", now)
	require.NoError(t, err)

	claimed, err := appStore.ClaimNotification(ctx, id, now, 15*time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	finished, err := appStore.FinishNotification(ctx, id, model.DeliveryDelivered,
		[]model.ChannelResult{{Channel: "email", Success: true}}, "")
	require.NoError(t, err)
	assert.True(t, finished)

	// A retry after the terminal write must keep the first outcome.
	finished, err = appStore.FinishNotification(ctx, id, model.DeliveryFailed, nil, "late failure")
	require.NoError(t, err)
	assert.False(t, finished)

	row, err := appStore.NotificationByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryDelivered, row.DeliveryStatus)
	assert.Empty(t, row.ErrorMessage)
	require.Len(t, row.ChannelResults, 1)
}

func TestSweepWithNoEnabledChannels(t *testing.T) {
	s, appStore, testDB := newTestScheduler(t, &fakeChannel{name: "push", enabled: false})
	ctx := context.Background()

	seedUser(t, testDB, 1)

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	id, err := s.Schedule(ctx, 1, nil, "dose_reminder", "nowhere to go", "", now.Add(-time.Minute))
	require.NoError(t, err)

	report, err := s.Sweep(ctx, now, 50)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Processed: 1, Failed: 1}, report)

	row, err := appStore.NotificationByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryFailed, row.DeliveryStatus)
	assert.Contains(t, row.ErrorMessage, "no delivery channel enabled")
}
