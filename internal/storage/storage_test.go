package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to create an in-memory database for testing
func setupTestDB(t *testing.T) *DB {
	db, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createMedication(t *testing.T, db *DB, userID, name, frequency string) *model.Medication {
	t.Helper()
	med := model.NewMedication(userID, name, "10mg", frequency, "")
	require.NoError(t, db.Medications().Create(context.Background(), med))
	return med
}

// =============================================================================
// DB Tests
// =============================================================================

func TestOpenClose(t *testing.T) {
	t.Run("in_memory", func(t *testing.T) {
		db, err := Open(Options{InMemory: true})
		require.NoError(t, err)
		assert.Equal(t, "", db.Path())
		assert.NoError(t, db.Close())
	})

	t.Run("on_disk", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "db")
		db, err := Open(Options{Path: dir})
		require.NoError(t, err)
		assert.Equal(t, dir, db.Path())

		// a second handle on the same directory is refused
		_, err = Open(Options{Path: dir})
		assert.True(t, stderrors.Is(err, errors.ErrLockHeld))

		require.NoError(t, db.Close())
	})
}

func TestDefaultPath(t *testing.T) {
	assert.Contains(t, DefaultPath(), filepath.Join(AppName, "db"))
}

func TestCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	med := &model.Medication{ID: "m1", Name: "Aspirin"}
	require.NoError(t, db.Set(ctx, med))

	exists, err := db.Exists(ctx, med.GetKey())
	require.NoError(t, err)
	assert.True(t, exists)

	got := &model.Medication{}
	require.NoError(t, db.Get(ctx, "medication:m1", got))
	assert.Equal(t, "Aspirin", got.Name)

	all, err := GetAllByPrefix(ctx, db, "medication:", func() *model.Medication { return &model.Medication{} })
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "m1", all[0].ID)

	require.NoError(t, db.Delete(ctx, "medication:m1"))
	err = db.Get(ctx, "medication:m1", got)
	assert.True(t, IsErrKeyNotFound(err))
}

func TestCanceledContext(t *testing.T) {
	db := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := db.Reminders().Ensure(ctx, "u1", "m1", "09:00")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = db.Reminders().ListActive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Reminder Store Tests
// =============================================================================

func TestReminderEnsureIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Reminders()
	ctx := context.Background()

	first, created, err := repo.Ensure(ctx, "u1", "m1", "09:00")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)
	assert.True(t, first.Active)
	assert.Nil(t, first.LastFiredAt)

	second, created, err := repo.Ensure(ctx, "u1", "m1", "09:00")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// distinct key components give distinct records
	other, created, err := repo.Ensure(ctx, "u1", "m1", "20:00")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)

	all, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestReminderEnsureRejectsBadClock(t *testing.T) {
	db := setupTestDB(t)
	_, _, err := db.Reminders().Ensure(context.Background(), "u1", "m1", "9am")
	assert.True(t, stderrors.Is(err, errors.ErrInvalidClock))
	assert.True(t, errors.IsUserError(err))
}

func TestReminderEnsureConcurrent(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Reminders()
	ctx := context.Background()

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[string]bool{}
		creates int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, created, err := repo.Ensure(ctx, "u1", "m1", "14:00")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[r.ID] = true
			if created {
				creates++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, creates)

	all, err := repo.ListByMedication(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestReminderEnsureReactivates(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Reminders()
	ctx := context.Background()

	r, _, err := repo.Ensure(ctx, "u1", "m1", "09:00")
	require.NoError(t, err)
	require.NoError(t, repo.Deactivate(ctx, r.ID))

	again, created, err := repo.Ensure(ctx, "u1", "m1", "09:00")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, r.ID, again.ID)
	assert.True(t, again.Active)
}

func TestReminderMarkFiredOncePerDay(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Reminders()
	ctx := context.Background()

	r, _, err := repo.Ensure(ctx, "u1", "m1", "09:00")
	require.NoError(t, err)

	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)
	updated, fired, err := repo.MarkFired(ctx, r.ID, at)
	require.NoError(t, err)
	assert.True(t, fired)
	require.NotNil(t, updated.LastFiredAt)
	assert.True(t, updated.LastFiredAt.Equal(at))

	_, fired, err = repo.MarkFired(ctx, r.ID, at.Add(30*time.Minute))
	require.NoError(t, err)
	assert.False(t, fired, "same calendar date must not fire twice")

	stored, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastFiredAt.Equal(at), "losing call must not move LastFiredAt")

	_, fired, err = repo.MarkFired(ctx, r.ID, at.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, fired, "next day fires again")
}

func TestReminderMarkFiredConcurrent(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Reminders()
	ctx := context.Background()

	r, _, err := repo.Ensure(ctx, "u1", "m1", "09:00")
	require.NoError(t, err)
	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, fired, err := repo.MarkFired(ctx, r.ID, at)
			if assert.NoError(t, err) && fired {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestReminderMarkFiredInactive(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Reminders()
	ctx := context.Background()

	r, _, err := repo.Ensure(ctx, "u1", "m1", "09:00")
	require.NoError(t, err)
	require.NoError(t, repo.Deactivate(ctx, r.ID))

	_, fired, err := repo.MarkFired(ctx, r.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestReminderNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Reminders()
	ctx := context.Background()

	_, err := repo.Get(ctx, "missing")
	assert.True(t, stderrors.Is(err, errors.ErrReminderNotFound))

	_, _, err = repo.MarkFired(ctx, "missing", time.Now())
	assert.True(t, stderrors.Is(err, errors.ErrReminderNotFound))

	assert.True(t, stderrors.Is(repo.Deactivate(ctx, "missing"), errors.ErrReminderNotFound))
}

func TestReminderDeactivateByMedication(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Reminders()
	ctx := context.Background()

	for _, hhmm := range []string{"09:00", "14:00", "20:00"} {
		_, _, err := repo.Ensure(ctx, "u1", "m1", hhmm)
		require.NoError(t, err)
	}
	_, _, err := repo.Ensure(ctx, "u1", "m2", "09:00")
	require.NoError(t, err)

	n, err := repo.DeactivateByMedication(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = repo.DeactivateByMedication(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second run changes nothing")

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "m2", active[0].MedicationID)

	byMed, err := repo.ListByMedication(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, byMed, 3, "inactive records are kept")
}

func TestReminderListByUserSorted(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Reminders()
	ctx := context.Background()

	for _, hhmm := range []string{"20:00", "09:00", "14:00"} {
		_, _, err := repo.Ensure(ctx, "u1", "m1", hhmm)
		require.NoError(t, err)
	}
	_, _, err := repo.Ensure(ctx, "u2", "m9", "08:00")
	require.NoError(t, err)

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "09:00", list[0].Time)
	assert.Equal(t, "14:00", list[1].Time)
	assert.Equal(t, "20:00", list[2].Time)
}

// =============================================================================
// Medication Store Tests
// =============================================================================

func TestMedicationCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	med := createMedication(t, db, "u1", "Amoxicillin", "1-0-1")
	assert.NotEmpty(t, med.ID)

	got, err := db.Medications().Get(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, "Amoxicillin", got.Name)
	assert.Equal(t, "1-0-1", got.Frequency)
	assert.True(t, got.Active)

	_, err = db.Medications().Get(ctx, "missing")
	assert.True(t, stderrors.Is(err, errors.ErrMedicationNotFound))
}

func TestMedicationDuplicateName(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createMedication(t, db, "u1", "Aspirin", "morning")

	dup := model.NewMedication("u1", "  ASPIRIN", "", "", "")
	err := db.Medications().Create(ctx, dup)
	assert.True(t, stderrors.Is(err, errors.ErrDuplicateMedication))

	// another user may use the same name
	other := model.NewMedication("u2", "Aspirin", "", "", "")
	assert.NoError(t, db.Medications().Create(ctx, other))
}

func TestMedicationDeactivateFreesName(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	med := createMedication(t, db, "u1", "Aspirin", "morning")

	deactivated, err := db.Medications().Deactivate(ctx, med.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	// idempotent
	_, err = db.Medications().Deactivate(ctx, med.ID)
	require.NoError(t, err)

	again := model.NewMedication("u1", "aspirin", "", "", "")
	require.NoError(t, db.Medications().Create(ctx, again))

	// deactivating the old one again must not free the new reservation
	_, err = db.Medications().Deactivate(ctx, med.ID)
	require.NoError(t, err)
	err = db.Medications().Create(ctx, model.NewMedication("u1", "Aspirin", "", "", ""))
	assert.True(t, stderrors.Is(err, errors.ErrDuplicateMedication))
}

func TestMedicationListing(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	older := createMedication(t, db, "u1", "A", "")
	time.Sleep(2 * time.Millisecond)
	newer := createMedication(t, db, "u1", "B", "")
	createMedication(t, db, "u2", "C", "")
	_, err := db.Medications().Deactivate(ctx, older.ID)
	require.NoError(t, err)

	active, err := db.Medications().ListByUser(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, newer.ID, active[0].ID)

	all, err := db.Medications().ListByUser(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID, "newest first")

	everyone, err := db.Medications().ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, everyone, 2)
}

func TestMedicationUpdate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	med := createMedication(t, db, "u1", "Aspirin", "morning")

	updated, err := db.Medications().Update(ctx, med.ID, func(m *model.Medication) error {
		m.Frequency = "twice daily"
		m.Name = "Renamed"
		m.Active = false
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "twice daily", updated.Frequency)
	assert.Equal(t, "Aspirin", updated.Name, "name is immutable")
	assert.True(t, updated.Active, "active flag is immutable")

	boom := fmt.Errorf("boom")
	_, err = db.Medications().Update(ctx, med.ID, func(*model.Medication) error { return boom })
	assert.ErrorIs(t, err, boom)

	_, err = db.Medications().Update(ctx, "missing", func(*model.Medication) error { return nil })
	assert.True(t, stderrors.Is(err, errors.ErrMedicationNotFound))
}

// =============================================================================
// Medication Log Tests
// =============================================================================

func TestMedicationLogRange(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Logs()
	ctx := context.Background()

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.Local)
	for _, h := range []int{8, 13, 21} {
		require.NoError(t, repo.Append(ctx, &model.MedicationLog{
			UserID:       "u1",
			MedicationID: "m1",
			TakenAt:      day.Add(time.Duration(h) * time.Hour),
		}))
	}
	require.NoError(t, repo.Append(ctx, &model.MedicationLog{UserID: "u1", MedicationID: "m1", TakenAt: day.AddDate(0, 0, 1)}))
	require.NoError(t, repo.Append(ctx, &model.MedicationLog{UserID: "u2", MedicationID: "m7", TakenAt: day.Add(time.Hour)}))

	logs, err := repo.ListByUser(ctx, "u1", day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, logs, 3, "end is exclusive")
	assert.Equal(t, 8, logs[0].TakenAt.Hour())
	assert.Equal(t, 21, logs[2].TakenAt.Hour())
	assert.NotEmpty(t, logs[0].ID)
}

// =============================================================================
// Webhook Tests
// =============================================================================

func TestWebhookRepo(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Webhooks()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, model.NewWebhook("u1", "phone", model.WebhookTypeGeneric, "https://example.com/a")))
	disabled := model.NewWebhook("u1", "desk", model.WebhookTypeSlack, "https://hooks.slack.com/x")
	disabled.Enabled = false
	require.NoError(t, repo.Create(ctx, disabled))
	require.NoError(t, repo.Create(ctx, model.NewWebhook("u2", "phone", model.WebhookTypeGeneric, "https://example.com/b")))

	all, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	enabled, err := repo.ListEnabled(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "phone", enabled[0].Name)
	assert.Equal(t, "u1", enabled[0].UserID)

	require.NoError(t, repo.UpdateLastUsed(ctx, "u1", "phone", fmt.Errorf("status 500")))
	wh, err := repo.Get(ctx, "u1", "phone")
	require.NoError(t, err)
	assert.Equal(t, "status 500", wh.LastError)
	assert.False(t, wh.LastUsed.IsZero())

	require.NoError(t, repo.Delete(ctx, "u1", "phone"))
	_, err = repo.Get(ctx, "u1", "phone")
	assert.True(t, stderrors.Is(err, errors.ErrWebhookNotFound))
	assert.True(t, stderrors.Is(repo.Delete(ctx, "u1", "phone"), errors.ErrWebhookNotFound))
}

// =============================================================================
// Safety and Recovery Tests
// =============================================================================

func TestDiskSpaceInfo(t *testing.T) {
	info := &DiskSpaceInfo{TotalBytes: 200, FreeBytes: 50}
	assert.Equal(t, 25.0, info.FreePercent())
	assert.Equal(t, 0.0, (&DiskSpaceInfo{}).FreePercent())
}

func TestGetDiskSpace(t *testing.T) {
	info, err := GetDiskSpace(filepath.Join(t.TempDir(), "does", "not", "exist"))
	require.NoError(t, err)
	assert.Greater(t, info.TotalBytes, uint64(0))
}

func TestEnsureDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDirectory(dir))
	assert.DirExists(t, dir)
}

func TestHealth(t *testing.T) {
	db := setupTestDB(t)
	createMedication(t, db, "u1", "Aspirin", "")

	status := db.Health(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "badger", status.Backend)
	assert.Zero(t, status.ErrorCount)

	closed, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, closed.Close())
	assert.False(t, closed.Health(context.Background()).Healthy)
}

func TestHealthReportsDiskSpace(t *testing.T) {
	db, err := Open(Options{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	defer db.Close()

	status := db.Health(context.Background())
	assert.True(t, status.Healthy)
	assert.Greater(t, status.DiskFreePercent, 0.0)
	assert.LessOrEqual(t, status.DiskFreePercent, 100.0)

	assert.Zero(t, setupTestDB(t).Health(context.Background()).DiskFreePercent)
}

func TestBackupRestore(t *testing.T) {
	src := setupTestDB(t)
	med := createMedication(t, src, "u1", "Aspirin", "bid")
	_, _, err := src.Reminders().Ensure(context.Background(), "u1", med.ID, "09:00")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.Backup(&buf))

	dst := setupTestDB(t)
	require.NoError(t, dst.Restore(&buf))

	got, err := dst.Medications().Get(context.Background(), med.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", got.Name)

	_, created, err := dst.Reminders().Ensure(context.Background(), "u1", med.ID, "09:00")
	require.NoError(t, err)
	assert.False(t, created, "index keys survive the round trip")
}

func TestIsDatabaseCorrupted(t *testing.T) {
	assert.False(t, IsDatabaseCorrupted(nil))
	assert.True(t, IsDatabaseCorrupted(errors.ErrDatabaseCorrupted))
	assert.True(t, IsDatabaseCorrupted(fmt.Errorf("read table: Checksum mismatch")))
	assert.False(t, IsDatabaseCorrupted(fmt.Errorf("permission denied")))
}
