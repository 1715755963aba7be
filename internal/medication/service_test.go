package medication

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/model"
	"github.com/manav03panchal/medremind/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []model.Event
}

func (e *recordingEmitter) Emit(_ string, ev model.Event) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return 1
}

func (e *recordingEmitter) types() []model.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.EventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

func setupService(t *testing.T) (*Service, *storage.DB, *recordingEmitter) {
	db, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	events := &recordingEmitter{}
	return NewService(db, events), db, events
}

func reminderTimes(reminders []*model.Reminder) []string {
	out := make([]string, 0, len(reminders))
	for _, r := range reminders {
		out = append(out, r.Time)
	}
	return out
}

func TestCreate(t *testing.T) {
	svc, _, events := setupService(t)
	ctx := context.Background()

	med, reminders, err := svc.Create(ctx, "u1", CreateInput{
		Name:         " Amoxicillin ",
		Dosage:       "500mg",
		Frequency:    "1-0-1",
		Instructions: "after food",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, med.ID)
	assert.Equal(t, "Amoxicillin", med.Name)
	assert.Equal(t, model.SourceManual, med.Source)
	assert.True(t, med.Active)
	assert.Equal(t, []string{"09:00", "20:00"}, reminderTimes(reminders))
	assert.Equal(t, []model.EventType{model.EventMedicationAdded}, events.types())
}

func TestCreateValidation(t *testing.T) {
	svc, _, events := setupService(t)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, "u1", CreateInput{Name: "  "})
	assert.True(t, errors.Is(err, errors.ErrNameRequired))

	_, _, err = svc.Create(ctx, "", CreateInput{Name: "Aspirin"})
	assert.True(t, errors.Is(err, errors.ErrUserRequired))

	assert.Empty(t, events.types())
}

func TestCreateDuplicate(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, "u1", CreateInput{Name: "Aspirin", Frequency: "morning"})
	require.NoError(t, err)

	_, _, err = svc.Create(ctx, "u1", CreateInput{Name: "aspirin", Frequency: "night"})
	assert.True(t, errors.Is(err, errors.ErrDuplicateMedication))

	// another user may use the same name
	_, _, err = svc.Create(ctx, "u2", CreateInput{Name: "Aspirin"})
	assert.NoError(t, err)
}

func TestCreateAfterDeactivate(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	med, _, err := svc.Create(ctx, "u1", CreateInput{Name: "Aspirin"})
	require.NoError(t, err)
	_, err = svc.Deactivate(ctx, "u1", med.ID)
	require.NoError(t, err)

	again, _, err := svc.Create(ctx, "u1", CreateInput{Name: "Aspirin"})
	require.NoError(t, err)
	assert.NotEqual(t, med.ID, again.ID)
}

func TestList(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 10, 8, 0, 0, 0, time.Local)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, _, err := svc.Create(ctx, "u1", CreateInput{Name: "First"})
	require.NoError(t, err)
	_, _, err = svc.Create(ctx, "u1", CreateInput{Name: "Second"})
	require.NoError(t, err)
	_, _, err = svc.Create(ctx, "u2", CreateInput{Name: "Other"})
	require.NoError(t, err)
	_, err = svc.Deactivate(ctx, "u1", first.ID)
	require.NoError(t, err)
	_, _, err = svc.Create(ctx, "u1", CreateInput{Name: "Third"})
	require.NoError(t, err)

	meds, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, meds, 2)
	assert.Equal(t, "Third", meds[0].Name)
	assert.Equal(t, "Second", meds[1].Name)
}

func TestGetOtherUser(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	med, _, err := svc.Create(ctx, "u1", CreateInput{Name: "Aspirin"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "u2", med.ID)
	assert.True(t, errors.Is(err, errors.ErrMedicationNotFound))

	_, err = svc.Deactivate(ctx, "u2", med.ID)
	assert.True(t, errors.Is(err, errors.ErrMedicationNotFound))
}

func TestUpdateFrequency(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()

	med, _, err := svc.Create(ctx, "u1", CreateInput{Name: "Aspirin", Frequency: "morning"})
	require.NoError(t, err)

	updated, err := svc.UpdateFrequency(ctx, "u1", med.ID, "tds")
	require.NoError(t, err)
	assert.Equal(t, "tds", updated.Frequency)
	assert.Equal(t, "Aspirin", updated.Name)

	reminders, err := db.Reminders().ListByMedication(ctx, med.ID)
	require.NoError(t, err)
	storage.SortByTime(reminders)
	assert.Equal(t, []string{"09:00", "14:00", "20:00"}, reminderTimes(reminders))

	// narrowing keeps existing times
	_, err = svc.UpdateFrequency(ctx, "u1", med.ID, "night")
	require.NoError(t, err)
	reminders, err = db.Reminders().ListByMedication(ctx, med.ID)
	require.NoError(t, err)
	assert.Len(t, reminders, 3)
}

func TestUpdateWithoutFrequency(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()

	med, _, err := svc.Create(ctx, "u1", CreateInput{Name: "Aspirin", Dosage: "81mg"})
	require.NoError(t, err)

	dosage := "100mg"
	updated, err := svc.Update(ctx, "u1", med.ID, UpdateInput{Dosage: &dosage})
	require.NoError(t, err)
	assert.Equal(t, "100mg", updated.Dosage)

	reminders, err := db.Reminders().ListByMedication(ctx, med.ID)
	require.NoError(t, err)
	assert.Len(t, reminders, 1)
}

func TestUpdateInactive(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	med, _, err := svc.Create(ctx, "u1", CreateInput{Name: "Aspirin"})
	require.NoError(t, err)
	_, err = svc.Deactivate(ctx, "u1", med.ID)
	require.NoError(t, err)

	_, err = svc.UpdateFrequency(ctx, "u1", med.ID, "bid")
	assert.True(t, errors.Is(err, errors.ErrMedicationInactive))
}

func TestDeactivateCascades(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()

	med, _, err := svc.Create(ctx, "u1", CreateInput{Name: "Aspirin", Frequency: "qid"})
	require.NoError(t, err)

	removed, err := svc.Deactivate(ctx, "u1", med.ID)
	require.NoError(t, err)
	assert.False(t, removed.Active)

	active, err := db.Reminders().ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	// repeat is harmless
	_, err = svc.Deactivate(ctx, "u1", med.ID)
	assert.NoError(t, err)
}

func TestMarkTaken(t *testing.T) {
	svc, _, events := setupService(t)
	ctx := context.Background()
	takenAt := time.Date(2024, 3, 10, 9, 5, 0, 0, time.Local)

	med, _, err := svc.Create(ctx, "u1", CreateInput{Name: "Aspirin"})
	require.NoError(t, err)

	svc.now = func() time.Time { return takenAt }
	entry, err := svc.MarkTaken(ctx, "u1", med.ID, " with water ")
	require.NoError(t, err)
	assert.Equal(t, med.ID, entry.MedicationID)
	assert.Equal(t, "with water", entry.Notes)

	require.Len(t, events.events, 2)
	taken := events.events[1]
	assert.Equal(t, model.EventMedicationTaken, taken.Type)
	data, ok := taken.Data.(model.MedicationTaken)
	require.True(t, ok)
	assert.Equal(t, "Aspirin", data.MedicationName)

	history, err := svc.History(ctx, "u1", takenAt.Add(-time.Hour), takenAt.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].TakenAt.Equal(takenAt))

	_, err = svc.MarkTaken(ctx, "u1", "missing", "")
	assert.True(t, errors.Is(err, errors.ErrMedicationNotFound))
}

func TestImport(t *testing.T) {
	svc, _, events := setupService(t)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, "u1", CreateInput{Name: "Aspirin"})
	require.NoError(t, err)

	high := 0.95
	result, err := svc.Import(ctx, "u1", []CreateInput{
		{Name: "Paracetamol", Dosage: "650mg", Frequency: "tds"},
		{Name: "aspirin", Frequency: "night"},
		{Name: "Cetirizine", Frequency: "night", Confidence: &high},
		{Name: "Paracetamol"},
		{Name: ""},
	})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Found)
	require.Len(t, result.Added, 2)
	assert.Equal(t, []string{"aspirin", "Paracetamol"}, result.Skipped)

	para := result.Added[0]
	assert.Equal(t, model.SourceExtracted, para.Source)
	require.NotNil(t, para.Confidence)
	assert.InDelta(t, 0.8, *para.Confidence, 1e-9)
	assert.InDelta(t, 0.95, *result.Added[1].Confidence, 1e-9)

	// one medication_added for the manual create, one per import
	assert.Len(t, events.types(), 3)
}

func TestListReminders(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, "u1", CreateInput{Name: "Aspirin", Frequency: "night"})
	require.NoError(t, err)
	_, _, err = svc.Create(ctx, "u1", CreateInput{Name: "Vitamin D", Frequency: "morning"})
	require.NoError(t, err)
	_, _, err = db.Reminders().Ensure(ctx, "u1", "orphan", "12:00")
	require.NoError(t, err)

	views, err := svc.ListReminders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "Vitamin D", views[0].MedicationName)
	assert.Equal(t, "09:00", views[0].Time)
	assert.Equal(t, "Unknown", views[1].MedicationName)
	assert.Equal(t, "Aspirin", views[2].MedicationName)
	assert.Equal(t, "20:00", views[2].Time)
}

// failingReminders rejects every Ensure.
type failingReminders struct {
	storage.ReminderStore
}

func (failingReminders) Ensure(context.Context, string, string, string) (*model.Reminder, bool, error) {
	return nil, false, errors.ErrTimeout
}

type failingReminderStore struct {
	*storage.DB
}

func (s failingReminderStore) Reminders() storage.ReminderStore {
	return failingReminders{s.DB.Reminders()}
}

func TestCreateKeepsMedicationWhenReconcileFails(t *testing.T) {
	db, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	events := &recordingEmitter{}
	svc := NewService(failingReminderStore{db}, events)
	ctx := context.Background()

	med, reminders, err := svc.Create(ctx, "u1", CreateInput{Name: "Aspirin", Frequency: "morning"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTimeout))
	require.NotNil(t, med, "the stored medication is returned with the error")
	assert.Empty(t, reminders)
	assert.Equal(t, []model.EventType{model.EventMedicationAdded}, events.types())

	stored, err := db.Medications().Get(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", stored.Name)
}
