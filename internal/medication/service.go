// Package medication implements the user-facing medication operations and
// keeps reminder records consistent with them.
package medication

import (
	"context"
	"strings"
	"time"

	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/logging"
	"github.com/manav03panchal/medremind/internal/model"
	"github.com/manav03panchal/medremind/internal/reconcile"
	"github.com/manav03panchal/medremind/internal/storage"
	"github.com/manav03panchal/medremind/internal/validate"
)

// Emitter delivers events on a user's channel.
type Emitter interface {
	Emit(userID string, e model.Event) int
}

type discardEmitter struct{}

func (discardEmitter) Emit(string, model.Event) int { return 0 }

// Service coordinates medications, their reminders and intake logs.
type Service struct {
	medications storage.MedicationStore
	reminders   storage.ReminderStore
	logs        storage.MedicationLogStore
	reconciler  *reconcile.Reconciler
	events      Emitter
	now         func() time.Time
}

// NewService creates a service over store. A nil emitter discards events.
func NewService(store storage.Store, events Emitter) *Service {
	if events == nil {
		events = discardEmitter{}
	}
	return &Service{
		medications: store.Medications(),
		reminders:   store.Reminders(),
		logs:        store.Logs(),
		reconciler:  reconcile.NewFromStore(store),
		events:      events,
		now:         time.Now,
	}
}

// CreateInput describes a medication to add.
type CreateInput struct {
	Name         string   `json:"name"`
	Dosage       string   `json:"dosage"`
	Frequency    string   `json:"frequency"`
	Instructions string   `json:"instructions"`
	Duration     string   `json:"duration"`
	Source       string   `json:"source,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

// Create adds a medication and its reminders. A user cannot hold two active
// medications with the same name. When the medication is stored but its
// reminders are not, Create returns the medication together with the error.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Medication, []*model.Reminder, error) {
	med, reminders, err := s.create(ctx, userID, in)
	if med == nil {
		return nil, nil, err
	}
	s.events.Emit(userID, model.NewEvent(model.EventMedicationAdded, userID, med))
	return med, reminders, err
}

func (s *Service) create(ctx context.Context, userID string, in CreateInput) (*model.Medication, []*model.Reminder, error) {
	if err := validateCreate(userID, in); err != nil {
		return nil, nil, err
	}

	med := model.NewMedication(userID, validate.SanitizeName(in.Name), strings.TrimSpace(in.Dosage),
		strings.TrimSpace(in.Frequency), validate.SanitizeNote(in.Instructions))
	med.Duration = strings.TrimSpace(in.Duration)
	if in.Source != "" {
		med.Source = in.Source
	}
	med.Confidence = in.Confidence
	now := s.now()
	med.CreatedAt, med.UpdatedAt = now, now

	if err := s.medications.Create(ctx, med); err != nil {
		return nil, nil, err
	}

	reminders, err := s.reconciler.Reconcile(ctx, med)
	if err != nil {
		// the medication exists; startup backfill completes its reminders
		logging.Warn("reconcile after create failed",
			logging.KeyMedicationID, med.ID,
			logging.KeyError, err)
		return med, reminders, errors.Wrapf(err, "medication %s created but reminders incomplete", med.ID)
	}

	logging.Info("medication created",
		logging.KeyUserID, userID,
		logging.KeyMedicationID, med.ID,
		"frequency", med.Frequency,
		logging.KeyCount, len(reminders))
	return med, reminders, nil
}

// Get returns one of the user's medications.
func (s *Service) Get(ctx context.Context, userID, id string) (*model.Medication, error) {
	med, err := s.medications.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if med.UserID != userID {
		return nil, errors.NotFound(errors.ErrMedicationNotFound, id)
	}
	return med, nil
}

// List returns the user's active medications, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]*model.Medication, error) {
	return s.medications.ListByUser(ctx, userID, true)
}

// UpdateInput carries optional medication changes. Nil fields are kept.
type UpdateInput struct {
	Dosage       *string `json:"dosage"`
	Frequency    *string `json:"frequency"`
	Instructions *string `json:"instructions"`
	Duration     *string `json:"duration"`
}

// Update changes a medication. A frequency change ensures reminders for the
// new times; times no longer implied stay until the medication is removed.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*model.Medication, error) {
	if err := validateUpdate(in); err != nil {
		return nil, err
	}
	if _, err := s.activeMedication(ctx, userID, id); err != nil {
		return nil, err
	}

	updated, err := s.medications.Update(ctx, id, func(med *model.Medication) error {
		if in.Dosage != nil {
			med.Dosage = strings.TrimSpace(*in.Dosage)
		}
		if in.Frequency != nil {
			med.Frequency = strings.TrimSpace(*in.Frequency)
		}
		if in.Instructions != nil {
			med.Instructions = validate.SanitizeNote(*in.Instructions)
		}
		if in.Duration != nil {
			med.Duration = strings.TrimSpace(*in.Duration)
		}
		med.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if in.Frequency != nil {
		if _, err := s.reconciler.Reconcile(ctx, updated); err != nil {
			return updated, err
		}
	}
	return updated, nil
}

// UpdateFrequency changes a medication's frequency and reconciles its reminders.
func (s *Service) UpdateFrequency(ctx context.Context, userID, id, frequency string) (*model.Medication, error) {
	return s.Update(ctx, userID, id, UpdateInput{Frequency: &frequency})
}

// Deactivate removes a medication and all of its reminders.
func (s *Service) Deactivate(ctx context.Context, userID, id string) (*model.Medication, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	med, err := s.medications.Deactivate(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := s.reconciler.Deactivate(ctx, med)
	if err != nil {
		// stale reminders are healed by the dispatcher
		logging.Warn("reminder cascade failed",
			logging.KeyMedicationID, id,
			logging.KeyError, err)
	}

	logging.Info("medication deactivated",
		logging.KeyUserID, userID,
		logging.KeyMedicationID, id,
		logging.KeyCount, n)
	return med, nil
}

// MarkTaken records that the user took a medication now.
func (s *Service) MarkTaken(ctx context.Context, userID, id, notes string) (*model.MedicationLog, error) {
	if err := validate.Note(notes); err != nil {
		return nil, err
	}
	med, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	entry := model.NewMedicationLog(userID, med.ID, validate.SanitizeNote(notes))
	entry.TakenAt = s.now()
	if err := s.logs.Append(ctx, entry); err != nil {
		return nil, err
	}

	s.events.Emit(userID, model.NewEvent(model.EventMedicationTaken, userID, model.MedicationTaken{
		MedicationID:   med.ID,
		MedicationName: med.Name,
		TakenAt:        entry.TakenAt,
	}))
	return entry, nil
}

// History returns the user's intake log between from and to.
func (s *Service) History(ctx context.Context, userID string, from, to time.Time) ([]*model.MedicationLog, error) {
	return s.logs.ListByUser(ctx, userID, from, to)
}

// ImportResult summarises an Import call.
type ImportResult struct {
	Found   int                 `json:"found"`
	Added   []*model.Medication `json:"added"`
	Skipped []string            `json:"skipped"`
}

// Import adds extracted medication candidates. Candidates whose name is
// already active for the user, or repeated within the batch, are skipped.
func (s *Service) Import(ctx context.Context, userID string, candidates []CreateInput) (*ImportResult, error) {
	result := &ImportResult{Found: len(candidates), Added: []*model.Medication{}, Skipped: []string{}}

	for _, c := range candidates {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		c.Source = model.SourceExtracted
		if c.Confidence == nil {
			conf := model.DefaultExtractionConfidence
			c.Confidence = &conf
		}

		med, _, err := s.Create(ctx, userID, c)
		switch {
		case errors.Is(err, errors.ErrDuplicateMedication):
			result.Skipped = append(result.Skipped, strings.TrimSpace(c.Name))
			continue
		case err != nil && med == nil:
			return result, err
		}
		result.Added = append(result.Added, med)
	}

	logging.Info("medications imported",
		logging.KeyUserID, userID,
		"found", result.Found,
		"added", len(result.Added))
	return result, nil
}

// ReminderView is a reminder with the name of its medication.
type ReminderView struct {
	ID             string     `json:"id"`
	MedicationID   string     `json:"medication_id"`
	MedicationName string     `json:"medication_name"`
	Time           string     `json:"time"`
	LastFiredAt    *time.Time `json:"last_fired_at"`
}

// ListReminders returns the user's active reminders ordered by time.
func (s *Service) ListReminders(ctx context.Context, userID string) ([]ReminderView, error) {
	reminders, err := s.reminders.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	views := make([]ReminderView, 0, len(reminders))
	for _, r := range reminders {
		if !r.Active {
			continue
		}
		name, ok := names[r.MedicationID]
		if !ok {
			name = "Unknown"
			if med, err := s.medications.Get(ctx, r.MedicationID); err == nil {
				name = med.Name
			}
			names[r.MedicationID] = name
		}
		views = append(views, ReminderView{
			ID:             r.ID,
			MedicationID:   r.MedicationID,
			MedicationName: name,
			Time:           r.Time,
			LastFiredAt:    r.LastFiredAt,
		})
	}
	return views, nil
}

func validateCreate(userID string, in CreateInput) error {
	if err := validate.UserID(userID); err != nil {
		return err
	}
	if err := validate.MedicationName(validate.SanitizeName(in.Name)); err != nil {
		return err
	}
	for field, value := range map[string]string{
		"dosage":    in.Dosage,
		"frequency": in.Frequency,
		"duration":  in.Duration,
	} {
		if err := validate.Field(field, value); err != nil {
			return err
		}
	}
	return validate.Note(in.Instructions)
}

func validateUpdate(in UpdateInput) error {
	for field, value := range map[string]*string{
		"dosage":    in.Dosage,
		"frequency": in.Frequency,
		"duration":  in.Duration,
	} {
		if value == nil {
			continue
		}
		if err := validate.Field(field, *value); err != nil {
			return err
		}
	}
	if in.Instructions != nil {
		return validate.Note(*in.Instructions)
	}
	return nil
}

func (s *Service) activeMedication(ctx context.Context, userID, id string) (*model.Medication, error) {
	med, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !med.Active {
		return nil, errors.NotFound(errors.ErrMedicationInactive, id)
	}
	return med, nil
}
