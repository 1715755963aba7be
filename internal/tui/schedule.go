package tui

import (
	"sort"
	"time"

	"github.com/manav03panchal/medremind/internal/medication"
	"github.com/manav03panchal/medremind/internal/model"
)

// DoseStatus is the state of one scheduled dose today.
type DoseStatus string

// Dose statuses.
const (
	StatusTaken    DoseStatus = "taken"
	StatusReminded DoseStatus = "reminded"
	StatusMissed   DoseStatus = "missed"
	StatusUpcoming DoseStatus = "upcoming"
)

// Dose is one reminder occurrence on the current day.
type Dose struct {
	ReminderID     string
	MedicationID   string
	MedicationName string
	Time           string
	DueAt          time.Time
	Reminded       bool
	Status         DoseStatus
}

// BuildSchedule lays out today's doses from the user's reminders and the
// doses logged today. Logged doses of a medication are credited to its
// earliest due reminders first. Reminders with an unparseable time are
// left out.
func BuildSchedule(views []medication.ReminderView, logs []*model.MedicationLog, now time.Time) []Dose {
	taken := make(map[string]int)
	for _, l := range logs {
		if model.SameDay(l.TakenAt.In(now.Location()), now) {
			taken[l.MedicationID]++
		}
	}

	doses := make([]Dose, 0, len(views))
	for _, v := range views {
		r := model.Reminder{ID: v.ID, MedicationID: v.MedicationID, Time: v.Time, LastFiredAt: v.LastFiredAt}
		due, err := r.DueAt(now)
		if err != nil {
			continue
		}
		doses = append(doses, Dose{
			ReminderID:     v.ID,
			MedicationID:   v.MedicationID,
			MedicationName: v.MedicationName,
			Time:           v.Time,
			DueAt:          due,
			Reminded:       r.FiredOn(now),
		})
	}
	sort.SliceStable(doses, func(i, j int) bool {
		if !doses[i].DueAt.Equal(doses[j].DueAt) {
			return doses[i].DueAt.Before(doses[j].DueAt)
		}
		return doses[i].MedicationName < doses[j].MedicationName
	})

	for i := range doses {
		d := &doses[i]
		switch {
		case taken[d.MedicationID] > 0:
			taken[d.MedicationID]--
			d.Status = StatusTaken
		case d.Reminded:
			d.Status = StatusReminded
		case d.DueAt.After(now):
			d.Status = StatusUpcoming
		default:
			d.Status = StatusMissed
		}
	}
	return doses
}

// NextDose returns the first upcoming dose, or nil when none remain today.
func NextDose(doses []Dose) *Dose {
	for i := range doses {
		if doses[i].Status == StatusUpcoming {
			return &doses[i]
		}
	}
	return nil
}

// Progress reports how many of today's doses have been taken.
func Progress(doses []Dose) (taken, total int) {
	for _, d := range doses {
		if d.Status == StatusTaken {
			taken++
		}
	}
	return taken, len(doses)
}
