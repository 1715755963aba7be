package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockLayout is the canonical layout of a reminder trigger time.
const ClockLayout = "15:04"

// Reminder is a daily trigger time for one medication of one user.
type Reminder struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	MedicationID string     `json:"medication_id"`
	Time         string     `json:"time"` // "HH:MM", 24h
	Active       bool       `json:"active"`
	LastFiredAt  *time.Time `json:"last_fired_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// SetKey sets the database key for this reminder.
func (r *Reminder) SetKey(key string) {
	r.ID = idFromKey(PrefixReminder, key)
}

// GetKey returns the database key for this reminder.
func (r *Reminder) GetKey() string {
	return GenerateReminderKey(r.ID)
}

// IndexKey returns the (user, medication, time) uniqueness key.
func (r *Reminder) IndexKey() string {
	return GenerateReminderIndexKey(r.UserID, r.MedicationID, r.Time)
}

// DueAt returns the reminder's trigger instant on the calendar day of now,
// in now's location.
func (r *Reminder) DueAt(now time.Time) (time.Time, error) {
	hour, minute, err := ParseClock(r.Time)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()), nil
}

// FiredOn reports whether the reminder already fired on the calendar date of now.
func (r *Reminder) FiredOn(now time.Time) bool {
	if r.LastFiredAt == nil {
		return false
	}
	return SameDay(r.LastFiredAt.In(now.Location()), now)
}

// GenerateReminderKey generates a database key for a reminder.
func GenerateReminderKey(id string) string {
	return fmt.Sprintf("%s:%s", PrefixReminder, id)
}

// GenerateReminderIndexKey generates the uniqueness key for a reminder.
func GenerateReminderIndexKey(userID, medicationID, hhmm string) string {
	return fmt.Sprintf("%s:%s:%s:%s", PrefixReminderIndex, userID, medicationID, hhmm)
}

// NewReminder creates a new active reminder.
func NewReminder(userID, medicationID, hhmm string) *Reminder {
	return &Reminder{
		UserID:       userID,
		MedicationID: medicationID,
		Time:         hhmm,
		Active:       true,
		CreatedAt:    time.Now(),
	}
}

// ParseClock parses a canonical "HH:MM" trigger time.
func ParseClock(s string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid clock %q: bad hour", s)
	}
	minute, err = strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid clock %q: bad minute", s)
	}
	return hour, minute, nil
}

// FormatClock formats t as a canonical "HH:MM" trigger time.
func FormatClock(t time.Time) string {
	return t.Format(ClockLayout)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay returns midnight of t's calendar date in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
