package output

import "github.com/manav03panchal/medremind/internal/model"

// JSONFormatter provides JSON-specific formatting.
type JSONFormatter struct {
	*Formatter
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(f *Formatter) *JSONFormatter {
	return &JSONFormatter{Formatter: f}
}

// MedicationOutput is a medication in JSON output.
type MedicationOutput struct {
	*model.Medication
	Reminders []string `json:"reminders,omitempty"`
}

// NewMedicationOutput creates a MedicationOutput with the reminder times.
func NewMedicationOutput(med *model.Medication, reminders []*model.Reminder) *MedicationOutput {
	out := &MedicationOutput{Medication: med}
	for _, r := range reminders {
		out.Reminders = append(out.Reminders, r.Time)
	}
	return out
}

// MedicationsResponse is the medication list output.
type MedicationsResponse struct {
	Medications []*model.Medication `json:"medications"`
	Count       int                 `json:"count"`
}

// NewMedicationsResponse creates a MedicationsResponse. A nil slice is
// reported as empty.
func NewMedicationsResponse(meds []*model.Medication) *MedicationsResponse {
	if meds == nil {
		meds = []*model.Medication{}
	}
	return &MedicationsResponse{Medications: meds, Count: len(meds)}
}

// TickOutput summarises one dispatch tick.
type TickOutput struct {
	At         string        `json:"at"`
	Evaluated  int           `json:"evaluated"`
	Fired      int           `json:"fired"`
	Skipped    int           `json:"skipped"`
	Healed     int           `json:"healed"`
	Failed     int           `json:"failed"`
	DurationMs int64         `json:"duration_ms"`
	Alerts     []model.Alert `json:"alerts"`
	Error      string        `json:"error,omitempty"`
}

// ErrorResponse represents an error in JSON.
type ErrorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// PrintError outputs an error in JSON format.
func (j *JSONFormatter) PrintError(status, errMsg, message string) error {
	return j.JSON(ErrorResponse{
		Status:  status,
		Error:   errMsg,
		Message: message,
	})
}

// PrintMedications outputs medications in JSON format.
func (j *JSONFormatter) PrintMedications(meds []*model.Medication) error {
	return j.JSON(NewMedicationsResponse(meds))
}
