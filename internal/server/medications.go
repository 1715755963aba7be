package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/manav03panchal/medremind/internal/medication"
	"github.com/manav03panchal/medremind/internal/model"
	"github.com/manav03panchal/medremind/internal/parser"
)

type createMedicationResponse struct {
	Medication *model.Medication `json:"medication"`
	Reminders  []*model.Reminder `json:"reminders"`
}

type frequencyRequest struct {
	Frequency string `json:"frequency"`
}

type frequencyResponse struct {
	Medication *model.Medication `json:"medication"`
	Times      []string          `json:"times"`
}

type takenRequest struct {
	Notes string `json:"notes"`
}

type importRequest struct {
	Medications []medication.CreateInput `json:"medications"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	status, healthy := s.opts.Health(r.Context())
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleListMedications(w http.ResponseWriter, r *http.Request) {
	meds, err := s.opts.Medications.List(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if meds == nil {
		meds = []*model.Medication{}
	}
	writeJSON(w, http.StatusOK, meds)
}

func (s *Server) handleCreateMedication(w http.ResponseWriter, r *http.Request) {
	var in medication.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, r, "invalid json")
		return
	}
	// the HTTP surface only creates manual entries; extracted ones use import
	in.Source = ""
	in.Confidence = nil

	med, reminders, err := s.opts.Medications.Create(r.Context(), chi.URLParam(r, "userID"), in)
	if err != nil && med == nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createMedicationResponse{Medication: med, Reminders: reminders})
}

func (s *Server) handleGetMedication(w http.ResponseWriter, r *http.Request) {
	med, err := s.opts.Medications.Get(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "medicationID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, med)
}

func (s *Server) handleUpdateMedication(w http.ResponseWriter, r *http.Request) {
	var in medication.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, r, "invalid json")
		return
	}

	med, err := s.opts.Medications.Update(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "medicationID"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, med)
}

// handleSetFrequency replaces a medication's frequency and reports the daily
// times its reminders now fire at.
func (s *Server) handleSetFrequency(w http.ResponseWriter, r *http.Request) {
	var in frequencyRequest
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, r, "invalid json")
		return
	}

	med, err := s.opts.Medications.UpdateFrequency(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "medicationID"), in.Frequency)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, frequencyResponse{Medication: med, Times: parser.Interpret(med.Frequency)})
}

func (s *Server) handleDeleteMedication(w http.ResponseWriter, r *http.Request) {
	if _, err := s.opts.Medications.Deactivate(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "medicationID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTaken(w http.ResponseWriter, r *http.Request) {
	var req takenRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "invalid json")
		return
	}

	entry, err := s.opts.Medications.MarkTaken(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "medicationID"), req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "invalid json")
		return
	}

	result, err := s.opts.Medications.Import(r.Context(), chi.URLParam(r, "userID"), req.Medications)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	views, err := s.opts.Medications.ListReminders(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}
