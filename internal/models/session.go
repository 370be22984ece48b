// Package models defines data structures for the chemochat conversation engine.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConversationState identifies where a session is in the triage dialogue.
type ConversationState string

const (
	StateChemoCheckSent       ConversationState = "chemo_check_sent"
	StateSymptomSelectionSent ConversationState = "symptom_selection_sent"
	StateFollowupQuestions    ConversationState = "followup_questions"

	// Terminal states keep their historical upper-case spelling. Stored rows
	// and existing clients expect these exact values, so the casing mismatch
	// with the non-terminal states is preserved on purpose.
	StateCompleted ConversationState = "COMPLETED"
	StateEmergency ConversationState = "EMERGENCY"
)

// Terminal reports whether no further transitions are allowed from s.
func (s ConversationState) Terminal() bool {
	return s == StateCompleted || s == StateEmergency
}

// Feeling is the patient's self-reported overall feeling.
type Feeling string

const (
	FeelingVeryHappy Feeling = "Very Happy"
	FeelingHappy     Feeling = "Happy"
	FeelingNeutral   Feeling = "Neutral"
	FeelingBad       Feeling = "Bad"
	FeelingVeryBad   Feeling = "Very Bad"
)

// Valid reports whether f is one of the closed feeling values.
func (f Feeling) Valid() bool {
	switch f {
	case FeelingVeryHappy, FeelingHappy, FeelingNeutral, FeelingBad, FeelingVeryBad:
		return true
	}
	return false
}

// Medication records one medicine the patient reported taking for a symptom.
type Medication struct {
	Symptom      string `json:"symptom"`
	MedicineName string `json:"medicineName"`
	Frequency    string `json:"frequency"`
	Response     string `json:"response"`
}

// Session represents one day's triage conversation for one patient.
type Session struct {
	ID              uuid.UUID          `json:"uuid"`
	PatientID       uuid.UUID          `json:"patient_uuid"`
	State           ConversationState  `json:"conversation_state"`
	SymptomList     []string           `json:"symptom_list"`
	SeverityList    map[string]int     `json:"severity_list"`
	MedicationList  []Medication       `json:"medication_list"`
	OverallFeeling  Feeling            `json:"overall_feeling,omitempty"`
	LongerSummary   string             `json:"longer_summary,omitempty"`
	BulletedSummary string             `json:"bulleted_summary,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// AddSymptoms unions the given names into the symptom list. Names are trimmed
// and deduplicated case-insensitively; the first-seen casing wins. Returns the
// number of symptoms actually added.
func (s *Session) AddSymptoms(names []string) int {
	seen := make(map[string]struct{}, len(s.SymptomList))
	for _, existing := range s.SymptomList {
		seen[strings.ToLower(existing)] = struct{}{}
	}

	added := 0
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		s.SymptomList = append(s.SymptomList, name)
		added++
	}
	return added
}

// Clone returns a deep copy of the session. Turn processing mutates a copy so
// that a failed turn never leaves partial changes behind.
func (s *Session) Clone() *Session {
	out := *s
	out.SymptomList = append([]string(nil), s.SymptomList...)
	if s.SeverityList != nil {
		out.SeverityList = make(map[string]int, len(s.SeverityList))
		for k, v := range s.SeverityList {
			out.SeverityList[k] = v
		}
	}
	out.MedicationList = append([]Medication(nil), s.MedicationList...)
	return &out
}
