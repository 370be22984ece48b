package framer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oncoline/chemochat-go/internal/models"
)

// Response types the dialogue controller switches on. Any other value is
// treated as an ordinary conversational reply.
const (
	ResponseSummary = "summary"
	ResponseEnd     = "end"
)

// NoSummaryPlaceholder is substituted when a summary normalizes to nothing.
const NoSummaryPlaceholder = "• No summary available."

// Envelope is the structured payload of one model turn. It lives only for
// the turn that produced it; its fields are folded into session and message
// state by the caller.
type Envelope struct {
	ResponseType string       `json:"response_type"`
	Content      string       `json:"content"`
	Options      []string     `json:"options,omitempty"`
	NewSymptoms  []string     `json:"new_symptoms,omitempty"`
	SummaryData  *SummaryData `json:"summary_data,omitempty"`
}

// SummaryData carries the completion-time record the model emits with
// "summary" and "end" responses.
type SummaryData struct {
	SymptomList     []string            `json:"symptom_list,omitempty"`
	SeverityList    map[string]int      `json:"severity_list,omitempty"`
	MedicationList  []models.Medication `json:"medication_list,omitempty"`
	LongerSummary   string              `json:"longer_summary,omitempty"`
	BulletedSummary BulletList          `json:"bulleted_summary,omitempty"`
	OverallFeeling  string              `json:"overall_feeling,omitempty"`
}

// FormatSummaryBullets renders the bulleted summary for the completion
// message. A nil SummaryData yields the placeholder.
func (sd *SummaryData) FormatSummaryBullets() string {
	if sd == nil {
		return NoSummaryPlaceholder
	}
	return sd.BulletedSummary.FormatBullets()
}

// BulletList accepts either a single newline-separated string or an
// already-itemized array. Non-string array items are stringified rather than
// rejected — the model occasionally emits numbers or nested values.
type BulletList []string

func (b *BulletList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*b = strings.Split(s, "\n")
		return nil
	}

	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("bulleted_summary must be a string or array: %w", err)
	}
	out := make(BulletList, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case nil:
			// dropped during formatting anyway
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	*b = out
	return nil
}

// FormatBullets renders the list as a user-facing bullet block: blank items
// are dropped, each remaining item gets a bullet marker, and items are joined
// with the client's line-break marker. An empty result yields the fixed
// placeholder.
func (b BulletList) FormatBullets() string {
	formatted := make([]string, 0, len(b))
	for _, item := range b {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		formatted = append(formatted, "• "+item)
	}
	if len(formatted) == 0 {
		return NoSummaryPlaceholder
	}
	return strings.Join(formatted, "<br>")
}
