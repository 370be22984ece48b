package framer

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestExtractWithSurroundingNoise(t *testing.T) {
	fragments := []string{"noise {\"response_", "type\":\"text\",\"cont", "ent\":\"hi\"} trailing"}

	f := New()
	for _, frag := range fragments {
		f.Write(frag)
	}

	env, raw, err := f.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if raw != `noise {"response_type":"text","content":"hi"} trailing` {
		t.Errorf("raw buffer = %q", raw)
	}
	if env.ResponseType != "text" {
		t.Errorf("ResponseType = %q, want %q", env.ResponseType, "text")
	}
	if env.Content != "hi" {
		t.Errorf("Content = %q, want %q", env.Content, "hi")
	}
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no braces", "just plain text"},
		{"only opening brace", "start { no close"},
		{"only closing brace", "} no open"},
		{"close before open", "} then {"},
		{"unbalanced json", `{"response_type":"text",`},
		{"not an object", "{]}"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.in)
			if !errors.Is(err, ErrNoEnvelope) {
				t.Errorf("Extract(%q) error = %v, want ErrNoEnvelope", tt.in, err)
			}
		})
	}
}

func TestExtractNormalizesResponseType(t *testing.T) {
	env, err := Extract(`{"response_type":"button-prompt","content":"More symptoms?","options":["Yes","No"]}`)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if env.ResponseType != "button_prompt" {
		t.Errorf("ResponseType = %q, want %q", env.ResponseType, "button_prompt")
	}
	if len(env.Options) != 2 {
		t.Errorf("Options = %v", env.Options)
	}
}

func TestExtractSummaryData(t *testing.T) {
	env, err := Extract(`{
		"response_type": "summary",
		"content": "done",
		"summary_data": {
			"symptom_list": ["Nausea"],
			"severity_list": {"Nausea": 4},
			"medication_list": [{"symptom":"Nausea","medicineName":"Ondansetron","frequency":"as_needed","response":"yes"}],
			"longer_summary": "Mild nausea.",
			"bulleted_summary": "Nausea 4/10\nTook Ondansetron",
			"overall_feeling": "Neutral"
		}
	}`)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	sd := env.SummaryData
	if sd == nil {
		t.Fatal("SummaryData is nil")
	}
	if sd.SeverityList["Nausea"] != 4 {
		t.Errorf("SeverityList = %v", sd.SeverityList)
	}
	if len(sd.MedicationList) != 1 || sd.MedicationList[0].MedicineName != "Ondansetron" {
		t.Errorf("MedicationList = %v", sd.MedicationList)
	}
	if len(sd.BulletedSummary) != 2 {
		t.Errorf("BulletedSummary = %v, want 2 lines", sd.BulletedSummary)
	}
}

func TestBulletListAcceptsBothForms(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"newline string", `{"bulleted_summary":"a\n\nb"}`, 3},
		{"array", `{"bulleted_summary":["a","","b"]}`, 3},
		{"array with non-strings", `{"bulleted_summary":["a",3,null]}`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sd SummaryData
			if err := jsonUnmarshal(tt.in, &sd); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(sd.BulletedSummary) != tt.want {
				t.Errorf("BulletedSummary = %v, want %d raw items", sd.BulletedSummary, tt.want)
			}
		})
	}
}

func TestFormatBullets(t *testing.T) {
	tests := []struct {
		name string
		in   BulletList
		want string
	}{
		{"drops empties", BulletList{"a", "", "b"}, "• a<br>• b"},
		{"trims items", BulletList{"  a  "}, "• a"},
		{"all empty", BulletList{"", "   "}, NoSummaryPlaceholder},
		{"nil", nil, NoSummaryPlaceholder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.FormatBullets(); got != tt.want {
				t.Errorf("FormatBullets() = %q, want %q", got, tt.want)
			}
		})
	}
}

func jsonUnmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}
