package models

import "testing"

func TestNormalizeMessageType(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want MessageType
	}{
		{"hyphenated", "single-select", TypeSingleSelect},
		{"already underscored", "button_response", TypeButtonResponse},
		{"plain", "text", TypeText},
		{"multiple hyphens", "multi-select-response", TypeMultiSelectResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeMessageType(tt.in)
			if got != tt.want {
				t.Errorf("NormalizeMessageType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWireType(t *testing.T) {
	if got := TypeMultiSelectResponse.WireType(); got != "multi-select-response" {
		t.Errorf("WireType() = %q, want %q", got, "multi-select-response")
	}
	if got := TypeText.WireType(); got != "text" {
		t.Errorf("WireType() = %q, want %q", got, "text")
	}
}

func TestAddSymptoms(t *testing.T) {
	s := &Session{}

	added := s.AddSymptoms([]string{"Nausea", "nausea ", "Fatigue"})
	if added != 2 {
		t.Fatalf("first union added %d, want 2", added)
	}

	added = s.AddSymptoms([]string{"fatigue", "Rash", ""})
	if added != 1 {
		t.Fatalf("second union added %d, want 1", added)
	}

	want := []string{"Nausea", "Fatigue", "Rash"}
	if len(s.SymptomList) != len(want) {
		t.Fatalf("symptom list = %v, want %v", s.SymptomList, want)
	}
	for i, name := range want {
		if s.SymptomList[i] != name {
			t.Errorf("symptom[%d] = %q, want %q", i, s.SymptomList[i], name)
		}
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	orig := &Session{
		SymptomList:  []string{"Nausea"},
		SeverityList: map[string]int{"Nausea": 4},
	}

	clone := orig.Clone()
	clone.AddSymptoms([]string{"Rash"})
	clone.SeverityList["Nausea"] = 9

	if len(orig.SymptomList) != 1 {
		t.Errorf("clone mutation leaked into original symptom list: %v", orig.SymptomList)
	}
	if orig.SeverityList["Nausea"] != 4 {
		t.Errorf("clone mutation leaked into original severity list: %v", orig.SeverityList)
	}
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []ConversationState{StateChemoCheckSent, StateSymptomSelectionSent, StateFollowupQuestions} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []ConversationState{StateCompleted, StateEmergency} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
