package server

import (
	"time"

	"github.com/google/uuid"

	"github.com/oncoline/chemochat-go/internal/engine"
	"github.com/oncoline/chemochat-go/internal/models"
)

// wireMessage is a message as the frontend sees it. Message types use hyphens
// on the wire and underscores in storage.
type wireMessage struct {
	ID             int64          `json:"id"`
	SessionID      uuid.UUID      `json:"session_id"`
	Sender         string         `json:"sender"`
	MessageType    string         `json:"message_type"`
	Content        string         `json:"content"`
	StructuredData map[string]any `json:"structured_data,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func toWireMessage(m models.Message) wireMessage {
	return wireMessage{
		ID:             m.ID,
		SessionID:      m.SessionID,
		Sender:         string(m.Sender),
		MessageType:    m.Type.WireType(),
		Content:        m.Content,
		StructuredData: m.StructuredData,
		CreatedAt:      m.CreatedAt,
	}
}

func toWireMessages(msgs []models.Message) []wireMessage {
	out := make([]wireMessage, len(msgs))
	for i, m := range msgs {
		out[i] = toWireMessage(m)
	}
	return out
}

// wireSession is the session shape returned by the REST endpoints.
type wireSession struct {
	ID             uuid.UUID           `json:"id"`
	PatientID      uuid.UUID           `json:"patient_id"`
	State          string              `json:"state"`
	SymptomList    []string            `json:"symptom_list,omitempty"`
	SeverityList   map[string]int      `json:"severity_list,omitempty"`
	MedicationList []models.Medication `json:"medication_list,omitempty"`
	OverallFeeling string              `json:"overall_feeling,omitempty"`
	LongerSummary  string              `json:"longer_summary,omitempty"`
	BulletedSummary string             `json:"bulleted_summary,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func toWireSession(s *models.Session) wireSession {
	return wireSession{
		ID:              s.ID,
		PatientID:       s.PatientID,
		State:           string(s.State),
		SymptomList:     s.SymptomList,
		SeverityList:    s.SeverityList,
		MedicationList:  s.MedicationList,
		OverallFeeling:  string(s.OverallFeeling),
		LongerSummary:   s.LongerSummary,
		BulletedSummary: s.BulletedSummary,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

// wireFrame is one frame sent over the websocket.
type wireFrame struct {
	Type         string       `json:"type"`
	Message      *wireMessage `json:"message,omitempty"`
	MsgID        *int64       `json:"msg_id,omitempty"`
	Content      string       `json:"content,omitempty"`
	SessionState string       `json:"session_state,omitempty"`
}

func toWireFrame(ev engine.Event) wireFrame {
	switch e := ev.(type) {
	case engine.UserMessageSaved:
		m := toWireMessage(e.Message)
		return wireFrame{Type: "user-message-saved", Message: &m}
	case engine.FullMessage:
		m := toWireMessage(e.Message)
		return wireFrame{Type: "full-message", Message: &m}
	case engine.MessageChunk:
		id := e.MessageID
		return wireFrame{Type: "message-chunk", MsgID: &id, Content: e.Content}
	case engine.MessageEnd:
		id := e.MessageID
		return wireFrame{Type: "message-end", MsgID: &id}
	case engine.ConnectionAck:
		return wireFrame{
			Type:         "connection-ack",
			Content:      e.Content,
			SessionState: string(e.SessionState),
		}
	default:
		return wireFrame{Type: "unknown"}
	}
}
