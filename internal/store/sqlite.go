package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/oncoline/chemochat-go/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	uuid             TEXT PRIMARY KEY,
	patient_uuid     TEXT NOT NULL,
	conversation_state TEXT NOT NULL,
	symptom_list     TEXT NOT NULL DEFAULT '[]',
	severity_list    TEXT NOT NULL DEFAULT '{}',
	medication_list  TEXT NOT NULL DEFAULT '[]',
	overall_feeling  TEXT NOT NULL DEFAULT '',
	longer_summary   TEXT NOT NULL DEFAULT '',
	bulleted_summary TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_patient_created
	ON sessions (patient_uuid, created_at);

CREATE TABLE IF NOT EXISTS messages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	session_uuid    TEXT NOT NULL REFERENCES sessions (uuid) ON DELETE CASCADE,
	sender          TEXT NOT NULL,
	message_type    TEXT NOT NULL,
	content         TEXT NOT NULL,
	structured_data TEXT,
	created_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session
	ON messages (session_uuid, id);
`

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db *sqlx.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

type sessionRow struct {
	UUID            string    `db:"uuid"`
	PatientUUID     string    `db:"patient_uuid"`
	State           string    `db:"conversation_state"`
	SymptomList     string    `db:"symptom_list"`
	SeverityList    string    `db:"severity_list"`
	MedicationList  string    `db:"medication_list"`
	OverallFeeling  string    `db:"overall_feeling"`
	LongerSummary   string    `db:"longer_summary"`
	BulletedSummary string    `db:"bulleted_summary"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

type messageRow struct {
	ID             int64          `db:"id"`
	SessionUUID    string         `db:"session_uuid"`
	Sender         string         `db:"sender"`
	MessageType    string         `db:"message_type"`
	Content        string         `db:"content"`
	StructuredData sql.NullString `db:"structured_data"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r *sessionRow) toModel() (*models.Session, error) {
	id, err := uuid.Parse(r.UUID)
	if err != nil {
		return nil, fmt.Errorf("parse session uuid: %w", err)
	}
	patientID, err := uuid.Parse(r.PatientUUID)
	if err != nil {
		return nil, fmt.Errorf("parse patient uuid: %w", err)
	}

	s := &models.Session{
		ID:              id,
		PatientID:       patientID,
		State:           models.ConversationState(r.State),
		OverallFeeling:  models.Feeling(r.OverallFeeling),
		LongerSummary:   r.LongerSummary,
		BulletedSummary: r.BulletedSummary,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(r.SymptomList), &s.SymptomList); err != nil {
		return nil, fmt.Errorf("decode symptom list: %w", err)
	}
	if err := json.Unmarshal([]byte(r.SeverityList), &s.SeverityList); err != nil {
		return nil, fmt.Errorf("decode severity list: %w", err)
	}
	if err := json.Unmarshal([]byte(r.MedicationList), &s.MedicationList); err != nil {
		return nil, fmt.Errorf("decode medication list: %w", err)
	}
	return s, nil
}

func sessionToRow(s *models.Session) (*sessionRow, error) {
	symptoms, err := json.Marshal(orEmptySlice(s.SymptomList))
	if err != nil {
		return nil, fmt.Errorf("encode symptom list: %w", err)
	}
	severities, err := json.Marshal(orEmptyMap(s.SeverityList))
	if err != nil {
		return nil, fmt.Errorf("encode severity list: %w", err)
	}
	medications, err := json.Marshal(orEmptyMeds(s.MedicationList))
	if err != nil {
		return nil, fmt.Errorf("encode medication list: %w", err)
	}

	return &sessionRow{
		UUID:            s.ID.String(),
		PatientUUID:     s.PatientID.String(),
		State:           string(s.State),
		SymptomList:     string(symptoms),
		SeverityList:    string(severities),
		MedicationList:  string(medications),
		OverallFeeling:  string(s.OverallFeeling),
		LongerSummary:   s.LongerSummary,
		BulletedSummary: s.BulletedSummary,
		CreatedAt:       s.CreatedAt.UTC(),
		UpdatedAt:       s.UpdatedAt.UTC(),
	}, nil
}

func (r *messageRow) toModel() (*models.Message, error) {
	sessionID, err := uuid.Parse(r.SessionUUID)
	if err != nil {
		return nil, fmt.Errorf("parse session uuid: %w", err)
	}

	m := &models.Message{
		ID:        r.ID,
		SessionID: sessionID,
		Sender:    models.Sender(r.Sender),
		Type:      models.MessageType(r.MessageType),
		Content:   r.Content,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.StructuredData.Valid && r.StructuredData.String != "" {
		if err := json.Unmarshal([]byte(r.StructuredData.String), &m.StructuredData); err != nil {
			return nil, fmt.Errorf("decode structured data: %w", err)
		}
	}
	return m, nil
}

func (s *SQLite) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM sessions WHERE uuid = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return row.toModel()
}

func (s *SQLite) FindSessionInRange(ctx context.Context, patientID uuid.UUID, utcStart, utcEnd time.Time) (*models.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM sessions
		 WHERE patient_uuid = ? AND created_at >= ? AND created_at < ?
		 ORDER BY created_at DESC LIMIT 1`,
		patientID.String(), utcStart.UTC(), utcEnd.UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session in range: %w", err)
	}
	return row.toModel()
}

func (s *SQLite) SaveSession(ctx context.Context, sess *models.Session) error {
	row, err := sessionToRow(sess)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO sessions (uuid, patient_uuid, conversation_state, symptom_list,
			severity_list, medication_list, overall_feeling, longer_summary,
			bulleted_summary, created_at, updated_at)
		 VALUES (:uuid, :patient_uuid, :conversation_state, :symptom_list,
			:severity_list, :medication_list, :overall_feeling, :longer_summary,
			:bulleted_summary, :created_at, :updated_at)
		 ON CONFLICT (uuid) DO UPDATE SET
			conversation_state = excluded.conversation_state,
			symptom_list = excluded.symptom_list,
			severity_list = excluded.severity_list,
			medication_list = excluded.medication_list,
			overall_feeling = excluded.overall_feeling,
			longer_summary = excluded.longer_summary,
			bulleted_summary = excluded.bulleted_summary,
			updated_at = excluded.updated_at`,
		row)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteSession(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE uuid = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]models.Message, error) {
	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM messages WHERE session_uuid = ? ORDER BY id ASC`,
		sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]models.Message, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func (s *SQLite) AppendMessage(ctx context.Context, m *models.Message) error {
	var structured sql.NullString
	if m.StructuredData != nil {
		data, err := json.Marshal(m.StructuredData)
		if err != nil {
			return fmt.Errorf("encode structured data: %w", err)
		}
		structured = sql.NullString{String: string(data), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_uuid, sender, message_type, content, structured_data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.SessionID.String(), string(m.Sender), string(m.Type), m.Content, structured, m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	m.ID = id
	return nil
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyMap(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func orEmptyMeds(m []models.Medication) []models.Medication {
	if m == nil {
		return []models.Medication{}
	}
	return m
}
