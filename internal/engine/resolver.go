package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oncoline/chemochat-go/internal/metrics"
	"github.com/oncoline/chemochat-go/internal/models"
	"github.com/oncoline/chemochat-go/internal/store"
)

// ResolveToday returns the patient's session for the current calendar day in
// their timezone, creating one if none exists. "Today" is the local
// midnight-to-midnight window converted to UTC before querying the store, so
// sessions created minutes apart across a local day boundary land in
// different days.
func (e *Engine) ResolveToday(ctx context.Context, patientID uuid.UUID, timezone string) (*models.Session, []models.Message, bool, error) {
	start := time.Now()
	defer func() { e.stats.RecordTiming(metrics.OpSessionResolve, time.Since(start)) }()

	utcStart, utcEnd := e.todayWindow(timezone)

	sess, err := e.store.FindSessionInRange(ctx, patientID, utcStart, utcEnd)
	if err == nil {
		msgs, err := e.store.ListMessages(ctx, sess.ID)
		if err != nil {
			return nil, nil, false, fmt.Errorf("load messages: %w", err)
		}
		return sess, msgs, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, false, fmt.Errorf("find today's session: %w", err)
	}

	sess, msgs, err := e.createSession(ctx, patientID)
	if err != nil {
		return nil, nil, false, err
	}
	return sess, msgs, true, nil
}

// ForceNew creates a fresh session for today regardless of any existing one,
// letting the user explicitly restart.
func (e *Engine) ForceNew(ctx context.Context, patientID uuid.UUID, timezone string) (*models.Session, []models.Message, bool, error) {
	_ = timezone // today's window is irrelevant when creation is unconditional
	sess, msgs, err := e.createSession(ctx, patientID)
	if err != nil {
		return nil, nil, false, err
	}
	return sess, msgs, true, nil
}

// todayWindow computes the local day's [start, end) in UTC. Unrecognized
// timezone identifiers fall back to the configured default rather than
// failing the request.
func (e *Engine) todayWindow(timezone string) (time.Time, time.Time) {
	loc := e.location(timezone)
	now := e.now().In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	return dayStart.UTC(), dayEnd.UTC()
}

func (e *Engine) location(timezone string) *time.Location {
	if timezone == "" {
		timezone = e.defaultTZ
	}
	loc, err := time.LoadLocation(timezone)
	if err == nil {
		return loc
	}
	e.logger.Warn("unrecognized timezone, using default", "timezone", timezone, "default", e.defaultTZ)

	loc, err = time.LoadLocation(e.defaultTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

// createSession starts a new conversation in the opening state and persists
// the fixed opening question as the first assistant message.
func (e *Engine) createSession(ctx context.Context, patientID uuid.UUID) (*models.Session, []models.Message, error) {
	now := e.now().UTC()
	sess := &models.Session{
		ID:        uuid.New(),
		PatientID: patientID,
		State:     models.StateChemoCheckSent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.SaveSession(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	opening := &models.Message{
		SessionID:      sess.ID,
		Sender:         models.SenderAssistant,
		Type:           models.TypeSingleSelect,
		Content:        openingQuestion,
		StructuredData: optionsData(OpeningOptions),
		CreatedAt:      now,
	}
	if err := e.store.AppendMessage(ctx, opening); err != nil {
		return nil, nil, fmt.Errorf("create opening message: %w", err)
	}

	e.logger.Info("session created", "session", sess.ID, "patient", patientID)
	return sess, []models.Message{*opening}, nil
}

// Acknowledge reports the session's current state for a newly attached
// client connection.
func (e *Engine) Acknowledge(ctx context.Context, sessionID uuid.UUID) (*ConnectionAck, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &ConnectionAck{
		Content:      "Connection acknowledged.",
		SessionState: sess.State,
	}, nil
}

// FullSession returns a session with its complete message history after
// verifying patient ownership. Sessions owned by another patient present as
// not found.
func (e *Engine) FullSession(ctx context.Context, sessionID, patientID uuid.UUID) (*models.Session, []models.Message, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load session: %w", err)
	}
	if sess.PatientID != patientID {
		return nil, nil, store.ErrNotFound
	}
	msgs, err := e.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load messages: %w", err)
	}
	return sess, msgs, nil
}

// Delete removes a session after verifying patient ownership.
func (e *Engine) Delete(ctx context.Context, sessionID, patientID uuid.UUID) error {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess.PatientID != patientID {
		return store.ErrNotFound
	}
	if err := e.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	e.logger.Info("session deleted", "session", sessionID, "patient", patientID)
	return nil
}
