package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oncoline/chemochat-go/internal/models"
)

// Memory is an in-memory Store. It backs tests and single-process deployments
// that don't need durability.
type Memory struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]*models.Session
	messages  map[uuid.UUID][]models.Message
	nextMsgID int64
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[uuid.UUID]*models.Session),
		messages: make(map[uuid.UUID][]models.Message),
	}
}

func (m *Memory) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) FindSessionInRange(_ context.Context, patientID uuid.UUID, utcStart, utcEnd time.Time) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *models.Session
	for _, s := range m.sessions {
		if s.PatientID != patientID {
			continue
		}
		if s.CreatedAt.Before(utcStart) || !s.CreatedAt.Before(utcEnd) {
			continue
		}
		if best == nil || s.CreatedAt.After(best.CreatedAt) {
			best = s
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best.Clone(), nil
}

func (m *Memory) SaveSession(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *Memory) DeleteSession(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	delete(m.messages, id)
	return nil
}

func (m *Memory) ListMessages(_ context.Context, sessionID uuid.UUID) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[sessionID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) AppendMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextMsgID++
	msg.ID = m.nextMsgID
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], *msg)
	return nil
}
