// Package store defines the session/message persistence boundary consumed by
// the conversation engine, plus the bundled implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/oncoline/chemochat-go/internal/models"
)

// ErrNotFound is returned when a session does not exist in the store.
var ErrNotFound = errors.New("session not found")

// Store is the capability set the engine needs from persistence. Each call is
// assumed transactional on its own; the engine orders its writes so a failed
// call never leaves a session with an advanced state.
type Store interface {
	// GetSession returns the session with the given id, or ErrNotFound.
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)

	// FindSessionInRange returns the most recently created session for the
	// patient with CreatedAt in [utcStart, utcEnd), or ErrNotFound.
	FindSessionInRange(ctx context.Context, patientID uuid.UUID, utcStart, utcEnd time.Time) (*models.Session, error)

	// SaveSession inserts or updates a session.
	SaveSession(ctx context.Context, s *models.Session) error

	// DeleteSession removes a session and its messages, or ErrNotFound.
	DeleteSession(ctx context.Context, id uuid.UUID) error

	// ListMessages returns the session's messages in creation order.
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]models.Message, error)

	// AppendMessage persists a message and assigns its ID.
	AppendMessage(ctx context.Context, m *models.Message) error
}
