package history

import (
	"context"
	"log"
	"strings"
	"time"
)

// Record is one persisted conversation message. The orchestrator holds only
// the in-memory display copy; this store is the authoritative collaborator.
type Record struct {
	ID        string
	SessionID string
	UserID    string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store persists conversation history. Failures are never allowed to break a
// live conversation; callers log and move on.
type Store interface {
	SaveMessage(ctx context.Context, record Record) error
	RecentMessages(ctx context.Context, userID string, limit int) ([]Record, error)
	Close() error
}

// NewStore picks the Postgres store when a database URL is configured, and a
// no-op store otherwise so the service runs without persistence.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		log.Printf("history: DATABASE_URL not set, conversation history disabled")
		return NoopStore{}, nil
	}
	return NewPostgresStore(ctx, databaseURL)
}

// NoopStore satisfies Store without persisting anything.
type NoopStore struct{}

func (NoopStore) SaveMessage(context.Context, Record) error { return nil }

func (NoopStore) RecentMessages(context.Context, string, int) ([]Record, error) {
	return nil, nil
}

func (NoopStore) Close() error { return nil }
