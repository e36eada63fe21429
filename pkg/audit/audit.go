package audit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the access-control core.
const (
	ActionPermissionDeployed = "permission.deployed"
	ActionPermissionRemoved  = "permission.removed"
	ActionRoleLinkCreated    = "role_link.created"
	ActionBindingCreated     = "binding.created"
	ActionSyncCompleted      = "sync.completed"
	ActionAccessDenied       = "access.denied"
)

// ErrLoggerClosed is returned when recording to a closed logger.
var ErrLoggerClosed = errors.New("audit.logger_closed")

// Event is a single audit trail entry.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	TenantID  uuid.UUID      `json:"tenant_id"`
	UserID    uuid.UUID      `json:"user_id,omitempty"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Storage persists audit events.
type Storage interface {
	Write(ctx context.Context, ev Event) error
}

// Logger queues events and writes them from a background goroutine.
type Logger struct {
	storage Storage
	events  chan Event
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.Mutex
	closed bool
}

// NewLogger creates an async audit logger with the given buffer size.
// A non-positive size defaults to 256.
func NewLogger(storage Storage, buffer int) *Logger {
	if storage == nil {
		panic("audit: storage is required")
	}
	if buffer <= 0 {
		buffer = 256
	}

	l := &Logger{
		storage: storage,
		events:  make(chan Event, buffer),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// Record queues an event. Never blocks: when the buffer is full the
// event is dropped and the drop counter incremented.
func (l *Logger) Record(ctx context.Context, ev Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLoggerClosed
	}

	select {
	case l.events <- ev:
		return nil
	default:
		l.dropped.Add(1)
		return nil
	}
}

// Dropped returns the number of events discarded due to a full buffer.
func (l *Logger) Dropped() int64 {
	return l.dropped.Load()
}

// Close stops the logger after draining queued events, or earlier when
// the context expires.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.events)
	l.mu.Unlock()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Logger) run() {
	defer close(l.done)
	for ev := range l.events {
		// Storage failures are swallowed: the audit trail is best
		// effort and must never break the access path.
		_ = l.storage.Write(context.Background(), ev)
	}
}

// MemoryStorage keeps events in memory, for tests and small deployments.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

var _ Storage = (*MemoryStorage)(nil)

func (s *MemoryStorage) Write(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of everything written so far.
func (s *MemoryStorage) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
