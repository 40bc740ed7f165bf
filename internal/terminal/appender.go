package terminal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/devdeck/pkg/models"
)

// maxWriteAttempts bounds the re-read and re-apply loop on version conflicts.
const maxWriteAttempts = 3

// HistoryStore reads sessions and writes their history with a version check.
type HistoryStore interface {
	GetSession(ctx context.Context, id string) (*models.TerminalSession, error)
	ReplaceHistory(ctx context.Context, id string, expectedVersion int64, history models.ExecutionHistory) (*models.TerminalSession, error)
}

// Appender serializes history writes per session and retries writes that
// lost a version race against another process.
type Appender struct {
	store HistoryStore
	locks map[string]*sessionLock
	mu    sync.Mutex
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewAppender creates an appender over store.
func NewAppender(store HistoryStore) *Appender {
	return &Appender{
		store: store,
		locks: make(map[string]*sessionLock),
	}
}

// Append adds rec to the end of the session history and persists it.
func (a *Appender) Append(ctx context.Context, sessionID string, rec models.ExecutionRecord) (*models.TerminalSession, error) {
	return a.Mutate(ctx, sessionID, func(h models.ExecutionHistory) models.ExecutionHistory {
		return h.Append(rec)
	})
}

// Clear empties the session history.
func (a *Appender) Clear(ctx context.Context, sessionID string) (*models.TerminalSession, error) {
	return a.Mutate(ctx, sessionID, func(models.ExecutionHistory) models.ExecutionHistory {
		return models.ExecutionHistory{}
	})
}

// Mutate applies fn to the current history and writes the result.
// fn may run more than once and must not retain its argument.
func (a *Appender) Mutate(ctx context.Context, sessionID string, fn func(models.ExecutionHistory) models.ExecutionHistory) (*models.TerminalSession, error) {
	unlock := a.lock(sessionID)
	defer unlock()

	var lastErr error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		session, err := a.store.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		updated, err := a.store.ReplaceHistory(ctx, sessionID, session.Version, fn(session.History))
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, models.ErrConflict) {
			return nil, err
		}

		lastErr = err
		log.Debug().
			Str("sessionId", sessionID).
			Int("attempt", attempt).
			Msg("History write lost a version race, retrying")
	}
	return nil, fmt.Errorf("update history after %d attempts: %w", maxWriteAttempts, lastErr)
}

// ActiveLocks returns the number of sessions with a pending write.
func (a *Appender) ActiveLocks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.locks)
}

func (a *Appender) lock(sessionID string) func() {
	a.mu.Lock()
	l, ok := a.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		a.locks[sessionID] = l
	}
	l.refs++
	a.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		a.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(a.locks, sessionID)
		}
		a.mu.Unlock()
	}
}
