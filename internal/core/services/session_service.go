package services

import (
	"context"
	"sync"

	"telecare/internal/core/domain"
	"telecare/internal/core/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EngineFactory builds one isolated session engine. Each session gets its
// own instance of every component; nothing is shared across sessions.
type EngineFactory func(ctx context.Context, sessionID domain.SessionID) (ports.SessionEngine, error)

// SessionService is the per-process registry of active sessions. It replaces
// the original's process-wide pool with an explicitly constructed, injected
// service so tests can instantiate isolated instances.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]ports.SessionEngine
	factory  EngineFactory
	logger   *zap.SugaredLogger
}

func NewSessionService(factory EngineFactory, logger *zap.SugaredLogger) *SessionService {
	return &SessionService{
		sessions: make(map[domain.SessionID]ports.SessionEngine),
		factory:  factory,
		logger:   logger,
	}
}

// CreateSession constructs and starts a new engine. An empty id gets a
// generated one.
func (s *SessionService) CreateSession(ctx context.Context, id domain.SessionID) (domain.SessionID, error) {
	if id == "" {
		id = domain.SessionID(uuid.NewString())
	}
	engine, err := s.factory(ctx, id)
	if err != nil {
		return "", err
	}
	if err := engine.Start(ctx); err != nil {
		_ = engine.Close()
		return "", err
	}

	s.mu.Lock()
	old, existed := s.sessions[id]
	s.sessions[id] = engine
	s.mu.Unlock()

	if existed {
		s.logger.Warnw("replacing existing session", "session_id", id)
		_ = old.Close()
	}
	s.logger.Infow("session created", "session_id", id)
	return id, nil
}

// GetSession returns the engine for the given id.
func (s *SessionService) GetSession(id domain.SessionID) (ports.SessionEngine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	engine, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return engine, nil
}

// ListSessions returns the ids of all active sessions.
func (s *SessionService) ListSessions() []domain.SessionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]domain.SessionID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// CloseSession tears the engine down and removes it from the registry.
func (s *SessionService) CloseSession(id domain.SessionID) error {
	s.mu.Lock()
	engine, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	err := engine.Close()
	s.logger.Infow("session closed", "session_id", id)
	return err
}

// Shutdown closes every active session.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	engines := make([]ports.SessionEngine, 0, len(s.sessions))
	for id, engine := range s.sessions {
		engines = append(engines, engine)
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	for _, engine := range engines {
		_ = engine.Close()
	}
}
