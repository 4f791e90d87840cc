package services

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rxtech-lab/contractgen/internal/metrics"
	"go.uber.org/zap"
)

// SessionStore keeps the live generation and deployment sessions. Moving from
// a generation to a deployment goes through Handoff.
type SessionStore struct {
	provider CompletionProvider
	deps     DeploymentDeps
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu          sync.RWMutex
	generations map[string]*GenerationSession
	deployments map[string]*DeploymentSession
}

func NewSessionStore(provider CompletionProvider, deps DeploymentDeps) *SessionStore {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		provider:    provider,
		deps:        deps,
		logger:      logger,
		metrics:     deps.Metrics,
		generations: map[string]*GenerationSession{},
		deployments: map[string]*DeploymentSession{},
	}
}

func (s *SessionStore) CreateGeneration() *GenerationSession {
	session := NewGenerationSession(uuid.NewString(), s.provider, s.logger, s.metrics)
	s.mu.Lock()
	s.generations[session.ID] = session
	s.mu.Unlock()
	return session
}

func (s *SessionStore) Generation(id string) (*GenerationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.generations[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// CloseGeneration forgets the generation session. Deployments already handed
// off keep their own copy of the contract.
func (s *SessionStore) CloseGeneration(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.generations[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.generations, id)
	return nil
}

// Handoff opens a deployment session for the current response of the
// generation session.
func (s *SessionStore) Handoff(generationID string) (*DeploymentSession, error) {
	generation, err := s.Generation(generationID)
	if err != nil {
		return nil, err
	}
	handoff := generation.Handoff()
	return s.OpenDeployment(&handoff), nil
}

// OpenDeployment opens a deployment session. A nil handoff is a direct entry.
func (s *SessionStore) OpenDeployment(handoff *Handoff) *DeploymentSession {
	session := NewDeploymentSession(uuid.NewString(), s.deps, handoff)
	s.mu.Lock()
	s.deployments[session.ID] = session
	s.mu.Unlock()
	return session
}

func (s *SessionStore) Deployment(id string) (*DeploymentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.deployments[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// CloseDeployment removes the session and stops its gas polling.
func (s *SessionStore) CloseDeployment(id string) error {
	s.mu.Lock()
	session, ok := s.deployments[id]
	delete(s.deployments, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	session.Close()
	return nil
}

// Close closes every deployment session and forgets all sessions.
func (s *SessionStore) Close() {
	s.mu.Lock()
	deployments := s.deployments
	s.deployments = map[string]*DeploymentSession{}
	s.generations = map[string]*GenerationSession{}
	s.mu.Unlock()

	for _, session := range deployments {
		session.Close()
	}
}
