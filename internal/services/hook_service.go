package services

import (
	"context"
	"errors"
	"sync"
)

type HookService interface {
	AddHook(hook Hook) error
	OnOutcomeChanged(ctx context.Context, event DeploymentEvent) error
}

type hookService struct {
	mu    sync.RWMutex
	hooks []Hook
}

func NewHookService() HookService {
	return &hookService{
		hooks: []Hook{},
	}
}

func (h *hookService) AddHook(hook Hook) error {
	if hook == nil {
		return errors.New("hook is nil")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
	return nil
}

// OnOutcomeChanged runs every hook that handles the event status. All hooks run
// even when one fails, and the failures are joined.
func (h *hookService) OnOutcomeChanged(ctx context.Context, event DeploymentEvent) error {
	h.mu.RLock()
	hooks := append([]Hook(nil), h.hooks...)
	h.mu.RUnlock()

	var errs []error
	for _, hook := range hooks {
		if hook.CanHandle(event.Outcome.Status) {
			if err := hook.OnOutcomeChanged(ctx, event); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
