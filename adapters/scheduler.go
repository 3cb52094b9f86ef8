package adapters

import (
	"context"
	"fmt"
	"sync"

	"github.com/openportal-go/openportal/grammar"
)

// SchedulerAccounts manages per-project batch-scheduler accounts, the
// Go-native stand-in for a Slurm accounting client: adding a local user
// grants them a scheduler association under their local project, removing
// one revokes it.
type SchedulerAccounts interface {
	Grant(ctx context.Context, mapping grammar.UserMapping) error
	Revoke(ctx context.Context, mapping grammar.UserMapping) error
	HasAccount(ctx context.Context, localUser, localProject string) bool
}

// InMemorySchedulerAccounts is SchedulerAccounts backed by a guarded set.
type InMemorySchedulerAccounts struct {
	mu       sync.RWMutex
	accounts map[string]bool
}

// NewInMemorySchedulerAccounts builds an empty accounting table.
func NewInMemorySchedulerAccounts() *InMemorySchedulerAccounts {
	return &InMemorySchedulerAccounts{accounts: make(map[string]bool)}
}

func accountKey(localUser, localProject string) string {
	return localUser + "@" + localProject
}

func (s *InMemorySchedulerAccounts) Grant(ctx context.Context, mapping grammar.UserMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[accountKey(mapping.LocalUser, mapping.LocalProject)] = true
	return nil
}

func (s *InMemorySchedulerAccounts) Revoke(ctx context.Context, mapping grammar.UserMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := accountKey(mapping.LocalUser, mapping.LocalProject)
	if !s.accounts[key] {
		return fmt.Errorf("adapters: no scheduler account for %s", key)
	}
	delete(s.accounts, key)
	return nil
}

func (s *InMemorySchedulerAccounts) HasAccount(ctx context.Context, localUser, localProject string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[accountKey(localUser, localProject)]
}
