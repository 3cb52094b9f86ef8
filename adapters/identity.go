// Package adapters defines the collaborators an agent's Runnable delegates
// to for the actual administrative side effects OpenPortal only routes and
// records: identity management (FreeIPA in a real deployment), batch
// scheduler accounts (Slurm), and home-directory provisioning. Every
// interface here ships exactly one in-memory implementation, good enough
// for the CLI's default runner and for tests — never a real client for the
// external system it stands in for.
package adapters

import (
	"context"
	"fmt"
	"sync"

	"github.com/openportal-go/openportal/grammar"
)

// IdentityService manages the canonical (username, project) -> local user
// mapping an account agent owns, the Go-native stand-in for a FreeIPA
// client.
type IdentityService interface {
	AddUser(ctx context.Context, user grammar.UserIdentifier) error
	RemoveUser(ctx context.Context, user grammar.UserIdentifier) error
	AddLocalMapping(ctx context.Context, mapping grammar.UserMapping) error
	RemoveLocalMapping(ctx context.Context, mapping grammar.UserMapping) error
	LookupLocalUser(ctx context.Context, user grammar.UserIdentifier) (string, bool)
}

// InMemoryIdentityService is IdentityService backed by a guarded map, the
// demo implementation the default CLI runner and tests use in place of a
// real directory service.
type InMemoryIdentityService struct {
	mu       sync.RWMutex
	users    map[string]bool
	mappings map[string]grammar.UserMapping
}

// NewInMemoryIdentityService builds an empty identity directory.
func NewInMemoryIdentityService() *InMemoryIdentityService {
	return &InMemoryIdentityService{
		users:    make(map[string]bool),
		mappings: make(map[string]grammar.UserMapping),
	}
}

func (s *InMemoryIdentityService) AddUser(ctx context.Context, user grammar.UserIdentifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.String()] = true
	return nil
}

func (s *InMemoryIdentityService) RemoveUser(ctx context.Context, user grammar.UserIdentifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.users[user.String()] {
		return fmt.Errorf("adapters: user %s is not registered", user)
	}
	delete(s.users, user.String())
	delete(s.mappings, user.String())
	return nil
}

func (s *InMemoryIdentityService) AddLocalMapping(ctx context.Context, mapping grammar.UserMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.users[mapping.User.String()] {
		return fmt.Errorf("adapters: cannot map unknown user %s", mapping.User)
	}
	s.mappings[mapping.User.String()] = mapping
	return nil
}

func (s *InMemoryIdentityService) RemoveLocalMapping(ctx context.Context, mapping grammar.UserMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mappings, mapping.User.String())
	return nil
}

func (s *InMemoryIdentityService) LookupLocalUser(ctx context.Context, user grammar.UserIdentifier) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mapping, ok := s.mappings[user.String()]
	if !ok {
		return "", false
	}
	return mapping.LocalUser, true
}
