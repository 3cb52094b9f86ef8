package adapters

import (
	"context"
	"fmt"
	"sync"

	"github.com/openportal-go/openportal/grammar"
)

// FilesystemDriver provisions and relocates a user's home directory, the
// Go-native stand-in for whatever real filesystem/NFS automation a
// filesystem agent would drive in production.
type FilesystemDriver interface {
	CreateHome(ctx context.Context, user grammar.UserIdentifier, path string) error
	RemoveHome(ctx context.Context, user grammar.UserIdentifier) error
	UpdateHome(ctx context.Context, user grammar.UserIdentifier, newPath string) error
	HomeOf(ctx context.Context, user grammar.UserIdentifier) (string, bool)
}

// InMemoryFilesystemDriver is FilesystemDriver backed by a guarded map.
type InMemoryFilesystemDriver struct {
	mu    sync.RWMutex
	homes map[string]string
}

// NewInMemoryFilesystemDriver builds an empty home-directory table.
func NewInMemoryFilesystemDriver() *InMemoryFilesystemDriver {
	return &InMemoryFilesystemDriver{homes: make(map[string]string)}
}

func (d *InMemoryFilesystemDriver) CreateHome(ctx context.Context, user grammar.UserIdentifier, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.homes[user.String()] = path
	return nil
}

func (d *InMemoryFilesystemDriver) RemoveHome(ctx context.Context, user grammar.UserIdentifier) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.homes, user.String())
	return nil
}

func (d *InMemoryFilesystemDriver) UpdateHome(ctx context.Context, user grammar.UserIdentifier, newPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.homes[user.String()]; !ok {
		return fmt.Errorf("adapters: no home directory recorded for %s", user)
	}
	d.homes[user.String()] = newPath
	return nil
}

func (d *InMemoryFilesystemDriver) HomeOf(ctx context.Context, user grammar.UserIdentifier) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	path, ok := d.homes[user.String()]
	return path, ok
}
