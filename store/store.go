package store

import (
	"context"
	"sync"
)

// Keys used by every Store implementation. Two per session scope.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// Store defines a public type used by authkit APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
// An empty string value means "absent"; implementations never distinguish a
// missing key from an empty one.
type Store interface {
	RefreshToken(ctx context.Context) (string, error)
	SetRefreshToken(ctx context.Context, value string) error
	AccessToken(ctx context.Context) (string, error)
	SetAccessToken(ctx context.Context, value string) error
	Clear(ctx context.Context) error
}

// Memory defines a public type used by authkit APIs.
//
// Memory instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemory describes the newmemory operation and its observable behavior.
//
// NewMemory does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// RefreshToken describes the refreshtoken operation and its observable behavior.
//
// RefreshToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) RefreshToken(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[KeyRefreshToken], nil
}

// SetRefreshToken describes the setrefreshtoken operation and its observable behavior.
//
// SetRefreshToken does not mutate shared global state beyond the store and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) SetRefreshToken(_ context.Context, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[KeyRefreshToken] = value
	return nil
}

// AccessToken describes the accesstoken operation and its observable behavior.
//
// AccessToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) AccessToken(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[KeyAccessToken], nil
}

// SetAccessToken describes the setaccesstoken operation and its observable behavior.
//
// SetAccessToken does not mutate shared global state beyond the store and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) SetAccessToken(_ context.Context, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[KeyAccessToken] = value
	return nil
}

// Clear describes the clear operation and its observable behavior.
//
// Clear does not mutate shared global state beyond the store and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, KeyAccessToken)
	delete(m.values, KeyRefreshToken)
	return nil
}
