// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"sync"
)

// MemoryBackend keeps the records for the lifetime of the process.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string]string
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]string)}
}

// Load returns the stored value or [ErrRecordNotFound].
func (backend *MemoryBackend) Load(_ context.Context, key string) (string, error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()

	value, ok := backend.records[key]
	if !ok {
		return "", ErrRecordNotFound
	}
	return value, nil
}

// Save stores the value.
func (backend *MemoryBackend) Save(_ context.Context, key, value string) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()

	backend.records[key] = value
	return nil
}

// Remove deletes the value.
func (backend *MemoryBackend) Remove(_ context.Context, key string) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()

	delete(backend.records, key)
	return nil
}

// Name returns "memory".
func (backend *MemoryBackend) Name() string { return "memory" }
