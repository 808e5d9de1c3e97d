// Package store provides the persistence backends for player state: an
// in-memory map for tests and standalone mode, and Postgres for real
// deployments. Both give each player's state exclusive access during a
// mutation and persist nothing when the mutation fails.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"troupe/internal/game"
)

type Memory struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	data  map[string][]byte
	creds map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		locks: make(map[string]*sync.Mutex),
		data:  make(map[string][]byte),
		creds: make(map[string]string),
	}
}

func (m *Memory) lockFor(playerID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[playerID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[playerID] = l
	}
	return l
}

// get and put copy through JSON so callers never alias stored state.
func (m *Memory) get(playerID string) (*game.PlayerState, bool, error) {
	m.mu.Lock()
	raw, ok := m.data[playerID]
	m.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	var st game.PlayerState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, false, fmt.Errorf("decode state %q: %w", playerID, err)
	}
	return &st, true, nil
}

func (m *Memory) put(playerID string, st *game.PlayerState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state %q: %w", playerID, err)
	}
	m.mu.Lock()
	m.data[playerID] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) Create(ctx context.Context, st *game.PlayerState) error {
	l := m.lockFor(st.Profile.PlayerID)
	l.Lock()
	defer l.Unlock()
	if _, ok, err := m.get(st.Profile.PlayerID); err != nil {
		return err
	} else if ok {
		return game.ErrProfileExists
	}
	return m.put(st.Profile.PlayerID, st)
}

func (m *Memory) View(ctx context.Context, playerID string) (*game.PlayerState, error) {
	st, ok, err := m.get(playerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, game.ErrProfileNotFound
	}
	return st, nil
}

func (m *Memory) Mutate(ctx context.Context, playerID string, fn func(*game.PlayerState) error) (*game.PlayerState, error) {
	l := m.lockFor(playerID)
	l.Lock()
	defer l.Unlock()
	st, ok, err := m.get(playerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, game.ErrProfileNotFound
	}
	if err := fn(st); err != nil {
		return nil, err
	}
	if err := m.put(playerID, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (m *Memory) PutCredential(ctx context.Context, playerID, secretHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[playerID] = secretHash
	return nil
}

func (m *Memory) GetCredential(ctx context.Context, playerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash, ok := m.creds[playerID]
	if !ok {
		return "", game.ErrProfileNotFound
	}
	return hash, nil
}
