// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Holds live game sessions between HTTP requests.
//
// Characteristics:
//   - Stores *game.Game objects keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Update runs its callback under the write lock, so turns never interleave.
//   - State is lost when the process restarts; finished games live on in history.

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/robalobadob/snakeladder/internal/game"
)

// ErrNotFound is returned for unknown game IDs.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for live game sessions.
type Store interface {
	// Save persists or replaces a game.
	Save(ctx context.Context, g *game.Game) error

	// LoadOrSave keeps g unless a game with its ID is already held,
	// and returns whichever game is stored.
	LoadOrSave(ctx context.Context, g *game.Game) (*game.Game, error)

	// Get retrieves a game by ID.
	Get(ctx context.Context, id string) (*game.Game, error)

	// View runs fn with shared access; fn must not mutate the game.
	View(ctx context.Context, id string, fn func(g *game.Game) error) error

	// Update runs fn with exclusive access to the game.
	// The error from fn is returned unchanged.
	Update(ctx context.Context, id string, fn func(g *game.Game) error) error

	// Delete drops a game; unknown IDs are ignored.
	Delete(ctx context.Context, id string) error
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu    sync.RWMutex          // guards games map and the games in it
	games map[string]*game.Game // keyed by Game.ID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{games: make(map[string]*game.Game)}
}

func (m *memory) Save(ctx context.Context, g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID] = g
	return nil
}

func (m *memory) LoadOrSave(ctx context.Context, g *game.Game) (*game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.games[g.ID]; ok {
		return held, nil
	}
	m.games[g.ID] = g
	return g, nil
}

func (m *memory) Get(ctx context.Context, id string) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.games[id]; ok {
		return g, nil
	}
	return nil, ErrNotFound
}

func (m *memory) View(ctx context.Context, id string, fn func(g *game.Game) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return ErrNotFound
	}
	return fn(g)
}

func (m *memory) Update(ctx context.Context, id string, fn func(g *game.Game) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(g)
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, id)
	return nil
}
