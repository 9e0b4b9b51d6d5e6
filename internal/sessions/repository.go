package sessions

import (
	"context"
	"sync"
)

// Repository provides grant persistence operations
type Repository interface {
	Create(ctx context.Context, g *Grant) error
	// GetByToken returns nil, nil when the token is unknown.
	GetByToken(ctx context.Context, token string) (*Grant, error)
	DeleteByToken(ctx context.Context, token string) error
}

// MemoryRepository keeps grants in process.
type MemoryRepository struct {
	mu     sync.Mutex
	grants map[string]Grant
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{grants: make(map[string]Grant)}
}

func (r *MemoryRepository) Create(ctx context.Context, g *Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[g.Token] = *g
	return nil
}

func (r *MemoryRepository) GetByToken(ctx context.Context, token string) (*Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.grants[token]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (r *MemoryRepository) DeleteByToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants, token)
	return nil
}
