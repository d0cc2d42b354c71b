package user

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Record is a stored user.
type Record struct {
	ID       string
	Username string
}

// Repository persists users. The postgres implementation lives in
// internal/repository; MemoryRepository backs tests and database-less runs.
type Repository interface {
	GetOrCreate(ctx context.Context, id, username string) (*Record, error)
}

// Service fronts the user store.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a user service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// GetOrCreate returns the stored user for the external identity, creating it
// on first sight.
func (s *Service) GetOrCreate(ctx context.Context, id, username string) (*Record, error) {
	rec, err := s.repo.GetOrCreate(ctx, id, username)
	if err != nil {
		return nil, fmt.Errorf("get or create user %s: %w", id, err)
	}
	s.logger.Debug("user resolved",
		zap.String("user_id", rec.ID),
		zap.String("username", rec.Username),
	)
	return rec, nil
}

// MemoryRepository is an in-process Repository.
type MemoryRepository struct {
	mu    sync.Mutex
	users map[string]*Record
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*Record)}
}

// GetOrCreate implements Repository. The stored username wins on conflict,
// matching the persistent store.
func (r *MemoryRepository) GetOrCreate(_ context.Context, id, username string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.users[id]; ok {
		return &Record{ID: existing.ID, Username: existing.Username}, nil
	}
	rec := &Record{ID: id, Username: username}
	r.users[id] = rec
	return &Record{ID: rec.ID, Username: rec.Username}, nil
}
