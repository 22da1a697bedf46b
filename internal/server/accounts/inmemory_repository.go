package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sgalindo-dev/veriauth/internal/common"
)

// InMemoryRepository is a map-backed Repository used in tests and local
// development. It enforces the same email-uniqueness contract as the
// Postgres implementation.
type InMemoryRepository struct {
	mu      sync.RWMutex
	byEmail map[string]*Account
	byID    map[string]*Account
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byEmail: make(map[string]*Account),
		byID:    make(map[string]*Account),
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, account *Account) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[account.Email]; exists {
		return nil, common.ErrDuplicateEmail
	}

	stored := *account
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.VerifiedEmail = false
	stored.CreatedAt = time.Now()

	r.byEmail[stored.Email] = &stored
	r.byID[stored.ID] = &stored

	result := stored
	return &result, nil
}

func (r *InMemoryRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}

	result := *account
	return &result, nil
}

func (r *InMemoryRepository) SetEmailVerified(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byID[accountID]
	if !ok {
		return common.ErrorNotFound
	}

	account.VerifiedEmail = true
	return nil
}
