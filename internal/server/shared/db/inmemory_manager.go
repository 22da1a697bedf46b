package db

import (
	"context"
	"database/sql"

	"github.com/sgalindo-dev/veriauth/internal/server/accounts"
)

// InMemoryRepositoryManager backs the repositories with in-process maps.
// Useful in tests and for running the server without Postgres.
type InMemoryRepositoryManager struct {
	accounts accounts.Repository
}

func (m InMemoryRepositoryManager) Conn() *sql.DB {
	return nil
}

func (m InMemoryRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m InMemoryRepositoryManager) Accounts() accounts.Repository {
	return m.accounts
}

func NewInMemoryRepositoryManager() RepositoryManager {
	return InMemoryRepositoryManager{accounts: accounts.NewInMemoryRepository()}
}
