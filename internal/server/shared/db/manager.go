// Package db wires repositories to their storage backend and owns schema
// migrations.
package db

import (
	"context"
	"database/sql"

	"github.com/sgalindo-dev/veriauth/internal/server/accounts"
)

type RepositoryManager interface {
	RunMigrations(context.Context) error
	Conn() *sql.DB
	Accounts() accounts.Repository
}
