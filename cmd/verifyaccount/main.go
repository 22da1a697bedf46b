// Command verifyaccount marks an account's email as verified directly in the
// database. Operator tool for support cases where the verification email
// cannot be delivered.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sgalindo-dev/veriauth/internal/server/config"
	"github.com/sgalindo-dev/veriauth/internal/server/shared/db"
)

func main() {

	cfg := &config.Config{}
	cfg.LoadDefaults()

	dsn := flag.String("d", cfg.DatabaseDSN, "database dsn")
	email := flag.String("e", "", "email of the account to verify")
	flag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "usage: verifyaccount -e user@example.com [-d dsn]")
		os.Exit(2)
	}

	ctx := context.Background()

	m, err := db.NewPostgresRepositoryManager(*dsn)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer m.Conn().Close()

	repo := m.Accounts()

	account, err := repo.GetByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("account lookup failed: %v", err)
	}

	if account.VerifiedEmail {
		fmt.Printf("account %s is already verified\n", *email)
		return
	}

	if err := repo.SetEmailVerified(ctx, account.ID); err != nil {
		log.Fatalf("marking account verified failed: %v", err)
	}

	fmt.Printf("account %s (%s) verified\n", account.Username, *email)
}
