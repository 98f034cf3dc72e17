// Package main implements a standalone seed script that populates the auth
// service database with an admin account and a few demo users. It writes
// directly via SQL so it can run before the HTTP server is up.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type accountDef struct {
	email     string
	password  string
	firstName string
	lastName  string
	role      string
	twoFactor bool
}

func main() {
	dsn := getEnv("DATABASE_URL", fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		getEnv("POSTGRES_USER", "auth"),
		getEnv("POSTGRES_PASSWORD", "auth_secret"),
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("AUTH_DB_NAME", "auth_db"),
		getEnv("POSTGRES_SSL_MODE", "disable"),
	))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping postgres: %v", err)
	}

	accounts := []accountDef{
		{"admin@auth.test", getEnv("SEED_ADMIN_PASSWORD", "SecurePass123"), "Admin", "User", "admin", false},
		{"jane@auth.test", "SecurePass123", "Jane", "Doe", "user", false},
		{"john@auth.test", "SecurePass123", "John", "Smith", "user", true},
	}

	log.Printf("Seeding %d accounts...", len(accounts))
	for _, a := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.password), 12)
		if err != nil {
			log.Fatalf("hash password for %q: %v", a.email, err)
		}

		tag, err := pool.Exec(ctx,
			`INSERT INTO accounts (id, email, password_hash, first_name, last_name, role, two_factor_enabled, is_active, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, true, NOW(), NOW())
			 ON CONFLICT (email) DO NOTHING`,
			uuid.New(), a.email, string(hash), a.firstName, a.lastName, a.role, a.twoFactor,
		)
		if err != nil {
			log.Fatalf("insert account %q: %v", a.email, err)
		}
		if tag.RowsAffected() == 0 {
			log.Printf("  %s already exists, skipping", a.email)
			continue
		}
		log.Printf("  %s created (role=%s)", a.email, a.role)
	}

	log.Println("Seed complete.")
}
