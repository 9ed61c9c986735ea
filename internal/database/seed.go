package database

import (
	"context"
	"database/sql"
	"fmt"

	"cafeteria_backend/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

type seedUser struct {
	name, email, password, role string
}

var defaultUsers = []seedUser{
	{"Admin", "admin@greencafeteria.com", "admin123", "admin"},
	{"Manager", "manager@greencafeteria.com", "manager123", "manager"},
	{"Staff", "staff@greencafeteria.com", "staff123", "staff"},
}

// SeedDefaultUsers creates one account per role. Existing emails are left untouched.
func SeedDefaultUsers(ctx context.Context, db *sql.DB) error {
	query := `INSERT INTO users (name, email, password_hash, role, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, NOW(), NOW())
	          ON CONFLICT (email) DO NOTHING`

	for _, u := range defaultUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password for %s: %w", u.email, err)
		}
		result, err := db.ExecContext(ctx, query, u.name, u.email, string(hash), u.role)
		if err != nil {
			return fmt.Errorf("seeding user %s: %w", u.email, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			utils.LogInfo("Seeded default user", map[string]interface{}{"email": u.email, "role": u.role})
		}
	}
	return nil
}
