package migrations

import (
	"context"
	"fmt"

	"github.com/glebkoxan36/mypip/internal/store/postgres"
)

// RunPostgresMigrations applies all embedded SQL files in lexical
// order. Migrations are expected to be idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return fmt.Errorf("read embedded postgres migrations: %w", err)
	}

	for _, file := range files {
		data, err := readMigration(PostgresFS, "postgres", file)
		if err != nil {
			return err
		}
		if data == "" {
			continue
		}
		if _, err := pool.Exec(ctx, data); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}

	return nil
}
