// Package migrations carries the embedded schema and applies it at startup.
// Every migration is idempotent (CREATE ... IF NOT EXISTS), so the runners
// replay the full set on each boot rather than tracking applied versions.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"signal-tracker/internal/storage/postgres"
)

//go:embed postgres/*.sql
var PostgresFS embed.FS

//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

// RunPostgresMigrations applies the embedded SQL files in lexical order.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, file := range files {
		data, err := fs.ReadFile(PostgresFS, "postgres/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}
