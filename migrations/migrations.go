// Package migrations holds the Postgres schema.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// FS contains the *.up.sql and *.down.sql files, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS

// Tables lists the schema's tables, referencing tables first.
var Tables = []string{"profiles", "game_players", "games", "users"}

// Apply runs every up migration. The schema statements are idempotent, so running it on an
// initialized database is harmless.
func Apply(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(FS, "*.up.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := fs.ReadFile(FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", strings.TrimSuffix(name, ".up.sql"), err)
		}
	}
	return nil
}
