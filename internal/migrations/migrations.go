// Package migrations embeds the SQLite schema and applies it on startup.
package migrations

import (
	_ "embed"

	"github.com/stakewatch/stakewatch/internal/db"
)

var (
	//go:embed 001_checkpoints.sql
	checkpointsSchema string

	//go:embed 002_transactions.sql
	transactionsSchema string
)

// RunMigrations brings the database at dbPath up to the current schema.
// Already applied migrations are skipped.
func RunMigrations(dbPath string) error {
	return db.RunMigrations(dbPath, []db.Migration{
		{ID: "001_checkpoints.sql", SQL: checkpointsSchema},
		{ID: "002_transactions.sql", SQL: transactionsSchema},
	})
}
