package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/stakewatch/stakewatch/internal/logger"
)

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"

	// dbPrefixToken is replaced with the migration's Prefix, allowing the
	// same schema to be instantiated under several table prefixes.
	dbPrefixToken = "/*dbprefix*/"
)

// Migration is a single embedded SQL migration. The SQL holds both
// directions, separated by the standard sql-migrate Up/Down markers.
type Migration struct {
	ID     string
	SQL    string
	Prefix string
}

// RunMigrations opens the database at dbPath and applies all pending
// migrations in the up direction.
func RunMigrations(dbPath string, migrations []Migration) error {
	sqlDB, err := NewSQLiteDB(dbPath)
	if err != nil {
		return fmt.Errorf("error creating DB %w", err)
	}
	return RunMigrationsDB(logger.GetDefaultLogger(), sqlDB, migrations)
}

// RunMigrationsDB applies all pending migrations to an already open database.
func RunMigrationsDB(log *logger.Logger, sqlDB *sql.DB, migrations []Migration) error {
	source := &migrate.MemoryMigrationSource{}
	ids := make([]string, 0, len(migrations))

	for _, m := range migrations {
		parsed, err := parseMigration(m)
		if err != nil {
			return err
		}
		source.Migrations = append(source.Migrations, parsed)
		ids = append(ids, parsed.Id)
	}

	log.Debugf("running migrations: %s", strings.Join(ids, ", "))

	applied, err := migrate.Exec(sqlDB, "sqlite3", source, migrate.Up)
	if err != nil {
		return fmt.Errorf("error executing migrations %s: %w", strings.Join(ids, ", "), err)
	}

	log.Infof("successfully ran %d migrations from migrations: %s", applied, strings.Join(ids, ", "))
	return nil
}

// parseMigration splits a Migration's SQL into its up and down sections
// and expands the table prefix token.
func parseMigration(m Migration) (*migrate.Migration, error) {
	text := strings.ReplaceAll(m.SQL, dbPrefixToken, m.Prefix)

	before, after, found := strings.Cut(text, upMarker)
	if !found {
		return nil, fmt.Errorf("migration %s missing '%s' separator", m.ID, upMarker)
	}

	downSQL := before
	if idx := strings.Index(downSQL, downMarker); idx != -1 {
		downSQL = downSQL[idx+len(downMarker):]
	}

	return &migrate.Migration{
		Id:   m.Prefix + m.ID,
		Up:   []string{strings.TrimSpace(after)},
		Down: []string{strings.TrimSpace(downSQL)},
	}, nil
}
