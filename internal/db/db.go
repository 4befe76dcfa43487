package db

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stakewatch/stakewatch/internal/config"
)

// walSidecars are the auxiliary files SQLite keeps next to the main
// database file when running in WAL mode.
var walSidecars = []string{"-wal", "-shm"}

// NewSQLiteDB opens a SQLite database at the given path with the settings
// the crawler relies on: WAL journaling, foreign keys and a generous busy
// timeout so concurrent writers back off instead of erroring.
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	return sql.Open("sqlite3", buildDSN(config.DatabaseConfig{
		Path:              dbPath,
		JournalMode:       "WAL",
		BusyTimeout:       30000,
		EnableForeignKeys: true,
	}))
}

// NewSQLiteDBFromConfig opens a SQLite database using the full database
// configuration, including connection pool limits and pragma tuning.
func NewSQLiteDBFromConfig(cfg config.DatabaseConfig) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite3", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConnections)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConnections)

	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.Synchronous),
		fmt.Sprintf("PRAGMA cache_size = %d", cfg.CacheSize),
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	return sqlDB, nil
}

// buildDSN assembles a go-sqlite3 connection string. The immediate
// transaction lock avoids SQLITE_BUSY upgrades mid-transaction.
func buildDSN(cfg config.DatabaseConfig) string {
	foreignKeys := "off"
	if cfg.EnableForeignKeys {
		foreignKeys = "on"
	}

	params := []string{
		"_txlock=immediate",
		"_foreign_keys=" + foreignKeys,
		"_journal_mode=" + cfg.JournalMode,
		fmt.Sprintf("_busy_timeout=%d", cfg.BusyTimeout),
	}

	return fmt.Sprintf("file:%s?%s", cfg.Path, strings.Join(params, "&"))
}

// Vacuum rebuilds the database file, reclaiming space left behind by
// deleted rows. It requires that no other transaction is active.
func Vacuum(sqlDB *sql.DB) error {
	if _, err := sqlDB.Exec("VACUUM"); err != nil {
		if strings.Contains(err.Error(), "database is locked") {
			return fmt.Errorf("cannot vacuum: database is locked (retry later)")
		}
		return fmt.Errorf("vacuum failed: %w", err)
	}
	return nil
}

// DBTotalSize reports the combined on-disk size of the database file and
// its WAL sidecar files. Missing files count as zero bytes.
func DBTotalSize(dbPath string) (int64, error) {
	var total int64
	for _, path := range append([]string{dbPath}, sidecarPaths(dbPath)...) {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		total += info.Size()
	}
	return total, nil
}

func sidecarPaths(dbPath string) []string {
	paths := make([]string, 0, len(walSidecars))
	for _, suffix := range walSidecars {
		paths = append(paths, dbPath+suffix)
	}
	return paths
}
