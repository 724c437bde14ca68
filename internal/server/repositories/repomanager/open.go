package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Engine names the database backend chosen from a DSN.
type Engine string

const (
	EnginePostgres Engine = "postgres"
	EngineSQLite   Engine = "sqlite"
)

// DetectEngine picks the backend from the DSN scheme. postgres:// and
// postgresql:// select PostgreSQL; sqlite: and file: select SQLite.
func DetectEngine(dsn string) (Engine, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return EnginePostgres, nil
	case strings.HasPrefix(dsn, "sqlite:"), strings.HasPrefix(dsn, "file:"):
		return EngineSQLite, nil
	}
	return "", fmt.Errorf("unsupported database dsn scheme: %q", dsn)
}

// sqlitePath turns a sqlite: DSN into the form the modernc driver accepts.
func sqlitePath(dsn string) string {
	if rest, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		return rest
	}
	return dsn
}

// Open connects to the database named by dsn, verifies the connection and
// returns the matching RepositoryManager.
func Open(ctx context.Context, dsn string) (*sql.DB, RepositoryManager, error) {
	engine, err := DetectEngine(dsn)
	if err != nil {
		return nil, nil, err
	}

	var (
		db *sql.DB
		m  RepositoryManager
	)
	switch engine {
	case EnginePostgres:
		db, err = sql.Open("pgx", dsn)
		m = NewPostgresRepositoryManager()
	case EngineSQLite:
		db, err = sql.Open("sqlite", sqlitePath(dsn))
		m = NewSQLiteRepositoryManager()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if engine == EngineSQLite {
		// one writer at a time; transactions queue on the pool
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, m, nil
}
