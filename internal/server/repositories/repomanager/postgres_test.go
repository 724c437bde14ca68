package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/skyhaul/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/skyhaul/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	pm := NewPostgresRepositoryManager()
	assert.IsType(t, &users.PostgresRepository{}, pm.Users(db))
	assert.IsType(t, &refreshtokens.PostgresRepository{}, pm.RefreshTokens(db))

	sm := NewSQLiteRepositoryManager()
	assert.IsType(t, &users.SQLiteRepository{}, sm.Users(db))
	assert.IsType(t, &refreshtokens.SQLiteRepository{}, sm.RefreshTokens(db))
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{}
	if err := m.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
	assert.Equal(t, "postgres", gotDir)
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{}
	if err := m.RunMigrations(context.Background(), db); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestDetectEngine(t *testing.T) {
	tests := []struct {
		dsn     string
		want    Engine
		wantErr bool
	}{
		{dsn: "postgres://u:p@localhost:5432/db", want: EnginePostgres},
		{dsn: "postgresql://localhost/db", want: EnginePostgres},
		{dsn: "sqlite:skyhaul.db", want: EngineSQLite},
		{dsn: "file:skyhaul.db?cache=shared", want: EngineSQLite},
		{dsn: "mysql://localhost/db", wantErr: true},
		{dsn: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			got, err := DetectEngine(tt.dsn)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLitePath(t *testing.T) {
	assert.Equal(t, "/tmp/a.db", sqlitePath("sqlite:///tmp/a.db"))
	assert.Equal(t, "a.db", sqlitePath("sqlite:a.db"))
	assert.Equal(t, "file:a.db?mode=memory", sqlitePath("file:a.db?mode=memory"))
}

func TestOpen_SQLiteAndMigrate(t *testing.T) {
	ctx := context.Background()
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "skyhaul.db")

	db, m, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()
	require.IsType(t, &SQLiteRepositoryManager{}, m)

	require.NoError(t, m.RunMigrations(ctx, db))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM refresh_tokens`).Scan(&n))
	assert.Zero(t, n)
}

func TestOpen_UnsupportedScheme(t *testing.T) {
	_, _, err := Open(context.Background(), "redis://localhost")
	require.Error(t, err)
}
