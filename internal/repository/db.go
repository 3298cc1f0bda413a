package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"task-list/internal/repository/migrations"
)

// Dialect names the SQL backend behind a DSN.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DialectFor picks the backend from the DSN: postgres URLs go to PostgreSQL,
// everything else is treated as a SQLite path.
func DialectFor(dsn string) Dialect {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// openSQL and migrate are seams for tests.
var openSQL = sql.Open

var migrate = func(ctx context.Context, db *sql.DB, dialect Dialect) error {
	var (
		gooseDialect goose.Dialect
		dir          string
	)
	switch dialect {
	case DialectPostgres:
		gooseDialect, dir = goose.DialectPostgres, "postgres"
	default:
		gooseDialect, dir = goose.DialectSQLite3, "sqlite"
	}

	fsys, err := fs.Sub(migrations.FS, dir)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return err
	}
	return nil
}

// NewDB opens the entry store and runs migrations. The returned handle is
// meant to be created once at startup and shared by every repository.
func NewDB(ctx context.Context, dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "task_list.db"
	}

	dbLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	gormCfg := &gorm.Config{Logger: dbLogger}

	dialect := DialectFor(dsn)

	var (
		db  *gorm.DB
		err error
	)
	switch dialect {
	case DialectPostgres:
		sqlDB, openErr := openSQL("pgx", dsn)
		if openErr != nil {
			return nil, fmt.Errorf("open db: %w", openErr)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("ping db: %w", err)
		}
		db, err = gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormCfg)
		if err != nil {
			_ = sqlDB.Close()
		}
	default:
		if err := ensureDirForSQLite(dsn); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dsn), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	if dialect == DialectSQLite && isMemoryDSN(dsn) {
		// every new connection to :memory: would see an empty database
		sqlDB.SetMaxOpenConns(1)
	}

	if err := migrate(ctx, sqlDB, dialect); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return db, nil
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if isMemoryDSN(dsn) {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
