// Package sqlstore persists table rows in a relational database through bun.
// SQLite (modernc.org/sqlite), PostgreSQL (pgx) and MySQL are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/iota-pico/iota-pico-storage-sub001/internal/logging"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/datatable"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

var (
	_ datatable.StorageClient = (*Store)(nil)
	_ datatable.KeyLister     = (*Store)(nil)
)

// rowModel is one stored value.
type rowModel struct {
	bun.BaseModel `bun:"table:datatable_rows"`
	Key           string    `bun:"row_key,pk,type:varchar(255)"`
	Payload       []byte    `bun:"payload,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

// Store is a datatable.StorageClient over a *bun.DB.
type Store struct {
	db     *bun.DB
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open connects to dsn with the named driver, creates the rows table when
// missing and returns the store.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	driverName := driver
	// pgx registers itself as "pgx".
	if driver == DriverPostgres {
		driverName = "pgx"
	}
	switch driver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlstore: dsn is required")
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	// Each connection to an in-memory SQLite database sees its own database.
	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		sqlDB.SetMaxOpenConns(1)
	}

	s := New(createBunDB(sqlDB, driver), opts...)
	if err := s.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	s.logger.Debug("sql store opened", zap.String("driver", driver))
	return s, nil
}

// New wraps an existing *bun.DB. Call Migrate before first use.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{db: db, logger: logging.L()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func createBunDB(sqlDB *sql.DB, driver string) *bun.DB {
	switch driver {
	case DriverPostgres:
		return bun.NewDB(sqlDB, pgdialect.New())
	case DriverMySQL:
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

// Migrate creates the rows table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*rowModel)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlstore: create table: %w", err)
	}
	return nil
}

// DB returns the underlying *bun.DB.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var row rowModel
	err := s.db.NewSelect().Model(&row).Where("row_key = ?", key).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get %s: %w", key, err)
	}
	return row.Payload, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	row := &rowModel{Key: key, Payload: value, UpdatedAt: time.Now().UTC()}
	q := s.db.NewInsert().Model(row)
	if s.db.Dialect().Name() == dialect.MySQL {
		q = q.On("DUPLICATE KEY UPDATE").
			Set("payload = VALUES(payload)").
			Set("updated_at = VALUES(updated_at)")
	} else {
		q = q.On("CONFLICT (row_key) DO UPDATE").
			Set("payload = EXCLUDED.payload").
			Set("updated_at = EXCLUDED.updated_at")
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().Model((*rowModel)(nil)).Where("row_key = ?", key).Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlstore: delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	q := s.db.NewSelect().Model((*rowModel)(nil)).Column("row_key").OrderExpr("row_key ASC")
	if prefix != "" {
		q = q.Where("SUBSTR(row_key, 1, ?) = ?", utf8.RuneCountInString(prefix), prefix)
	}
	if err := q.Scan(ctx, &keys); err != nil {
		return nil, fmt.Errorf("sqlstore: list keys: %w", err)
	}
	return keys, nil
}
