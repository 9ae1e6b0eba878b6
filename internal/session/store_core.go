package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"minimill/internal/config"
	"minimill/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store persists per-session workflow state in a key/value table. SQLite is
// the default; PostgreSQL is used when the daemon is configured for it.
type Store struct {
	db       *sql.DB
	driver   string
	location string
	defaults domain.ProcessingOptions
	now      func() time.Time
}

// Options selects the backing database for OpenWith.
type Options struct {
	Driver string
	// DSN is a file path for SQLite or a connection string for PostgreSQL.
	DSN      string
	Defaults domain.ProcessingOptions
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open connects to the session store described by the configuration.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	opts := Options{
		Driver:   cfg.Store.Driver,
		DSN:      cfg.Store.DSN,
		Defaults: DefaultsFromConfig(cfg),
	}
	if opts.Driver != DriverPostgres {
		opts.Driver = DriverSQLite
		opts.DSN = cfg.SessionDBPath()
	}
	return OpenWith(opts)
}

// DefaultsFromConfig returns the processing options a fresh session starts with.
func DefaultsFromConfig(cfg *config.Config) domain.ProcessingOptions {
	defaults := domain.DefaultOptions()
	if cfg == nil {
		return defaults
	}
	if mode, err := domain.ParseDetectionMode(cfg.Processing.DefaultMode); err == nil {
		defaults.DetectionMode = mode
	}
	defaults.HighQuality = cfg.Processing.DefaultHighQuality
	defaults.EmailNotification = cfg.Processing.DefaultEmailNotification
	return defaults
}

// OpenWith initializes or connects to the session database.
func OpenWith(opts Options) (*Store, error) {
	if !opts.Defaults.DetectionMode.Valid() {
		opts.Defaults = domain.DefaultOptions()
	}
	var (
		db       *sql.DB
		location string
		err      error
	)
	switch opts.Driver {
	case DriverSQLite, "":
		opts.Driver = DriverSQLite
		db, err = openSQLite(opts.DSN)
		location = opts.DSN
	case DriverPostgres:
		db, location, err = openPostgres(opts.DSN)
	default:
		return nil, fmt.Errorf("session store: unsupported driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	store := &Store{
		db:       db,
		driver:   opts.Driver,
		location: location,
		defaults: opts.Defaults,
		now:      time.Now,
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("session store: sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	return db, nil
}

func openPostgres(dsn string) (*sql.DB, string, error) {
	parsed, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, "", fmt.Errorf("parse postgres dsn: %w", err)
	}
	location := net.JoinHostPort(parsed.Host, strconv.Itoa(int(parsed.Port))) + "/" + parsed.Database

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open postgres db: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("connect postgres %s: %w", location, err)
	}
	return db, location, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver reports the active backend name.
func (s *Store) Driver() string { return s.driver }

// Defaults returns the options a session receives before any change.
func (s *Store) Defaults() domain.ProcessingOptions { return s.defaults }

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	query = s.rebind(query)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ensureContext(ctx), s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ensureContext(ctx), s.rebind(query), args...)
}
