package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// memoryPath selects an in-memory database.
const memoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	cfg  Config
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: opens its own empty database.
	if cfg.Path == memoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{
		cfg:  cfg,
		path: cfg.Path,
	}, nil
}

// Init opens the database, creating its directory, and enables WAL mode for
// file-backed databases.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := "file:" + s.path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if s.path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// GetInstallation retrieves the installation recorded under key
func (s *SQLiteStore) GetInstallation(ctx context.Context, key InstallationKey) (*Installation, error) {
	query := `
		SELECT id, plugin_id, platform, project_path, plugin_dir, version, www_dir, spec, mutations, installed_at
		FROM installations
		WHERE plugin_id = ? AND platform = ? AND project_path = ?
	`

	inst := &Installation{}
	err := s.db.QueryRowContext(ctx, query, key.PluginID, key.Platform, key.ProjectPath).Scan(
		&inst.ID,
		&inst.PluginID,
		&inst.Platform,
		&inst.ProjectPath,
		&inst.PluginDir,
		&inst.Version,
		&inst.WWWDir,
		&inst.Spec,
		&inst.Mutations,
		&inst.InstalledAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("installation %s/%s in %s: %w", key.PluginID, key.Platform, key.ProjectPath, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get installation: %w", err)
	}

	return inst, nil
}

// SaveInstallation inserts an installation or replaces the one with the same key.
// An empty ID is filled with a new UUID.
func (s *SQLiteStore) SaveInstallation(ctx context.Context, inst *Installation) error {
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	if inst.InstalledAt.IsZero() {
		inst.InstalledAt = time.Now().UTC()
	}

	query := `
		INSERT INTO installations (
			id, plugin_id, platform, project_path, plugin_dir, version, www_dir, spec, mutations, installed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(plugin_id, platform, project_path) DO UPDATE SET
			plugin_dir = excluded.plugin_dir,
			version = excluded.version,
			www_dir = excluded.www_dir,
			spec = excluded.spec,
			mutations = excluded.mutations,
			installed_at = excluded.installed_at
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		inst.ID,
		inst.PluginID,
		inst.Platform,
		inst.ProjectPath,
		inst.PluginDir,
		inst.Version,
		inst.WWWDir,
		inst.Spec,
		inst.Mutations,
		inst.InstalledAt,
	).Scan(&inst.ID)

	if err != nil {
		return fmt.Errorf("failed to save installation: %w", err)
	}

	return nil
}

// DeleteInstallation deletes the installation recorded under key
func (s *SQLiteStore) DeleteInstallation(ctx context.Context, key InstallationKey) error {
	query := `DELETE FROM installations WHERE plugin_id = ? AND platform = ? AND project_path = ?`

	result, err := s.db.ExecContext(ctx, query, key.PluginID, key.Platform, key.ProjectPath)
	if err != nil {
		return fmt.Errorf("failed to delete installation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("installation %s/%s in %s: %w", key.PluginID, key.Platform, key.ProjectPath, ErrNotFound)
	}

	return nil
}

// ListInstallations lists the installations of a project ordered by install
// time. An empty projectPath lists every project.
func (s *SQLiteStore) ListInstallations(ctx context.Context, projectPath string) ([]*Installation, error) {
	query := `
		SELECT id, plugin_id, platform, project_path, plugin_dir, version, www_dir, spec, mutations, installed_at
		FROM installations
		WHERE (? = '' OR project_path = ?)
		ORDER BY installed_at ASC, plugin_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, projectPath, projectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}
	defer rows.Close()

	installations := []*Installation{}
	for rows.Next() {
		inst := &Installation{}
		err := rows.Scan(
			&inst.ID,
			&inst.PluginID,
			&inst.Platform,
			&inst.ProjectPath,
			&inst.PluginDir,
			&inst.Version,
			&inst.WWWDir,
			&inst.Spec,
			&inst.Mutations,
			&inst.InstalledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installation: %w", err)
		}
		installations = append(installations, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating installations: %w", err)
	}

	return installations, nil
}

// CreateAuditEntry creates a new audit log entry
func (s *SQLiteStore) CreateAuditEntry(ctx context.Context, entry *AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO audit (action, actor, target_id, details, outcome, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		entry.Action,
		entry.Actor,
		entry.TargetID,
		entry.Details,
		entry.Outcome,
		entry.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit entry ID: %w", err)
	}

	entry.ID = id
	return nil
}

// ListAuditEntries lists audit entries with optional filters and pagination,
// newest first.
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, action *string, actor *string, limit, offset int) ([]*AuditEntry, error) {
	query := `
		SELECT id, action, actor, target_id, details, outcome, timestamp
		FROM audit
		WHERE (? IS NULL OR action = ?)
		  AND (? IS NULL OR actor = ?)
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, action, action, actor, actor, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*AuditEntry{}
	for rows.Next() {
		entry := &AuditEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.Actor,
			&entry.TargetID,
			&entry.Details,
			&entry.Outcome,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
