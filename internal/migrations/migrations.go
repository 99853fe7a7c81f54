package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

// MigrationTable records applied versions. Schema introspection excludes it.
const MigrationTable = "nlqgate_schema_migrations"

// ErrChecksumMismatch means an applied migration's up script was edited
// after it ran.
var ErrChecksumMismatch = errors.New("migration checksum mismatch")

var migrationNamePattern = regexp.MustCompile(`^([0-9]+)_(.+)\.(up|down)\.sql$`)

// Runner applies the embedded development schema for the asset management
// database. Production databases are owned by the application that writes
// them.
type Runner struct {
	fsys fs.FS
}

func NewRunner() *Runner {
	return &Runner{fsys: embeddedFS}
}

type migration struct {
	Version  int64
	Name     string
	UpSQL    string
	DownSQL  string
	Checksum string
}

type appliedMigration struct {
	Version  int64
	Checksum string
}

// VersionStatus reports the state of one embedded migration. Drifted is set
// when the recorded checksum differs from the embedded up script.
type VersionStatus struct {
	Version int64
	Name    string
	Applied bool
	Drifted bool
}

// Up applies pending migrations in version order, at most steps of them when
// steps is positive. It refuses to run when an applied script has changed.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	source, applied, err := r.prepare(ctx, db, "ASC")
	if err != nil {
		return 0, err
	}
	done := make(map[int64]struct{}, len(applied))
	for _, item := range applied {
		done[item.Version] = struct{}{}
	}
	if err := verifyChecksums(source, applied); err != nil {
		return 0, err
	}

	runCount := 0
	for _, item := range source {
		if _, ok := done[item.Version]; ok {
			continue
		}
		if steps > 0 && runCount >= steps {
			break
		}
		if err := applyMigration(ctx, db, item); err != nil {
			return runCount, err
		}
		runCount++
	}
	return runCount, nil
}

// Down rolls back the most recent applied migrations; steps defaults to 1.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	source, applied, err := r.prepare(ctx, db, "DESC")
	if err != nil {
		return 0, err
	}
	lookup := make(map[int64]migration, len(source))
	for _, item := range source {
		lookup[item.Version] = item
	}

	runCount := 0
	for _, done := range applied {
		if runCount >= steps {
			break
		}
		item, ok := lookup[done.Version]
		if !ok {
			return runCount, fmt.Errorf("applied migration %d is missing from source", done.Version)
		}
		if err := rollbackMigration(ctx, db, item); err != nil {
			return runCount, err
		}
		runCount++
	}
	return runCount, nil
}

// Status lists every embedded migration with its applied state.
func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]VersionStatus, error) {
	source, applied, err := r.prepare(ctx, db, "ASC")
	if err != nil {
		return nil, err
	}
	recorded := make(map[int64]string, len(applied))
	for _, item := range applied {
		recorded[item.Version] = item.Checksum
	}

	out := make([]VersionStatus, 0, len(source))
	for _, item := range source {
		checksum, ok := recorded[item.Version]
		out = append(out, VersionStatus{
			Version: item.Version,
			Name:    item.Name,
			Applied: ok,
			Drifted: ok && checksum != "" && checksum != item.Checksum,
		})
	}
	return out, nil
}

func (r *Runner) prepare(ctx context.Context, db *sql.DB, order string) ([]migration, []appliedMigration, error) {
	source, err := loadMigrations(r.fsys)
	if err != nil {
		return nil, nil, err
	}
	if err := ensureMigrationTable(ctx, db); err != nil {
		return nil, nil, err
	}
	applied, err := queryApplied(ctx, db, order)
	if err != nil {
		return nil, nil, err
	}
	return source, applied, nil
}

func verifyChecksums(source []migration, applied []appliedMigration) error {
	lookup := make(map[int64]migration, len(source))
	for _, item := range source {
		lookup[item.Version] = item
	}
	for _, done := range applied {
		item, ok := lookup[done.Version]
		if !ok || done.Checksum == "" {
			continue
		}
		if done.Checksum != item.Checksum {
			return fmt.Errorf("%w: migration %d (%s) changed after it was applied", ErrChecksumMismatch, item.Version, item.Name)
		}
	}
	return nil
}

func ensureMigrationTable(ctx context.Context, db *sql.DB) error {
	query := `
CREATE TABLE IF NOT EXISTS ` + MigrationTable + ` (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	checksum TEXT NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, item migration) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, item.UpSQL); err != nil {
			return fmt.Errorf("apply migration %d: %w", item.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+MigrationTable+` (version, name, checksum) VALUES ($1, $2, $3)`,
			item.Version, item.Name, item.Checksum,
		); err != nil {
			return fmt.Errorf("mark migration %d: %w", item.Version, err)
		}
		return nil
	})
}

func rollbackMigration(ctx context.Context, db *sql.DB, item migration) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, item.DownSQL); err != nil {
			return fmt.Errorf("rollback migration %d: %w", item.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+MigrationTable+` WHERE version = $1`, item.Version); err != nil {
			return fmt.Errorf("unmark migration %d: %w", item.Version, err)
		}
		return nil
	})
}

func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func queryApplied(ctx context.Context, db *sql.DB, order string) ([]appliedMigration, error) {
	rows, err := db.QueryContext(ctx, `SELECT version, checksum FROM `+MigrationTable+` ORDER BY version `+order)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var applied []appliedMigration
	for rows.Next() {
		var item appliedMigration
		if err := rows.Scan(&item.Version, &item.Checksum); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		applied = append(applied, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return applied, nil
}

func checksum(script string) string {
	return strconv.FormatUint(xxhash.Sum64String(script), 16)
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	items := map[int64]migration{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := path.Base(entry.Name())
		matches := migrationNamePattern.FindStringSubmatch(base)
		if len(matches) != 4 {
			continue
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version for %q: %w", base, err)
		}
		script, err := fs.ReadFile(fsys, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		item := items[version]
		if item.Name != "" && item.Name != matches[2] {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, item.Name, matches[2])
		}
		item.Version = version
		item.Name = matches[2]
		if matches[3] == "up" {
			item.UpSQL = string(script)
		} else {
			item.DownSQL = string(script)
		}
		items[version] = item
	}

	migrations := make([]migration, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.UpSQL) == "" {
			return nil, fmt.Errorf("migration %d missing up SQL", item.Version)
		}
		if strings.TrimSpace(item.DownSQL) == "" {
			return nil, fmt.Errorf("migration %d missing down SQL", item.Version)
		}
		item.Checksum = checksum(item.UpSQL)
		migrations = append(migrations, item)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}
