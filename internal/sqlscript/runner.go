// Package sqlscript executes parameterized SQL script files against named
// database connections.
package sqlscript

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/mattn/go-sqlite3"     // Register SQLite driver
	_ "github.com/microsoft/go-mssqldb" // Register SQL Server driver
	"github.com/sirupsen/logrus"

	"github.com/rossigee/irp-integration/internal/irperr"
	"github.com/rossigee/irp-integration/internal/refdata"
	"github.com/rossigee/irp-integration/internal/validate"
)

// Connection names a database/sql driver and its DSN.
type Connection struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Runner executes scripts found under a base directory.
type Runner struct {
	scriptsDir  string
	connections map[string]Connection
	log         *logrus.Entry
}

// NewRunner creates a Runner.
func NewRunner(scriptsDir string, connections map[string]Connection, log *logrus.Entry) *Runner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Runner{scriptsDir: scriptsDir, connections: connections, log: log}
}

// Dir returns the scripts base directory.
func (r *Runner) Dir() string {
	return r.scriptsDir
}

// Path resolves a script path relative to the base directory.
func (r *Runner) Path(rel string) string {
	return filepath.Join(r.scriptsDir, filepath.FromSlash(rel))
}

// Exists reports whether the script rel exists as a regular file.
func (r *Runner) Exists(rel string) bool {
	info, err := os.Stat(r.Path(rel))
	return err == nil && info.Mode().IsRegular()
}

// Run executes script rel on connection with params bound by name and
// returns the number of result sets that carried columns.
func (r *Runner) Run(ctx context.Context, rel, connection string, params map[string]any) (int, error) {
	if err := validate.All(
		validate.NonEmptyString(rel, "file_path"),
		validate.NonEmptyString(connection, "connection"),
	); err != nil {
		return 0, err
	}

	conn, err := r.lookup(connection)
	if err != nil {
		return 0, err
	}

	path := r.Path(rel)
	script, err := os.ReadFile(path)
	if err != nil {
		return 0, irperr.Wrap(irperr.KindFile, err, "failed to read SQL script %s", path)
	}

	db, err := sql.Open(conn.Driver, conn.DSN)
	if err != nil {
		return 0, fmt.Errorf("failed to open connection %s: %w", connection, err)
	}
	defer func() {
		_ = db.Close() // Close errors are not critical
	}()

	r.log.WithFields(logrus.Fields{
		"script":     rel,
		"connection": connection,
	}).Info("Executing SQL script")

	rows, err := db.QueryContext(ctx, string(script), namedArgs(params)...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute %s: %w", rel, err)
	}
	defer func() {
		_ = rows.Close() // Close errors are not critical
	}()

	count := 0
	for {
		cols, err := rows.Columns()
		if err != nil {
			return 0, fmt.Errorf("failed to read result set of %s: %w", rel, err)
		}
		if len(cols) > 0 {
			count++
		}
		for rows.Next() {
			// drain
		}
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("failed to read result set of %s: %w", rel, err)
		}
		if !rows.NextResultSet() {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to execute %s: %w", rel, err)
	}

	r.log.WithFields(logrus.Fields{"script": rel, "result_sets": count}).Info("SQL script executed")
	return count, nil
}

// lookup resolves a configured connection; the error lists the known names.
func (r *Runner) lookup(name string) (Connection, error) {
	names := make([]string, 0, len(r.connections))
	for n := range r.connections {
		names = append(names, n)
	}
	sort.Strings(names)

	found, err := refdata.FindByName(names, name, "SQL connection", func(n string) string { return n })
	if err != nil {
		return Connection{}, err
	}
	return r.connections[found], nil
}

// namedArgs binds params in a stable order.
func namedArgs(params map[string]any) []any {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, 0, len(names))
	for _, name := range names {
		args = append(args, sql.Named(name, params[name]))
	}
	return args
}
