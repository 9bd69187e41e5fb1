// Package sqlstore implements the repository interfaces on top of database/sql.
//
// Two drivers are supported with one set of SQL:
//   - "sqlite"   → modernc.org/sqlite, a pure Go SQLite (no CGo), the default
//   - "postgres" → github.com/jackc/pgx/v5/stdlib, for shared deployments
//
// Queries are written with "?" placeholders and rebound to "$1, $2, ..." for
// Postgres. The schema only uses types and clauses both engines understand
// (TEXT, INTEGER, BIGINT, BOOLEAN, TIMESTAMP, ON CONFLICT ... DO UPDATE,
// RETURNING), so there is a single migration list.
//
// OWNERSHIP SCOPING:
// Every statement against an owned table carries "AND user_id = ?". There are
// no foreign keys; referential integrity is kept by the cascade plans in
// cascade.go and by parent-ownership checks on writes.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/codevault/codevault/internal/apperror"
	"github.com/codevault/codevault/internal/repository"

	// Blank imports register the "sqlite" and "pgx" database/sql drivers.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported values for the driver argument of Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
//
// It is constructed once at startup, handed to every service, and closed on
// shutdown. There is no package-level handle.
type DB struct {
	conn     *sql.DB
	postgres bool
}

// querier is satisfied by both *sql.DB and *sql.Tx, so helpers can run inside
// or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// New opens a SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/codevault.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database (lost on close)
func New(dbPath string) (*DB, error) {
	return Open(DriverSQLite, dbPath)
}

// Open connects to the given driver and DSN, verifies the connection and
// brings the schema up to date.
func Open(driver, dsn string) (*DB, error) {
	var (
		conn *sql.DB
		err  error
	)

	switch driver {
	case DriverSQLite:
		conn, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err == nil {
			// SQLite allows one writer at a time. A single pooled connection
			// serializes statements in-process instead of surfacing
			// SQLITE_BUSY to callers, and keeps ":memory:" databases from
			// splitting into one database per connection.
			conn.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		conn, err = sql.Open("pgx", dsn)
		if err == nil {
			conn.SetMaxOpenConns(20)
			conn.SetMaxIdleConns(5)
			conn.SetConnMaxIdleTime(5 * time.Minute)
		}
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening %s database: %w", driver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: pinging %s database: %w", driver, err)
	}

	db := &DB{conn: conn, postgres: driver == DriverPostgres}

	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: running migrations: %w", err)
	}

	return db, nil
}

// sqliteDSN appends the connection pragmas. They go in the DSN rather than a
// one-off PRAGMA statement because modernc applies DSN pragmas to every new
// connection the pool opens.
func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep +
		"_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)"
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the store is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return apperror.StoreUnavailable("pinging database", err)
	}
	return nil
}

// rebind rewrites "?" placeholders into Postgres "$n" form. Queries in this
// package never contain a literal question mark.
func (db *DB) rebind(query string) string {
	if !db.postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (db *DB) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, db.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, db.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, db.rebind(query), args...)
}

// withTx runs fn inside a transaction. fn's error is returned unchanged (it
// is already a domain error); begin/commit failures become StoreUnavailable.
func (db *DB) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperror.StoreUnavailable(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperror.StoreUnavailable(op, err)
	}
	return nil
}

// ownsRow reports whether table has a row with this id owned by userID.
// table is always a package constant, never user input.
//
// Callers check a parent before inserting a child in the same transaction.
// On Postgres the parent row is locked FOR SHARE so a concurrent cascade,
// which locks it FOR UPDATE first, cannot delete it in between. SQLite runs
// on one connection, so transactions never interleave.
func (db *DB) ownsRow(ctx context.Context, q querier, table, id, userID string) (bool, error) {
	query := `SELECT 1 FROM ` + table + ` WHERE id = ? AND user_id = ?`
	if db.postgres {
		query += ` FOR SHARE`
	}

	var one int
	err := db.queryRow(ctx, q, query, id, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// now returns the current time truncated to microseconds in UTC, the finest
// resolution Postgres TIMESTAMP keeps, so values round-trip identically on
// both engines.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// escapeLike makes %, _ and \ in a user query match literally under
// "LIKE ? ESCAPE '\'".
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// setList accumulates "column = ?" pairs for a partial UPDATE.
type setList struct {
	cols []string
	args []any
}

func (s *setList) add(col string, v any) {
	s.cols = append(s.cols, col+" = ?")
	s.args = append(s.args, v)
}

// update runs "UPDATE table SET ... WHERE id = ? AND user_id = ?". Zero
// affected rows is not an error: a foreign or missing row is a no-op.
func (db *DB) update(ctx context.Context, q querier, table, id, userID string, set *setList) error {
	query := `UPDATE ` + table + ` SET ` + strings.Join(set.cols, ", ") +
		` WHERE id = ? AND user_id = ?`
	args := append(set.args, id, userID)
	_, err := db.exec(ctx, q, query, args...)
	return err
}
