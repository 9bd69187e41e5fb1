package sqlstore

import (
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"
)

// SQLite's built-in LOWER only folds ASCII, while the search pattern is
// lowered in Go with full Unicode rules. unicode_lower gives SQLite the same
// fold so "ÄPFEL" finds "äpfel". Postgres LOWER is already Unicode-aware.
const sqliteLowerFunc = "unicode_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(sqliteLowerFunc, 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// lowerFunc is the SQL function that lowercases text the way strings.ToLower
// does on the current engine.
func (db *DB) lowerFunc() string {
	if db.postgres {
		return "LOWER"
	}
	return sqliteLowerFunc
}
