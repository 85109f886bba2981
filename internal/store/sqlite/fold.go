package sqlite

import (
	"database/sql/driver"
	"strings"
	"sync"

	"modernc.org/sqlite"
)

// foldFunc lower-cases text with full Unicode case mapping. SQLite's built-in
// lower() only folds ASCII, so "CAFÉ" would not match "café".
const foldFunc = "inkwell_fold"

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions installs the custom SQL functions on every connection opened
// afterwards. It is safe to call repeatedly.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction(foldFunc, 1, fold)
	})
	return registerErr
}

func fold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}
