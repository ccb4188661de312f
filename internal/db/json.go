package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON column types. SQLite has no native JSON column and the GORM dialector
// for modernc stores everything as text anyway, so structured fields are
// serialized explicitly through driver.Valuer / sql.Scanner. This keeps the
// schema portable between SQLite and Postgres without a JSONB dependency.

// JSONMap is a map[string]any persisted as a JSON text column.
// A nil map is stored as "{}" so NOT NULL columns stay satisfied.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("db: marshal json map: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	data, err := jsonColumnBytes(value)
	if err != nil {
		return fmt.Errorf("db: JSONMap.Scan: %w", err)
	}
	if len(data) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// JSONList is a []any persisted as a JSON text column.
type JSONList []any

// Value implements driver.Valuer.
func (l JSONList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("db: marshal json list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *JSONList) Scan(value any) error {
	data, err := jsonColumnBytes(value)
	if err != nil {
		return fmt.Errorf("db: JSONList.Scan: %w", err)
	}
	if len(data) == 0 {
		*l = JSONList{}
		return nil
	}
	return json.Unmarshal(data, l)
}

// StringList is a []string persisted as a JSON text column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("db: marshal string list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(value any) error {
	data, err := jsonColumnBytes(value)
	if err != nil {
		return fmt.Errorf("db: StringList.Scan: %w", err)
	}
	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(data, l)
}

// jsonColumnBytes normalizes the raw driver value of a JSON text column.
// Both string and []byte arrive depending on the driver; nil and the empty
// string are treated as absent.
func jsonColumnBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("expected string or []byte, got %T", value)
	}
}
