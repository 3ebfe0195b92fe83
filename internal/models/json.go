package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Metadata is free-form key/value data stored as jsonb.
type Metadata map[string]interface{}

// Value implements the driver.Valuer interface
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface
func (m *Metadata) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// UnmarshalJSON sets the JSON encoding
func (m *Metadata) UnmarshalJSON(data []byte) error {
	if m == nil {
		return errors.New("nil pointer")
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// Clone copies the top level of the map.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	cp := make(Metadata, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// With returns a copy of m with key set to value.
func (m Metadata) With(key string, value interface{}) Metadata {
	cp := m.Clone()
	if cp == nil {
		cp = Metadata{}
	}
	cp[key] = value
	return cp
}

// String returns the value under key if it is a string.
func (m Metadata) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
