package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/siherrmann/directory/helper"
)

// Metadata is free-form JSON object data stored as JSONB.
// A nil Metadata is written as an empty object so storage never holds NULL.
type Metadata map[string]interface{}

// Value implements the driver.Valuer interface for database storage
func (m Metadata) Value() (driver.Value, error) {
	return m.Marshal()
}

// Scan implements the sql.Scanner interface for database retrieval
func (m *Metadata) Scan(value interface{}) error {
	return m.Unmarshal(value)
}

// Marshal converts Metadata to JSON bytes. nil becomes {}.
func (m Metadata) Marshal() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]interface{}(m))
}

// Unmarshal converts JSON bytes, a JSON string or Metadata into Metadata.
// nil and JSON null both yield an empty, non-nil Metadata.
func (m *Metadata) Unmarshal(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case Metadata:
		*m = v.Clone()
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return helper.NewError("metadata type assertion", fmt.Errorf("unsupported type %T", value))
	}

	decoded := map[string]interface{}{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		return helper.NewError("metadata unmarshal", err)
	}
	if decoded == nil {
		decoded = map[string]interface{}{}
	}
	*m = decoded
	return nil
}

// Clone returns a deep copy of nested objects and arrays.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return map[string]interface{}(Metadata(t).Clone())
	case Metadata:
		return t.Clone()
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
