package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataValue(t *testing.T) {
	t.Run("Nil metadata is stored as empty object", func(t *testing.T) {
		var m Metadata

		value, err := m.Value()

		require.NoError(t, err)
		assert.Equal(t, []byte("{}"), value, "Expected nil metadata to never be stored as null")
	})

	t.Run("Metadata keeps nested values", func(t *testing.T) {
		m := Metadata{
			"party":  "Nepali Congress",
			"scores": []interface{}{1, 2},
		}

		value, err := m.Value()

		require.NoError(t, err)
		assert.JSONEq(t, `{"party":"Nepali Congress","scores":[1,2]}`, string(value.([]byte)))
	})
}

func TestMetadataScan(t *testing.T) {
	t.Run("Scan from JSONB bytes", func(t *testing.T) {
		var m Metadata

		err := m.Scan([]byte(`{"province":"Bagmati","attendance":78}`))

		require.NoError(t, err)
		assert.Equal(t, "Bagmati", m["province"])
		assert.Equal(t, float64(78), m["attendance"])
	})

	t.Run("Scan from string", func(t *testing.T) {
		var m Metadata

		err := m.Scan(`{"capital":"Kathmandu"}`)

		require.NoError(t, err)
		assert.Equal(t, "Kathmandu", m["capital"])
	})

	t.Run("Scan NULL and JSON null yield empty metadata", func(t *testing.T) {
		var fromNil, fromNull Metadata

		require.NoError(t, fromNil.Scan(nil))
		require.NoError(t, fromNull.Scan([]byte("null")))

		assert.NotNil(t, fromNil)
		assert.Empty(t, fromNil)
		assert.NotNil(t, fromNull)
		assert.Empty(t, fromNull)
	})

	t.Run("Scan rejects unsupported types", func(t *testing.T) {
		var m Metadata

		err := m.Scan(12345)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported type int")
	})

	t.Run("Scan rejects non-object JSON", func(t *testing.T) {
		var m Metadata

		err := m.Scan([]byte(`["a","b"]`))

		require.Error(t, err)
	})
}

func TestMetadataClone(t *testing.T) {
	original := Metadata{
		"nested": map[string]interface{}{"inner": "value"},
		"list":   []interface{}{"a"},
	}

	clone := original.Clone()
	clone["nested"].(map[string]interface{})["inner"] = "changed"
	clone["list"].([]interface{})[0] = "b"

	assert.Equal(t, "value", original["nested"].(map[string]interface{})["inner"], "Expected clone to not share nested maps")
	assert.Equal(t, "a", original["list"].([]interface{})[0], "Expected clone to not share nested slices")
	assert.Nil(t, Metadata(nil).Clone())
}
