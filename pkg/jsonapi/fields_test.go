package jsonapi_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordlink-io/jsonapi-orm/pkg/jsonapi"
)

func TestAttribute_Clean(t *testing.T) {
	t.Parallel()

	field := jsonapi.Attribute{}

	value, err := field.Clean("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", value)

	value, err = field.Clean(map[string]any{"nested": map[string]any{"count": float64(3)}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"nested": map[string]any{"count": float64(3)}}, value)

	value, err = field.Clean(nil)
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestDateTimeAttribute_Clean(t *testing.T) {
	t.Parallel()

	field := jsonapi.DateTimeAttribute{}

	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{
			name:     "RFC3339",
			input:    "2021-06-01T12:30:00Z",
			expected: time.Date(2021, 6, 1, 12, 30, 0, 0, time.UTC),
		},
		{
			name:     "RFC3339 with nanoseconds",
			input:    "2021-06-01T12:30:00.123456Z",
			expected: time.Date(2021, 6, 1, 12, 30, 0, 123456000, time.UTC),
		},
		{
			name:     "without timezone",
			input:    "2021-06-01T12:30:00",
			expected: time.Date(2021, 6, 1, 12, 30, 0, 0, time.UTC),
		},
		{
			name:     "date only",
			input:    "2021-06-01",
			expected: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			value, err := field.Clean(testCase.input)
			require.NoError(t, err)
			require.IsType(t, time.Time{}, value)
			assert.True(t, testCase.expected.Equal(value.(time.Time)))
		})
	}

	t.Run("non-string cleans to nil", func(t *testing.T) {
		t.Parallel()

		value, err := field.Clean(float64(42))
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("unparseable string fails", func(t *testing.T) {
		t.Parallel()

		_, err := field.Clean("not a date")
		require.Error(t, err)
	})
}

//nolint:funlen // Test functions can be longer for detailed testing
func TestRelationshipField_Clean(t *testing.T) {
	t.Parallel()

	t.Run("to-one identifier map", func(t *testing.T) {
		t.Parallel()

		field := jsonapi.RelationshipField{}

		value, err := field.Clean(map[string]any{"type": "companies", "id": "7"})
		require.NoError(t, err)
		assert.Equal(t, &jsonapi.Identifier{Type: "companies", ID: "7"}, value)
	})

	t.Run("to-one explicit null", func(t *testing.T) {
		t.Parallel()

		field := jsonapi.RelationshipField{}

		value, err := field.Clean(nil)
		require.NoError(t, err)
		assert.Equal(t, (*jsonapi.Identifier)(nil), value)
	})

	t.Run("to-one wrapped in a single-element list", func(t *testing.T) {
		t.Parallel()

		field := jsonapi.RelationshipField{}

		value, err := field.Clean([]any{map[string]any{"type": "companies", "id": "7"}})
		require.NoError(t, err)
		assert.Equal(t, &jsonapi.Identifier{Type: "companies", ID: "7"}, value)
	})

	t.Run("to-one rejects non-identifier", func(t *testing.T) {
		t.Parallel()

		field := jsonapi.RelationshipField{}

		_, err := field.Clean("bogus")
		require.Error(t, err)
	})

	t.Run("to-many list of identifiers", func(t *testing.T) {
		t.Parallel()

		field := jsonapi.RelationshipField{Many: true}

		value, err := field.Clean([]any{
			map[string]any{"type": "roles", "id": "1"},
			map[string]any{"type": "roles", "id": "2"},
		})
		require.NoError(t, err)
		assert.Equal(t, []jsonapi.Identifier{
			{Type: "roles", ID: "1"},
			{Type: "roles", ID: "2"},
		}, value)
	})

	t.Run("to-many drops non-identifiers", func(t *testing.T) {
		t.Parallel()

		field := jsonapi.RelationshipField{Many: true}

		value, err := field.Clean([]any{
			map[string]any{"type": "roles", "id": "1"},
			"bogus",
		})
		require.NoError(t, err)
		assert.Equal(t, []jsonapi.Identifier{{Type: "roles", ID: "1"}}, value)
	})

	t.Run("to-many explicit null cleans to empty list", func(t *testing.T) {
		t.Parallel()

		field := jsonapi.RelationshipField{Many: true}

		value, err := field.Clean(nil)
		require.NoError(t, err)
		assert.Equal(t, []jsonapi.Identifier{}, value)
	})

	t.Run("numeric ids are normalized to strings", func(t *testing.T) {
		t.Parallel()

		field := jsonapi.RelationshipField{}

		value, err := field.Clean(map[string]any{"type": "companies", "id": float64(7)})
		require.NoError(t, err)
		assert.Equal(t, &jsonapi.Identifier{Type: "companies", ID: "7"}, value)
	})
}
