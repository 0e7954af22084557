package tools

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArguments(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Args
	}{
		{"strict json", `{"location":"Paris"}`, Args{"location": "Paris"}},
		{"empty", "", Args{}},
		{"whitespace", "  \n ", Args{}},
		{"empty object", "{}", Args{}},
		{"single quotes", `{'location': 'San Francisco, CA'}`, Args{"location": "San Francisco, CA"}},
		{"python literals", `{'a': True, 'b': False, 'c': None}`, Args{"a": true, "b": false, "c": nil}},
		{"trailing comma", `{"n": 2, "tags": ["x", "y",],}`, Args{"n": float64(2), "tags": []any{"x", "y"}}},
		{"double quote inside single", `{'q': 'say "hi"'}`, Args{"q": `say "hi"`}},
		{"escaped single quote", `{'q': 'it\'s'}`, Args{"q": "it's"}},
		{"literal words inside strings", `{'q': 'True story'}`, Args{"q": "True story"}},
		{"numbers", `{"number_of_passengers": 3, "x": 1.5e2}`, Args{"number_of_passengers": float64(3), "x": float64(150)}},
		{"nested", `{"a": {"b": [1, {'c': None}]}}`, Args{"a": map[string]any{"b": []any{float64(1), map[string]any{"c": nil}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArguments(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArgumentsMalformed(t *testing.T) {
	for _, raw := range []string{
		`{"location": "Par`,
		`{location: Paris}`,
		`[1, 2]`,
		`"just a string"`,
		`42`,
		`{'a': 1`,
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseArguments(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedArguments))

			var malformed *MalformedArgumentsError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, raw, malformed.Raw)
		})
	}
}
