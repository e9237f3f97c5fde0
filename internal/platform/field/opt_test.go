package field

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptDistinguishesOmittedNullAndValue(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		isSet   bool
		isNull  bool
		value   *string
	}{
		{"omitted", `{}`, false, false, nil},
		{"explicit null", `{"notes": null}`, true, true, nil},
		{"value", `{"notes": "revisar detector"}`, true, false, strPtr("revisar detector")},
		{"empty string is a value", `{"notes": ""}`, true, false, strPtr("")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var p struct {
				Notes Opt[string] `json:"notes"`
			}
			require.NoError(t, json.Unmarshal([]byte(tc.payload), &p))
			assert.Equal(t, tc.isSet, p.Notes.IsSet())
			assert.Equal(t, tc.isNull, p.Notes.IsNull())
			assert.Equal(t, tc.value, p.Notes.Ptr())
		})
	}
}

func TestOptApply(t *testing.T) {
	existing := strPtr("valor previo")

	var omitted Opt[string]
	omitted.Apply(&existing)
	require.NotNil(t, existing)
	assert.Equal(t, "valor previo", *existing, "omitted leaves the target untouched")

	Set("valor nuevo").Apply(&existing)
	require.NotNil(t, existing)
	assert.Equal(t, "valor nuevo", *existing)

	Null[string]().Apply(&existing)
	assert.Nil(t, existing, "explicit null clears the target")
}

func TestOptValueAndConstructors(t *testing.T) {
	v, ok := Set(42).Value()
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = Null[int]().Value()
	assert.False(t, ok)

	var zero Opt[int]
	_, ok = zero.Value()
	assert.False(t, ok)
	assert.False(t, zero.IsSet())
}

func strPtr(s string) *string { return &s }
