package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleEntries = []ProjectEntry{
	{Name: "Maple St reno", Location: "Burnaby", Hours: 5.5, Description: "framing"},
	{Name: "Office", Location: "", Hours: 2, Description: "N/A"},
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	decoded, err := ParseProjects(EncodeProjects(sampleEntries))
	require.NoError(t, err)
	assert.Equal(t, sampleEntries, decoded)
}

func TestDecodeToleratesDoubleEncoding(t *testing.T) {
	once := EncodeProjects(sampleEntries)
	twice, err := json.Marshal(string(once))
	require.NoError(t, err)

	decoded, err := ParseProjects(twice)
	require.NoError(t, err)
	assert.Equal(t, sampleEntries, decoded)

	thrice, err := json.Marshal(string(twice))
	require.NoError(t, err)
	decoded, err = ParseProjects(thrice)
	require.NoError(t, err)
	assert.Equal(t, sampleEntries, decoded)
}

func TestDecodeRejectsDeeperNesting(t *testing.T) {
	value := EncodeProjects(sampleEntries)
	for range 3 {
		wrapped, err := json.Marshal(string(value))
		require.NoError(t, err)
		value = wrapped
	}
	_, err := ParseProjects(value)
	assert.Error(t, err)
	assert.Empty(t, DecodeStored(7, value))
}

func TestDecodeVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []ProjectEntry
	}{
		{"empty", "", []ProjectEntry{}},
		{"whitespace", "   ", []ProjectEntry{}},
		{"null", "null", []ProjectEntry{}},
		{"empty array", "[]", []ProjectEntry{}},
		{"single object", `{"name":"Deck","location":"Surrey","hours":3,"description":"stain"}`,
			[]ProjectEntry{{Name: "Deck", Location: "Surrey", Hours: 3, Description: "stain"}}},
		{"string hours", `[{"name":"Deck","hours":"4.5"}]`,
			[]ProjectEntry{{Name: "Deck", Hours: 4.5}}},
		{"unreadable hours", `[{"name":"Deck","hours":"abc"}]`,
			[]ProjectEntry{{Name: "Deck", Hours: 0}}},
		{"stringified elements", `["{\"name\":\"Deck\",\"hours\":2}", {"name":"Shed","hours":1}]`,
			[]ProjectEntry{{Name: "Deck", Hours: 2}, {Name: "Shed", Hours: 1}}},
		{"null elements skipped", `[null, {"name":"Shed","hours":1}]`,
			[]ProjectEntry{{Name: "Shed", Hours: 1}}},
		{"stringified null", `"null"`, []ProjectEntry{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseProjects([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeStoredSwallowsMalformed(t *testing.T) {
	for _, raw := range []string{"{not json", "42", "[1,2]", `"[{broken"`} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseProjects([]byte(raw))
			assert.Error(t, err)
			assert.Equal(t, []ProjectEntry{}, DecodeStored(1, []byte(raw)))
		})
	}
}

func TestEncodeIsSingleLevel(t *testing.T) {
	assert.Equal(t, "[]", string(EncodeProjects(nil)))
	encoded := EncodeProjects(sampleEntries)
	assert.Equal(t, byte('['), encoded[0])

	var generic []map[string]any
	require.NoError(t, json.Unmarshal(encoded, &generic))
	assert.Len(t, generic, 2)
}
