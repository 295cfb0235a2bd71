package extraction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransformIsTotal(t *testing.T) {
	fields := []string{"document_name", "pay_plan"}

	for name, raw := range map[string]string{
		"nil":       "",
		"null":      "null",
		"empty":     "{}",
		"malformed": "{not json",
		"array":     `[1,2,3]`,
		"wrong":     `{"tables":"none","schema":[],"markdown":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			result := Transform(json.RawMessage(raw), fields)

			require.NotNil(t, result)
			require.Nil(t, result.Text)
			require.NotNil(t, result.Tables)
			require.Empty(t, result.Tables)
			require.Equal(t, map[string]string{"document_name": "", "pay_plan": ""}, result.Schema)
		})
	}
}

func TestTransformWithoutSchemaRequest(t *testing.T) {
	result := Transform(json.RawMessage(`{"text":"body"}`), nil)

	require.Equal(t, "body", result.TextOrEmpty())
	require.Nil(t, result.Schema)
}

func TestTransformNormalizesTables(t *testing.T) {
	raw := `{"tables":[[["a","b"]],{"data":[["c","d"]]}]}`

	result := Transform(json.RawMessage(raw), nil)

	require.Equal(t, []Table{
		{Data: [][]Cell{{"a", "b"}}},
		{Data: [][]Cell{{"c", "d"}}},
	}, result.Tables)
}

func TestTransformDegradesOddTables(t *testing.T) {
	raw := `{"tables":[{"rows":[]},null,"x",{"data":null},[["a"],"loose"]]}`

	result := Transform(json.RawMessage(raw), nil)

	require.Len(t, result.Tables, 5)
	for _, table := range result.Tables[:4] {
		require.NotNil(t, table.Data)
		require.Empty(t, table.Data)
	}
	require.Equal(t, [][]Cell{{"a"}, {"loose"}}, result.Tables[4].Data)
}

func TestTransformPrefersMarkdown(t *testing.T) {
	result := Transform(json.RawMessage(`{"markdown":"# Title","text":"Title"}`), nil)
	require.Equal(t, "# Title", result.TextOrEmpty())

	result = Transform(json.RawMessage(`{"markdown":"","text":"Title"}`), nil)
	require.NotNil(t, result.Text)
	require.Equal(t, "", *result.Text)

	result = Transform(json.RawMessage(`{"markdown":null,"text":"Title"}`), nil)
	require.Equal(t, "Title", result.TextOrEmpty())
}

func TestTransformCoercesSchema(t *testing.T) {
	raw := `{"schema":{"document_kind":"pay stub","pages":3,"signed":true,"missing":null,"parts":["a"]}}`

	result := Transform(json.RawMessage(raw), []string{"document_kind", "pay_plan"})

	require.Equal(t, map[string]string{
		"document_kind": "pay stub",
		"pages":         "3",
		"signed":        "true",
		"missing":       "",
		"parts":         `["a"]`,
		"pay_plan":      "",
	}, result.Schema)
}

func TestTransformChunks(t *testing.T) {
	raw := `{"chunks":{"semantic":[{"chunk_number":1,"content":"intro","method":"semantic"},"junk"],"recursive":null}}`

	result := Transform(json.RawMessage(raw), nil)

	require.Equal(t, []Chunk{{Number: 1, Content: "intro", Method: "semantic"}}, result.Chunks["semantic"])
	require.NotNil(t, result.Chunks["recursive"])
	require.Empty(t, result.Chunks["recursive"])
}

func TestResultJSONShape(t *testing.T) {
	data, err := json.Marshal(Transform(json.RawMessage(`{}`), nil))
	require.NoError(t, err)
	require.JSONEq(t, `{"tables":[]}`, string(data))
}
