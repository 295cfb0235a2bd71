package extraction

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Cell is a single table cell as delivered by the provider (string, number,
// bool, nested value or null).
type Cell = any

// Table is a normalized table. Data is never nil.
type Table struct {
	Data [][]Cell `json:"data"`
}

// Chunk is a piece of extracted text produced by the provider's chunker.
type Chunk struct {
	Number  int    `json:"chunk_number"`
	Content string `json:"content"`
	Method  string `json:"method"`
}

// Result is the normalized extraction output.
type Result struct {
	Text   *string            `json:"text,omitempty"`
	Tables []Table            `json:"tables"`
	Schema map[string]string  `json:"schema,omitempty"`
	Chunks map[string][]Chunk `json:"chunks,omitempty"`
}

// TextOrEmpty returns the extracted text, or "" when the provider sent none.
func (r *Result) TextOrEmpty() string {
	if r == nil || r.Text == nil {
		return ""
	}
	return *r.Text
}

// Transform normalizes a raw provider payload. It never fails: missing or
// malformed fields degrade to empty containers. Every name in schemaFields is
// present in the returned Schema.
//
// Text prefers "markdown" over "text". Tables may arrive as bare 2-D arrays or
// as {"data": [[...]]} objects.
func Transform(raw json.RawMessage, schemaFields []string) *Result {
	result := &Result{Tables: []Table{}}

	var payload map[string]any
	if hasPayload(raw) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			payload = nil
		}
	}

	if text, ok := payload["markdown"].(string); ok {
		result.Text = &text
	} else if text, ok := payload["text"].(string); ok {
		result.Text = &text
	}

	if tables, ok := payload["tables"].([]any); ok {
		for _, table := range tables {
			result.Tables = append(result.Tables, Table{Data: tableData(table)})
		}
	}

	schema, hasSchema := payload["schema"].(map[string]any)
	if hasSchema || len(schemaFields) > 0 {
		result.Schema = make(map[string]string, len(schema)+len(schemaFields))
		for key, value := range schema {
			result.Schema[key] = coerceString(value)
		}
		for _, field := range schemaFields {
			if _, ok := result.Schema[field]; !ok {
				result.Schema[field] = ""
			}
		}
	}

	if chunks, ok := payload["chunks"].(map[string]any); ok {
		result.Chunks = make(map[string][]Chunk, len(chunks))
		for method, items := range chunks {
			result.Chunks[method] = chunkList(items)
		}
	}

	return result
}

func tableData(table any) [][]Cell {
	switch t := table.(type) {
	case []any:
		return rows(t)
	case map[string]any:
		if data, ok := t["data"].([]any); ok {
			return rows(data)
		}
	}
	return [][]Cell{}
}

func rows(items []any) [][]Cell {
	data := make([][]Cell, 0, len(items))
	for _, item := range items {
		if cells, ok := item.([]any); ok {
			data = append(data, cells)
			continue
		}
		data = append(data, []Cell{item})
	}
	return data
}

func chunkList(items any) []Chunk {
	list, _ := items.([]any)
	chunks := make([]Chunk, 0, len(list))
	for _, item := range list {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		chunk := Chunk{
			Content: coerceString(fields["content"]),
			Method:  coerceString(fields["method"]),
		}
		if n, ok := fields["chunk_number"].(json.Number); ok {
			if v, err := n.Int64(); err == nil {
				chunk.Number = int(v)
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
