package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var fencedJSON = regexp.MustCompile("```json\\s*(\\{[\\s\\S]*\\})\\s*```")

// LocateJSON fishes the JSON object out of a raw model reply. Models
// routinely wrap the payload in commentary or a markdown fence; first a
// ```json fence is tried, then the outermost brace pair. When neither
// is found the raw text is returned and left to fail decoding.
func LocateJSON(text string) string {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return strings.TrimSpace(text[start : end+1])
	}
	return text
}

// PayloadSchema returns the JSON-Schema (draft 2020-12 subset) that a
// decoded reply must satisfy: an extracted_fields list of named field
// entries. Names outside the declared schema are allowed here; they
// are dropped later at projection time, so a chatty model costs a few
// ignored keys rather than a retry.
func PayloadSchema() map[string]any {
	nameProp := map[string]any{"type": "string", "minLength": 1}
	entry := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"field_name":  nameProp,
			"value":       map[string]any{"type": []string{"string", "null"}},
			"confidence":  map[string]any{"type": []string{"number", "null"}, "minimum": 0.0, "maximum": 1.0},
			"source_text": map[string]any{"type": []string{"string", "null"}},
			"reason":      map[string]any{"type": []string{"string", "null"}},
			"language":    map[string]any{"type": []string{"string", "null"}},
		},
		"required": []string{"field_name"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"full_text": map[string]any{"type": []string{"string", "null"}},
			"extracted_fields": map[string]any{
				"type":  "array",
				"items": entry,
			},
		},
		"required": []string{"extracted_fields"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// DecodePayload locates, decodes and shape-checks the structured payload
// inside a raw model reply. Any failure here is the extractor's
// retryable malformed-output condition.
func DecodePayload(raw string, schemaMap map[string]any) (Extraction, error) {
	located := LocateJSON(raw)
	if err := ValidateJSONAgainstSchema(schemaMap, []byte(located)); err != nil {
		return Extraction{}, err
	}
	var out Extraction
	if err := json.Unmarshal([]byte(located), &out); err != nil {
		return Extraction{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	return out, nil
}
