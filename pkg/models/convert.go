package models

import (
	"encoding/json"
	"strings"
)

// parseToolArguments decodes a raw argument payload emitted by a model. The
// payload is usually a JSON object; anything else is preserved under an
// "input" key so the dispatcher can still report on it.
func parseToolArguments(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	if strings.HasPrefix(raw, "{") {
		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err == nil {
			return payload
		}
	}
	if strings.HasPrefix(raw, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			return map[string]any{"items": arr}
		}
	}
	return map[string]any{"input": raw}
}

// encodeToolArguments is the inverse direction: arguments rendered back to
// the JSON string form several SDKs expect.
func encodeToolArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// schemaParts splits a JSON-schema object into its property map and required
// list, tolerating missing or oddly typed fields.
func schemaParts(schema map[string]any) (map[string]any, []string) {
	props, _ := schema["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
	}

	var required []string
	switch raw := schema["required"].(type) {
	case []string:
		required = raw
	case []any:
		for _, v := range raw {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
	}
	return props, required
}
