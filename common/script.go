package common

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// scriptResponse is the JSON document the script generator must return.
type scriptResponse struct {
	Topic       string   `json:"topic" jsonschema_description:"The topic title"`
	Script      string   `json:"script" jsonschema_description:"The full voiceover text, approx 50-60 words"`
	Keywords    []string `json:"keywords" jsonschema_description:"Stock footage search queries, most relevant first" jsonschema:"minItems=1"`
	Title       string   `json:"title" jsonschema_description:"Clickbait title for YouTube"`
	Description string   `json:"description" jsonschema_description:"Video description with hashtags"`
}

// ScriptPromptSchema returns the JSON schema of the expected script response,
// suitable for embedding in a prompt.
func ScriptPromptSchema() string {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&scriptResponse{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

// stripFences removes markdown code fences from model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseScriptPackage decodes a script generator response. Every field is
// required; any parse failure or missing field yields ErrScriptGeneration.
func ParseScriptPackage(raw string) (*ScriptPackage, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", ErrScriptGeneration)
	}

	var resp scriptResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrScriptGeneration, err)
	}

	pkg := &ScriptPackage{
		Topic:       strings.TrimSpace(resp.Topic),
		Narration:   strings.TrimSpace(resp.Script),
		Title:       strings.TrimSpace(resp.Title),
		Description: strings.TrimSpace(resp.Description),
	}
	for _, kw := range resp.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			pkg.Keywords = append(pkg.Keywords, kw)
		}
	}

	var missing []string
	if pkg.Topic == "" {
		missing = append(missing, "topic")
	}
	if pkg.Narration == "" {
		missing = append(missing, "script")
	}
	if len(pkg.Keywords) == 0 {
		missing = append(missing, "keywords")
	}
	if pkg.Title == "" {
		missing = append(missing, "title")
	}
	if pkg.Description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing or empty %s", ErrScriptGeneration, strings.Join(missing, ", "))
	}

	return pkg, nil
}
