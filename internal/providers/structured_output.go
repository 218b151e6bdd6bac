package providers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxRepairEcho bounds how much of a bad response is quoted back to the
// model in a repair prompt.
const maxRepairEcho = 12000

// ErrNoJSON is returned when model output contains no JSON object.
var ErrNoJSON = errors.New("no JSON object in structured output")

// schemas caches compiled validators by schema text.
var schemas sync.Map // string -> *jsonschema.Schema

// adaptedResponseFormat maps a response format onto what the routed model
// accepts. anthropic/* models can land on backends without native
// structured outputs, so they are asked for a bare JSON object and
// validated locally.
func adaptedResponseFormat(model string, rf *ResponseFormat) (*openRouterResponseFormat, error) {
	if rf == nil {
		return nil, nil
	}
	if isAnthropicModel(model) {
		return &openRouterResponseFormat{Type: "json_object"}, nil
	}
	return &openRouterResponseFormat{Type: rf.Type, JSONSchema: rf.JSONSchema}, nil
}

func isAnthropicModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "anthropic/")
}

// ParseStructuredJSON pulls the JSON object out of model output. The output
// is tried as-is, then with a markdown fence removed, then as the span from
// the first '{' to the last '}'. The result is compacted.
func ParseStructuredJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty structured output")
	}

	for _, candidate := range []string{content, unfence(content), objectSpan(content)} {
		if candidate == "" || !json.Valid([]byte(candidate)) {
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(candidate)); err != nil {
			return nil, fmt.Errorf("compact structured output: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, ErrNoJSON
}

// unfence strips a leading ```lang line and a trailing ``` line.
func unfence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return ""
	}
	_, body, ok := strings.Cut(s, "\n")
	if !ok {
		return ""
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

func objectSpan(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// ValidateStructuredJSON checks doc against a schema. The schema may be a
// bare JSON Schema, a json_schema object ({"name","strict","schema"}), or a
// full response_format envelope ({"type":"json_schema","json_schema":{...}}).
func ValidateStructuredJSON(schemaRaw, doc json.RawMessage) error {
	if len(schemaRaw) == 0 || len(doc) == 0 {
		return nil
	}
	schema, err := compileSchema(schemaRaw)
	if err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return fmt.Errorf("decode structured output: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("structured output does not match schema: %w", err)
	}
	return nil
}

func compileSchema(schemaRaw json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schemaRaw)
	if s, ok := schemas.Load(key); ok {
		return s.(*jsonschema.Schema), nil
	}

	core, err := unwrapSchema(schemaRaw)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", bytes.NewReader(core)); err != nil {
		return nil, fmt.Errorf("load structured schema: %w", err)
	}
	s, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile structured schema: %w", err)
	}
	schemas.Store(key, s)
	return s, nil
}

// schemaEnvelope covers both wrapper shapes a schema arrives in.
type schemaEnvelope struct {
	Schema     json.RawMessage `json:"schema"`
	JSONSchema *struct {
		Schema json.RawMessage `json:"schema"`
	} `json:"json_schema"`
}

func unwrapSchema(raw json.RawMessage) (json.RawMessage, error) {
	var env schemaEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid structured schema: %w", err)
	}
	switch {
	case env.JSONSchema != nil && len(env.JSONSchema.Schema) > 0:
		return env.JSONSchema.Schema, nil
	case len(env.Schema) > 0:
		return env.Schema, nil
	default:
		return raw, nil
	}
}

// RepairPrompt asks the model to restate its last output as schema-valid JSON.
func RepairPrompt(schemaRaw json.RawMessage, lastOutput string, issue error) string {
	lastOutput = strings.TrimSpace(lastOutput)
	if len(lastOutput) > maxRepairEcho {
		lastOutput = lastOutput[:maxRepairEcho] + "\n...[truncated]"
	}

	var b strings.Builder
	if core, err := unwrapSchema(schemaRaw); err == nil && len(schemaRaw) > 0 {
		fmt.Fprintf(&b, "Return ONLY a JSON object (no markdown, no commentary) that conforms to this schema.\n\nSchema:\n%s\n\n", core)
	} else {
		b.WriteString("Return ONLY a single JSON object (no markdown, no commentary).\n\n")
	}
	fmt.Fprintf(&b, "Your previous output:\n%s\n\nProblem:\n%v", lastOutput, issue)
	return b.String()
}
