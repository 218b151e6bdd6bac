package rolling

func stringList(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": description,
	}
}

// FictionSchema is the JSON schema for the fiction rolling context.
var FictionSchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "fiction_context",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"story_so_far": map[string]any{
					"type":        "string",
					"description": "2-3 sentence summary of the story up to this point",
				},
				"active_characters":  stringList("Characters currently active"),
				"unresolved_threads": stringList("Open plot threads or mysteries"),
				"themes_identified":  stringList("Themes that have emerged"),
				"key_facts":          stringList("Facts the reader must remember"),
			},
			"required":             []string{"story_so_far", "active_characters", "unresolved_threads", "themes_identified", "key_facts"},
			"additionalProperties": false,
		},
	},
}

// NonfictionSchema is the JSON schema for the nonfiction rolling context.
var NonfictionSchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "nonfiction_context",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"argument_so_far": map[string]any{
					"type":        "string",
					"description": "2-3 sentence summary of the argument up to this point",
				},
				"key_concepts_defined": stringList("Concepts defined so far"),
				"evidence_presented":   stringList("Major evidence or case studies presented"),
				"themes_identified":    stringList("Themes or threads being developed"),
				"key_facts":            stringList("Facts or findings to remember"),
			},
			"required":             []string{"argument_so_far", "key_concepts_defined", "evidence_presented", "themes_identified", "key_facts"},
			"additionalProperties": false,
		},
	},
}
