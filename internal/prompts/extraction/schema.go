package extraction

func stringList(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": description,
	}
}

func objectList(description string, fields ...string) map[string]any {
	props := make(map[string]any, len(fields))
	for _, f := range fields {
		props[f] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"properties":           props,
			"required":             fields,
			"additionalProperties": false,
		},
		"description": description,
	}
}

// FictionSchema is the JSON schema for fiction extraction output.
var FictionSchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "fiction_extraction",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"characters":             objectList("Characters appearing in this text", "name", "description", "actions"),
				"events":                 objectList("Events and why they matter", "event", "significance"),
				"plot_developments":      stringList("Plot points that advance the story"),
				"settings":               stringList("Locations introduced or featured"),
				"clues_or_foreshadowing": stringList("Details that may matter later"),
				"relationships":          stringList("Developments between characters"),
				"tone_mood": map[string]any{
					"type":        "string",
					"description": "Overall tone of the text",
				},
			},
			"required": []string{
				"characters", "events", "plot_developments", "settings",
				"clues_or_foreshadowing", "relationships", "tone_mood",
			},
			"additionalProperties": false,
		},
	},
}

// NonfictionSchema is the JSON schema for nonfiction extraction output.
var NonfictionSchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "nonfiction_extraction",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"main_arguments":        stringList("Central arguments or claims"),
				"key_concepts":          objectList("Terms and their definitions", "concept", "definition"),
				"evidence":              objectList("Claims and their support", "claim", "evidence"),
				"case_studies":          stringList("Case studies, examples, or narratives"),
				"historical_references": stringList("Historical events and figures"),
				"techniques_methods":    stringList("Techniques, methods, or tools"),
				"figures_data":          stringList("Figures, statistics, or data"),
				"connections":           stringList("Links to earlier chapters or the broader argument"),
			},
			"required": []string{
				"main_arguments", "key_concepts", "evidence", "case_studies",
				"historical_references", "techniques_methods", "figures_data", "connections",
			},
			"additionalProperties": false,
		},
	},
}
