package extraction

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jackzampolin/synopsis/internal/book"
	"github.com/jackzampolin/synopsis/internal/prompts"
)

func TestBuild(t *testing.T) {
	r := prompts.NewResolver(nil, nil)
	RegisterPrompts(r)

	tests := []struct {
		category book.Category
		key      string
		schema   string
		field    string
	}{
		{book.Fiction, FictionPromptKey, "fiction_extraction", "clues_or_foreshadowing"},
		{book.Nonfiction, NonfictionPromptKey, "nonfiction_extraction", "techniques_methods"},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			built, err := Build(context.Background(), r, "", tt.category, Data{
				BookTitle:    "Title",
				Author:       "Author",
				ChapterTitle: "One",
				PriorContext: WithPart(book.FirstChapter, 1, 3),
				ChapterText:  "text",
			})
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if built.Key != tt.key {
				t.Errorf("Key = %q, want %q", built.Key, tt.key)
			}
			if !strings.Contains(built.User, "[Processing part 2 of 3 of this chapter]") {
				t.Error("prompt should carry the part marker")
			}
			if !strings.Contains(built.User, tt.field) {
				t.Errorf("prompt should describe %q", tt.field)
			}

			var envelope struct {
				Name   string         `json:"name"`
				Strict bool           `json:"strict"`
				Schema map[string]any `json:"schema"`
			}
			if err := json.Unmarshal(built.Schema, &envelope); err != nil {
				t.Fatal(err)
			}
			if envelope.Name != tt.schema || !envelope.Strict {
				t.Errorf("schema envelope = %+v", envelope)
			}
		})
	}
}
