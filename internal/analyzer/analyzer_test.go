package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackzampolin/synopsis/internal/book"
	"github.com/jackzampolin/synopsis/internal/completion"
	"github.com/jackzampolin/synopsis/internal/prompts"
	"github.com/jackzampolin/synopsis/internal/prompts/analysis"
)

func newAnalyzer(svc completion.Service) *Analyzer {
	r := prompts.NewResolver(nil, nil)
	analysis.RegisterPrompts(r)
	return New(svc, r, 0.3, nil)
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name      string
		category  book.Category
		themes    string
		section   string
		wantTheme string
	}{
		{"fiction first chapter", book.Fiction, "", "**Character Dynamics**", book.NoThemes},
		{"fiction later chapter", book.Fiction, "jealousy, deception", "**Character Dynamics**", "jealousy, deception"},
		{"nonfiction", book.Nonfiction, "the unconscious", "**Narrative Approach**", "the unconscious"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *completion.Request
			svc := completion.Func(func(_ context.Context, req *completion.Request) (*completion.Response, error) {
				got = req
				return &completion.Response{Text: "Thematic Analysis: ...\n"}, nil
			})

			out, err := newAnalyzer(svc).Analyze(context.Background(), Input{
				Book:        &book.Book{ID: "b", Category: tt.category},
				Chapter:     book.Chapter{ID: "c", Title: "Chapter"},
				Summary:     "the summary text",
				Extraction:  book.EmptyExtraction(tt.category),
				ThemesSoFar: tt.themes,
			})
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if out != "Thematic Analysis: ..." {
				t.Errorf("Analyze() = %q", out)
			}
			if got.Stage != completion.StageAnalyze || got.Structured {
				t.Errorf("unexpected request: %+v", got)
			}
			for _, want := range []string{"**Thematic Analysis**", tt.section, tt.wantTheme, "the summary text"} {
				if !strings.Contains(got.Prompt, want) {
					t.Errorf("prompt missing %q", want)
				}
			}
		})
	}
}

func TestAnalyze_Error(t *testing.T) {
	svc := completion.Func(func(context.Context, *completion.Request) (*completion.Response, error) {
		return nil, completion.ErrServiceUnavailable
	})
	_, err := newAnalyzer(svc).Analyze(context.Background(), Input{
		Book:       &book.Book{Category: book.Fiction},
		Extraction: book.EmptyExtraction(book.Fiction),
	})
	if !errors.Is(err, completion.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}
