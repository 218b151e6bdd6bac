package contextupdate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jackzampolin/synopsis/internal/book"
	"github.com/jackzampolin/synopsis/internal/completion"
	"github.com/jackzampolin/synopsis/internal/prompts"
	"github.com/jackzampolin/synopsis/internal/prompts/rolling"
)

func newUpdater(svc completion.Service) *Updater {
	r := prompts.NewResolver(nil, nil)
	rolling.RegisterPrompts(r)
	return New(svc, r, 0.3, nil)
}

func reply(raw string) completion.Func {
	return func(_ context.Context, req *completion.Request) (*completion.Response, error) {
		return &completion.Response{JSON: json.RawMessage(raw), Text: raw}, nil
	}
}

func TestUpdate_FirstChapter(t *testing.T) {
	var got *completion.Request
	svc := completion.Func(func(ctx context.Context, req *completion.Request) (*completion.Response, error) {
		got = req
		return reply(`{"story_so_far":"Hastings meets Cinderella on the boat train.","active_characters":["Hastings"],"unresolved_threads":[],"themes_identified":["chance"],"key_facts":[]}`)(ctx, req)
	})

	next, err := newUpdater(svc).Update(context.Background(), Input{
		Book:       &book.Book{ID: "links", Category: book.Fiction},
		Chapter:    book.Chapter{ID: "chapter_01"},
		Prior:      book.EmptyContext(book.Fiction),
		Summary:    "summary",
		Extraction: book.EmptyExtraction(book.Fiction),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !got.Structured || got.Stage != completion.StageContext || len(got.Schema) == 0 {
		t.Errorf("unexpected request: %+v", got)
	}
	if !strings.Contains(got.Prompt, "CURRENT CONTEXT:\n"+book.NoPriorContext) {
		t.Error("first update should see the no-prior-context sentinel")
	}
	if next.Narrative() != "Hastings meets Cinderella on the boat train." || next.ThemesSoFar() != "chance" {
		t.Errorf("unexpected context: %+v", next.Fiction)
	}
}

func TestUpdate_SerializesPriorContext(t *testing.T) {
	prior, err := book.ParseRollingContext(book.Nonfiction, []byte(`{"argument_so_far":"Dreams have meaning.","key_concepts_defined":["manifest content"]}`))
	if err != nil {
		t.Fatal(err)
	}

	var prompt string
	svc := completion.Func(func(ctx context.Context, req *completion.Request) (*completion.Response, error) {
		prompt = req.Prompt
		return reply(`{"argument_so_far":"Dreams fulfil wishes.","key_concepts_defined":[],"evidence_presented":[],"themes_identified":[],"key_facts":[]}`)(ctx, req)
	})

	next, err := newUpdater(svc).Update(context.Background(), Input{
		Book:       &book.Book{Category: book.Nonfiction},
		Prior:      prior,
		Extraction: book.EmptyExtraction(book.Nonfiction),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, prior.Serialize()) {
		t.Error("prompt should carry the serialized prior context verbatim")
	}
	if prior.Narrative() != "Dreams have meaning." {
		t.Error("prior context must not be modified")
	}
	if next.Narrative() != "Dreams fulfil wishes." {
		t.Errorf("Narrative() = %q", next.Narrative())
	}
}

func TestUpdate_FailsLoudly(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing narrative", `{"active_characters":["Poirot"]}`},
		{"empty narrative", `{"story_so_far":"  "}`},
		{"not an object", `["story"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newUpdater(reply(tt.raw)).Update(context.Background(), Input{
				Book:       &book.Book{Category: book.Fiction},
				Prior:      book.EmptyContext(book.Fiction),
				Extraction: book.EmptyExtraction(book.Fiction),
			})
			if !errors.Is(err, completion.ErrMalformedOutput) {
				t.Fatalf("expected ErrMalformedOutput, got %v", err)
			}
		})
	}
}
