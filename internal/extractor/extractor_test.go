package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackzampolin/synopsis/internal/book"
	"github.com/jackzampolin/synopsis/internal/chunker"
	"github.com/jackzampolin/synopsis/internal/completion"
	"github.com/jackzampolin/synopsis/internal/prompts"
	"github.com/jackzampolin/synopsis/internal/prompts/extraction"
	"github.com/jackzampolin/synopsis/internal/providers"
)

func newResolver() *prompts.Resolver {
	r := prompts.NewResolver(nil, nil)
	extraction.RegisterPrompts(r)
	return r
}

func testBook() *book.Book {
	return &book.Book{
		ID:       "links",
		Metadata: book.Metadata{Title: "The Murder on the Links", Authors: []string{"Agatha Christie"}},
		Category: book.Fiction,
	}
}

func segments(texts ...string) []chunker.Segment {
	out := make([]chunker.Segment, len(texts))
	for i, s := range texts {
		out[i] = chunker.Segment{Index: i, Text: s}
	}
	return out
}

func TestExtract_SingleSegment(t *testing.T) {
	var requests []*completion.Request
	svc := completion.Func(func(_ context.Context, req *completion.Request) (*completion.Response, error) {
		requests = append(requests, req)
		raw := json.RawMessage(`{"characters":[{"name":"Poirot","description":"detective","actions":"reads"}],"tone_mood":"light","mystery_field":1}`)
		return &completion.Response{JSON: raw, Text: string(raw)}, nil
	})

	res, err := New(svc, newResolver(), 0.3, nil).Extract(context.Background(), Input{
		Book:     testBook(),
		Chapter:  book.Chapter{ID: "chapter_01", Ordinal: 1, Title: "A Fellow Traveller"},
		Segments: segments("text"),
		Prior:    book.FirstChapter,
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("issued %d requests, want 1", len(requests))
	}
	req := requests[0]
	if !req.Structured || req.Stage != completion.StageExtract || req.Temperature != 0.3 || len(req.Schema) == 0 {
		t.Errorf("unexpected request: %+v", req)
	}
	if strings.Contains(req.Prompt, "[Processing part") {
		t.Error("single segment prompt should have no part marker")
	}
	if !strings.Contains(req.Prompt, "PRIOR CONTEXT: This is the first chapter.") {
		t.Error("prompt should carry the prior context")
	}

	f := res.Extraction.Fiction
	if len(f.Characters) != 1 || f.ToneMood != "light" || f.Events == nil {
		t.Errorf("unexpected extraction: %+v", f)
	}
}

func TestExtract_MultiSegment(t *testing.T) {
	var sent []string
	svc := completion.Func(func(_ context.Context, req *completion.Request) (*completion.Response, error) {
		sent = append(sent, req.Prompt)
		i := len(sent)
		raw := json.RawMessage(fmt.Sprintf(`{"plot_developments":["development %d"],"characters":[{"name":"Poirot","description":"seen in part %d","actions":""}]}`, i, i))
		return &completion.Response{JSON: raw}, nil
	})

	prior := `{"story_so_far":"Hastings meets a stranger."}`
	res, err := New(svc, newResolver(), 0.3, nil).Extract(context.Background(), Input{
		Book:     testBook(),
		Chapter:  book.Chapter{ID: "chapter_02", Ordinal: 2},
		Segments: segments("one", "two", "three"),
		Prior:    prior,
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(sent) != 3 {
		t.Fatalf("issued %d requests, want 3", len(sent))
	}
	for i, p := range sent {
		if !strings.Contains(p, prior) {
			t.Errorf("segment %d prompt lacks the prior context", i+1)
		}
		marker := extraction.PartMarker(i, 3)
		if !strings.Contains(p, marker) {
			t.Errorf("segment %d prompt lacks %q", i+1, marker)
		}
	}

	f := res.Extraction.Fiction
	if len(f.PlotDevelopments) != 3 || f.PlotDevelopments[2] != "development 3" {
		t.Errorf("plot developments = %v", f.PlotDevelopments)
	}
	if len(f.Characters) != 1 || f.Characters[0].Description != "seen in part 1" {
		t.Errorf("characters = %+v", f.Characters)
	}
}

func TestExtract_DegradesMalformedSegment(t *testing.T) {
	calls := 0
	svc := completion.Func(func(_ context.Context, req *completion.Request) (*completion.Response, error) {
		calls++
		switch calls {
		case 2:
			return nil, fmt.Errorf("segment garbage: %w", completion.ErrMalformedOutput)
		case 3:
			return &completion.Response{JSON: json.RawMessage(`["not","an","object"]`)}, nil
		}
		return &completion.Response{JSON: json.RawMessage(`{"settings":["Paris"]}`)}, nil
	})

	res, err := New(svc, newResolver(), 0.3, nil).Extract(context.Background(), Input{
		Book:     testBook(),
		Chapter:  book.Chapter{ID: "c"},
		Segments: segments("a", "b", "c"),
		Prior:    book.FirstChapter,
	})
	if err != nil {
		t.Fatalf("malformed segments should not fail the chapter: %v", err)
	}
	if len(res.Degraded) != 2 || res.Degraded[0] != 1 || res.Degraded[1] != 2 {
		t.Errorf("Degraded = %v, want [1 2]", res.Degraded)
	}
	if got := res.Extraction.Fiction.Settings; len(got) != 1 || got[0] != "Paris" {
		t.Errorf("settings = %v", got)
	}
}

func TestExtract_AbortsOnUnavailable(t *testing.T) {
	svc := completion.Func(func(context.Context, *completion.Request) (*completion.Response, error) {
		return nil, fmt.Errorf("%w: down", completion.ErrServiceUnavailable)
	})
	_, err := New(svc, newResolver(), 0.3, nil).Extract(context.Background(), Input{
		Book:     testBook(),
		Chapter:  book.Chapter{ID: "c"},
		Segments: segments("a", "b"),
		Prior:    book.FirstChapter,
	})
	if !errors.Is(err, completion.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestExtract_PartialRecordThroughAdapter(t *testing.T) {
	client := providers.NewMockClient()
	client.ResponseJSON = json.RawMessage(`{
		"characters":[{"name":"Poirot","description":"detective","actions":"boards the train"}],
		"events":[],
		"plot_developments":[],
		"settings":["Calais"],
		"tone_mood":"light",
		"extra":1
	}`)
	svc := completion.NewAdapter(client, completion.Config{MaxAttempts: 1, RepairAttempts: 2})

	res, err := New(svc, newResolver(), 0.3, nil).Extract(context.Background(), Input{
		Book:     testBook(),
		Chapter:  book.Chapter{ID: "chapter_01", Ordinal: 1, Title: "A Fellow Traveller"},
		Segments: segments("text"),
		Prior:    book.FirstChapter,
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if client.RequestCount() != 1 {
		t.Errorf("RequestCount() = %d, want 1 (no repair)", client.RequestCount())
	}
	if len(res.Degraded) != 0 {
		t.Errorf("Degraded = %v, want none", res.Degraded)
	}
	f := res.Extraction.Fiction
	if len(f.Characters) != 1 || f.Characters[0].Name != "Poirot" {
		t.Errorf("Characters = %+v", f.Characters)
	}
	if len(f.Settings) != 1 || f.Settings[0] != "Calais" || f.ToneMood != "light" {
		t.Errorf("record lost content: %+v", f)
	}
	if f.Relationships == nil || f.CluesOrForeshadowing == nil {
		t.Errorf("missing lists should default to empty, got %+v", f)
	}
}

func TestExtract_MistypedFieldKeepsSegment(t *testing.T) {
	svc := completion.Func(func(context.Context, *completion.Request) (*completion.Response, error) {
		raw := json.RawMessage(`{"characters":[{"name":"Hastings","actions":["arrives"]}],"tone_mood":"wry"}`)
		return &completion.Response{JSON: raw, Text: string(raw)}, nil
	})

	res, err := New(svc, newResolver(), 0.3, nil).Extract(context.Background(), Input{
		Book:     testBook(),
		Chapter:  book.Chapter{ID: "chapter_01", Ordinal: 1},
		Segments: segments("text"),
		Prior:    book.FirstChapter,
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(res.Degraded) != 0 {
		t.Errorf("Degraded = %v, want none", res.Degraded)
	}
	f := res.Extraction.Fiction
	if len(f.Characters) != 1 || f.Characters[0].Name != "Hastings" || f.ToneMood != "wry" {
		t.Errorf("record = %+v", f)
	}
}
