package extractor

import (
	"reflect"
	"testing"

	"github.com/jackzampolin/synopsis/internal/book"
)

func fiction(f book.FictionExtraction) book.Extraction {
	return book.Extraction{Category: book.Fiction, Fiction: &f}
}

func nonfiction(n book.NonfictionExtraction) book.Extraction {
	return book.Extraction{Category: book.Nonfiction, Nonfiction: &n}
}

func TestMerge_Fiction(t *testing.T) {
	merged := Merge(book.Fiction, []book.Extraction{
		fiction(book.FictionExtraction{
			Characters: []book.Character{{Name: "Poirot", Description: "detective"}},
			Events:     []book.Event{{Event: "letter arrives"}},
			Settings:   []string{"London", "Calais", "London"},
			ToneMood:   "curious",
		}),
		fiction(book.FictionExtraction{
			Characters: []book.Character{
				{Name: "Poirot", Description: "a Belgian"},
				{Name: "Hastings", Description: "narrator"},
			},
			Events:   []book.Event{{Event: "train journey"}},
			Settings: []string{"London", "Merlinville"},
		}),
		fiction(book.FictionExtraction{
			PlotDevelopments: []string{"Renauld is found dead"},
			ToneMood:         "ominous",
		}),
	})

	f := merged.Fiction
	if len(f.Characters) != 2 || f.Characters[0].Description != "detective" || f.Characters[1].Name != "Hastings" {
		t.Errorf("characters should keep first occurrence by name, got %+v", f.Characters)
	}
	if len(f.Events) != 2 || f.Events[1].Event != "train journey" {
		t.Errorf("events should concatenate in order, got %+v", f.Events)
	}
	wantSettings := []string{"London", "Calais", "London", "Merlinville"}
	if !reflect.DeepEqual(f.Settings, wantSettings) {
		t.Errorf("settings = %v, want per-segment dedup %v", f.Settings, wantSettings)
	}
	if f.ToneMood != "ominous" {
		t.Errorf("tone = %q, want last non-empty", f.ToneMood)
	}
	if f.CluesOrForeshadowing == nil || f.Relationships == nil {
		t.Error("merged lists must be non-nil")
	}
}

func TestMerge_ToneKeepsLastNonEmpty(t *testing.T) {
	merged := Merge(book.Fiction, []book.Extraction{
		fiction(book.FictionExtraction{ToneMood: "tense"}),
		book.EmptyExtraction(book.Fiction),
	})
	if merged.Fiction.ToneMood != "tense" {
		t.Errorf("empty trailing tone should not erase earlier tone, got %q", merged.Fiction.ToneMood)
	}
}

func TestMerge_Nonfiction(t *testing.T) {
	merged := Merge(book.Nonfiction, []book.Extraction{
		nonfiction(book.NonfictionExtraction{
			MainArguments:        []string{"dreams are wish fulfilment"},
			KeyConcepts:          []book.Concept{{Concept: "condensation", Definition: "first"}},
			HistoricalReferences: []string{"Aristotle", "Artemidorus", "Aristotle"},
			TechniquesMethods:    []string{"free association", "free association"},
		}),
		nonfiction(book.NonfictionExtraction{
			MainArguments:        []string{"dreams have meaning"},
			KeyConcepts:          []book.Concept{{Concept: "condensation", Definition: "second"}, {Concept: "displacement"}},
			HistoricalReferences: []string{"Aristotle"},
			FiguresData:          []string{"1899"},
		}),
	})

	n := merged.Nonfiction
	if !reflect.DeepEqual(n.MainArguments, []string{"dreams are wish fulfilment", "dreams have meaning"}) {
		t.Errorf("main arguments = %v", n.MainArguments)
	}
	if len(n.KeyConcepts) != 2 || n.KeyConcepts[0].Definition != "first" {
		t.Errorf("key concepts should keep first definition, got %+v", n.KeyConcepts)
	}
	if !reflect.DeepEqual(n.HistoricalReferences, []string{"Aristotle", "Artemidorus", "Aristotle"}) {
		t.Errorf("historical references = %v", n.HistoricalReferences)
	}
	if !reflect.DeepEqual(n.TechniquesMethods, []string{"free association"}) {
		t.Errorf("techniques = %v", n.TechniquesMethods)
	}
	if merged.Fiction != nil {
		t.Error("nonfiction merge must not set a fiction payload")
	}
}

func TestMerge_Empty(t *testing.T) {
	if !Merge(book.Fiction, nil).IsEmpty() {
		t.Error("merging nothing should give an empty record")
	}
}
