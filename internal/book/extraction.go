package book

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMistypedField is returned with a usable record when some fields held
// the wrong JSON type. Those fields are left empty; the rest decoded.
var ErrMistypedField = errors.New("mistyped extraction field")

// Character is a fiction extraction entry; Name identifies it during merges.
type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Actions     string `json:"actions"`
}

type Event struct {
	Event        string `json:"event"`
	Significance string `json:"significance"`
}

// FictionExtraction is the structured record extracted from fiction text.
type FictionExtraction struct {
	Characters           []Character `json:"characters"`
	Events               []Event     `json:"events"`
	PlotDevelopments     []string    `json:"plot_developments"`
	Settings             []string    `json:"settings"`
	CluesOrForeshadowing []string    `json:"clues_or_foreshadowing"`
	Relationships        []string    `json:"relationships"`
	ToneMood             string      `json:"tone_mood"`
}

// Concept is a nonfiction extraction entry; Concept identifies it during merges.
type Concept struct {
	Concept    string `json:"concept"`
	Definition string `json:"definition"`
}

type Evidence struct {
	Claim    string `json:"claim"`
	Evidence string `json:"evidence"`
}

// NonfictionExtraction is the structured record extracted from nonfiction text.
type NonfictionExtraction struct {
	MainArguments        []string   `json:"main_arguments"`
	KeyConcepts          []Concept  `json:"key_concepts"`
	Evidence             []Evidence `json:"evidence"`
	CaseStudies          []string   `json:"case_studies"`
	HistoricalReferences []string   `json:"historical_references"`
	TechniquesMethods    []string   `json:"techniques_methods"`
	FiguresData          []string   `json:"figures_data"`
	Connections          []string   `json:"connections"`
}

// Extraction is the per-chapter (or per-segment) structured record.
// Exactly one of Fiction or Nonfiction is non-nil, matching Category.
type Extraction struct {
	Category   Category
	Fiction    *FictionExtraction
	Nonfiction *NonfictionExtraction
}

// EmptyExtraction returns a record with every field present and empty.
func EmptyExtraction(c Category) Extraction {
	if c == Nonfiction {
		n := &NonfictionExtraction{}
		n.normalize()
		return Extraction{Category: Nonfiction, Nonfiction: n}
	}
	f := &FictionExtraction{}
	f.normalize()
	return Extraction{Category: Fiction, Fiction: f}
}

// ParseExtraction decodes model output into the record shape for c.
// Unknown fields are ignored and missing ones are left empty. A field of
// the wrong type is dropped and reported with ErrMistypedField alongside
// the partial record; only undecodable output yields an empty record.
func ParseExtraction(c Category, raw []byte) (Extraction, error) {
	out := EmptyExtraction(c)
	var err error
	if c == Nonfiction {
		err = json.Unmarshal(raw, out.Nonfiction)
		out.Nonfiction.normalize()
	} else {
		err = json.Unmarshal(raw, out.Fiction)
		out.Fiction.normalize()
	}
	if err == nil {
		return out, nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return out, fmt.Errorf("%w: %s %s is %s, want %v", ErrMistypedField, c, typeErr.Field, typeErr.Value, typeErr.Type)
	}
	return EmptyExtraction(c), fmt.Errorf("decode %s extraction: %w", c, err)
}

// IsEmpty reports whether no field carries any content.
func (e Extraction) IsEmpty() bool {
	switch {
	case e.Fiction != nil:
		f := e.Fiction
		return len(f.Characters)+len(f.Events)+len(f.PlotDevelopments)+len(f.Settings)+
			len(f.CluesOrForeshadowing)+len(f.Relationships) == 0 && f.ToneMood == ""
	case e.Nonfiction != nil:
		n := e.Nonfiction
		return len(n.MainArguments)+len(n.KeyConcepts)+len(n.Evidence)+len(n.CaseStudies)+
			len(n.HistoricalReferences)+len(n.TechniquesMethods)+len(n.FiguresData)+len(n.Connections) == 0
	}
	return true
}

// MarshalJSON encodes only the active payload, so prompts and output files
// see the plain category record.
func (e Extraction) MarshalJSON() ([]byte, error) {
	if e.Nonfiction != nil {
		return json.Marshal(e.Nonfiction)
	}
	if e.Fiction != nil {
		return json.Marshal(e.Fiction)
	}
	return json.Marshal(EmptyExtraction(e.Category))
}

// Indented renders the record for embedding in prompts.
func (e Extraction) Indented() string {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func (f *FictionExtraction) normalize() {
	f.Characters = nonNil(f.Characters)
	f.Events = nonNil(f.Events)
	f.PlotDevelopments = nonNil(f.PlotDevelopments)
	f.Settings = nonNil(f.Settings)
	f.CluesOrForeshadowing = nonNil(f.CluesOrForeshadowing)
	f.Relationships = nonNil(f.Relationships)
}

func (n *NonfictionExtraction) normalize() {
	n.MainArguments = nonNil(n.MainArguments)
	n.KeyConcepts = nonNil(n.KeyConcepts)
	n.Evidence = nonNil(n.Evidence)
	n.CaseStudies = nonNil(n.CaseStudies)
	n.HistoricalReferences = nonNil(n.HistoricalReferences)
	n.TechniquesMethods = nonNil(n.TechniquesMethods)
	n.FiguresData = nonNil(n.FiguresData)
	n.Connections = nonNil(n.Connections)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
