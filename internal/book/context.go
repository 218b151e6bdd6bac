package book

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// NoPriorContext is shown to the context updater before the first chapter.
	NoPriorContext = "No prior context."

	// FirstChapter is shown to extraction and summary before the first chapter.
	FirstChapter = "This is the first chapter."

	// NoThemes is shown to analysis when no themes have been identified.
	NoThemes = "No themes identified yet."
)

// ErrIncompleteContext is returned when a context record lacks its narrative field.
var ErrIncompleteContext = errors.New("rolling context is missing its narrative summary")

// FictionContext is the rolling state of a novel.
type FictionContext struct {
	StorySoFar        string   `json:"story_so_far"`
	ActiveCharacters  []string `json:"active_characters"`
	UnresolvedThreads []string `json:"unresolved_threads"`
	ThemesIdentified  []string `json:"themes_identified"`
	KeyFacts          []string `json:"key_facts"`
}

// NonfictionContext is the rolling state of an argument.
type NonfictionContext struct {
	ArgumentSoFar      string   `json:"argument_so_far"`
	KeyConceptsDefined []string `json:"key_concepts_defined"`
	EvidencePresented  []string `json:"evidence_presented"`
	ThemesIdentified   []string `json:"themes_identified"`
	KeyFacts           []string `json:"key_facts"`
}

// RollingContext is the compact state carried between chapters.
// The zero value (for a category) is the empty context used before chapter one.
type RollingContext struct {
	Category   Category
	Fiction    *FictionContext
	Nonfiction *NonfictionContext
}

// EmptyContext returns the context used before the first chapter.
func EmptyContext(c Category) RollingContext {
	return RollingContext{Category: c}
}

// ParseRollingContext strictly decodes a context record produced by the model.
func ParseRollingContext(c Category, raw []byte) (RollingContext, error) {
	out := RollingContext{Category: c}
	if c == Nonfiction {
		var n NonfictionContext
		if err := json.Unmarshal(raw, &n); err != nil {
			return RollingContext{}, fmt.Errorf("decode %s context: %w", c, err)
		}
		if strings.TrimSpace(n.ArgumentSoFar) == "" {
			return RollingContext{}, fmt.Errorf("%w: argument_so_far", ErrIncompleteContext)
		}
		n.normalize()
		out.Nonfiction = &n
		return out, nil
	}

	var f FictionContext
	if err := json.Unmarshal(raw, &f); err != nil {
		return RollingContext{}, fmt.Errorf("decode %s context: %w", c, err)
	}
	if strings.TrimSpace(f.StorySoFar) == "" {
		return RollingContext{}, fmt.Errorf("%w: story_so_far", ErrIncompleteContext)
	}
	f.normalize()
	out.Fiction = &f
	return out, nil
}

// IsEmpty reports whether no chapter has contributed to the context yet.
func (rc RollingContext) IsEmpty() bool {
	return rc.Fiction == nil && rc.Nonfiction == nil
}

// Narrative returns story_so_far or argument_so_far.
func (rc RollingContext) Narrative() string {
	switch {
	case rc.Fiction != nil:
		return rc.Fiction.StorySoFar
	case rc.Nonfiction != nil:
		return rc.Nonfiction.ArgumentSoFar
	}
	return ""
}

// Themes returns the themes identified so far.
func (rc RollingContext) Themes() []string {
	switch {
	case rc.Fiction != nil:
		return rc.Fiction.ThemesIdentified
	case rc.Nonfiction != nil:
		return rc.Nonfiction.ThemesIdentified
	}
	return nil
}

// ThemesSoFar is the comma-joined theme list, or NoThemes.
func (rc RollingContext) ThemesSoFar() string {
	if themes := rc.Themes(); len(themes) > 0 {
		return strings.Join(themes, ", ")
	}
	return NoThemes
}

// MarshalJSON encodes the active payload. An empty context encodes as {}.
func (rc RollingContext) MarshalJSON() ([]byte, error) {
	switch {
	case rc.Fiction != nil:
		return json.Marshal(rc.Fiction)
	case rc.Nonfiction != nil:
		return json.Marshal(rc.Nonfiction)
	}
	return []byte("{}"), nil
}

// Serialize renders the context deterministically for prompts. Field order
// follows the struct declaration, so identical contexts produce identical text.
func (rc RollingContext) Serialize() string {
	if rc.IsEmpty() {
		return NoPriorContext
	}
	data, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return NoPriorContext
	}
	return string(data)
}

// PriorContext is the text handed to extraction and summary prompts.
func (rc RollingContext) PriorContext() string {
	if rc.IsEmpty() {
		return FirstChapter
	}
	return rc.Serialize()
}

func (f *FictionContext) normalize() {
	f.ActiveCharacters = nonNil(f.ActiveCharacters)
	f.UnresolvedThreads = nonNil(f.UnresolvedThreads)
	f.ThemesIdentified = nonNil(f.ThemesIdentified)
	f.KeyFacts = nonNil(f.KeyFacts)
}

func (n *NonfictionContext) normalize() {
	n.KeyConceptsDefined = nonNil(n.KeyConceptsDefined)
	n.EvidencePresented = nonNil(n.EvidencePresented)
	n.ThemesIdentified = nonNil(n.ThemesIdentified)
	n.KeyFacts = nonNil(n.KeyFacts)
}
