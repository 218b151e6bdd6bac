package extractor

import (
	"github.com/jackzampolin/synopsis/internal/book"
)

// Merge combines per-segment records in segment order:
//   - list fields concatenate
//   - characters (by name) and key concepts (by term) keep the first
//     occurrence across segments
//   - settings, historical references, and techniques are deduplicated within
//     each segment before concatenation, preserving first-seen order
//   - tone is the last non-empty value
func Merge(c book.Category, records []book.Extraction) book.Extraction {
	out := book.EmptyExtraction(c)
	if c == book.Nonfiction {
		mergeNonfiction(out.Nonfiction, records)
	} else {
		mergeFiction(out.Fiction, records)
	}
	return out
}

func mergeFiction(dst *book.FictionExtraction, records []book.Extraction) {
	seen := make(map[string]bool)
	for _, r := range records {
		f := r.Fiction
		if f == nil {
			continue
		}
		for _, ch := range f.Characters {
			if seen[ch.Name] {
				continue
			}
			seen[ch.Name] = true
			dst.Characters = append(dst.Characters, ch)
		}
		dst.Events = append(dst.Events, f.Events...)
		dst.PlotDevelopments = append(dst.PlotDevelopments, f.PlotDevelopments...)
		dst.Settings = append(dst.Settings, distinct(f.Settings)...)
		dst.CluesOrForeshadowing = append(dst.CluesOrForeshadowing, f.CluesOrForeshadowing...)
		dst.Relationships = append(dst.Relationships, f.Relationships...)
		if f.ToneMood != "" {
			dst.ToneMood = f.ToneMood
		}
	}
}

func mergeNonfiction(dst *book.NonfictionExtraction, records []book.Extraction) {
	seen := make(map[string]bool)
	for _, r := range records {
		n := r.Nonfiction
		if n == nil {
			continue
		}
		dst.MainArguments = append(dst.MainArguments, n.MainArguments...)
		for _, kc := range n.KeyConcepts {
			if seen[kc.Concept] {
				continue
			}
			seen[kc.Concept] = true
			dst.KeyConcepts = append(dst.KeyConcepts, kc)
		}
		dst.Evidence = append(dst.Evidence, n.Evidence...)
		dst.CaseStudies = append(dst.CaseStudies, n.CaseStudies...)
		dst.HistoricalReferences = append(dst.HistoricalReferences, distinct(n.HistoricalReferences)...)
		dst.TechniquesMethods = append(dst.TechniquesMethods, distinct(n.TechniquesMethods)...)
		dst.FiguresData = append(dst.FiguresData, n.FiguresData...)
		dst.Connections = append(dst.Connections, n.Connections...)
	}
}

// distinct drops repeats, keeping first-seen order.
func distinct(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
