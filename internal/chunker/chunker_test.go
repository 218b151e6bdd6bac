package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jackzampolin/synopsis/internal/tokens"
)

// paragraph returns a paragraph of n distinct words.
func paragraph(tag string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("%s%d", tag, i)
	}
	return strings.Join(words, " ")
}

func TestChunk_FitsInOneSegment(t *testing.T) {
	texts := []string{
		"",
		"single paragraph",
		"first paragraph\n\nsecond paragraph\n\n\n\nafter an empty one",
	}
	for _, text := range texts {
		segs := Chunk(text, 100, tokens.WordCounter{})
		if len(segs) != 1 {
			t.Fatalf("Chunk(%q) returned %d segments, want 1", text, len(segs))
		}
		if segs[0].Text != text {
			t.Errorf("segment text = %q, want %q", segs[0].Text, text)
		}
	}
}

func TestChunk_SplitsOnParagraphs(t *testing.T) {
	// Five 50-word paragraphs against a 100-token limit: 2.5x the limit.
	var paras []string
	for i := 0; i < 5; i++ {
		paras = append(paras, paragraph(fmt.Sprintf("p%d_", i), 50))
	}
	text := strings.Join(paras, ParagraphSeparator)

	segs := Chunk(text, 100, tokens.WordCounter{})
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	wantParas := []int{2, 2, 1}
	for i, s := range segs {
		if s.Index != i {
			t.Errorf("segment %d has Index %d", i, s.Index)
		}
		if s.Paragraphs != wantParas[i] {
			t.Errorf("segment %d has %d paragraphs, want %d", i, s.Paragraphs, wantParas[i])
		}
		if s.Tokens > 100 {
			t.Errorf("segment %d has %d tokens, over the limit", i, s.Tokens)
		}
	}
	if Join(segs) != text {
		t.Error("joined segments do not reconstruct the original text")
	}
}

func TestChunk_OversizedParagraphKeptWhole(t *testing.T) {
	big := paragraph("big", 150)
	text := strings.Join([]string{paragraph("a", 10), big, paragraph("b", 10)}, ParagraphSeparator)

	segs := Chunk(text, 100, tokens.WordCounter{})
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	if segs[1].Text != big {
		t.Error("oversized paragraph should be its own segment")
	}
	if segs[1].Tokens != 150 {
		t.Errorf("oversized segment tokens = %d, want 150", segs[1].Tokens)
	}
	if Join(segs) != text {
		t.Error("joined segments do not reconstruct the original text")
	}
}

func TestChunk_Deterministic(t *testing.T) {
	var paras []string
	for i := 0; i < 12; i++ {
		paras = append(paras, paragraph("w", 7+i*3))
	}
	text := strings.Join(paras, ParagraphSeparator)

	first := Chunk(text, 40, tokens.EstimateCounter{})
	second := Chunk(text, 40, tokens.EstimateCounter{})
	if len(first) != len(second) {
		t.Fatalf("segment counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("segment %d differs between runs", i)
		}
	}
	if Join(first) != text {
		t.Error("joined segments do not reconstruct the original text")
	}
}

func TestChunk_DefaultLimit(t *testing.T) {
	segs := Chunk("a few words", 0, tokens.WordCounter{})
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
}
