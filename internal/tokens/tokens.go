// Package tokens measures text length in model tokens and words.
package tokens

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter reports the model-token length of text.
// Implementations must be deterministic and safe for concurrent use.
type Counter interface {
	Count(text string) int
	Name() string
}

const (
	KindTiktoken = "tiktoken"
	KindEstimate = "estimate"
	KindWords    = "words"

	// DefaultModel selects the tokenizer when none is configured.
	DefaultModel = "gpt-4o"
)

// New returns the counter named by kind.
func New(kind, model string) (Counter, error) {
	switch kind {
	case "", KindTiktoken:
		return NewTiktokenCounter(model)
	case KindEstimate:
		return EstimateCounter{}, nil
	case KindWords:
		return WordCounter{}, nil
	default:
		return nil, fmt.Errorf("unknown tokenizer: %s", kind)
	}
}

// Words counts whitespace-delimited words.
func Words(text string) int {
	return len(strings.Fields(text))
}

// TiktokenCounter counts tokens with the BPE encoding of an OpenAI model.
type TiktokenCounter struct {
	mu    sync.Mutex
	enc   *tiktoken.Tiktoken
	model string
}

// NewTiktokenCounter loads the encoding for model, falling back to
// o200k_base for models tiktoken does not know.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	if model == "" {
		model = DefaultModel
	}
	// Provider-prefixed names ("openai/gpt-4o") resolve by their bare model.
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("o200k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to load tokenizer for %s: %w", model, err)
		}
	}
	return &TiktokenCounter{enc: enc, model: model}, nil
}

// Count returns the number of BPE tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.enc.Encode(text, nil, nil))
}

func (c *TiktokenCounter) Name() string {
	return KindTiktoken + ":" + c.model
}

// EstimateCounter approximates tokens as one per four characters.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	if t := n / 4; t > 0 {
		return t
	}
	return 1
}

func (EstimateCounter) Name() string { return KindEstimate }

// WordCounter treats each whitespace-delimited word as one token.
type WordCounter struct{}

func (WordCounter) Count(text string) int { return Words(text) }

func (WordCounter) Name() string { return KindWords }
