// internal/remote/budget.go
package remote

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// CaptionBudget trims captions to a token budget so the extraction service
// never sees more text than its context window allows.
type CaptionBudget struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
}

// NewCaptionBudget creates a budget of maxTokens tokens.
func NewCaptionBudget(maxTokens int) (*CaptionBudget, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("get tokenizer: %w", err)
	}
	return &CaptionBudget{
		tokenizer: enc,
		maxTokens: maxTokens,
	}, nil
}

// Count returns the token count for a string.
func (b *CaptionBudget) Count(text string) int {
	return len(b.tokenizer.Encode(text, nil, nil))
}

// Trim cuts text down to the budget on a token boundary. Text already
// within budget comes back unchanged.
func (b *CaptionBudget) Trim(text string) string {
	tokens := b.tokenizer.Encode(text, nil, nil)
	if len(tokens) <= b.maxTokens {
		return text
	}
	return strings.TrimSpace(b.tokenizer.Decode(tokens[:b.maxTokens]))
}
