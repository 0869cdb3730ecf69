// Package budget provides token estimation and context trimming for prompts
// sent to the language model. Because several LLM backends with different
// tokenizers are supported, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters. Characters are counted as runes so
// non-Latin scripts are not over-estimated by their UTF-8 byte length.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default budget for retrieved context,
	// matching the MAX_CONTEXT_LENGTH default.
	DefaultMaxContextTokens = 4000

	// separatorTokens is the cost charged for the blank line between passages.
	separatorTokens = 1
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	runes := utf8.RuneCountInString(s)
	n := runes / charsPerToken
	if n == 0 && runes > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimPassages returns the longest prefix of passages whose estimated size,
// including one separator per gap, fits within maxTokens. Passages are kept
// whole and in rank order. The first passage is always kept so a single
// oversized hit still reaches the model. A non-positive maxTokens disables
// trimming.
func TrimPassages(passages []string, maxTokens int) []string {
	if maxTokens <= 0 || len(passages) <= 1 {
		return passages
	}

	used := Estimate(passages[0])
	for i := 1; i < len(passages); i++ {
		cost := separatorTokens + Estimate(passages[i])
		if used+cost > maxTokens {
			return passages[:i]
		}
		used += cost
	}
	return passages
}
