package budget

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
		{"روبوٹکس", 1}, // 7 runes, 14 bytes
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateMessages(t *testing.T) {
	t.Parallel()
	msgs := []*schema.Message{
		schema.SystemMessage("hello world"),
		schema.UserMessage("hello world"),
	}
	got := EstimateMessages(msgs)
	// system: 4 + Estimate("system")=1 + 2 = 7; user: 4 + 1 + 2 = 7.
	if got != 14 {
		t.Errorf("EstimateMessages = %d, want 14", got)
	}
}

func Test_TrimPassages(t *testing.T) {
	t.Parallel()

	p40 := strings.Repeat("a", 40) // 10 tokens
	cases := []struct {
		name      string
		passages  []string
		maxTokens int
		want      int
	}{
		{"fits", []string{p40, p40, p40}, 100, 3},
		{"exact fit", []string{p40, p40, p40}, 32, 3},
		{"drops tail", []string{p40, p40, p40}, 25, 2},
		{"first always kept", []string{strings.Repeat("b", 400), p40}, 10, 1},
		{"disabled", []string{p40, p40}, 0, 2},
		{"empty", nil, 10, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := TrimPassages(tc.passages, tc.maxTokens)
			if len(got) != tc.want {
				t.Errorf("TrimPassages kept %d passages, want %d", len(got), tc.want)
			}
		})
	}
}

func Test_TrimPassages_PreservesOrder(t *testing.T) {
	t.Parallel()
	in := []string{"first passage", "second passage", strings.Repeat("z", 4000)}
	got := TrimPassages(in, 20)
	if len(got) != 2 || got[0] != "first passage" || got[1] != "second passage" {
		t.Errorf("unexpected trim result: %q", got)
	}
}
