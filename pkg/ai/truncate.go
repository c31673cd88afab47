package ai

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const truncationMarker = "\n[... middle of document omitted ...]\n"

// Truncate bounds text to at most budget tokens. When the text exceeds the
// budget it keeps the head and the tail and drops the middle, so header
// metadata and concluding statements both survive. A budget <= 0 returns
// the text unchanged.
//
// Token counting uses the o200k_base encoding; when the encoding cannot be
// loaded the function falls back to an approximate character budget of
// four characters per token.
func Truncate(text string, budget int) string {
	if budget <= 0 {
		return text
	}

	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return truncateChars(text, budget*4)
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}

	head := budget * 2 / 3
	tail := budget - head
	return enc.Decode(tokens[:head]) + truncationMarker + enc.Decode(tokens[len(tokens)-tail:])
}

func truncateChars(text string, budget int) string {
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	head := budget * 2 / 3
	tail := budget - head
	return string(runes[:head]) + truncationMarker + string(runes[len(runes)-tail:])
}

// TokenCount returns the number of o200k_base tokens in text, or an
// approximate count when the encoding cannot be loaded.
func TokenCount(text string) int {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// strip fences like ```json ... ``` that some models wrap around output
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		first := strings.TrimSpace(s[:i])
		if first == "json" || first == "JSON" || first == "" {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
