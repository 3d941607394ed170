package telegram

import "unicode/utf8"

// MaxMessageLength is Telegram's hard limit for a single text message.
const MaxMessageLength = 4096

// SplitMessage splits text into ordered chunks no longer than limit
// bytes. It prefers breaking on a newline when one falls in the last 20%
// of the chunk, so lines are not cut mid-way, and never breaks inside a
// multi-byte rune. Concatenating the chunks yields the original text
// unchanged.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	if len(text) <= limit {
		return []string{text}
	}

	chunks := make([]string, 0, len(text)/limit+1)
	remaining := text
	for len(remaining) > limit {
		cut := limit
		if idx := lastNewline(remaining[:limit]); idx > limit*4/5 {
			cut = idx + 1
		} else {
			for cut > 0 && !utf8.RuneStart(remaining[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		chunks = append(chunks, remaining[:cut])
		remaining = remaining[cut:]
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}

func lastNewline(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return i
		}
	}
	return -1
}
