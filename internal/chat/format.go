package chat

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	snippetMax     = 40
	snippetKeep    = 37
	separatorAfter = 5 * time.Minute
)

// DisplayName is the phone part of a conversation key such as
// "5511999998888@s.whatsapp.net".
func DisplayName(key string) string {
	if key == "" {
		return "..."
	}
	name, _, _ := strings.Cut(key, "@")
	return name
}

// Phone is DisplayName without the placeholder for empty keys.
func Phone(key string) string {
	name, _, _ := strings.Cut(key, "@")
	return name
}

// Preview shortens a snippet for the conversation list.
func Preview(snippet string) string {
	if snippet == "" {
		return "Clique para ver as mensagens"
	}
	if utf8.RuneCountInString(snippet) <= snippetMax {
		return snippet
	}
	return string([]rune(snippet)[:snippetKeep]) + "..."
}

// NeedsSeparator reports whether a timestamp separator goes before turns[i].
func NeedsSeparator(turns []ChatTurn, i int) bool {
	if i == 0 {
		return true
	}
	return turns[i].Timestamp.Sub(turns[i-1].Timestamp) > separatorAfter
}
