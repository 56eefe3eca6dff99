package termwise

import (
	"fmt"
	"runtime"
	"strings"
	"unicode/utf8"
)

var languageNames = map[string]string{
	"en": "English",
	"zh": "Chinese",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"ja": "Japanese",
	"ko": "Korean",
	"pt": "Portuguese",
	"ru": "Russian",
	"it": "Italian",
}

// languageName maps a language tag to its English name. Unknown tags are
// passed through so a model can still make sense of them.
func languageName(tag string) string {
	base, _, _ := strings.Cut(strings.ToLower(tag), "-")
	if name, ok := languageNames[base]; ok {
		return name
	}
	return tag
}

func commandSystemPrompt(lang string) string {
	return fmt.Sprintf(`You are a terminal assistant running on %s.
Translate the user's request into a single shell command.
Reply with the command only: no explanation, no markdown.
If the request is ambiguous, choose the most common interpretation.
If you must add a note, write it as a shell comment in %s.`,
		runtime.GOOS, languageName(lang))
}

func interpretSystemPrompt(lang string) string {
	return fmt.Sprintf(`You are a terminal assistant running on %s.
Explain the output of a shell command to the user in %s.
Be brief. Point out errors and suggest a fix when one is obvious.`,
		runtime.GOOS, languageName(lang))
}

// interpretPrompt renders the user message for an output interpretation.
// The result is deterministic so identical runs share a cache entry.
func interpretPrompt(command, output string) string {
	var b strings.Builder
	if command != "" {
		b.WriteString("Command:\n")
		b.WriteString(command)
		b.WriteString("\n\n")
	}
	b.WriteString("Output:\n")
	b.WriteString(output)
	return b.String()
}

// truncateOutput keeps the last limit bytes of s, since errors usually show
// up at the end. The cut is moved forward to a rune boundary. limit <= 0
// disables truncation.
func truncateOutput(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := len(s) - limit
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return "[...truncated]\n" + s[cut:]
}

// cleanCommand strips markdown code fences and a leading prompt sign from a
// model reply.
func cleanCommand(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// Drop the info string (e.g. "bash") on the opening fence.
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "`") && strings.HasSuffix(s, "`") && len(s) > 1 {
		s = strings.Trim(s, "`")
	}
	s = strings.TrimPrefix(s, "$ ")
	return strings.TrimSpace(s)
}
