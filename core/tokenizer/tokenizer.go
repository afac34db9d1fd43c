// Package tokenizer splits raw command lines into a command name and arguments.
package tokenizer

import (
	"strings"
	"unicode"
)

const quote = '"'

// Tokenize splits raw into tokens, treating double-quoted spans as single
// tokens. Text after an unmatched quote is dropped.
func Tokenize(raw string) []string {
	var (
		tokens  []string
		buf     strings.Builder
		inQuote bool
	)

	flush := func() {
		if token := strings.TrimSpace(buf.String()); token != "" {
			tokens = append(tokens, token)
		}
		buf.Reset()
	}

	for _, r := range raw {
		switch {
		case r == quote:
			if inQuote {
				flush()
			}
			inQuote = !inQuote
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			buf.WriteRune(r)
		}
	}

	if !inQuote {
		flush()
	}
	return tokens
}

// Split tokenizes raw and separates the command name from its arguments.
// ok is false when raw holds no command.
func Split(raw string) (name string, args []string, ok bool) {
	tokens := Tokenize(raw)
	if len(tokens) == 0 {
		return "", nil, false
	}
	return tokens[0], tokens[1:], true
}
