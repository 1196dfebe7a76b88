package logql

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenize scans text left to right and classifies every character. It is
// used for presentation only and never fails: unknown characters become
// PlainText or Whitespace tokens.
func Tokenize(text string) []Token {
	var tokens []Token
	i := 0
	for i < len(text) {
		ch := text[i]
		switch {
		case ch == '{' || ch == '}':
			tokens = append(tokens, Token{Text: text[i : i+1], Kind: Brace})
			i++
			continue
		case ch == '"':
			end := scanQuoted(text, i, '"', true)
			tokens = append(tokens, Token{Text: text[i:end], Kind: StringLiteral})
			i = end
			continue
		case ch == '`':
			end := scanQuoted(text, i, '`', false)
			tokens = append(tokens, Token{Text: text[i:end], Kind: StringLiteral})
			i = end
			continue
		case ch == ',':
			tokens = append(tokens, Token{Text: ",", Kind: Comma})
			i++
			continue
		}

		if n := operatorLen(text[i:]); n > 0 {
			tokens = append(tokens, Token{Text: text[i : i+n], Kind: Operator})
			i += n
			continue
		}

		if end := scanWord(text, i); end > i {
			word := text[i:end]
			tokens = append(tokens, Token{Text: word, Kind: classifyWord(word, text[end:])})
			i = end
			continue
		}

		r, size := utf8.DecodeRuneInString(text[i:])
		kind := PlainText
		if r != utf8.RuneError && unicode.IsSpace(r) {
			kind = Whitespace
		}
		tokens = append(tokens, Token{Text: text[i : i+size], Kind: kind})
		i += size
	}
	return tokens
}

// scanQuoted returns the end offset (exclusive) of the literal starting at
// start. An unterminated literal runs to the end of the input.
func scanQuoted(text string, start int, delim byte, escapes bool) int {
	for j := start + 1; j < len(text); j++ {
		if escapes && text[j] == '\\' {
			j++
			continue
		}
		if text[j] == delim {
			return j + 1
		}
	}
	return len(text)
}

func operatorLen(s string) int {
	for _, op := range twoCharOperators {
		if strings.HasPrefix(s, op) {
			return 2
		}
	}
	if s[0] == '=' || s[0] == '|' {
		return 1
	}
	return 0
}

// scanWord matches [\w.]+ starting at start.
func scanWord(text string, start int) int {
	j := start
	for j < len(text) && (isWordByte(text[j]) || text[j] == '.') {
		j++
	}
	return j
}

func classifyWord(word, rest string) TokenKind {
	if pipeKeywords[strings.ToLower(word)] {
		return PipeKeyword
	}
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	if rest != "" && strings.ContainsRune("=!~", rune(rest[0])) {
		return LabelKey
	}
	return PlainText
}

func isWordByte(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
