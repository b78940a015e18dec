package references

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rule recognizes one citation grammar anchored at a byte offset.
// Match receives the full text so rules can inspect what precedes pos.
type Rule interface {
	Kind() Kind
	Match(text string, pos int) (end int, articleID string, ok bool)
}

// Lexer scans text left to right. At every offset the rules are tried in
// order and the first one that matches wins; unmatched runes accumulate
// into text tokens.
type Lexer struct {
	Rules []Rule
}

// DefaultLexer knows the bracketed modal form and the hash external form.
var DefaultLexer = &Lexer{Rules: []Rule{ModalRule{}, ExternalRule{}}}

// Tokenize splits text with the default rules.
func Tokenize(text string) []Token {
	return DefaultLexer.Tokenize(text)
}

func (l *Lexer) Tokenize(text string) []Token {
	tokens := make([]Token, 0, 1)
	textStart := 0
	pos := 0
	for pos < len(text) {
		kind, end, id, ok := l.matchAt(text, pos)
		if !ok {
			_, size := utf8.DecodeRuneInString(text[pos:])
			pos += size
			continue
		}
		if pos > textStart {
			tokens = append(tokens, Token{Kind: KindText, Literal: text[textStart:pos]})
		}
		tokens = append(tokens, Token{Kind: kind, Literal: text[pos:end], ArticleID: id})
		pos = end
		textStart = end
	}
	if textStart < len(text) || len(tokens) == 0 {
		tokens = append(tokens, Token{Kind: KindText, Literal: text[textStart:]})
	}
	return tokens
}

func (l *Lexer) matchAt(text string, pos int) (Kind, int, string, bool) {
	for _, r := range l.Rules {
		if end, id, ok := r.Match(text, pos); ok && end > pos {
			return r.Kind(), end, id, true
		}
	}
	return "", 0, "", false
}

// ModalRule matches "[123]", "[Article 123]", "[ID: 123]" and
// "[Article ID: 123]". Both keywords are case-insensitive.
type ModalRule struct{}

func (ModalRule) Kind() Kind { return KindModalCitation }

func (ModalRule) Match(text string, pos int) (int, string, bool) {
	if pos >= len(text) || text[pos] != '[' {
		return 0, "", false
	}
	i := pos + 1
	if hasPrefixFold(text[i:], "article") {
		i = skipSpace(text, i+len("article"))
	}
	if hasPrefixFold(text[i:], "ID:") {
		i = skipSpace(text, i+len("ID:"))
	}
	digitsStart := i
	i = skipDigits(text, i)
	if i == digitsStart || i >= len(text) || text[i] != ']' {
		return 0, "", false
	}
	return i + 1, text[digitsStart:i], true
}

// ExternalRule matches "Article #123" or "article#123" starting at a word
// boundary. The literal keeps the original spelling.
type ExternalRule struct{}

func (ExternalRule) Kind() Kind { return KindExternalCitation }

func (ExternalRule) Match(text string, pos int) (int, string, bool) {
	if pos > 0 && isWordByte(text[pos-1]) {
		return 0, "", false
	}
	rest := text[pos:]
	if !strings.HasPrefix(rest, "Article") && !strings.HasPrefix(rest, "article") {
		return 0, "", false
	}
	i := skipSpace(text, pos+len("article"))
	if i >= len(text) || text[i] != '#' {
		return 0, "", false
	}
	digitsStart := i + 1
	i = skipDigits(text, digitsStart)
	if i == digitsStart {
		return 0, "", false
	}
	return i, text[digitsStart:i], true
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func skipSpace(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

func skipDigits(text string, i int) int {
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	return i
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
