package references

import "strings"

// Kind classifies a segment of message text.
type Kind string

const (
	KindText             Kind = "text"
	KindModalCitation    Kind = "modalCitation"
	KindExternalCitation Kind = "externalCitation"
)

// Token is one segment of tokenized message text. Tokens are produced on
// every render pass and never stored.
type Token struct {
	Kind      Kind   `json:"kind" yaml:"kind"`
	Literal   string `json:"literal" yaml:"literal"`
	ArticleID string `json:"article_id,omitempty" yaml:"article_id,omitempty"`
}

func (t Token) IsCitation() bool {
	return t.Kind == KindModalCitation || t.Kind == KindExternalCitation
}

// Label is the text shown for the token. Modal citations display a
// generated label instead of their bracketed literal.
func (t Token) Label() string {
	if t.Kind == KindModalCitation {
		return "Article " + t.ArticleID
	}
	return t.Literal
}

// Join concatenates token literals, reconstructing the tokenized input.
func Join(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Literal)
	}
	return b.String()
}

// ModalCitations returns the distinct article ids of modal citations in
// order of first appearance.
func ModalCitations(tokens []Token) []string {
	var ids []string
	seen := map[string]struct{}{}
	for _, t := range tokens {
		if t.Kind != KindModalCitation {
			continue
		}
		if _, ok := seen[t.ArticleID]; ok {
			continue
		}
		seen[t.ArticleID] = struct{}{}
		ids = append(ids, t.ArticleID)
	}
	return ids
}
