package render

import (
	"net/url"
	"strings"

	"github.com/go-go-golems/helpdesk-chat/pkg/references"
)

// ModalHandler is invoked synchronously with the article id when a modal
// citation is activated by the host UI.
type ModalHandler func(articleID string)

// ArticleURL resolves an external citation to {base}/{id}. It returns ""
// when no base is configured.
func ArticleURL(base, articleID string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" || articleID == "" {
		return ""
	}
	return base + "/" + url.PathEscape(articleID)
}

// HTMLRenderer turns assistant text into an HTML fragment.
type HTMLRenderer struct {
	ExternalBaseURL string
	Lexer           *references.Lexer
	Formatter       *Formatter
}

func NewHTMLRenderer(externalBaseURL string) *HTMLRenderer {
	return &HTMLRenderer{ExternalBaseURL: externalBaseURL, Formatter: NewHTMLFormatter()}
}

func (r *HTMLRenderer) Render(text string) string {
	lexer := r.Lexer
	if lexer == nil {
		lexer = references.DefaultLexer
	}
	f := r.Formatter
	if f == nil {
		f = NewHTMLFormatter()
	}
	esc := HTMLMarkup{}.Escape

	var b strings.Builder
	for _, t := range lexer.Tokenize(text) {
		switch t.Kind {
		case references.KindText:
			b.WriteString(f.Format(t.Literal))
		case references.KindModalCitation:
			b.WriteString(`<button type="button" class="article-citation" data-article-id="`)
			b.WriteString(esc(t.ArticleID))
			b.WriteString(`">`)
			b.WriteString(esc(t.Label()))
			b.WriteString(`</button>`)
		case references.KindExternalCitation:
			href := ArticleURL(r.ExternalBaseURL, t.ArticleID)
			if href == "" {
				b.WriteString(esc(t.Literal))
				continue
			}
			b.WriteString(`<a href="`)
			b.WriteString(esc(href))
			b.WriteString(`" target="_blank" rel="noopener noreferrer">`)
			b.WriteString(esc(t.Literal))
			b.WriteString(`</a>`)
		default:
			b.WriteString(esc(t.Literal))
		}
	}
	return b.String()
}
