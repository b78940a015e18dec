package render

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/go-go-golems/helpdesk-chat/pkg/references"
)

// Styles groups the lipgloss styles used for terminal output.
type Styles struct {
	Strong        lipgloss.Style
	Emphasis      lipgloss.Style
	Code          lipgloss.Style
	ModalCitation lipgloss.Style
	ExternalLink  lipgloss.Style
	URL           lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Strong:        lipgloss.NewStyle().Bold(true),
		Emphasis:      lipgloss.NewStyle().Italic(true),
		Code:          lipgloss.NewStyle().Foreground(lipgloss.Color("#E6DB74")).Background(lipgloss.Color("#272822")),
		ModalCitation: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("62")).Bold(true),
		ExternalLink:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true),
		URL:           lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}

// TerminalMarkup renders inline markdown with lipgloss styles.
type TerminalMarkup struct {
	Styles Styles
}

func (TerminalMarkup) Escape(s string) string     { return s }
func (t TerminalMarkup) Strong(s string) string   { return t.Styles.Strong.Render(s) }
func (t TerminalMarkup) Emphasis(s string) string { return t.Styles.Emphasis.Render(s) }
func (t TerminalMarkup) Code(s string) string     { return t.Styles.Code.Render(s) }
func (TerminalMarkup) LineBreak() string          { return "\n" }

// TerminalRenderer renders assistant text for a terminal. Modal citations
// become numbered badges so a TUI can offer "/open N".
type TerminalRenderer struct {
	ExternalBaseURL string
	Styles          Styles
	Lexer           *references.Lexer
}

func NewTerminalRenderer(externalBaseURL string) *TerminalRenderer {
	return &TerminalRenderer{ExternalBaseURL: externalBaseURL, Styles: DefaultStyles()}
}

func (r *TerminalRenderer) Render(text string) string {
	lexer := r.Lexer
	if lexer == nil {
		lexer = references.DefaultLexer
	}
	tokens := lexer.Tokenize(text)
	numbers := map[string]int{}
	for i, id := range references.ModalCitations(tokens) {
		numbers[id] = i + 1
	}

	f := &Formatter{Markup: TerminalMarkup{Styles: r.Styles}}
	var b strings.Builder
	for _, t := range tokens {
		switch t.Kind {
		case references.KindModalCitation:
			b.WriteString(r.Styles.ModalCitation.Render("[" + t.Label() + "]"))
			b.WriteString(r.Styles.URL.Render(superscript(numbers[t.ArticleID])))
		case references.KindExternalCitation:
			b.WriteString(r.Styles.ExternalLink.Render(t.Literal))
			if u := ArticleURL(r.ExternalBaseURL, t.ArticleID); u != "" {
				b.WriteString(r.Styles.URL.Render(" (" + u + ")"))
			}
		case references.KindText:
			b.WriteString(f.Format(t.Literal))
		default:
			b.WriteString(t.Literal)
		}
	}
	return b.String()
}

func superscript(n int) string {
	if n <= 0 {
		return ""
	}
	digits := []rune("⁰¹²³⁴⁵⁶⁷⁸⁹")
	var out []rune
	for _, c := range strconv.Itoa(n) {
		out = append(out, digits[c-'0'])
	}
	return string(out)
}
