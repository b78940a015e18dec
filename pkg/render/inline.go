package render

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark/util"
)

// Markup produces the output form of each inline construct.
type Markup interface {
	Escape(s string) string
	Strong(s string) string
	Emphasis(s string) string
	Code(s string) string
	LineBreak() string
}

type inlineRule struct {
	re    *regexp.Regexp
	apply func(m Markup, inner string) string
}

// Bold markers have to be consumed before the single-character italic
// markers, otherwise "**a**" would come out as nested emphasis.
var inlineRules = []inlineRule{
	{regexp.MustCompile(`\*\*(.*?)\*\*`), Markup.Strong},
	{regexp.MustCompile(`__(.*?)__`), Markup.Strong},
	{regexp.MustCompile(`\*(.*?)\*`), Markup.Emphasis},
	{regexp.MustCompile(`_(.*?)_`), Markup.Emphasis},
	{regexp.MustCompile("`(.*?)`"), Markup.Code},
}

// Formatter applies the inline markdown subset to plain text segments.
// It must never see citation literals.
type Formatter struct {
	Markup Markup
}

func NewHTMLFormatter() *Formatter {
	return &Formatter{Markup: HTMLMarkup{}}
}

func (f *Formatter) Format(text string) string {
	m := f.Markup
	if m == nil {
		m = HTMLMarkup{}
	}
	out := m.Escape(text)
	for _, rule := range inlineRules {
		re, apply := rule.re, rule.apply
		out = re.ReplaceAllStringFunc(out, func(match string) string {
			sub := re.FindStringSubmatch(match)
			return apply(m, sub[1])
		})
	}
	return strings.ReplaceAll(out, "\n", m.LineBreak())
}

// HTMLMarkup emits HTML fragments. Text is escaped before any markers are
// substituted.
type HTMLMarkup struct{}

func (HTMLMarkup) Escape(s string) string   { return string(util.EscapeHTML([]byte(s))) }
func (HTMLMarkup) Strong(s string) string   { return "<strong>" + s + "</strong>" }
func (HTMLMarkup) Emphasis(s string) string { return "<em>" + s + "</em>" }
func (HTMLMarkup) Code(s string) string     { return "<code>" + s + "</code>" }
func (HTMLMarkup) LineBreak() string        { return "<br />" }
