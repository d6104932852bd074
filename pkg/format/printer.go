package format

import (
	"bytes"
	"strings"

	"github.com/leapstack-labs/leaptable/pkg/parser"
	"github.com/leapstack-labs/leaptable/pkg/token"
)

// Printer accumulates formatted SQL.
type Printer struct {
	style  Style
	output *bytes.Buffer
}

func newPrinter(style Style) *Printer {
	return &Printer{
		style:  style,
		output: &bytes.Buffer{},
	}
}

// String returns the formatted output.
func (p *Printer) String() string {
	return p.output.String()
}

func (p *Printer) write(s string) {
	p.output.WriteString(s)
}

func (p *Printer) space() {
	p.output.WriteByte(' ')
}

// kw prints keywords separated by spaces.
func (p *Printer) kw(tokens ...token.TokenType) {
	for i, t := range tokens {
		if i > 0 {
			p.space()
		}
		p.write(t.String())
	}
}

// formatList prints items separated by ", ".
func formatList[T any](p *Printer, items []T, format func(T)) {
	for i, item := range items {
		if i > 0 {
			p.write(", ")
		}
		format(item)
	}
}

// identifier prints a column or table identifier. Physical identifiers are
// generated and never need quoting.
func (p *Printer) identifier(name string, quoted bool) {
	if p.style == Physical {
		p.write(name)
		return
	}
	if quoted || !isSimpleIdentifier(name) {
		p.write(quote(name, '"'))
		return
	}
	p.write(name)
}

// alias prints a user-chosen alias.
func (p *Printer) alias(name string) {
	if isSimpleIdentifier(name) {
		p.write(name)
		return
	}
	if p.style == Physical {
		p.write(quote(name, '`'))
		return
	}
	p.write(quote(name, '"'))
}

func quote(s string, q byte) string {
	qs := string(q)
	return qs + strings.ReplaceAll(s, qs, qs+qs) + qs
}

// isSimpleIdentifier reports whether name can be written unquoted.
func isSimpleIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		letter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
		if !letter && (i == 0 || c < '0' || c > '9') {
			return false
		}
	}
	return token.LookupIdent(strings.ToLower(name)) == token.IDENT
}

func (p *Printer) formatLiteral(l *parser.Literal) {
	switch l.Type {
	case parser.LiteralString:
		p.write(quote(l.Value, '\''))
	case parser.LiteralBoolean, parser.LiteralNull:
		p.write(strings.ToUpper(l.Value))
	default:
		p.write(l.Value)
	}
}
