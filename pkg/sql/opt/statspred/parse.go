// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package statspred

import (
	"strconv"
	"strings"
	"text/scanner"

	"github.com/cockroachdb/cardest/pkg/sql/opt"
	"github.com/cockroachdb/cardest/pkg/sql/sem/tree"
	"github.com/cockroachdb/cardest/pkg/sql/types"
	"github.com/cockroachdb/errors"
)

// Parse parses the text form of a predicate. The grammar is a small subset of
// SQL scalar expressions in which columns are written as @<id>:
//
//	pred    = and { OR and }
//	and     = unary { AND unary }
//	unary   = NOT unary | '(' pred ')' | cmp
//	cmp     = operand op operand
//	        | col [ NOT ] IN '(' literal { ',' literal } ')'
//	        | col LIKE string [ SELECTIVITY number ]
//	        | UNSUPPORTED '(' col { ',' col } ')' [ SELECTIVITY number ]
//	operand = col | literal
//	literal = [ '-' ] number | string [ '::' type ] | TRUE | FALSE | NULL
//
// A comparison between two columns is a Join. Keywords are case-insensitive.
// For example:
//
//	@1 < 35 AND (@2 = 'a' OR @2 IN ('b', 'c'))
func Parse(s string) (Pred, error) {
	var p parser
	p.init(s)
	pred, err := p.parse()
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %q", s)
	}
	return pred, nil
}

// MustParse is like Parse but panics on error. It is intended for tests.
func MustParse(s string) Pred {
	pred, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return pred
}

type parser struct {
	s   scanner.Scanner
	tok rune
	lit string
	err error
}

func (p *parser) init(src string) {
	p.s.Init(strings.NewReader(src))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats
	p.s.Error = func(s *scanner.Scanner, msg string) {
		p.setErr(errors.Newf("%s at %s", msg, s.Position))
	}
	p.next()
}

func (p *parser) setErr(err error) {
	if p.err == nil {
		p.err = err
	}
}

// next advances to the next token. Single-quoted strings are scanned by hand
// since SQL escapes quotes by doubling them.
func (p *parser) next() {
	p.tok = p.s.Scan()
	p.lit = p.s.TokenText()
	if p.tok != '\'' {
		return
	}
	var b strings.Builder
	for {
		ch := p.s.Next()
		switch ch {
		case scanner.EOF:
			p.setErr(errors.Newf("unterminated string at %s", p.s.Position))
			p.tok = scanner.EOF
			return
		case '\'':
			if p.s.Peek() != '\'' {
				p.tok, p.lit = scanner.String, b.String()
				return
			}
			p.s.Next()
		}
		b.WriteRune(ch)
	}
}

func (p *parser) errorf(format string, args ...interface{}) {
	p.setErr(errors.Wrapf(errors.Newf(format, args...), "at %s", p.s.Position))
}

func (p *parser) isKeyword(kw string) bool {
	return p.tok == scanner.Ident && strings.EqualFold(p.lit, kw)
}

func (p *parser) expect(tok rune) bool {
	if p.tok != tok {
		p.errorf("expected %s, found %q", scanner.TokenString(tok), p.lit)
		return false
	}
	p.next()
	return true
}

func (p *parser) parse() (Pred, error) {
	pred := p.parseOr()
	if p.err == nil && p.tok != scanner.EOF {
		p.errorf("unexpected %q", p.lit)
	}
	if p.err != nil {
		return nil, p.err
	}
	return pred, nil
}

func (p *parser) parseOr() Pred {
	children := []Pred{p.parseAnd()}
	for p.err == nil && p.isKeyword("OR") {
		p.next()
		children = append(children, p.parseAnd())
	}
	if len(children) == 1 {
		return children[0]
	}
	return Or(children...)
}

func (p *parser) parseAnd() Pred {
	children := []Pred{p.parseUnary()}
	for p.err == nil && p.isKeyword("AND") {
		p.next()
		children = append(children, p.parseUnary())
	}
	if len(children) == 1 {
		return children[0]
	}
	return And(children...)
}

func (p *parser) parseUnary() Pred {
	if p.err != nil {
		return nil
	}
	if p.isKeyword("NOT") {
		p.next()
		pred := p.parseUnary()
		if p.err != nil {
			return nil
		}
		neg, err := Negate(pred)
		if err != nil {
			p.setErr(err)
			return nil
		}
		return neg
	}
	if p.tok == '(' {
		p.next()
		pred := p.parseOr()
		p.expect(')')
		return pred
	}
	if p.isKeyword("UNSUPPORTED") {
		return p.parseUnsupported()
	}
	return p.parseComparison()
}

// operand is either a column or a literal.
type operand struct {
	col   opt.ColumnID
	datum tree.Datum
}

func (p *parser) parseComparison() Pred {
	left := p.parseOperand()
	if p.err != nil {
		return nil
	}
	if left.datum == nil {
		switch {
		case p.isKeyword("IN"):
			p.next()
			return &InList{Col: left.col, Values: p.parseList()}
		case p.isKeyword("NOT"):
			p.next()
			if !p.isKeyword("IN") {
				p.errorf("expected IN after NOT")
				return nil
			}
			p.next()
			return &InList{Col: left.col, Values: p.parseList(), Negated: true}
		case p.isKeyword("LIKE"):
			p.next()
			if p.tok != scanner.String {
				p.errorf("expected pattern string, found %q", p.lit)
				return nil
			}
			like := &Like{Col: left.col, Pattern: p.lit}
			p.next()
			like.Selectivity = p.parseSelectivity()
			return like
		}
	}

	op := p.parseOperator()
	right := p.parseOperand()
	if p.err != nil {
		return nil
	}
	switch {
	case left.datum == nil && right.datum == nil:
		return NewJoin(left.col, op, right.col)
	case left.datum == nil:
		return NewPoint(left.col, op, right.datum)
	case right.datum == nil:
		return NewPoint(right.col, op.Commute(), left.datum)
	}
	p.errorf("comparison between two literals")
	return nil
}

func (p *parser) parseOperator() opt.Operator {
	s := p.lit
	switch p.tok {
	case '<':
		if next := p.s.Peek(); next == '=' || next == '>' {
			s += string(p.s.Next())
		}
	case '>', '!':
		if p.s.Peek() == '=' {
			s += string(p.s.Next())
		}
	case '=':
		if p.s.Peek() == '=' {
			s += string(p.s.Next())
		}
	}
	op, ok := opt.ParseOperator(s)
	if !ok {
		p.errorf("unknown operator %q", s)
		return opt.UnknownOp
	}
	p.next()
	return op
}

func (p *parser) parseOperand() operand {
	if p.tok == '@' {
		p.next()
		if p.tok != scanner.Int {
			p.errorf("expected column id after @, found %q", p.lit)
			return operand{}
		}
		id, err := strconv.ParseInt(p.lit, 10, 32)
		if err != nil || id <= 0 {
			p.errorf("invalid column id %q", p.lit)
			return operand{}
		}
		p.next()
		return operand{col: opt.ColumnID(id)}
	}
	return operand{datum: p.parseLiteral()}
}

func (p *parser) parseList() []tree.Datum {
	if !p.expect('(') {
		return nil
	}
	var vals []tree.Datum
	for p.err == nil {
		vals = append(vals, p.parseLiteral())
		if p.tok != ',' {
			break
		}
		p.next()
	}
	p.expect(')')
	return vals
}

func (p *parser) parseLiteral() tree.Datum {
	if p.err != nil {
		return nil
	}
	neg := false
	if p.tok == '-' {
		neg = true
		p.next()
	}
	var d tree.Datum
	var err error
	switch {
	case p.tok == scanner.Int:
		lit := p.lit
		if neg {
			lit = "-" + lit
		}
		d, err = tree.ParseDInt(lit)
	case p.tok == scanner.Float:
		lit := p.lit
		if neg {
			lit = "-" + lit
		}
		d, err = tree.ParseDFloat(lit)
	case neg:
		p.errorf("expected number after -, found %q", p.lit)
		return nil
	case p.tok == scanner.String:
		s := p.lit
		p.next()
		if p.tok == ':' && p.s.Peek() == ':' {
			p.s.Next()
			p.next()
			return p.parseCast(s)
		}
		return tree.NewDString(s)
	case p.isKeyword("TRUE"):
		d = tree.DBoolTrue
	case p.isKeyword("FALSE"):
		d = tree.DBoolFalse
	case p.isKeyword("NULL"):
		d = tree.DNull
	default:
		p.errorf("expected literal, found %q", p.lit)
		return nil
	}
	if err != nil {
		p.setErr(err)
		return nil
	}
	p.next()
	return d
}

func (p *parser) parseCast(s string) tree.Datum {
	if p.tok != scanner.Ident {
		p.errorf("expected type name, found %q", p.lit)
		return nil
	}
	typ, err := types.FromString(p.lit)
	if err != nil {
		p.setErr(err)
		return nil
	}
	d, err := tree.ParseDatumStringAs(typ, s)
	if err != nil {
		p.setErr(err)
		return nil
	}
	p.next()
	return d
}

func (p *parser) parseSelectivity() float64 {
	if !p.isKeyword("SELECTIVITY") {
		return 0
	}
	p.next()
	if p.tok != scanner.Float && p.tok != scanner.Int {
		p.errorf("expected selectivity, found %q", p.lit)
		return 0
	}
	sel, err := strconv.ParseFloat(p.lit, 64)
	if err != nil {
		p.setErr(err)
		return 0
	}
	p.next()
	return sel
}

func (p *parser) parseUnsupported() Pred {
	p.next()
	if !p.expect('(') {
		return nil
	}
	u := &Unsupported{}
	for p.err == nil {
		c := p.parseOperand()
		if p.err != nil {
			return nil
		}
		if c.datum != nil {
			p.errorf("expected column in UNSUPPORTED")
			return nil
		}
		u.Cols.Add(int(c.col))
		if p.tok != ',' {
			break
		}
		p.next()
	}
	p.expect(')')
	u.Selectivity = p.parseSelectivity()
	return u
}
