// Package parser builds an ast.Program from justfile source text, using
// the lexer package for header-grammar tokens and raw indented-block
// reading for recipe bodies.
package parser

import (
	"strings"

	"github.com/go-justsh/justsh/ast"
	"github.com/go-justsh/justsh/errors"
	"github.com/go-justsh/justsh/lexer"
)

// Parser consumes a token stream and produces an ast.Program, or the
// first errors.CompileError encountered.
type Parser struct {
	lx      *lexer.Lexer
	src     string
	srcLines []string
	tok     lexer.Token
	peeked  *lexer.Token
}

// Parse tokenizes and parses raw justfile source text in one call.
func Parse(src string) (*ast.Program, error) {
	pre := lexer.Preprocess(src)
	p := &Parser{lx: lexer.New(pre), src: pre, srcLines: strings.Split(pre, "\n")}
	if err := p.next(); err != nil {
		return nil, err
	}
	return p.parseProgram()
}

func (p *Parser) next() error {
	if p.peeked != nil {
		p.tok = *p.peeked
		p.peeked = nil
		return nil
	}
	t, err := p.lx.Next()
	if err != nil {
		return p.lexErr(err)
	}
	p.tok = t
	return nil
}

func (p *Parser) peek() (lexer.Token, error) {
	if p.peeked == nil {
		t, err := p.lx.Next()
		if err != nil {
			return lexer.Token{}, p.lexErr(err)
		}
		p.peeked = &t
	}
	return *p.peeked, nil
}

func (p *Parser) lexErr(err error) error {
	if le, ok := err.(*lexer.LexError); ok {
		return errors.At(errors.KindParse, le.Line, le.Column, le.Message).WithSnippet(p.snippet(le.Line))
	}
	return errors.New(errors.KindParse, err.Error())
}

func (p *Parser) snippet(line int) string {
	if line-1 >= 0 && line-1 < len(p.srcLines) {
		return p.srcLines[line-1]
	}
	return ""
}

func (p *Parser) errf(message string) *errors.CompileError {
	return errors.At(errors.KindParse, p.tok.Line, p.tok.Column, message).WithSnippet(p.snippet(p.tok.Line))
}

func (p *Parser) expect(t lexer.TokenType) (lexer.Token, error) {
	if p.tok.Type != t {
		return lexer.Token{}, p.errf("expected " + t.String() + ", got " + p.tok.Type.String())
	}
	tok := p.tok
	if err := p.next(); err != nil {
		return lexer.Token{}, err
	}
	return tok, nil
}

func (p *Parser) skipNewlines() error {
	for p.tok.Type == lexer.NEWLINE {
		if err := p.next(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	var pendingComment string
	var pendingAttrs []ast.Attribute
	var havePending bool

	for {
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		if p.tok.Type == lexer.EOF {
			break
		}

		switch {
		case p.tok.Type == lexer.COMMENT:
			pendingComment = p.tok.Value
			prog.Items = append(prog.Items, &ast.Comment{Text: p.tok.Value, Pos_: ast.Position{Line: p.tok.Line, Column: p.tok.Column}})
			havePending = true
			if err := p.next(); err != nil {
				return nil, err
			}
			continue

		case p.tok.Type == lexer.LBRACKET:
			attrs, err := p.parseAttributeLine()
			if err != nil {
				return nil, err
			}
			pendingAttrs = append(pendingAttrs, attrs...)
			havePending = true
			continue

		case p.tok.Type == lexer.IDENT && p.tok.Value == "alias":
			a, err := p.parseAlias()
			if err != nil {
				return nil, err
			}
			prog.Items = append(prog.Items, a)
			pendingComment, pendingAttrs, havePending = "", nil, false
			continue

		case p.tok.Type == lexer.IDENT && p.tok.Value == "set":
			s, err := p.parseSetting()
			if err != nil {
				return nil, err
			}
			prog.Items = append(prog.Items, s)
			pendingComment, pendingAttrs, havePending = "", nil, false
			continue

		case p.tok.Type == lexer.IDENT && p.tok.Value == "export":
			if nt, err := p.peek(); err == nil && nt.Type == lexer.IDENT {
				a, err := p.parseAssignment(true)
				if err != nil {
					return nil, err
				}
				prog.Items = append(prog.Items, a)
				pendingComment, pendingAttrs, havePending = "", nil, false
				continue
			}
			fallthrough

		case p.tok.Type == lexer.AT || p.tok.Type == lexer.IDENT:
			if p.isAssignmentAhead() {
				a, err := p.parseAssignment(false)
				if err != nil {
					return nil, err
				}
				prog.Items = append(prog.Items, a)
				pendingComment, pendingAttrs, havePending = "", nil, false
				continue
			}
			r, err := p.parseRecipe(pendingAttrs, pendingComment)
			if err != nil {
				return nil, err
			}
			prog.Items = append(prog.Items, r)
			pendingComment, pendingAttrs, havePending = "", nil, false
			continue

		default:
			_ = havePending
			return nil, p.errf("unexpected token " + p.tok.Type.String())
		}
	}
	return prog, nil
}

// isAssignmentAhead distinguishes `name := expr` from a recipe header by
// looking one token past the identifier for `:=`.
func (p *Parser) isAssignmentAhead() bool {
	if p.tok.Type != lexer.IDENT {
		return false
	}
	nt, err := p.peek()
	if err != nil {
		return false
	}
	return nt.Type == lexer.COLONEQ
}

func (p *Parser) parseAttributeLine() ([]ast.Attribute, error) {
	if _, err := p.expect(lexer.LBRACKET); err != nil {
		return nil, err
	}
	var attrs []ast.Attribute
	for {
		pos := ast.Position{Line: p.tok.Line, Column: p.tok.Column}
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		var args []ast.Expr
		if p.tok.Type == lexer.LPAREN {
			if err := p.next(); err != nil {
				return nil, err
			}
			for p.tok.Type != lexer.RPAREN {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, e)
				if p.tok.Type == lexer.COMMA {
					if err := p.next(); err != nil {
						return nil, err
					}
				}
			}
			if _, err := p.expect(lexer.RPAREN); err != nil {
				return nil, err
			}
		}
		attrs = append(attrs, ast.Attribute{Name: name.Value, Args: args, Pos_: pos})
		if p.tok.Type == lexer.COMMA {
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RBRACKET); err != nil {
		return nil, err
	}
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	return attrs, nil
}

func (p *Parser) parseAlias() (*ast.Alias, error) {
	pos := ast.Position{Line: p.tok.Line, Column: p.tok.Column}
	if err := p.next(); err != nil { // consume "alias"
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.COLONEQ); err != nil {
		return nil, err
	}
	target, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	return &ast.Alias{Name: name.Value, Target: target.Value, Pos_: pos}, nil
}

func (p *Parser) parseSetting() (*ast.Setting, error) {
	pos := ast.Position{Line: p.tok.Line, Column: p.tok.Column}
	if err := p.next(); err != nil { // consume "set"
		return nil, err
	}
	key, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if p.tok.Type != lexer.COLONEQ {
		return &ast.Setting{Key: key.Value, ValueKind: ast.SettingBool, Bool: true, Pos_: pos}, nil
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.Type == lexer.LBRACKET {
		if err := p.next(); err != nil {
			return nil, err
		}
		var list []string
		for p.tok.Type != lexer.RBRACKET {
			s, err := p.expect(lexer.STRING)
			if err != nil {
				return nil, err
			}
			list = append(list, s.Value)
			if p.tok.Type == lexer.COMMA {
				if err := p.next(); err != nil {
					return nil, err
				}
			}
		}
		if _, err := p.expect(lexer.RBRACKET); err != nil {
			return nil, err
		}
		return &ast.Setting{Key: key.Value, ValueKind: ast.SettingList, List: list, Pos_: pos}, nil
	}
	if p.tok.Type == lexer.IDENT && (p.tok.Value == "true" || p.tok.Value == "false") {
		b := p.tok.Value == "true"
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Setting{Key: key.Value, ValueKind: ast.SettingBool, Bool: b, Pos_: pos}, nil
	}
	s, err := p.expect(lexer.STRING)
	if err != nil {
		return nil, err
	}
	return &ast.Setting{Key: key.Value, ValueKind: ast.SettingString, Str: s.Value, Pos_: pos}, nil
}

func (p *Parser) parseAssignment(exported bool) (*ast.Assignment, error) {
	pos := ast.Position{Line: p.tok.Line, Column: p.tok.Column}
	if exported {
		if err := p.next(); err != nil { // consume "export"
			return nil, err
		}
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.COLONEQ); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.Assignment{Name: name.Value, Value: value, Exported: exported, Pos_: pos}, nil
}

func (p *Parser) parseRecipe(attrs []ast.Attribute, doc string) (*ast.Recipe, error) {
	pos := ast.Position{Line: p.tok.Line, Column: p.tok.Column}
	quiet := false
	if p.tok.Type == lexer.AT {
		quiet = true
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}

	var params []ast.Parameter
	var variadic *ast.Parameter
	if p.tok.Type != lexer.COLON {
		params, variadic, err = p.parseParameters()
		if err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(lexer.COLON); err != nil {
		return nil, err
	}

	var before []ast.Dependency
	for p.tok.Type == lexer.IDENT {
		d, err := p.parseDependency()
		if err != nil {
			return nil, err
		}
		before = append(before, d)
	}

	var after []ast.Dependency
	if p.tok.Type == lexer.AMPAMP {
		if err := p.next(); err != nil {
			return nil, err
		}
		for p.tok.Type == lexer.IDENT {
			d, err := p.parseDependency()
			if err != nil {
				return nil, err
			}
			after = append(after, d)
		}
	}

	if p.tok.Type != lexer.NEWLINE && p.tok.Type != lexer.EOF {
		return nil, p.errf("expected end of recipe header")
	}

	// The NEWLINE token already consumed the header's line break(s), so the
	// lexer sits at the start of the first body line.
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}

	return &ast.Recipe{
		Name: name.Value, Quiet: quiet, Parameters: params, Variadic: variadic,
		BeforeDeps: before, AfterDeps: after, Body: body, Attributes: attrs,
		DocComment: doc, Pos_: pos,
	}, nil
}

// parseParameters reads a recipe's parameter list, either parenthesized and
// comma-separated (`name(a, b)`) or bare and space-separated up to the
// header's colon (`name a b="x"`).
func (p *Parser) parseParameters() ([]ast.Parameter, *ast.Parameter, error) {
	closer := lexer.COLON
	if p.tok.Type == lexer.LPAREN {
		closer = lexer.RPAREN
		if err := p.next(); err != nil { // consume "("
			return nil, nil, err
		}
	}
	var params []ast.Parameter
	var variadic *ast.Parameter
	for p.tok.Type != closer {
		pos := ast.Position{Line: p.tok.Line, Column: p.tok.Column}
		kind := ast.NotVariadic
		switch p.tok.Type {
		case lexer.STAR:
			kind = ast.VariadicStar
			if err := p.next(); err != nil {
				return nil, nil, err
			}
		case lexer.PLUS:
			kind = ast.VariadicPlus
			if err := p.next(); err != nil {
				return nil, nil, err
			}
		}
		envVar := false
		if p.tok.Type == lexer.DOLLAR {
			envVar = true
			if err := p.next(); err != nil {
				return nil, nil, err
			}
		}
		nameTok, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, nil, err
		}
		var def ast.Expr
		if p.isBareEquals() {
			if err := p.next(); err != nil {
				return nil, nil, err
			}
			if closer == lexer.COLON {
				// A bare default is a single term, so a following
				// `+name` stays a variadic parameter.
				def, err = p.parseTerm()
			} else {
				def, err = p.parseExpr()
			}
			if err != nil {
				return nil, nil, err
			}
		}
		param := ast.Parameter{Name: nameTok.Value, EnvVar: envVar, Default: def, Variadic: kind, Pos_: pos}
		if kind != ast.NotVariadic {
			if variadic != nil {
				return nil, nil, errors.At(errors.KindInvalidParameter, pos.Line, pos.Column, "at most one variadic parameter is allowed").WithSnippet(p.snippet(pos.Line))
			}
			variadic = &param
		} else {
			if variadic != nil {
				return nil, nil, errors.At(errors.KindInvalidParameter, pos.Line, pos.Column, "variadic parameter must be last").WithSnippet(p.snippet(pos.Line))
			}
			params = append(params, param)
		}
		if p.tok.Type == lexer.COMMA {
			if err := p.next(); err != nil {
				return nil, nil, err
			}
		}
	}
	if closer == lexer.RPAREN {
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, nil, err
		}
	}
	return params, variadic, nil
}

// isBareEquals recognizes the bare '=' that introduces a parameter default,
// which the lexer emits as ILLEGAL("=") since '=' alone is not a header
// operator anywhere else in the grammar.
func (p *Parser) isBareEquals() bool {
	return p.tok.Type == lexer.ILLEGAL && p.tok.Value == "="
}

func (p *Parser) parseDependency() (ast.Dependency, error) {
	pos := ast.Position{Line: p.tok.Line, Column: p.tok.Column}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return ast.Dependency{}, err
	}
	var args []ast.Expr
	if p.tok.Type == lexer.LPAREN {
		if err := p.next(); err != nil {
			return ast.Dependency{}, err
		}
		for p.tok.Type != lexer.RPAREN {
			e, err := p.parseExpr()
			if err != nil {
				return ast.Dependency{}, err
			}
			args = append(args, e)
			if p.tok.Type == lexer.COMMA {
				if err := p.next(); err != nil {
					return ast.Dependency{}, err
				}
			}
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return ast.Dependency{}, err
		}
	}
	return ast.Dependency{Name: name.Value, Args: args, Pos_: pos}, nil
}

func (p *Parser) parseBody() ([]ast.BodyLine, error) {
	raw := p.lx.ReadIndentedBlock()
	if err := p.next(); err != nil {
		return nil, err
	}
	var lines []ast.BodyLine
	for _, rl := range raw {
		if rl.Content == "" {
			continue
		}
		bl, err := p.parseBodyLine(rl)
		if err != nil {
			return nil, err
		}
		lines = append(lines, bl)
	}
	return lines, nil
}

func (p *Parser) parseBodyLine(rl lexer.RawLine) (ast.BodyLine, error) {
	pos := ast.Position{Line: rl.Line, Column: len(rl.Indent) + 1}
	text := rl.Content
	var prefix ast.LinePrefix
	for len(text) > 0 {
		switch text[0] {
		case '@':
			prefix.Silent = true
			text = text[1:]
			continue
		case '-':
			prefix.IgnoreError = true
			text = text[1:]
			continue
		case '+':
			prefix.Elevated = true
			text = text[1:]
			continue
		}
		break
	}
	segs, err := p.parseSegments(text, rl.Line, len(rl.Indent)+1+(len(rl.Content)-len(text)))
	if err != nil {
		return ast.BodyLine{}, err
	}
	return ast.BodyLine{Prefix: prefix, Segments: segs, Pos_: pos}, nil
}

func (p *Parser) parseSegments(text string, line, col int) ([]ast.Segment, error) {
	var segs []ast.Segment
	for len(text) > 0 {
		idx := strings.Index(text, "{{")
		if idx < 0 {
			segs = append(segs, ast.Segment{Text: text})
			break
		}
		if idx > 0 {
			segs = append(segs, ast.Segment{Text: text[:idx]})
		}
		end := strings.Index(text[idx+2:], "}}")
		if end < 0 {
			return nil, errors.At(errors.KindParse, line, col, "unterminated interpolation").WithSnippet(p.snippet(line))
		}
		inner := text[idx+2 : idx+2+end]
		sub := Parser{lx: lexer.New(inner + "\n\n"), src: inner, srcLines: []string{inner}}
		if err := sub.next(); err != nil {
			return nil, err
		}
		expr, err := sub.parseExpr()
		if err != nil {
			return nil, err
		}
		segs = append(segs, ast.Segment{Interp: expr})
		text = text[idx+2+end+2:]
	}
	return segs, nil
}

// --- Expressions ---

func (p *Parser) parseExpr() (ast.Expr, error) {
	if p.tok.Type == lexer.IDENT && p.tok.Value == "if" {
		return p.parseConditional()
	}
	return p.parseSum()
}

func (p *Parser) parseConditional() (ast.Expr, error) {
	pos := ast.Position{Line: p.tok.Line, Column: p.tok.Column}
	if err := p.next(); err != nil { // consume "if"
		return nil, err
	}
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	var op ast.CompareOp
	switch p.tok.Type {
	case lexer.EQ:
		op = ast.CompareEq
	case lexer.NEQ:
		op = ast.CompareNeq
	case lexer.REGEXEQ:
		op = ast.CompareRegex
	default:
		return nil, p.errf("expected ==, !=, or =~ in conditional")
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	right, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	if !(p.tok.Type == lexer.IDENT && p.tok.Value == "else") {
		return nil, p.errf("expected else")
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	elseE, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return &ast.Conditional{Op: op, Left: left, Right: right, Then: then, Else: elseE, Pos_: pos}, nil
}

func (p *Parser) parseSum() (ast.Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == lexer.PLUS || p.tok.Type == lexer.SLASH {
		pos := ast.Position{Line: p.tok.Line, Column: p.tok.Column}
		isPlus := p.tok.Type == lexer.PLUS
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if isPlus {
			left = &ast.Concat{Left: left, Right: right, Pos_: pos}
		} else {
			left = &ast.PathJoin{Left: left, Right: right, Pos_: pos}
		}
	}
	return left, nil
}

func (p *Parser) parseTerm() (ast.Expr, error) {
	pos := ast.Position{Line: p.tok.Line, Column: p.tok.Column}
	switch p.tok.Type {
	case lexer.STRING:
		v := p.tok.Value
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.StringLit{Value: v, Pos_: pos}, nil
	case lexer.BACKTICK:
		v := p.tok.Value
		if err := p.next(); err != nil {
			return nil, err
		}
		segs, err := p.parseSegments(v, pos.Line, pos.Column)
		if err != nil {
			return nil, err
		}
		return &ast.Backtick{Segments: segs, Pos_: pos}, nil
	case lexer.LPAREN:
		if err := p.next(); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	case lexer.IDENT:
		name := p.tok.Value
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.tok.Type == lexer.LPAREN {
			if err := p.next(); err != nil {
				return nil, err
			}
			var args []ast.Expr
			for p.tok.Type != lexer.RPAREN {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, e)
				if p.tok.Type == lexer.COMMA {
					if err := p.next(); err != nil {
						return nil, err
					}
				}
			}
			if _, err := p.expect(lexer.RPAREN); err != nil {
				return nil, err
			}
			return &ast.Call{Name: name, Args: args, Pos_: pos}, nil
		}
		return &ast.NameRef{Name: name, Pos_: pos}, nil
	}
	return nil, p.errf("expected expression, got " + p.tok.Type.String())
}
