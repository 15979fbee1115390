// Package eval lowers expression trees into POSIX sh fragments, and
// tracks which builtin-function and conditional helper bodies a compile
// needs to emit.
package eval

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/go-justsh/justsh/ast"
	"github.com/go-justsh/justsh/errors"
	"github.com/go-justsh/justsh/internal/mangle"
)

// Evaluator lowers ast.Expr trees to shell text, accumulating the set of
// builtin and conditional function bodies a single compile requires.
type Evaluator struct {
	mangler      *mangle.Mangler
	usedBuiltins map[string]bool
	conditionals map[string]string // function name -> body, insertion order tracked separately
	condOrder    []string
}

// New creates an Evaluator sharing the given name mangler with the rest of
// the compile, so conditional function names never collide with recipe or
// variable names.
func New(m *mangle.Mangler) *Evaluator {
	return &Evaluator{
		mangler:      m,
		usedBuiltins: make(map[string]bool),
		conditionals: make(map[string]string),
	}
}

// Eval lowers an expression to a shell fragment. When quote is true the
// result is wrapped so it can be assigned directly to a shell variable
// (`VALUE=<result>`); when false it is left bare, for use inside a larger
// already-quoted expression.
func (e *Evaluator) Eval(expr ast.Expr, quote bool) (string, error) {
	switch x := expr.(type) {
	case *ast.StringLit:
		return quoteFn(quote)(x.Value), nil

	case *ast.NameRef:
		return quoteFn(quote)("${"+e.mangler.Var(x.Name)+"}", '"'), nil

	case *ast.Concat:
		left, err := e.Eval(x.Left, quote)
		if err != nil {
			return "", err
		}
		right, err := e.Eval(x.Right, quote)
		if err != nil {
			return "", err
		}
		return left + right, nil

	case *ast.PathJoin:
		if l, ok := x.Left.(*ast.StringLit); ok {
			if r, ok := x.Right.(*ast.StringLit); ok {
				// Both sides literal: collapse the separators meeting at the join.
				return quoteFn(quote)(strings.TrimRight(l.Value, "/")) + "'/'" + quoteFn(quote)(strings.TrimLeft(r.Value, "/")), nil
			}
		}
		left, err := e.Eval(x.Left, quote)
		if err != nil {
			return "", err
		}
		right, err := e.Eval(x.Right, quote)
		if err != nil {
			return "", err
		}
		return left + "'/'" + right, nil

	case *ast.Backtick:
		cmd, err := e.evalSegments(x.Segments)
		if err != nil {
			return "", err
		}
		// Always double-quoted regardless of the caller's quote request:
		// a captured command's output is itself the value, not literal text
		// that needs additional quoting.
		return `"$(env "${DEFAULT_SHELL}" ${DEFAULT_SHELL_ARGS} ` + cmd + ` || backtick_error "${LINENO:-}")"`, nil

	case *ast.Conditional:
		name, err := e.conditionalFunc(x)
		if err != nil {
			return "", err
		}
		return quoteFn(quote)("$("+name+")", '"'), nil

	case *ast.Call:
		return e.evalCall(x, quote)
	}
	return "", fmt.Errorf("unsupported expression type %T", expr)
}

// evalSegments renders a Backtick or interpolated-text segment list as a
// single shell word: single-quoted literal parts joined directly to the
// lowered interpolations.
func (e *Evaluator) evalSegments(segs []ast.Segment) (string, error) {
	var parts []string
	for _, s := range segs {
		if s.Interp == nil {
			parts = append(parts, quoteLiteral(s.Text))
			continue
		}
		v, err := e.Eval(s.Interp, true)
		if err != nil {
			return "", err
		}
		parts = append(parts, v)
	}
	if len(parts) == 0 {
		return `""`, nil
	}
	return strings.Join(parts, ""), nil
}

func (e *Evaluator) evalCall(c *ast.Call, quote bool) (string, error) {
	b, ok := builtins[c.Name]
	if !ok {
		return "", errors.At(errors.KindUnimplementedFunc, c.Pos_.Line, c.Pos_.Column,
			fmt.Sprintf("function `%s` is not implemented", c.Name))
	}
	if err := checkArity(c.Name, len(c.Args)); err != nil {
		return "", errors.At(errors.KindInvalidParameter, c.Pos_.Line, c.Pos_.Column, err.Error())
	}

	if folded, ok := foldCaseCall(c); ok {
		return quoteFn(quote)(folded), nil
	}

	e.markUsed(c.Name, b)

	var args []string
	for _, a := range c.Args {
		v, err := e.Eval(a, true)
		if err != nil {
			return "", err
		}
		args = append(args, v)
	}
	call := c.Name
	if len(args) > 0 {
		call += " " + strings.Join(args, " ")
	}
	return `"$(` + call + `)"`, nil
}

// UseBuiltin marks a builtin as referenced even when the generator needs it
// for reasons outside expression evaluation, such as an os()-based platform
// dispatcher with no user-written os() call.
func (e *Evaluator) UseBuiltin(name string) {
	if b, ok := builtins[name]; ok {
		e.markUsed(name, b)
	}
}

func (e *Evaluator) markUsed(name string, b builtin) {
	if e.usedBuiltins[name] {
		return
	}
	e.usedBuiltins[name] = true
	for _, dep := range b.Deps {
		e.markUsed(dep, builtins[dep])
	}
}

// conditionalFunc returns the name of the (possibly newly registered)
// helper function implementing an if/else expression, content-hash-named
// so that structurally identical conditionals across the justfile share
// one generated function.
func (e *Evaluator) conditionalFunc(c *ast.Conditional) (string, error) {
	canon, err := e.canonicalize(c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canon))
	name := e.mangler.Clean("", "if_"+hex.EncodeToString(sum[:])[:16])
	if _, exists := e.conditionals[name]; exists {
		return name, nil
	}

	left, err := e.Eval(c.Left, true)
	if err != nil {
		return "", err
	}
	right, err := e.Eval(c.Right, true)
	if err != nil {
		return "", err
	}
	then, err := e.Eval(c.Then, true)
	if err != nil {
		return "", err
	}
	elseExpr, err := e.Eval(c.Else, true)
	if err != nil {
		return "", err
	}

	var cond string
	switch c.Op {
	case ast.CompareEq:
		cond = fmt.Sprintf(`[ %s = %s ]`, left, right)
	case ast.CompareNeq:
		cond = fmt.Sprintf(`[ %s != %s ]`, left, right)
	case ast.CompareRegex:
		cond = fmt.Sprintf(`echo %s | grep -E %s > /dev/null`, left, right)
	}
	body := fmt.Sprintf(`%s() {
  if %s; then
    THEN_EXPR=%s || exit "${?}"
    echo "${THEN_EXPR}"
  else
    ELSE_EXPR=%s || exit "${?}"
    echo "${ELSE_EXPR}"
  fi
}
`, name, cond, then, elseExpr)

	e.conditionals[name] = body
	e.condOrder = append(e.condOrder, name)
	return name, nil
}

// canonicalize produces a structural string for a Conditional so that two
// syntactically identical if/else expressions hash to the same function,
// independent of source position.
func (e *Evaluator) canonicalize(expr ast.Expr) (string, error) {
	switch x := expr.(type) {
	case *ast.StringLit:
		return fmt.Sprintf("str(%q)", x.Value), nil
	case *ast.NameRef:
		return fmt.Sprintf("ref(%s)", x.Name), nil
	case *ast.Concat:
		l, err := e.canonicalize(x.Left)
		if err != nil {
			return "", err
		}
		r, err := e.canonicalize(x.Right)
		if err != nil {
			return "", err
		}
		return "concat(" + l + "," + r + ")", nil
	case *ast.PathJoin:
		l, err := e.canonicalize(x.Left)
		if err != nil {
			return "", err
		}
		r, err := e.canonicalize(x.Right)
		if err != nil {
			return "", err
		}
		return "join(" + l + "," + r + ")", nil
	case *ast.Call:
		var parts []string
		for _, a := range x.Args {
			s, err := e.canonicalize(a)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "call(" + x.Name + "," + strings.Join(parts, ",") + ")", nil
	case *ast.Backtick:
		var parts []string
		for _, s := range x.Segments {
			if s.Interp != nil {
				c, err := e.canonicalize(s.Interp)
				if err != nil {
					return "", err
				}
				parts = append(parts, "{"+c+"}")
			} else {
				parts = append(parts, s.Text)
			}
		}
		return "backtick(" + strings.Join(parts, "") + ")", nil
	case *ast.Conditional:
		l, err := e.canonicalize(x.Left)
		if err != nil {
			return "", err
		}
		r, err := e.canonicalize(x.Right)
		if err != nil {
			return "", err
		}
		t, err := e.canonicalize(x.Then)
		if err != nil {
			return "", err
		}
		el, err := e.canonicalize(x.Else)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("if(%d,%s,%s,%s,%s)", x.Op, l, r, t, el), nil
	}
	return "", fmt.Errorf("unsupported expression type %T", expr)
}

// UsedBuiltins returns, in stable sorted order, the shell source of every
// builtin function referenced during this compile.
func (e *Evaluator) UsedBuiltins() []string {
	names := make([]string, 0, len(e.usedBuiltins))
	for n := range e.usedBuiltins {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = builtins[n].Body
	}
	return out
}

// UsedConditionals returns the generated if/else helper function bodies in
// first-use order.
func (e *Evaluator) UsedConditionals() []string {
	out := make([]string, len(e.condOrder))
	for i, n := range e.condOrder {
		out[i] = e.conditionals[n]
	}
	return out
}

// UsesPlatformDispatch reports whether os() or os_family() has been marked
// as used, either by an expression or through UseBuiltin.
func (e *Evaluator) UsesPlatformDispatch() bool {
	return e.usedBuiltins["os"] || e.usedBuiltins["os_family"]
}

func quoteLiteral(s string) string { return quoteString(s, '\'') }

func quoteString(s string, q byte) string {
	quote := string(q)
	var esc string
	if q == '\'' {
		esc = `'"'"'`
	} else {
		esc = `"'"'"`
	}
	return quote + strings.ReplaceAll(s, quote, esc) + quote
}

// quoteFn returns a function that either quotes its argument as a shell
// single/double-quoted literal (quote=true path for raw text) or passes
// already-shell-safe text through unchanged (used for composed fragments
// like "${VAR}" or "$(cmd)").
func quoteFn(doQuote bool) func(string, ...byte) string {
	return func(s string, already ...byte) string {
		if !doQuote {
			return s
		}
		if len(already) > 0 {
			return quoteString(s, already[0])
		}
		return quoteString(s, '\'')
	}
}
