package eval_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-justsh/justsh/ast"
	"github.com/go-justsh/justsh/eval"
	"github.com/go-justsh/justsh/internal/mangle"
)

func TestEvalStringLiteral(t *testing.T) {
	e := eval.New(mangle.New())
	out, err := e.Eval(&ast.StringLit{Value: "hi"}, true)
	require.NoError(t, err)
	require.Equal(t, "'hi'", out)
}

func TestEvalNameRefQuoted(t *testing.T) {
	e := eval.New(mangle.New())
	out, err := e.Eval(&ast.NameRef{Name: "greeting"}, true)
	require.NoError(t, err)
	require.Equal(t, `"${VAR_greeting}"`, out)
}

func TestEvalConcat(t *testing.T) {
	e := eval.New(mangle.New())
	expr := &ast.Concat{Left: &ast.StringLit{Value: "a"}, Right: &ast.StringLit{Value: "b"}}
	out, err := e.Eval(expr, true)
	require.NoError(t, err)
	require.Equal(t, "'a''b'", out)
}

func TestEvalPathJoin(t *testing.T) {
	e := eval.New(mangle.New())
	expr := &ast.PathJoin{Left: &ast.StringLit{Value: "a"}, Right: &ast.StringLit{Value: "b"}}
	out, err := e.Eval(expr, true)
	require.NoError(t, err)
	require.Equal(t, "'a''/''b'", out)
}

func TestEvalBuiltinCallMarksUsage(t *testing.T) {
	e := eval.New(mangle.New())
	_, err := e.Eval(&ast.Call{Name: "uppercase", Args: []ast.Expr{&ast.NameRef{Name: "x"}}}, true)
	require.NoError(t, err)
	require.Len(t, e.UsedBuiltins(), 1)
}

func TestEvalFoldsUppercaseLiteral(t *testing.T) {
	e := eval.New(mangle.New())
	out, err := e.Eval(&ast.Call{Name: "uppercase", Args: []ast.Expr{&ast.StringLit{Value: "hi"}}}, true)
	require.NoError(t, err)
	require.Equal(t, "'HI'", out)
	require.Empty(t, e.UsedBuiltins())
}

func TestEvalUnimplementedFunctionErrors(t *testing.T) {
	e := eval.New(mangle.New())
	_, err := e.Eval(&ast.Call{Name: "nonexistent"}, true)
	require.Error(t, err)
}

func TestEvalConditionalDeduplicatesIdenticalExpressions(t *testing.T) {
	e := eval.New(mangle.New())
	cond := func() *ast.Conditional {
		return &ast.Conditional{
			Op:    ast.CompareEq,
			Left:  &ast.StringLit{Value: "a"},
			Right: &ast.StringLit{Value: "a"},
			Then:  &ast.StringLit{Value: "yes"},
			Else:  &ast.StringLit{Value: "no"},
		}
	}
	out1, err := e.Eval(cond(), true)
	require.NoError(t, err)
	out2, err := e.Eval(cond(), true)
	require.NoError(t, err)
	require.Equal(t, out1, out2)
	require.Len(t, e.UsedConditionals(), 1)
}
