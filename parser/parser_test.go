package parser_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/go-justsh/justsh/ast"
	"github.com/go-justsh/justsh/errors"
	"github.com/go-justsh/justsh/parser"
)

func TestParseAssignment(t *testing.T) {
	prog, err := parser.Parse("greeting := \"hello\"\n")
	require.NoError(t, err)
	require.Len(t, prog.Items, 1)
	a, ok := prog.Items[0].(*ast.Assignment)
	require.True(t, ok)
	require.Equal(t, "greeting", a.Name)
	require.False(t, a.Exported)
	lit, ok := a.Value.(*ast.StringLit)
	require.True(t, ok)
	require.Equal(t, "hello", lit.Value)
}

func TestParseExportedAssignment(t *testing.T) {
	prog, err := parser.Parse("export PATH := \"/bin\"\n")
	require.NoError(t, err)
	a := prog.Items[0].(*ast.Assignment)
	require.True(t, a.Exported)
	require.Equal(t, "PATH", a.Name)
}

func TestParseAlias(t *testing.T) {
	prog, err := parser.Parse("alias b := build\n\nbuild:\n    echo hi\n")
	require.NoError(t, err)
	al, ok := prog.Items[0].(*ast.Alias)
	require.True(t, ok)
	require.Equal(t, "b", al.Name)
	require.Equal(t, "build", al.Target)
}

func TestParseRecipeWithParamsAndBody(t *testing.T) {
	src := `greet name="world":
    echo "hello {{ name }}"
`
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	r := prog.Items[0].(*ast.Recipe)
	require.Equal(t, "greet", r.Name)
	require.Len(t, r.Parameters, 1)
	require.Equal(t, "name", r.Parameters[0].Name)
	require.NotNil(t, r.Parameters[0].Default)
	require.Len(t, r.Body, 1)
	require.Len(t, r.Body[0].Segments, 3)
	require.Equal(t, "echo \"hello ", r.Body[0].Segments[0].Text)
	ref, ok := r.Body[0].Segments[1].Interp.(*ast.NameRef)
	require.True(t, ok)
	require.Equal(t, "name", ref.Name)
}

func TestParseVariadicParameter(t *testing.T) {
	src := "build *files:\n    echo {{ files }}\n"
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	r := prog.Items[0].(*ast.Recipe)
	require.Empty(t, r.Parameters)
	require.NotNil(t, r.Variadic)
	require.Equal(t, ast.VariadicStar, r.Variadic.Variadic)
}

func TestParseDependenciesBeforeAndAfter(t *testing.T) {
	src := "deploy: build test && notify\n    echo done\n"
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	r := prog.Items[0].(*ast.Recipe)
	require.Len(t, r.BeforeDeps, 2)
	require.Equal(t, "build", r.BeforeDeps[0].Name)
	require.Equal(t, "test", r.BeforeDeps[1].Name)
	require.Len(t, r.AfterDeps, 1)
	require.Equal(t, "notify", r.AfterDeps[0].Name)
}

func TestParseLinePrefixes(t *testing.T) {
	src := "task:\n    @-+echo quiet-and-ignored-and-elevated\n"
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	r := prog.Items[0].(*ast.Recipe)
	require.True(t, r.Body[0].Prefix.Silent)
	require.True(t, r.Body[0].Prefix.IgnoreError)
	require.True(t, r.Body[0].Prefix.Elevated)
}

func TestParseConditionalExpression(t *testing.T) {
	src := `os_name := if os() == "linux" { "tux" } else { "other" }` + "\n"
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	a := prog.Items[0].(*ast.Assignment)
	cond, ok := a.Value.(*ast.Conditional)
	require.True(t, ok)
	require.Equal(t, ast.CompareEq, cond.Op)
}

func TestParseAttributes(t *testing.T) {
	src := "[private]\nsecret:\n    echo shh\n"
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	r := prog.Items[0].(*ast.Recipe)
	require.True(t, r.HasAttribute("private"))
}

func TestParseAcceptsDuplicateNames(t *testing.T) {
	src := "a := \"1\"\na := \"2\"\n"
	_, err := parser.Parse(src)
	require.NoError(t, err) // duplicate-name detection happens during model.Build
	_ = src
}

func TestParseUnterminatedStringIsParseError(t *testing.T) {
	_, err := parser.Parse("x := \"unterminated\n")
	require.Error(t, err)
	ce, ok := err.(*errors.CompileError)
	require.True(t, ok)
	require.Equal(t, errors.KindParse, ce.Kind)
}

// Position fields carry source-location noise that isn't interesting for a
// structural comparison, so they're ignored rather than zeroed field by
// field.
var ignorePositions = cmpopts.IgnoreFields(ast.Position{}, "Line", "Column")

func TestParseConcatIgnoresOperatorWhitespace(t *testing.T) {
	progA, err := parser.Parse("a := \"x\" + \"y\"\n")
	require.NoError(t, err)
	progB, err := parser.Parse("a := \"x\"   +   \"y\"\n")
	require.NoError(t, err)

	// Whitespace around the operator must not affect the resulting tree.
	if diff := cmp.Diff(progA, progB, ignorePositions); diff != "" {
		t.Fatalf("trees differ despite only whitespace changing:\n%s", diff)
	}
}
