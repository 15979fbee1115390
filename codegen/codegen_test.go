package codegen_test

import (
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/go-justsh/justsh/codegen"
	"github.com/go-justsh/justsh/model"
	"github.com/go-justsh/justsh/parser"
)

// goldenSlice extracts the single function definition starting at marker
// (its opening "name() {" line) up to and including its closing "}", for
// comparison against a golden fixture. The generated script as a whole
// isn't a practical golden-file target: its banner embeds the compile
// timestamp-free but still Options-dependent version string, and its CLI
// section is hundreds of lines of argument parsing that would make any
// single fixture brittle to touch unrelated to what a given test cares
// about. Slicing out one function keeps the comparison meaningful and the
// fixture small enough to review by eye.
func goldenSlice(t *testing.T, out, marker string) string {
	t.Helper()
	start := strings.Index(out, marker)
	require.NotEqual(t, -1, start, "marker %q not found in generated script", marker)
	end := strings.Index(out[start:], "\n}\n")
	require.NotEqual(t, -1, end, "closing brace for %q not found", marker)
	return out[start : start+end+len("\n}\n")]
}

func TestGenerateRecipeFunctionMatchesGolden(t *testing.T) {
	out := generate(t, "build:\n    echo hi\n\ntest: build\n    echo test\n")
	got := goldenSlice(t, out, "FUN_build() {")

	want, err := os.ReadFile("testdata/recipe_build.sh")
	require.NoError(t, err)
	if diff := cmp.Diff(string(want), got); diff != "" {
		t.Fatalf("FUN_build body differs from golden fixture (-want +got):\n%s", diff)
	}
}

func TestGenerateSummaryFunctionMatchesGolden(t *testing.T) {
	out := generate(t, "build:\n    echo hi\n\ntest: build\n    echo test\n")
	got := goldenSlice(t, out, "summary_fn() {")

	want, err := os.ReadFile("testdata/summary.sh")
	require.NoError(t, err)
	if diff := cmp.Diff(string(want), got); diff != "" {
		t.Fatalf("summary_fn output differs from golden fixture (-want +got):\n%s", diff)
	}
}

func generate(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	m, err := model.Build(prog)
	require.NoError(t, err)
	out, err := codegen.Generate(m, codegen.Options{Version: "test", Source: src, Outfile: "just.sh"})
	require.NoError(t, err)
	return out
}

func TestGenerateEmitsShebangAndStrictMode(t *testing.T) {
	out := generate(t, "build:\n    echo hi\n")
	require.Contains(t, out, "#!/bin/sh")
	require.Contains(t, out, "set -eu")
}

func TestGenerateEmitsRecipeFunction(t *testing.T) {
	out := generate(t, "build:\n    echo hi\n")
	require.Contains(t, out, "FUN_build()")
	require.Contains(t, out, "HAS_RUN_build")
}

func TestGenerateEmitsVariableAssignment(t *testing.T) {
	out := generate(t, "greeting := \"hi\"\n\nbuild:\n    echo {{ greeting }}\n")
	require.Contains(t, out, "VAR_greeting='hi'")
}

func TestGenerateEmitsBuiltinFunctionBodyWhenUsed(t *testing.T) {
	out := generate(t, "x := uppercase(env_var(\"HOME\"))\n\nbuild:\n    echo {{ x }}\n")
	require.Contains(t, out, "uppercase() {")
	require.Contains(t, out, "env_var() {")
}

func TestGenerateOmitsUnusedBuiltins(t *testing.T) {
	out := generate(t, "build:\n    echo hi\n")
	require.NotContains(t, out, "uuid() {")
}

func TestGenerateEmitsDependencyCall(t *testing.T) {
	out := generate(t, "build: clean\n    echo build\n\nclean:\n    echo clean\n")
	require.Contains(t, out, "FUN_clean")
}

func TestGenerateEmitsDumpOfOriginalSource(t *testing.T) {
	src := "build:\n    echo hi\n"
	out := generate(t, src)
	require.Contains(t, out, "dump_fn()")
}
