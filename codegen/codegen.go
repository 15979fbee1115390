// Package codegen emits a single POSIX sh script implementing a compiled
// justfile's semantics: variable assignment, recipe functions with
// at-most-once execution, dependency resolution, and a small CLI surface
// for listing, dumping, and invoking recipes.
package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-justsh/justsh/ast"
	"github.com/go-justsh/justsh/eval"
	"github.com/go-justsh/justsh/internal/mangle"
	"github.com/go-justsh/justsh/model"
)

// Options configures a single emission pass.
type Options struct {
	Version  string // emitted in the banner comment
	Source   string // original justfile text, recovered via --dump
	Outfile  string // base name, used in usage text
}

const border = "################################################################################"

func headerComment(lines ...string) string {
	var b strings.Builder
	b.WriteString(border)
	b.WriteByte('\n')
	for _, l := range lines {
		b.WriteString("# ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString(border)
	return b.String()
}

// Generate lowers a resolved Model to a complete POSIX sh script.
func Generate(m *model.Model, opts Options) (string, error) {
	g := &generator{model: m, opts: opts, mangler: mangle.New()}
	g.eval = eval.New(g.mangler)
	return g.run()
}

type generator struct {
	model   *model.Model
	opts    Options
	mangler *mangle.Mangler
	eval    *eval.Evaluator
}

func (g *generator) run() (string, error) {
	var b strings.Builder

	b.WriteString(g.banner())
	b.WriteByte('\n')

	varsBlock, err := g.variablesBlock()
	if err != nil {
		return "", err
	}
	b.WriteString(varsBlock)
	b.WriteByte('\n')

	b.WriteString(g.runtimeLibrary())
	b.WriteByte('\n')

	recipesBlock, err := g.recipesBlock()
	if err != nil {
		return "", err
	}
	b.WriteString(recipesBlock)
	b.WriteByte('\n')

	// Builtin and conditional function bodies are only known after every
	// expression in the justfile has been lowered, so they're appended
	// last, but they're logically part of the runtime library.
	fb := g.functionsBlock()
	if fb != "" {
		b.WriteString(fb)
		b.WriteByte('\n')
	}

	b.WriteString(g.dispatchAndEntrypoint())
	return b.String(), nil
}

func (g *generator) banner() string {
	return "#!/bin/sh\n\n" + headerComment(
		"This script was generated from a justfile by justsh.",
		fmt.Sprintf("justsh version %s", g.opts.Version),
		"",
		fmt.Sprintf("Run `./%s --dump` to recover the original justfile.", g.opts.Outfile),
	) + "\n\nset -eu\n"
}

func (g *generator) variablesBlock() (string, error) {
	var b strings.Builder
	b.WriteString(headerComment("Variables"))
	b.WriteByte('\n')

	if g.model.SettingBool("dotenv-load") {
		dotenvFile := "./.env"
		if p, ok := g.model.SettingString("dotenv-path"); ok && p != "" {
			dotenvFile = p
		} else if fn, ok := g.model.SettingString("dotenv-filename"); ok && fn != "" {
			dotenvFile = "./" + fn
		}
		fmt.Fprintf(&b, `
TEMP_DOTENV="$(mktemp)"
sed 's/^/export /g' %s > "${TEMP_DOTENV}"
. "${TEMP_DOTENV}"
rm "${TEMP_DOTENV}"
`, quoteSh(dotenvFile))
	}

	shell, shellArgs := "sh", "-cu"
	if list, ok := g.model.SettingList("shell"); ok && len(list) > 0 {
		shell = list[0]
		shellArgs = strings.Join(list[1:], " ")
	}

	fmt.Fprintf(&b, `
INVOCATION_DIRECTORY="$(pwd)"
DEFAULT_SHELL=%s
DEFAULT_SHELL_ARGS=%s
LIST_HEADING='Available recipes:'
LIST_PREFIX='    '
CHOOSER='fzf'
SORTED='true'
QUIET='false'
VERBOSE='false'
FORCE_ALL='false'
DRY_RUN='false'
COLOR_MODE='auto'

# Display colors: recomputed by compute_colors, called once at startup and
# again if --color overrides the mode.
compute_colors() {
  case "${COLOR_MODE}" in
  always) SHOW_COLOR='true' ;;
  never) SHOW_COLOR='false' ;;
  *)
    SHOW_COLOR='false'
    if [ -z "${NO_COLOR:-}" ] && [ -t 1 ]; then SHOW_COLOR='true'; fi
    ;;
  esac
  NOCOLOR="$(test "${SHOW_COLOR}" = 'true' && printf '\033[m' || echo)"
  BOLD="$(test "${SHOW_COLOR}" = 'true' && printf '\033[1m' || echo)"
  RED="$(test "${SHOW_COLOR}" = 'true' && printf '\033[1m\033[31m' || echo)"
  YELLOW="$(test "${SHOW_COLOR}" = 'true' && printf '\033[33m' || echo)"
  CYAN="$(test "${SHOW_COLOR}" = 'true' && printf '\033[36m' || echo)"
  GREEN="$(test "${SHOW_COLOR}" = 'true' && printf '\033[32m' || echo)"
}
compute_colors

`, quoteSh(shell), quoteSh(shellArgs))

	assign, err := g.assignVariablesFunc()
	if err != nil {
		return "", err
	}
	b.WriteString(assign)
	return b.String(), nil
}

// overrideFlag returns the guard variable name recording that name was
// pre-set by --set, --justfile-style NAME=VALUE, or set_var, so
// assign_variables leaves it alone instead of clobbering it with the
// justfile's own expression.
func (g *generator) overrideFlag(name string) string {
	return g.mangler.Clean("", "OVERRIDE_"+name)
}

func (g *generator) assignVariablesFunc() (string, error) {
	if len(g.model.Variables) == 0 {
		return "assign_variables() {\n  test -z \"${HAS_RUN_assign_variables:-}\" || return 0\n  HAS_RUN_assign_variables=\"true\"\n}\n", nil
	}
	var lines []string
	for _, v := range g.model.Variables {
		val, err := g.eval.Eval(v.Value, true)
		if err != nil {
			return "", err
		}
		name := g.mangler.Var(v.Name)
		override := g.overrideFlag(v.Name)
		assign := fmt.Sprintf("  if [ -z \"${%s:-}\" ]; then\n    %s=%s || exit \"${?}\"\n  fi", override, name, val)
		if v.Exported || g.model.ExportAll() {
			assign = fmt.Sprintf("  export %s\n%s", name, assign)
		}
		lines = append(lines, assign)
	}
	return fmt.Sprintf(`assign_variables() {
  test -z "${HAS_RUN_assign_variables:-}" || return 0

%s

  HAS_RUN_assign_variables="true"
}
`, strings.Join(lines, "\n")), nil
}

// runtimeLibrary emits the fixed helper functions every generated script
// needs regardless of which recipes or builtins are used.
func (g *generator) runtimeLibrary() string {
	return headerComment("Runtime helpers") + `

echo_error() {
  echo "${RED}error${NOCOLOR}: ${*}" >&2
}

die() {
  echo_error "${*}"
  exit 1
}

recipe_error() {
  echo_error "Recipe ` + "`" + `${1}` + "`" + ` failed on line ${2}"
  exit 1
}

backtick_error() {
  echo_error "Backtick command failed on line ${1}"
  exit 1
}

realpath_portable() {
  if type realpath > /dev/null 2>&1; then
    realpath "${1}"
  elif type python3 > /dev/null 2>&1; then
    python3 -c 'import os, sys; print(os.path.realpath(sys.argv[1]))' "${1}"
  elif type python > /dev/null 2>&1; then
    python -c 'import os, sys; print(os.path.realpath(sys.argv[1]))' "${1}"
  else
    (cd "$(dirname "${1}")" && printf "%s/%s\n" "$(pwd -P)" "$(basename "${1}")")
  fi
}
`
}

func (g *generator) functionsBlock() string {
	builtinsUsed := g.eval.UsedBuiltins()
	conditionals := g.eval.UsedConditionals()
	if len(builtinsUsed) == 0 && len(conditionals) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(headerComment("Builtin functions"))
	b.WriteByte('\n')
	for _, f := range builtinsUsed {
		b.WriteString(f)
		b.WriteByte('\n')
	}
	for _, f := range conditionals {
		b.WriteString(f)
		b.WriteByte('\n')
	}
	return b.String()
}

func (g *generator) recipesBlock() (string, error) {
	var b strings.Builder
	b.WriteString(headerComment("Recipes"))
	b.WriteByte('\n')
	for _, r := range g.model.Recipes {
		fn, err := g.recipeFunc(r)
		if err != nil {
			return "", err
		}
		b.WriteString(fn)
		b.WriteByte('\n')
	}
	if disp := g.platformDispatchers(); disp != "" {
		b.WriteString(disp)
	}
	return b.String(), nil
}

// recipeFuncName returns the shell function name a recipe is emitted under.
// A recipe with platform attributes gets a name suffixed by those attributes
// in model.PlatformAttributes' fixed order, since a plain recipe.name may be shared by several
// platform variants; the bare name is reserved for the dispatcher that
// picks between them at runtime.
func (g *generator) recipeFuncName(r *ast.Recipe) string {
	if attrs := model.PlatformAttributes(r); len(attrs) > 0 {
		return g.mangler.Fun(r.Name + "_" + strings.Join(attrs, "_"))
	}
	return g.mangler.Fun(r.Name)
}

func (g *generator) recipeFunc(r *ast.Recipe) (string, error) {
	var body strings.Builder
	fname := g.recipeFuncName(r)
	hasRun := g.mangler.Clean("", "HAS_RUN_"+r.Name)
	force := g.mangler.Clean("", "FORCE_"+r.Name)

	fmt.Fprintf(&body, `%s() {
  test -z "${%s:-}" || test "${%s:-}" = "true" || test "${FORCE_ALL:-}" = "true" || return 0
`, fname, hasRun, force)

	if len(r.Parameters) > 0 || r.Variadic != nil {
		pre, err := g.parameterProcessing(r)
		if err != nil {
			return "", err
		}
		body.WriteString(pre)
	}

	for _, d := range r.BeforeDeps {
		line, err := g.dependencyCall(r, d)
		if err != nil {
			return "", err
		}
		body.WriteString(line)
	}

	lines, err := g.bodyLines(r)
	if err != nil {
		return "", err
	}
	body.WriteString(lines)

	seenAfter := map[string]bool{}
	for _, d := range r.AfterDeps {
		if seenAfter[d.Name] {
			continue
		}
		seenAfter[d.Name] = true
		line, err := g.afterDependencyCall(d)
		if err != nil {
			return "", err
		}
		body.WriteString(line)
	}

	fmt.Fprintf(&body, "  %s=\"true\"\n}\n", hasRun)
	return body.String(), nil
}

func (g *generator) parameterProcessing(r *ast.Recipe) (string, error) {
	var b strings.Builder
	minArgs := len(r.Parameters)
	for _, p := range r.Parameters {
		if p.Default != nil {
			minArgs--
		}
	}
	if r.Variadic != nil && r.Variadic.Variadic == ast.VariadicPlus && r.Variadic.Default == nil {
		minArgs++
	}
	if minArgs > 0 {
		fmt.Fprintf(&b, `  if [ "${#}" -lt %d ]; then
    echo_error 'Recipe `+"`%s`"+` got '"${#}"' arguments but takes at least %d'
    exit 1
  fi
`, minArgs, r.Name, minArgs)
	}

	for i, p := range r.Parameters {
		name := g.mangler.Var(p.Name)
		fmt.Fprintf(&b, `  %s="${%d:-}"`+"\n", name, i+1)
		if p.Default != nil {
			def, err := g.eval.Eval(p.Default, true)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, `  if [ "${#}" -lt %d ]; then
    %s=%s
  fi
`, i+1, name, def)
		}
		if p.EnvVar {
			fmt.Fprintf(&b, "  export %s\n", name)
		}
	}

	if r.Variadic != nil {
		name := g.mangler.Var(r.Variadic.Name)
		if len(r.Parameters) > 0 {
			fmt.Fprintf(&b, `  if [ "${#}" -ge %d ]; then
    shift %d
  elif [ "${#}" -gt 0 ]; then
    shift "${#}"
  fi
`, len(r.Parameters), len(r.Parameters))
		}
		if r.Variadic.Default != nil {
			def, err := g.eval.Eval(r.Variadic.Default, true)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, `  if [ "${#}" -lt 1 ]; then
    set -- %s
  fi
`, def)
		}
		fmt.Fprintf(&b, `  %s="${*:-}"`+"\n", name)
		if r.Variadic.EnvVar {
			fmt.Fprintf(&b, "  export %s\n", name)
		}
	}
	return b.String(), nil
}

// dependencyCall emits a before-dependency invocation: it only forces the
// dependency to re-run when the current recipe itself was forced, so an
// ordinary (non-forced) run still gets the dependency's own at-most-once
// HAS_RUN guard.
func (g *generator) dependencyCall(r *ast.Recipe, d ast.Dependency) (string, error) {
	args, err := g.evalDependencyArgs(d)
	if err != nil {
		return "", err
	}
	forceRecipe := g.mangler.Clean("", "FORCE_"+r.Name)
	forceDep := g.mangler.Clean("", "FORCE_"+d.Name)
	call := g.mangler.Fun(d.Name)
	if len(args) > 0 {
		call += " " + strings.Join(args, " ")
	}
	return fmt.Sprintf(`  if [ "${%s:-}" = "true" ]; then
    %s="true"
  fi
  %s
  if [ "${%s:-}" = "true" ]; then
    %s=
  fi
`, forceRecipe, forceDep, call, forceRecipe, forceDep), nil
}

// afterDependencyCall emits an after-dependency invocation. Unlike a
// before-dependency, an after-dependency must run every time its recipe's
// body runs regardless of whether it already ran earlier in the process —
// it unconditionally sets and clears the dependency's own FORCE flag
// around the call instead of only doing so when the current recipe was
// itself forced.
func (g *generator) afterDependencyCall(d ast.Dependency) (string, error) {
	args, err := g.evalDependencyArgs(d)
	if err != nil {
		return "", err
	}
	forceDep := g.mangler.Clean("", "FORCE_"+d.Name)
	call := g.mangler.Fun(d.Name)
	if len(args) > 0 {
		call += " " + strings.Join(args, " ")
	}
	return fmt.Sprintf(`  %s="true"
  %s
  %s=
`, forceDep, call, forceDep), nil
}

func (g *generator) evalDependencyArgs(d ast.Dependency) ([]string, error) {
	var args []string
	for _, a := range d.Args {
		v, err := g.eval.Eval(a, true)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

// positionalArgsSuffix returns the trailing arguments appended to a body
// line's shell invocation when `set positional-arguments` is active, so
// the line sees the recipe's name as $0 and its parameters as $1, $2, ... in
// addition to their named shell variables.
func (g *generator) positionalArgsSuffix(r *ast.Recipe) string {
	if !g.model.SettingBool("positional-arguments") {
		return ""
	}
	parts := []string{quoteSh(r.Name)}
	for _, p := range r.Parameters {
		parts = append(parts, `"${`+g.mangler.Var(p.Name)+`}"`)
	}
	if r.Variadic != nil {
		parts = append(parts, `"${`+g.mangler.Var(r.Variadic.Name)+`}"`)
	}
	return " " + strings.Join(parts, " ")
}

func (g *generator) bodyLines(r *ast.Recipe) (string, error) {
	if len(r.Body) == 0 {
		return "", nil
	}
	var b strings.Builder
	interpNum := 1
	posArgs := g.positionalArgsSuffix(r)
	for _, line := range r.Body {
		echoStatic := "false"
		if !r.Quiet && !line.Prefix.Silent {
			echoStatic = "true"
		}
		// cmd is the command text as echoed; run is the same text as one
		// shell word, with each interpolation spliced in outside the single
		// quotes so its value reaches the child shell.
		var cmd, run strings.Builder
		for _, seg := range line.Segments {
			if seg.Interp == nil {
				cmd.WriteString(seg.Text)
				run.WriteString(quoteSh(seg.Text))
				continue
			}
			val, err := g.eval.Eval(seg.Interp, true)
			if err != nil {
				return "", err
			}
			varName := fmt.Sprintf("INTERP_%d", interpNum)
			interpNum++
			fmt.Fprintf(&b, `  %s=%s || recipe_error '%s' "${LINENO:-}"`+"\n", varName, val, r.Name)
			cmd.WriteString("${" + varName + "}")
			run.WriteString(`"${` + varName + `}"`)
		}

		quoted := run.String()
		if quoted == "" {
			quoted = "''"
		}
		fmt.Fprintf(&b, "  if { [ %s = 'true' ] || [ \"${VERBOSE:-false}\" = 'true' ]; } && [ \"${QUIET:-false}\" != 'true' ]; then\n"+
			"    echo \"${BOLD}+ %s${NOCOLOR}\" >&2\n  fi\n", echoStatic, escapeForEcho(cmd.String()))
		runner := fmt.Sprintf(`env "${DEFAULT_SHELL}" ${DEFAULT_SHELL_ARGS} %s%s`, quoted, posArgs)
		var runStmt string
		if line.Prefix.IgnoreError {
			runStmt = fmt.Sprintf("%s || true", runner)
		} else {
			runStmt = fmt.Sprintf(`%s || recipe_error '%s' "${LINENO:-}"`, runner, r.Name)
		}
		if line.Prefix.Elevated {
			// Elevated lines run even under --dry-run.
			fmt.Fprintf(&b, "  %s\n", runStmt)
		} else {
			fmt.Fprintf(&b, "  if [ \"${DRY_RUN:-}\" != \"true\" ]; then\n    %s\n  fi\n", runStmt)
		}
	}
	return b.String(), nil
}

// platformCondition renders a recipe variant's platform attributes as a
// shell test, ORing multiple attributes together (a variant may carry more
// than one, e.g. both [linux] and [macos] on the same declaration).
func platformCondition(attrs []string) string {
	conds := make([]string, len(attrs))
	for i, a := range attrs {
		if a == "unix" {
			conds[i] = `[ "$(os_family)" = 'unix' ]`
		} else {
			conds[i] = fmt.Sprintf(`[ "$(os)" = '%s' ]`, a)
		}
	}
	return strings.Join(conds, " || ")
}

// platformDispatchers emits, for every recipe name declared with at least
// one platform-gated variant, a dispatcher occupying that plain recipe
// name: it tests the running OS and calls into whichever variant function
// matches, or reports an error if none does. This is the function every
// caller (dispatch table, dependency calls) actually invokes; the variants
// themselves live under recipeFuncName's suffixed names.
func (g *generator) platformDispatchers() string {
	byName := map[string][]*ast.Recipe{}
	var names []string
	for _, r := range g.model.Recipes {
		if len(model.PlatformAttributes(r)) == 0 {
			continue
		}
		if _, ok := byName[r.Name]; !ok {
			names = append(names, r.Name)
		}
		byName[r.Name] = append(byName[r.Name], r)
	}
	if len(names) == 0 {
		return ""
	}
	g.eval.UseBuiltin("os")
	g.eval.UseBuiltin("os_family")
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s() {\n", g.mangler.Fun(name))
		for i, r := range byName[name] {
			cond := platformCondition(model.PlatformAttributes(r))
			branch := "elif"
			if i == 0 {
				branch = "if"
			}
			fmt.Fprintf(&b, "  %s %s; then\n    %s \"${@}\"\n", branch, cond, g.recipeFuncName(r))
		}
		fmt.Fprintf(&b, "  else\n    echo_error \"No "+"`"+"%s"+"`"+" recipe for this operating system\"\n    exit 1\n  fi\n}\n", name)
	}
	return b.String()
}

func escapeForEcho(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// quoteSh single-quotes a literal shell string fragment.
func quoteSh(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
