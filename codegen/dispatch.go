package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-justsh/justsh/ast"
)

// dispatchAndEntrypoint emits the generated script's argument parser, the
// recipe dispatch table, the --list/--dump/--evaluate/--choose/etc.
// subcommands, and the final entrypoint that runs it all.
func (g *generator) dispatchAndEntrypoint() string {
	var b strings.Builder
	b.WriteString(headerComment("CLI"))
	b.WriteString("\n\n")
	b.WriteString(g.listFn())
	b.WriteByte('\n')
	b.WriteString(g.summaryFn())
	b.WriteByte('\n')
	b.WriteString(g.showFn())
	b.WriteByte('\n')
	b.WriteString(g.dumpFn())
	b.WriteByte('\n')
	b.WriteString(g.evaluateFn())
	b.WriteByte('\n')
	b.WriteString(g.setVarFn())
	b.WriteByte('\n')
	b.WriteString(g.chooseFn())
	b.WriteByte('\n')
	b.WriteString(g.initFn())
	b.WriteByte('\n')
	b.WriteString(g.usageFn())
	b.WriteByte('\n')
	b.WriteString(g.dispatchTable())
	b.WriteByte('\n')
	b.WriteString(g.entrypoint())
	return b.String()
}

// listFn implements --list. SORTED (default true, cleared by
// -u/--unsorted) picks between two compile-time-baked orderings, since
// there's no runtime sort of an already-materialized list of echo lines.
func (g *generator) listFn() string {
	declOrder := g.model.PublicRecipes()
	alphaOrder := append([]*ast.Recipe(nil), declOrder...)
	sort.Slice(alphaOrder, func(i, j int) bool { return alphaOrder[i].Name < alphaOrder[j].Name })
	return fmt.Sprintf(`list_fn() {
  echo "${LIST_HEADING}"
  if [ "${SORTED}" = 'true' ]; then
%s  else
%s  fi
}
`, listEntries(alphaOrder), listEntries(declOrder))
}

func listEntries(recipes []*ast.Recipe) string {
	var b strings.Builder
	for _, r := range recipes {
		doc := ""
		if r.DocComment != "" {
			doc = " # " + r.DocComment
		}
		fmt.Fprintf(&b, `    echo "${LIST_PREFIX}${CYAN}%s${NOCOLOR}%s"`+"\n", r.Name, escapeForEcho(doc))
	}
	return b.String()
}

// summaryFn implements --summary: recipe names, one line, declaration
// order, regardless of visibility.
func (g *generator) summaryFn() string {
	names := g.model.AllRecipeNames()
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteSh(n)
	}
	return fmt.Sprintf("summary_fn() {\n  echo %s\n}\n", strings.Join(quoted, " "))
}

// showFn implements --show: it prints the recipe's own justfile source,
// sliced from the original text at compile time using each recipe's
// starting line and the next recipe's starting line as bounds. This
// doesn't include a recipe's leading attribute or doc-comment lines, since
// the parser only records the position of the header line itself.
func (g *generator) showFn() string {
	lines := strings.Split(g.opts.Source, "\n")
	var cases strings.Builder
	seen := map[string]bool{}
	for i, r := range g.model.Recipes {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		start := r.Pos_.Line - 1
		if start < 0 {
			start = 0
		}
		end := len(lines)
		if i+1 < len(g.model.Recipes) {
			end = g.model.Recipes[i+1].Pos_.Line - 1
		}
		if end > len(lines) {
			end = len(lines)
		}
		if start > end {
			start = end
		}
		snippet := strings.TrimRight(strings.Join(lines[start:end], "\n"), "\n")
		fmt.Fprintf(&cases, "  %s) printf '%%s\\n' %s ;;\n", r.Name, quoteSh(snippet))
	}
	return fmt.Sprintf(`show_fn() {
  case "${1:-}" in
%s  *)
    echo_error "Recipe `+"`"+`${1:-}`+"`"+` not found"
    exit 1
    ;;
  esac
}
`, cases.String())
}

func (g *generator) dumpFn() string {
	encoded := quoteSh(g.opts.Source)
	return fmt.Sprintf(`dump_fn() {
  printf '%%s\n' %s
}
`, encoded)
}

// evaluateFn implements --evaluate: with no argument it prints every
// variable as NAME=VALUE; with one, it prints just that variable's bare
// value.
func (g *generator) evaluateFn() string {
	var all strings.Builder
	var cases strings.Builder
	for _, v := range g.model.Variables {
		name := g.mangler.Var(v.Name)
		fmt.Fprintf(&all, `  echo "%s=${%s}"`+"\n", v.Name, name)
		fmt.Fprintf(&cases, "  %s) echo \"${%s}\" ;;\n", v.Name, name)
	}
	return fmt.Sprintf(`evaluate_fn() {
  assign_variables
  if [ "${#}" -gt 0 ]; then
    case "${1}" in
%s  *)
    echo_error "Unknown variable `+"`"+`${1}`+"`"+`"
    exit 1
    ;;
    esac
    return 0
  fi
%s}
`, cases.String(), all.String())
}

// setVarFn implements the --set/NAME=VALUE override mechanism. Shell can't
// build a dynamic identifier from an arbitrary justfile variable name (the
// mangler may have renamed it), so overriding is a closed case dispatch
// over every declared variable's mangled identifier.
func (g *generator) setVarFn() string {
	var cases strings.Builder
	for _, v := range g.model.Variables {
		name := g.mangler.Var(v.Name)
		override := g.overrideFlag(v.Name)
		fmt.Fprintf(&cases, "  %s) %s=\"${2}\"; %s='true' ;;\n", v.Name, name, override)
	}
	return fmt.Sprintf(`set_var() {
  case "${1}" in
%s  *)
    echo_error "Unknown variable `+"`"+`${1}`+"`"+`"
    exit 1
    ;;
  esac
}
`, cases.String())
}

func (g *generator) chooseFn() string {
	return `choose_fn() {
  list_fn | tail -n +2 | sed 's/^    //' | cut -d ' ' -f 1 | "${CHOOSER}"
}
`
}

func (g *generator) initFn() string {
	return `init_fn() {
  if [ -e ./justfile ]; then
    echo_error "./justfile already exists"
    exit 1
  fi
  cat > ./justfile <<'JUSTFILE_EOF'
default:
    @echo "Hello, world!"
JUSTFILE_EOF
  echo "wrote ./justfile"
}
`
}

func (g *generator) usageFn() string {
	return fmt.Sprintf(`usage() {
  echo "${BOLD}usage:${NOCOLOR} %s [OPTIONS] [RECIPE [ARGS...]] [NAME=VALUE...]"
  echo
  echo "options:"
  echo "  -l, --list                list available recipes"
  echo "  --summary                 print recipe names in declaration order"
  echo "  --show RECIPE             print a recipe's source"
  echo "  --dump                    print the original justfile"
  echo "  --evaluate [VAR]          print resolved variable values"
  echo "  --choose                  select a recipe interactively via \${CHOOSER}"
  echo "  --chooser CMD             set the interactive chooser command"
  echo "  --init                    write a starter justfile"
  echo "  -u, --unsorted            list recipes in source order"
  echo "  --list-heading TEXT       heading printed above --list output"
  echo "  --list-prefix TEXT        prefix printed before each --list entry"
  echo "  -q, --quiet               suppress command echoing"
  echo "  --verbose                 echo commands even when normally silent"
  echo "  -n, --dry-run             print what would run without executing it"
  echo "  --force                   ignore the recipe-already-ran cache"
  echo "  --set VAR VALUE           override a variable's value"
  echo "  --shell SHELL             shell used to run recipe lines"
  echo "  --shell-arg ARG           extra argument passed to that shell"
  echo "  --color WHEN              always, never, or auto"
  echo "  --justfile PATH           accepted for compatibility, has no effect"
  echo "  --working-directory DIR   run as if invoked from DIR"
  echo "  -V, --version             print the script's justsh version"
  echo "  -h, --help                show this message"
}
`, g.opts.Outfile)
}

// recipeShiftBlock returns the shell fragment that advances past exactly
// one invocation's own arguments after its function has run, so that any
// further tokens on the command line are free to name the next recipe in
// a `+"`recipe [args…] [recipe [args…]]…`"+` chain. A variadic recipe consumes
// every token remaining, so it always ends the dispatch loop.
func recipeShiftBlock(r *ast.Recipe) string {
	if r.Variadic != nil {
		return "      break\n"
	}
	n := len(r.Parameters)
	if n == 0 {
		return ""
	}
	return fmt.Sprintf(`      if [ "${#}" -ge %d ]; then
        shift %d
      elif [ "${#}" -gt 0 ]; then
        shift "${#}"
      fi
`, n, n)
}

// dispatchTable emits dispatch(), which loops over its own positional
// arguments so a command line naming several recipes in a row —
// `+"`recipe1 a b recipe2 c`"+` — runs each in turn, consuming only the
// arguments that belong to it before looking at the next token.
func (g *generator) dispatchTable() string {
	var cases strings.Builder
	seen := map[string]bool{}
	for _, r := range g.model.Recipes {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		fmt.Fprintf(&cases, "    %s)\n      %s \"$@\"\n%s      ;;\n",
			r.Name, g.mangler.Fun(r.Name), recipeShiftBlock(r))
	}
	for alias, target := range g.model.Aliases {
		targetRecipe, ok := g.model.RecipeByName(target)
		if !ok {
			continue
		}
		fmt.Fprintf(&cases, "    %s)\n      %s \"$@\"\n%s      ;;\n",
			alias, g.mangler.Fun(target), recipeShiftBlock(targetRecipe))
	}
	return fmt.Sprintf(`dispatch() {
  while [ "${#}" -gt 0 ]; do
    NAME="${1}"
    shift
    case "${NAME}" in
%s    *)
      echo_error "Unknown recipe `+"`"+`${NAME}`+"`"+`"
      exit 1
      ;;
    esac
  done
}
`, cases.String())
}

func (g *generator) entrypoint() string {
	var firstRecipe string
	if r, ok := g.model.DefaultRecipe(); ok {
		firstRecipe = r.Name
	}
	return fmt.Sprintf(`main() {
  while [ "${#}" -gt 0 ]; do
    case "${1}" in
    -l|--list) assign_variables; list_fn; exit 0 ;;
    --summary) summary_fn; exit 0 ;;
    --show) show_fn "${2:-}"; exit 0 ;;
    --dump) dump_fn; exit 0 ;;
    --evaluate)
      case "${2:-}" in
      ''|-*) evaluate_fn ;;
      *) evaluate_fn "${2}" ;;
      esac
      exit 0
      ;;
    --choose)
      shift
      set -- "$(choose_fn)" "$@"
      continue
      ;;
    --chooser) CHOOSER="${2}"; shift 2; continue ;;
    --init) init_fn; exit 0 ;;
    -u|--unsorted) SORTED='false'; shift; continue ;;
    --list-heading) LIST_HEADING="${2}"; shift 2; continue ;;
    --list-prefix) LIST_PREFIX="${2}"; shift 2; continue ;;
    -q|--quiet) QUIET='true'; shift; continue ;;
    --verbose) VERBOSE='true'; shift; continue ;;
    -n|--dry-run) DRY_RUN='true'; shift; continue ;;
    --force) FORCE_ALL='true'; shift; continue ;;
    --set)
      set_var "${2}" "${3}"
      shift 3
      continue
      ;;
    --shell) DEFAULT_SHELL="${2}"; shift 2; continue ;;
    --shell-arg) DEFAULT_SHELL_ARGS="${DEFAULT_SHELL_ARGS} ${2}"; shift 2; continue ;;
    --color)
      case "${2:-}" in
      always|never|auto) COLOR_MODE="${2}" ;;
      *)
        echo_error "Argument `+"`"+`${2:-}`+"`"+` to `+"`"+`--color`+"`"+` was not one of `+"`"+`always`+"`"+`, `+"`"+`never`+"`"+`, or `+"`"+`auto`+"`"+`"
        exit 2
        ;;
      esac
      compute_colors
      shift 2
      continue
      ;;
    --justfile)
      echo_error "`+"`"+`--justfile`+"`"+` is accepted for compatibility but has no effect; this script is self-contained" >&2
      shift 2
      continue
      ;;
    --working-directory)
      cd "${2}" || exit 1
      shift 2
      continue
      ;;
    -V|--version) echo "justsh %s"; exit 0 ;;
    -h|--help) usage; exit 0 ;;
    --) shift; break ;;
    -*)
      echo_error "Unknown option `+"`"+`${1}`+"`"+`"
      usage >&2
      exit 2
      ;;
    *=*)
      set_var "${1%%%%=*}" "${1#*=}"
      shift
      continue
      ;;
    *) break ;;
    esac
  done

  assign_variables

  if [ "${#}" -eq 0 ]; then
    set -- %s
  fi

  dispatch "$@"
}

main "$@"
`, g.opts.Version, quoteSh(firstRecipe))
}
