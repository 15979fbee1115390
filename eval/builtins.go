package eval

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/go-justsh/justsh/ast"
)

// builtin is one entry of the closed builtin-function table. Body is a
// POSIX sh function definition; MinArgs/MaxArgs bound the argument count
// -1 for MaxArgs means unbounded (join, error).
type builtin struct {
	MinArgs, MaxArgs int
	Body             string
	Deps             []string // other builtins this one's shell body calls
}

// builtins is the complete closed table a recipe or variable expression
// may call. Anything outside this table is an UnimplementedFunctionError.
var builtins = map[string]builtin{
	"os": {0, 0, `os() {
  case "$(uname -s | tr '[:upper:]' '[:lower:]')" in
  *darwin*) echo "macos" ;;
  *linux*) echo "linux" ;;
  *windows*|*msys*) echo "windows" ;;
  *) echo "unknown" ;;
  esac
}
`, nil},
	"os_family": {0, 0, `os_family() {
  case "$(uname -s | tr '[:upper:]' '[:lower:]')" in
  *windows*|*msys*) echo "windows" ;;
  *) echo "unix" ;;
  esac
}
`, nil},
	"arch": {0, 0, `arch() {
  case "$(uname -m | tr '[:upper:]' '[:lower:]')" in
  *aarch64*|*armv[8-9]*) echo "aarch64" ;;
  *aarch32*|*arm*) echo "arm" ;;
  *86_64*) echo "x86_64" ;;
  *86*) echo "x86" ;;
  *) echo "unknown" ;;
  esac
}
`, nil},
	"env_var": {1, 1, `env_var() {
  sh -c 'set -u; echo "${'"${1}"'}"' 2> /dev/null || (
    echo_error "Call to function "'` + "`env_var`" + `"'" failed: environment variable "'` + "`" + `"${1}"'` + "`" + `"'" not present"
    exit 1
  ) || exit "${?}"
}
`, nil},
	"env_var_or_default": {2, 2, `env_var_or_default() {
  VARSTR="$(
    sh -c 'set -u; echo "${'"${1}"'}"' 2> /dev/null \
      || echo "${1}=${2}"
  )"
  echo "${VARSTR}" | sed 's/^[^=][^=]*=\(.*\)$/\1/'
}
`, nil},
	"justfile":                   {0, 0, "justfile() {\n  realpath_portable \"${0}\"\n}\n", nil},
	"justfile_directory":         {0, 0, "justfile_directory() {\n  realpath_portable \"$(dirname \"${0}\")\"\n}\n", nil},
	"invocation_directory":       {0, 0, "invocation_directory() {\n  realpath_portable \"${INVOCATION_DIRECTORY}\"\n}\n", nil},
	"invocation_directory_native": {0, 0, "invocation_directory_native() {\n  realpath_portable \"${INVOCATION_DIRECTORY}\"\n}\n", nil},
	"just_executable":             {0, 0, "just_executable() {\n  realpath_portable \"${0}\"\n}\n", nil},
	"just_pid": {0, 0, `just_pid() {
  echo "${$}"
}
`, nil},
	"clean": {1, 1, `clean() {
  printf "%s" "${1}" | sed 's:/\{2,\}:/:g; s:/\./:/:g; s:/$::'
}
`, nil},
	"join": {1, -1, `join() {
  printf "%s/" "${@}" | sed 's:/$::'
}
`, nil},
	"absolute_path": {1, 1, "absolute_path() {\n  realpath \"${1}\"\n}\n", nil},
	"extension": {1, 1, `extension() {
  BASE="$(basename "${1}")"
  case "${BASE}" in
  *.*) printf "%s" "${BASE##*.}" ;;
  *) printf "" ;;
  esac
}
`, nil},
	"file_name": {1, 1, "file_name() {\n  basename \"${1}\"\n}\n", nil},
	"file_stem": {1, 1, `file_stem() {
  BASE="$(basename "${1}")"
  printf "%s" "${BASE%.*}"
}
`, nil},
	"parent_directory": {1, 1, "parent_directory() {\n  dirname \"${1}\"\n}\n", nil},
	"without_extension": {1, 1, `without_extension() {
  case "${1}" in
  */*) DIR="$(dirname "${1}")/" ;;
  *) DIR="" ;;
  esac
  BASE="$(basename "${1}")"
  printf "%s%s" "${DIR}" "${BASE%.*}"
}
`, nil},
	"quote": {1, 1, `quote() {
  printf "'"
  printf "%s" "${1}" | sed "s/'/'\\\\''/g"
  printf "'"
}
`, nil},
	"replace": {3, 3, `replace() {
  printf "%s" "${1}" | sed "s/$(printf '%s' "${2}" | sed 's/[&/\]/\\&/g')/$(printf '%s' "${3}" | sed 's/[&/\]/\\&/g')/g"
}
`, nil},
	"replace_regex": {3, 3, `replace_regex() {
  printf "%s" "${1}" | sed -E "s/${2}/${3}/g"
}
`, nil},
	"trim": {1, 1, `trim() {
  printf "%s" "${1}" | sed 's/^[[:space:]]*//; s/[[:space:]]*$//'
}
`, nil},
	"uppercase": {1, 1, "uppercase() {\n  echo \"${1}\" | tr '[:lower:]' '[:upper:]'\n}\n", nil},
	"lowercase": {1, 1, "lowercase() {\n  echo \"${1}\" | tr '[:upper:]' '[:lower:]'\n}\n", nil},
	"capitalize": {1, 1, `capitalize() {
  FIRST="$(printf "%s" "${1}" | cut -c1 | tr '[:lower:]' '[:upper:]')"
  REST="$(printf "%s" "${1}" | cut -c2-)"
  printf "%s%s" "${FIRST}" "${REST}"
}
`, nil},
	"snakecase": {1, 1, `snakecase() {
  printf "%s" "${1}" | sed -E 's/([a-z0-9])([A-Z])/\1_\2/g; s/[- ]+/_/g' | tr '[:upper:]' '[:lower:]'
}
`, nil},
	"kebabcase": {1, 1, `kebabcase() {
  printf "%s" "${1}" | sed -E 's/([a-z0-9])([A-Z])/\1-\2/g; s/[_ ]+/-/g' | tr '[:upper:]' '[:lower:]'
}
`, nil},
	"shoutysnakecase": {1, 1, `shoutysnakecase() {
  snakecase "${1}" | tr '[:lower:]' '[:upper:]'
}
`, []string{"snakecase"}},
	"shoutykebabcase": {1, 1, `shoutykebabcase() {
  kebabcase "${1}" | tr '[:lower:]' '[:upper:]'
}
`, []string{"kebabcase"}},
	"lowercamelcase": {1, 1, `lowercamelcase() {
  WORD1=true
  RESULT=""
  for PART in $(printf "%s" "${1}" | sed -E 's/[-_ ]+/ /g'); do
    if "${WORD1}"; then
      RESULT="${RESULT}$(lowercase "${PART}")"
      WORD1=false
    else
      RESULT="${RESULT}$(capitalize "$(lowercase "${PART}")")"
    fi
  done
  printf "%s" "${RESULT}"
}
`, []string{"lowercase", "capitalize"}},
	"path_exists": {1, 1, `path_exists() {
  test -e "${1}" && echo "true" || echo "false"
}
`, nil},
	"error": {0, -1, `error() {
  echo_error "Call to function "'` + "`error`" + `"'" failed: ${*:-}"
  exit 1
}
`, nil},
	"uuid": {0, 0, `uuid() {
  if [ -e /proc/sys/kernel/random/uuid ]; then
    cat /proc/sys/kernel/random/uuid
  elif type uuidgen > /dev/null 2>&1; then
    uuidgen | tr '[:upper:]' '[:lower:]'
  else
    echo_error "No UUID source available"
    exit 1
  fi
}
`, nil},
	"sha256": {1, 1, `sha256() {
  if type sha256sum > /dev/null 2>&1; then
    printf "%s" "${1}" | sha256sum --binary | cut -d ' ' -f 1
  else
    echo_error "No sha256sum binary found"
    exit 1
  fi
}
`, nil},
	"sha256_file": {1, 1, `sha256_file() {
  if type sha256sum > /dev/null 2>&1; then
    sha256sum --binary "${1}" | cut -d ' ' -f 1
  else
    echo_error "No sha256sum binary found"
    exit 1
  fi
}
`, nil},
	"blake3": {1, 1, `blake3() {
  if type b3sum > /dev/null 2>&1; then
    printf "%s" "${1}" | b3sum --no-names
  else
    echo_error "No b3sum binary found"
    exit 1
  fi
}
`, nil},
	"blake3_file": {1, 1, `blake3_file() {
  if type b3sum > /dev/null 2>&1; then
    b3sum --no-names "${1}"
  else
    echo_error "No b3sum binary found"
    exit 1
  fi
}
`, nil},
}

func checkArity(name string, argc int) error {
	b := builtins[name]
	if argc < b.MinArgs || (b.MaxArgs >= 0 && argc > b.MaxArgs) {
		return fmt.Errorf("function `%s` called with %d arguments", name, argc)
	}
	return nil
}

// foldCaseCall constant-folds uppercase()/lowercase()/capitalize() calls
// whose sole argument is a literal string, using Unicode-correct casing
// instead of the shell's byte-oriented `tr`. Folding these at compile time
// also means the generated script never needs to carry the tr-based
// runtime function for justfiles that only ever call them on literals.
func foldCaseCall(c *ast.Call) (string, bool) {
	if len(c.Args) != 1 {
		return "", false
	}
	lit, ok := c.Args[0].(*ast.StringLit)
	if !ok {
		return "", false
	}
	switch c.Name {
	case "uppercase":
		return cases.Upper(language.Und).String(lit.Value), true
	case "lowercase":
		return cases.Lower(language.Und).String(lit.Value), true
	case "capitalize":
		// Upper-case the first character only, like the runtime function.
		runes := []rune(lit.Value)
		if len(runes) == 0 {
			return "", true
		}
		return cases.Upper(language.Und).String(string(runes[0])) + string(runes[1:]), true
	}
	return "", false
}
