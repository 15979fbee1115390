// Package model builds the semantic model of a justfile: resolved
// variables, aliases, settings, and the recipe dependency graph, ready for
// expression lowering and code generation.
package model

import (
	"fmt"
	"sort"

	"github.com/go-justsh/justsh/ast"
	"github.com/go-justsh/justsh/errors"
	"github.com/go-justsh/justsh/internal/suggest"
)

var knownAttributes = map[string]bool{
	"private": true, "no-cd": true, "no-exit-message": true, "linux": true,
	"macos": true, "unix": true, "windows": true, "group": true, "doc": true,
}

var knownSettings = map[string]bool{
	"export": true, "positional-arguments": true, "allow-duplicate-recipes": true,
	"dotenv-load": true, "dotenv-filename": true, "dotenv-path": true, "fallback": true,
	"ignore-comments": true, "shell": true, "tempdir": true,
	"windows-powershell": true, "windows-shell": true,
}

var platformAttrs = []string{"windows", "macos", "linux", "unix"}

// PlatformAttributes returns r's platform-gate attribute names (a subset of
// windows/macos/linux/unix), in the fixed order above, so two recipes
// sharing a name but targeting different platforms get a deterministic,
// stable function-name suffix.
func PlatformAttributes(r *ast.Recipe) []string {
	var out []string
	for _, a := range platformAttrs {
		if r.HasAttribute(a) {
			out = append(out, a)
		}
	}
	return out
}

// Variable is a resolved top-level assignment.
type Variable struct {
	Name     string
	Value    ast.Expr
	Exported bool
}

// Model is the fully resolved semantic form of a justfile.
type Model struct {
	Settings  map[string]*ast.Setting
	Variables []Variable // assignment order preserved
	Aliases   map[string]string
	Recipes   []*ast.Recipe // every recipe item in source order, including platform variants
	byName    map[string][]*ast.Recipe
	order     []string // topological recipe-dependency order
}

// RecipeByName looks up a recipe, following alias resolution. When a name
// has multiple platform-gated variants, the first declared variant is
// returned; callers needing every variant should use RecipeVariants.
func (m *Model) RecipeByName(name string) (*ast.Recipe, bool) {
	if target, ok := m.Aliases[name]; ok {
		name = target
	}
	variants, ok := m.byName[name]
	if !ok || len(variants) == 0 {
		return nil, false
	}
	return variants[0], true
}

// RecipeVariants returns every recipe declared under name, following alias
// resolution. A name has more than one variant only when each carries a
// distinct platform attribute.
func (m *Model) RecipeVariants(name string) []*ast.Recipe {
	if target, ok := m.Aliases[name]; ok {
		name = target
	}
	return m.byName[name]
}

// ExportAll reports whether the global `set export` setting is active, in
// which case every variable (not just those declared with `export name :=`)
// is exported into recipe environments.
func (m *Model) ExportAll() bool {
	return m.settingBool("export")
}

// settingBool reports the boolean value of a flag-style setting (`set key`
// or `set key := true/false`), defaulting to false when absent.
func (m *Model) settingBool(key string) bool {
	return m.SettingBool(key)
}

// SettingBool reports the boolean value of a flag-style setting, defaulting
// to false when the setting is absent or not boolean-valued.
func (m *Model) SettingBool(key string) bool {
	s, ok := m.Settings[key]
	return ok && s.ValueKind == ast.SettingBool && s.Bool
}

// SettingString returns a string-valued setting (e.g. `set dotenv-filename
// := ".env.local"`), or ok=false when absent or not string-valued.
func (m *Model) SettingString(key string) (string, bool) {
	s, ok := m.Settings[key]
	if !ok || s.ValueKind != ast.SettingString {
		return "", false
	}
	return s.Str, true
}

// SettingList returns a list-valued setting (e.g. `set shell := ["bash",
// "-c"]`), or ok=false when absent or not list-valued.
func (m *Model) SettingList(key string) ([]string, bool) {
	s, ok := m.Settings[key]
	if !ok || s.ValueKind != ast.SettingList {
		return nil, false
	}
	return s.List, true
}

// TopoOrder returns recipe names in an order where every recipe's
// dependencies precede it.
func (m *Model) TopoOrder() []string { return m.order }

// Build resolves a parsed Program into a Model, or returns the first
// errors.CompileError found.
func Build(prog *ast.Program) (*Model, error) {
	m := &Model{
		Settings: make(map[string]*ast.Setting),
		Aliases:  make(map[string]string),
		byName:   make(map[string][]*ast.Recipe),
	}

	var pendingDoc string
	seen := make(map[string]ast.Item)

	for _, item := range prog.Items {
		switch it := item.(type) {
		case *ast.Comment:
			pendingDoc = it.Text
			continue
		case *ast.Setting:
			if !knownSettings[it.Key] {
				return nil, errors.At(errors.KindUnknownSetting, it.Pos_.Line, it.Pos_.Column,
					fmt.Sprintf("unknown setting `%s`", it.Key))
			}
			m.Settings[it.Key] = it
		case *ast.Assignment:
			if prior, ok := seen[it.Name]; ok {
				return nil, duplicateErr(it.Name, it.Pos_, prior.Pos())
			}
			seen[it.Name] = it
			m.Variables = append(m.Variables, Variable{Name: it.Name, Value: it.Value, Exported: it.Exported})
		case *ast.Alias:
			if prior, ok := seen[it.Name]; ok {
				return nil, duplicateErr(it.Name, it.Pos_, prior.Pos())
			}
			seen[it.Name] = it
			m.Aliases[it.Name] = it.Target
		case *ast.Recipe:
			if prior, ok := seen[it.Name]; ok {
				// A recipe name may repeat only when the new declaration
				// carries a platform gate (windows/macos/linux/unix) or the
				// file opts in globally via `set allow-duplicate-recipes`.
				// Platform variants are always allowed regardless of that
				// setting: they dispatch to different functions at runtime,
				// so they're never ambiguous.
				_, priorIsRecipe := prior.(*ast.Recipe)
				if !priorIsRecipe || (len(PlatformAttributes(it)) == 0 && !m.settingBool("allow-duplicate-recipes")) {
					return nil, duplicateErr(it.Name, it.Pos_, prior.Pos())
				}
			} else {
				seen[it.Name] = it
			}
			if it.DocComment == "" && pendingDoc != "" {
				it.DocComment = pendingDoc
			}
			for _, a := range it.Attributes {
				if !knownAttributes[a.Name] {
					return nil, errors.At(errors.KindUnknownAttribute, a.Pos_.Line, a.Pos_.Column,
						fmt.Sprintf("unknown attribute `%s`", a.Name))
				}
			}
			m.Recipes = append(m.Recipes, it)
			m.byName[it.Name] = append(m.byName[it.Name], it)
		}
		pendingDoc = ""
	}

	if err := m.resolveAliasCycles(); err != nil {
		return nil, err
	}
	if err := m.resolveRecipeGraph(); err != nil {
		return nil, err
	}
	return m, nil
}

func duplicateErr(name string, pos, _ ast.Position) *errors.CompileError {
	return errors.At(errors.KindDuplicateName, pos.Line, pos.Column,
		fmt.Sprintf("`%s` is already defined", name))
}

func (m *Model) resolveAliasCycles() error {
	for name := range m.Aliases {
		visited := map[string]bool{}
		cur := name
		for {
			visited[cur] = true
			target, isAlias := m.Aliases[cur]
			if !isAlias {
				if _, ok := m.byName[cur]; !ok {
					return errors.New(errors.KindUnknownRecipe,
						fmt.Sprintf("alias `%s` targets unknown recipe `%s`", name, cur))
				}
				break
			}
			if visited[target] {
				return errors.New(errors.KindCycle, fmt.Sprintf("alias cycle detected starting at `%s`", name))
			}
			cur = target
		}
	}
	return nil
}

func (m *Model) resolveRecipeGraph() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var order []string

	var visit func(name string, pos ast.Position) error
	visit = func(name string, pos ast.Position) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return errors.At(errors.KindCycle, pos.Line, pos.Column,
				fmt.Sprintf("dependency cycle detected at `%s`", name))
		}
		variants := m.RecipeVariants(name)
		if len(variants) == 0 {
			names := m.recipeNames()
			err := errors.At(errors.KindUnknownRecipe, pos.Line, pos.Column,
				fmt.Sprintf("recipe `%s` is not defined", name))
			if s, ok := suggest.Nearest(name, names); ok {
				err = err.WithSuggestion(s)
			}
			return err
		}
		color[name] = gray
		// Every platform variant's dependencies are edges out of this name:
		// only one variant runs at a time, but the graph has to account for
		// whichever one the runtime dispatcher picks.
		for _, r := range variants {
			for _, d := range r.BeforeDeps {
				if err := visit(d.Name, d.Pos_); err != nil {
					return err
				}
			}
			for _, d := range r.AfterDeps {
				if err := visit(d.Name, d.Pos_); err != nil {
					return err
				}
			}
		}
		color[name] = black
		order = append(order, name)
		return nil
	}

	for _, r := range m.Recipes {
		if err := visit(r.Name, r.Pos_); err != nil {
			return err
		}
	}
	m.order = order
	return nil
}

func (m *Model) recipeNames() []string {
	names := make([]string, 0, len(m.byName))
	for n := range m.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PublicRecipes returns recipes without [private] and not underscore-prefixed,
// in source order, for `--list` output. Platform variants of the same name
// are collapsed to a single entry.
func (m *Model) PublicRecipes() []*ast.Recipe {
	var out []*ast.Recipe
	seen := map[string]bool{}
	for _, r := range m.Recipes {
		if seen[r.Name] {
			continue
		}
		if r.HasAttribute("private") {
			continue
		}
		if len(r.Name) > 0 && r.Name[0] == '_' {
			continue
		}
		seen[r.Name] = true
		out = append(out, r)
	}
	return out
}

// AllRecipeNames returns every recipe name, including private ones, in
// declaration order, collapsing platform variants of the same name into a
// single entry. Used by --summary, which reports every recipe regardless
// of its visibility.
func (m *Model) AllRecipeNames() []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range m.Recipes {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		out = append(out, r.Name)
	}
	return out
}

// DefaultRecipe returns the first recipe declared, used when `just.sh` is
// invoked with no target, or false if the justfile defines none.
func (m *Model) DefaultRecipe() (*ast.Recipe, bool) {
	if len(m.Recipes) == 0 {
		return nil, false
	}
	return m.Recipes[0], true
}
