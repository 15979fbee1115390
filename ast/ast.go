// Package ast defines the tagged-variant syntax tree produced by the
// parser: top-level items in source order, and the expression trees nested
// inside assignments, recipe parameters, and recipe bodies.
package ast

// Position is a 1-based source location.
type Position struct {
	Line   int
	Column int
}

// Item is one top-level element of a justfile: an Assignment, Alias,
// Setting, Comment, or Recipe, in source order.
type Item interface {
	Pos() Position
}

// Attribute is a bracketed recipe marker, e.g. [private] or [confirm("ok?")].
type Attribute struct {
	Name string
	Args []Expr
	Pos_ Position
}

func (a Attribute) Pos() Position { return a.Pos_ }

// Assignment is `name := expr`, optionally `export name := expr`.
type Assignment struct {
	Name     string
	Value    Expr
	Exported bool
	Pos_     Position
}

func (a *Assignment) Pos() Position { return a.Pos_ }

// Alias is `alias name := target`.
type Alias struct {
	Name   string
	Target string
	Pos_   Position
}

func (a *Alias) Pos() Position { return a.Pos_ }

// SettingValueKind distinguishes which field of Setting is populated.
type SettingValueKind int

const (
	SettingBool SettingValueKind = iota
	SettingString
	SettingList
)

// Setting is a top-level `set key` / `set key := value` directive.
type Setting struct {
	Key       string
	ValueKind SettingValueKind
	Bool      bool
	Str       string
	List      []string
	Pos_      Position
}

func (s *Setting) Pos() Position { return s.Pos_ }

// Comment is a top-level `# ...` line, preserved so it can be attached as a
// recipe's documentation when it immediately precedes one.
type Comment struct {
	Text string
	Pos_ Position
}

func (c *Comment) Pos() Position { return c.Pos_ }

// VariadicKind marks how a recipe's trailing parameter captures extra args.
type VariadicKind int

const (
	NotVariadic VariadicKind = iota
	VariadicStar              // *name: zero or more
	VariadicPlus              // +name: one or more
)

// Parameter is one entry of a recipe's parameter list.
type Parameter struct {
	Name     string
	EnvVar   bool // $-prefixed: exported to the recipe's environment
	Default  Expr // nil when required
	Variadic VariadicKind
	Pos_     Position
}

func (p Parameter) Pos() Position { return p.Pos_ }

// Dependency is a recipe name referenced from another recipe's header,
// with optional arguments forwarded to it.
type Dependency struct {
	Name string
	Args []Expr
	Pos_ Position
}

func (d Dependency) Pos() Position { return d.Pos_ }

// LinePrefix is the set of prefix markers on a single recipe body line.
type LinePrefix struct {
	Silent      bool // @
	IgnoreError bool // -
	Elevated    bool // +: runs even under --dry-run
}

// Segment is one piece of a BodyLine: either literal text or an
// interpolation to be substituted at script runtime.
type Segment struct {
	Text          string // set when Interp == nil
	Interp        Expr   // set for {{ expr }} segments
	Continuation  bool   // segment ends with a line-continuation backslash
}

// BodyLine is one line of a recipe's body.
type BodyLine struct {
	Prefix   LinePrefix
	Segments []Segment
	Pos_     Position
}

func (b BodyLine) Pos() Position { return b.Pos_ }

// Recipe is a named, parameterized, attributed sequence of body lines.
type Recipe struct {
	Name            string
	Quiet           bool // leading @ before the recipe name: invert line echoing
	Parameters      []Parameter
	Variadic        *Parameter
	BeforeDeps      []Dependency
	AfterDeps       []Dependency
	Body            []BodyLine
	Attributes      []Attribute
	DocComment      string
	Pos_            Position
}

func (r *Recipe) Pos() Position { return r.Pos_ }

// HasAttribute reports whether the recipe carries the named attribute.
func (r *Recipe) HasAttribute(name string) bool {
	for _, a := range r.Attributes {
		if a.Name == name {
			return true
		}
	}
	return false
}

// AttributeNames returns the recipe's attribute names as a set-like slice.
func (r *Recipe) AttributeNames() []string {
	names := make([]string, len(r.Attributes))
	for i, a := range r.Attributes {
		names[i] = a.Name
	}
	return names
}

// IsShebang reports whether the recipe's body should run as a standalone
// script rather than line-by-line.
func (r *Recipe) IsShebang() bool {
	if len(r.Body) == 0 || len(r.Body[0].Segments) == 0 {
		return false
	}
	first := r.Body[0].Segments[0]
	return first.Interp == nil && len(first.Text) >= 2 && first.Text[:2] == "#!"
}

// Program is the parsed justfile: every top-level item in source order.
type Program struct {
	Items []Item
}
