package ast

// Expr is the tagged variant for expression trees: literal strings, name
// references, concatenation, path-join, conditionals, function calls, and
// backtick commands.
type Expr interface {
	Pos() Position
}

// StringLit is a literal string, already decoded (escapes resolved for
// double-quoted strings; raw for single-quoted ones).
type StringLit struct {
	Value string
	Pos_  Position
}

func (s *StringLit) Pos() Position { return s.Pos_ }

// NameRef is a reference to a variable or recipe parameter.
type NameRef struct {
	Name string
	Pos_ Position
}

func (n *NameRef) Pos() Position { return n.Pos_ }

// Concat is `a + b`: string concatenation.
type Concat struct {
	Left, Right Expr
	Pos_        Position
}

func (c *Concat) Pos() Position { return c.Pos_ }

// PathJoin is `a / b`: path-join, with adjacent-separator collapsing done at
// emit time when both sides are literal.
type PathJoin struct {
	Left, Right Expr
	Pos_        Position
}

func (p *PathJoin) Pos() Position { return p.Pos_ }

// CompareOp is the comparison operator in a Conditional's condition.
type CompareOp int

const (
	CompareEq    CompareOp = iota // ==
	CompareNeq                    // !=
	CompareRegex                  // =~
)

// Conditional is `if a OP b { then } else { else }`.
type Conditional struct {
	Op         CompareOp
	Left, Right Expr
	Then, Else Expr
	Pos_       Position
}

func (c *Conditional) Pos() Position { return c.Pos_ }

// Call is a builtin function call `name(args...)`.
type Call struct {
	Name string
	Args []Expr
	Pos_ Position
}

func (c *Call) Pos() Position { return c.Pos_ }

// Backtick is a captured-stdout shell command. Segments mirror BodyLine so
// that {{ }} interpolations inside a backtick can reference variables
// already in scope.
type Backtick struct {
	Segments []Segment
	Pos_     Position
}

func (b *Backtick) Pos() Position { return b.Pos_ }
