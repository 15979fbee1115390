// Package errors defines the stable compile-time error taxonomy shared by
// the lexer, parser, model, evaluator, and code generator.
package errors

import (
	"fmt"
	"strings"
)

// Kind names the category of a compile-time failure. Names are part of the
// stable public contract: tests key off of them by string.
type Kind string

const (
	KindParse                Kind = "ParseError"
	KindDuplicateName        Kind = "DuplicateNameError"
	KindUnknownRecipe        Kind = "UnknownRecipeError"
	KindCycle                Kind = "CycleError"
	KindUnknownAttribute     Kind = "UnknownAttributeError"
	KindUnknownSetting       Kind = "UnknownSettingError"
	KindUnimplementedFunc    Kind = "UnimplementedFunctionError"
	KindInvalidParameter     Kind = "InvalidParameterError"
	KindUnimplementedFeature Kind = "UnimplementedFeatureError"
)

// CompileError is the single error type produced anywhere in the pipeline
// before code is emitted. The first one raised aborts the compile.
type CompileError struct {
	Kind       Kind
	Line       int // 1-based
	Column     int // 1-based
	Message    string
	Snippet    string // the offending source line, for a caret pointer
	Suggestion string // nearest known name, when applicable
	Cause      error
}

func (e *CompileError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d:%d: %s", e.Kind, e.Line, e.Column, e.Message)
	if e.Suggestion != "" {
		fmt.Fprintf(&b, " (did you mean `%s`?)", e.Suggestion)
	}
	if e.Snippet != "" {
		b.WriteByte('\n')
		b.WriteString(e.Snippet)
		b.WriteByte('\n')
		if e.Column > 0 {
			b.WriteString(strings.Repeat(" ", e.Column-1))
		}
		b.WriteByte('^')
	}
	return b.String()
}

func (e *CompileError) Unwrap() error { return e.Cause }

// New creates a CompileError with no source position. Used by passes that
// check whole-file invariants rather than a single token.
func New(kind Kind, message string) *CompileError {
	return &CompileError{Kind: kind, Message: message}
}

// At creates a CompileError anchored to a source position.
func At(kind Kind, line, column int, message string) *CompileError {
	return &CompileError{Kind: kind, Line: line, Column: column, Message: message}
}

// Wrap creates a CompileError that carries an underlying cause.
func Wrap(kind Kind, line, column int, message string, cause error) *CompileError {
	return &CompileError{Kind: kind, Line: line, Column: column, Message: message, Cause: cause}
}

// WithSnippet attaches the offending source line for a caret-pointer display.
func (e *CompileError) WithSnippet(snippet string) *CompileError {
	e.Snippet = snippet
	return e
}

// WithSuggestion attaches a "did you mean" candidate.
func (e *CompileError) WithSuggestion(name string) *CompileError {
	e.Suggestion = name
	return e
}
