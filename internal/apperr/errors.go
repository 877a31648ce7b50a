// Package apperr defines the structured error taxonomy shared by the core
// packages. Callers (CLI, HTTP, MCP) match on Kind and format the payload
// themselves; nothing here produces terminal output.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a class of failure.
type Kind int

const (
	// KindNotFound means a referenced document or pattern does not exist.
	KindNotFound Kind = iota
	// KindAmbiguous means a text pattern matched more than one location.
	KindAmbiguous
	// KindInvalidEnum means a value fell outside a closed enum set.
	KindInvalidEnum
	// KindUsage means the caller violated the call contract.
	KindUsage
	// KindIO wraps a filesystem failure.
	KindIO
	// KindParse means frontmatter could not be parsed.
	KindParse
)

// Error carries a Kind plus the structured payload a caller needs to build
// an actionable message (suggestions, matching lines, valid enum values).
type Error struct {
	Kind        Kind
	Msg         string
	Path        string   // offending file, for KindIO and KindParse
	Suggestions []string // close matches, for KindNotFound
	Lines       []int    // matching line numbers, for KindAmbiguous
	Valid       []string // allowed values, for KindInvalidEnum
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Msg)
	switch {
	case len(e.Suggestions) > 0:
		fmt.Fprintf(&b, " (did you mean one of: %s)", strings.Join(e.Suggestions, ", "))
	case len(e.Lines) > 0:
		fmt.Fprintf(&b, " (matches on lines %s)", joinInts(e.Lines))
	case len(e.Valid) > 0:
		fmt.Fprintf(&b, " (valid values: %s)", strings.Join(e.Valid, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports a missing document with optional close matches.
func NotFound(msg string, suggestions ...string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg, Suggestions: suggestions}
}

// Ambiguous reports a pattern that matched on every listed line number.
func Ambiguous(pattern string, lines []int) *Error {
	return &Error{
		Kind:  KindAmbiguous,
		Msg:   fmt.Sprintf("pattern %q is ambiguous", pattern),
		Lines: lines,
	}
}

// InvalidEnum reports a value outside a closed set.
func InvalidEnum(field, got string, valid []string) *Error {
	return &Error{
		Kind:  KindInvalidEnum,
		Msg:   fmt.Sprintf("invalid %s %q", field, got),
		Valid: valid,
	}
}

// Usage reports a caller-contract violation.
func Usage(msg string) *Error {
	return &Error{Kind: KindUsage, Msg: msg}
}

// IO wraps a filesystem failure for path.
func IO(path string, err error) *Error {
	return &Error{Kind: KindIO, Msg: "io error on " + path, Path: path, Err: err}
}

// Parse reports malformed frontmatter in path.
func Parse(path string, err error) *Error {
	return &Error{Kind: KindParse, Msg: "malformed frontmatter in " + path, Path: path, Err: err}
}

// Is reports whether err (or anything it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// As unwraps err into an *Error, or nil if it is not one.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}
