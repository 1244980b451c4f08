// Package compiler lowers typed expression chains to vm bytecode. Its
// centerpiece is the dereference-chain emitter, which gives chained
// field, index and call operations their short-circuiting safe-access
// semantics for the four consumers (read, reference, initial, issaved)
// and folds constant chains at compile time.
package compiler

import "fmt"

// Location is a source position carried on compile errors.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// ShapeError reports an operand mismatch in the dereference lowering,
// such as taking an l-value or initial() of a call result.
type ShapeError struct {
	Loc    Location
	Detail string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("compiler: %s: %s", e.Loc, e.Detail)
}

func shapeErrorf(loc Location, format string, args ...interface{}) *ShapeError {
	return &ShapeError{Loc: loc, Detail: fmt.Sprintf(format, args...)}
}

// UnresolvedNameError reports a scope reference to a name that exists
// neither as an instance variable nor as a global of the head's type.
type UnresolvedNameError struct {
	Loc  Location
	Type string
	Name string
}

func (e *UnresolvedNameError) Error() string {
	return fmt.Sprintf("compiler: %s: %s has no %q", e.Loc, e.Type, e.Name)
}
