package mm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateClass  = errors.New("class already registered")
	ErrDuplicateTable  = errors.New("table already registered")
	ErrUnknownClass    = errors.New("class not registered")
	ErrClassInUse      = errors.New("class is still referenced")
	ErrCycle           = errors.New("class hierarchy contains a cycle")
	ErrBoundMismatch   = errors.New("method bound does not conform to table bound")
	ErrDuplicateBound  = errors.New("duplicate method bound tuple")
	ErrNotFinalized    = errors.New("table not finalized")
	ErrArity           = errors.New("wrong number of arguments")
	ErrSignature       = errors.New("invalid dispatch signature")
	ErrAbstractClass   = errors.New("abstract class used as call-site type")
	ErrNotConforming   = errors.New("argument class does not conform to parameter bound")
	ErrPendingClass    = errors.New("class registered after last finalize")
	ErrForeignRegistry = errors.New("class belongs to another registry")
	ErrRebound         = errors.New("object already bound to another class")
	ErrUndefined       = errors.New("multi-method call is undefined for these arguments")
	ErrAmbiguous       = errors.New("multi-method call is ambiguous for these arguments")
)

// CycleError reports a cycle in the base graph found while sorting a
// hierarchy. Classes lists the cycle with its first class repeated at the end.
type CycleError struct {
	Classes []*Class
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Classes))
	for i, c := range e.Classes {
		names[i] = c.Name()
	}
	return fmt.Sprintf("class hierarchy contains a cycle: %s", strings.Join(names, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// DuplicateBoundError reports two methods of one table with identical bound
// tuples. Wherever both apply the call is ambiguous.
type DuplicateBoundError struct {
	Table    string
	Method   string
	Existing string
	Bounds   []string
}

func (e *DuplicateBoundError) Error() string {
	return fmt.Sprintf("%s: methods %s and %s share bounds (%s)",
		e.Table, e.Existing, e.Method, strings.Join(e.Bounds, ", "))
}

func (e *DuplicateBoundError) Unwrap() error { return ErrDuplicateBound }

// UndefinedDispatchError is returned when no method applies at a call point.
type UndefinedDispatchError struct {
	Table   string
	Classes []string
}

func (e *UndefinedDispatchError) Error() string {
	return fmt.Sprintf("%s(%s): %v", e.Table, strings.Join(e.Classes, ", "), ErrUndefined)
}

func (e *UndefinedDispatchError) Unwrap() error { return ErrUndefined }

// AmbiguousDispatchError is returned when several applicable methods are
// maximally specific at a call point.
type AmbiguousDispatchError struct {
	Table      string
	Classes    []string
	Candidates []string
}

func (e *AmbiguousDispatchError) Error() string {
	msg := fmt.Sprintf("%s(%s): %v", e.Table, strings.Join(e.Classes, ", "), ErrAmbiguous)
	if len(e.Candidates) > 0 {
		msg += " (candidates: " + strings.Join(e.Candidates, ", ") + ")"
	}
	return msg
}

func (e *AmbiguousDispatchError) Unwrap() error { return ErrAmbiguous }

// BindingError reports an argument whose class cannot be located in a
// table: unknown, abstract, pending or outside the parameter bound.
type BindingError struct {
	Table    string
	Position int
	Class    string
	Err      error
}

func (e *BindingError) Error() string {
	class := e.Class
	if class == "" {
		class = "?"
	}
	if e.Table == "" {
		return fmt.Sprintf("%s: %v", class, e.Err)
	}
	return fmt.Sprintf("%s: argument %d (%s): %v", e.Table, e.Position, class, e.Err)
}

func (e *BindingError) Unwrap() error { return e.Err }

// StaleBindingError is the panic value raised when a row acquired before the
// last rebuild of a table is used to dispatch on it. It signals a broken
// setup protocol and is not meant to be recovered.
type StaleBindingError struct {
	Table           string
	Dimension       int
	RowGeneration   uint64
	TableGeneration uint64
}

func (e *StaleBindingError) Error() string {
	return fmt.Sprintf("%s: stale row for dimension %d (row generation %d, table generation %d)",
		e.Table, e.Dimension, e.RowGeneration, e.TableGeneration)
}
