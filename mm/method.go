package mm

import "strings"

// Body is the entry point of a method. It receives the full argument list,
// dispatched and pass-through parameters alike.
type Body func(call *Call) (any, error)

// Method is one implementation of a table, applicable to the classes that
// conform to its bound tuple.
type Method struct {
	name    string
	table   *Table
	bounds  []*Class
	body    Body
	next    *Method
	retired bool
}

// Sentinels stored in dispatch table cells.
var (
	Undefined = &Method{name: "<undefined>"}
	Ambiguous = &Method{name: "<ambiguous>"}
)

// Name returns the method name.
func (m *Method) Name() string { return m.name }

// Table returns the owning table, or nil for the sentinels.
func (m *Method) Table() *Table { return m.table }

// Bounds returns the bound tuple, one class per dispatched dimension.
func (m *Method) Bounds() []*Class {
	return append([]*Class(nil), m.bounds...)
}

// Next returns the next-most-specific method as computed by the last
// Finalize: a method, Undefined or Ambiguous.
func (m *Method) Next() *Method {
	if m.next == nil {
		return Undefined
	}
	return m.next
}

// Retired reports whether the method has been unregistered.
func (m *Method) Retired() bool { return m.retired }

// String renders the method as name(Bound, Bound, ...).
func (m *Method) String() string {
	if m.table == nil {
		return m.name
	}
	return m.name + "(" + strings.Join(classNames(m.bounds), ", ") + ")"
}

func (m *Method) isSentinel() bool {
	return m == Undefined || m == Ambiguous
}

// moreSpecific reports whether m is strictly more specific than other.
func (m *Method) moreSpecific(other *Method) bool {
	strict := false
	for i, b := range m.bounds {
		if !b.ConformsTo(other.bounds[i]) {
			return false
		}
		if b != other.bounds[i] {
			strict = true
		}
	}
	return strict
}

func (m *Method) sameBounds(other *Method) bool {
	for i, b := range m.bounds {
		if b != other.bounds[i] {
			return false
		}
	}
	return true
}

// mostSpecific drops every method dominated by another one of the set.
func mostSpecific(methods []*Method) []*Method {
	var best []*Method
	for _, m := range methods {
		dominated := false
		for _, o := range methods {
			if o != m && o.moreSpecific(m) {
				dominated = true
				break
			}
		}
		if !dominated {
			best = append(best, m)
		}
	}
	return best
}

// pick reduces a candidate set to a winner or a sentinel.
func pick(best []*Method) *Method {
	switch len(best) {
	case 0:
		return Undefined
	case 1:
		return best[0]
	default:
		return Ambiguous
	}
}

func methodNames(methods []*Method) []string {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.String()
	}
	return names
}

// ---------------------------------------------------------------------------
// Call: the context handed to a running method
// ---------------------------------------------------------------------------

// Call describes one invocation of a method.
type Call struct {
	Table  *Table
	Method *Method
	Args   []any
}

// Arg returns the i'th argument.
func (c *Call) Arg(i int) any { return c.Args[i] }

// Next invokes the next-most-specific method with the same arguments.
func (c *Call) Next() (any, error) {
	next := c.Method.Next()
	switch next {
	case Undefined:
		return nil, &UndefinedDispatchError{Table: c.Table.name, Classes: classNames(c.Method.bounds)}
	case Ambiguous:
		return nil, &AmbiguousDispatchError{Table: c.Table.name, Classes: classNames(c.Method.bounds)}
	}
	return next.body(&Call{Table: c.Table, Method: next, Args: c.Args})
}
