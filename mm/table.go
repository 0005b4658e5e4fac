package mm

import (
	"fmt"
	"sync/atomic"
)

// Virtual declares one dispatched parameter: its position in the argument
// list and the class every argument in that position must conform to.
type Virtual struct {
	Position int
	Bound    *Class
}

// Signature is the declared shape of a generic operation. Parameters not
// listed in Virtuals are passed to the method untouched.
type Signature struct {
	Params   int
	Virtuals []Virtual
}

// dimension is one dispatched parameter of a table together with its row
// slot in the bound's hierarchy.
type dimension struct {
	position int
	bound    *Class
	hier     *hierarchy // hierarchy the slot was allocated in
	slot     int
}

// dispatchTable is an immutable resolution result. A rebuild replaces it as
// a whole.
type dispatchTable struct {
	gen         uint64
	strides     []int
	groups      [][]group
	cells       []*Method
	ambiguities map[int][]*Method // cell offset -> maximal candidates
}

// ---------------------------------------------------------------------------
// Table: a generic operation
// ---------------------------------------------------------------------------

// Table is a generic operation: the registry of its methods plus the
// dispatch table resolved from them at the last Finalize.
type Table struct {
	name     string
	registry *Registry
	params   int
	dims     []dimension
	methods  []*Method
	dirty    bool
	current  atomic.Pointer[dispatchTable]
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// String implements the Stringer interface.
func (t *Table) String() string { return t.name }

// Arity returns the number of dispatched dimensions.
func (t *Table) Arity() int { return len(t.dims) }

// Params returns the total number of parameters, dispatched or not.
func (t *Table) Params() int { return t.params }

// Signature returns the declared dispatch signature.
func (t *Table) Signature() Signature {
	sig := Signature{Params: t.params}
	for _, d := range t.dims {
		sig.Virtuals = append(sig.Virtuals, Virtual{Position: d.position, Bound: d.bound})
	}
	return sig
}

// Bounds returns the declared bound of every dispatched dimension.
func (t *Table) Bounds() []*Class {
	bounds := make([]*Class, len(t.dims))
	for i, d := range t.dims {
		bounds[i] = d.bound
	}
	return bounds
}

// Methods returns the registered methods in registration order.
func (t *Table) Methods() []*Method {
	return append([]*Method(nil), t.methods...)
}

// Dirty reports whether the table must be re-resolved before dispatch.
func (t *Table) Dirty() bool { return t.dirty }

// Generation returns the registry generation of the current dispatch table,
// or 0 if the table has never been resolved.
func (t *Table) Generation() uint64 {
	if dt := t.current.Load(); dt != nil {
		return dt.gen
	}
	return 0
}

// Size returns the number of cells of the current dispatch table.
func (t *Table) Size() int {
	if dt := t.current.Load(); dt != nil {
		return len(dt.cells)
	}
	return 0
}

// Duplicates lists every pair of methods sharing a bound tuple.
func (t *Table) Duplicates() []*DuplicateBoundError {
	var dups []*DuplicateBoundError
	for i, m := range t.methods {
		for _, prev := range t.methods[:i] {
			if prev.sameBounds(m) {
				dups = append(dups, t.duplicate(prev, m))
			}
		}
	}
	return dups
}

func (t *Table) duplicate(existing, m *Method) *DuplicateBoundError {
	return &DuplicateBoundError{
		Table:    t.name,
		Method:   m.name,
		Existing: existing.name,
		Bounds:   classNames(m.bounds),
	}
}

// finalized returns the dispatch table calls may read.
func (t *Table) finalized() (*dispatchTable, error) {
	dt := t.current.Load()
	if dt == nil || t.dirty {
		return nil, fmt.Errorf("%s: %w", t.name, ErrNotFinalized)
	}
	return dt, nil
}

// Lookup resolves a call point given directly as classes, one per
// dispatched dimension. It returns the winning method, or an
// UndefinedDispatchError or AmbiguousDispatchError.
func (t *Table) Lookup(classes ...*Class) (*Method, error) {
	dt, err := t.finalized()
	if err != nil {
		return nil, err
	}
	if len(classes) != len(t.dims) {
		return nil, fmt.Errorf("%s: %w: got %d classes, want %d", t.name, ErrArity, len(classes), len(t.dims))
	}
	offset := 0
	for d, c := range classes {
		rw, err := t.rowOfClass(dt, c, d)
		if err != nil {
			return nil, err
		}
		offset += rw.Index * dt.strides[d]
	}
	m := dt.cells[offset]
	if m.isSentinel() {
		return nil, t.sentinelError(dt, offset, classNames(classes))
	}
	return m, nil
}

func (t *Table) sentinelError(dt *dispatchTable, offset int, classes []string) error {
	if dt.cells[offset] == Ambiguous {
		return &AmbiguousDispatchError{
			Table:      t.name,
			Classes:    classes,
			Candidates: methodNames(dt.ambiguities[offset]),
		}
	}
	return &UndefinedDispatchError{Table: t.name, Classes: classes}
}
