package mm

import "fmt"

// Dispatch selects the most specific method applicable to the runtime
// classes of args and invokes it. args holds every parameter of the
// table's signature, dispatched or not.
//
// Cost is one class lookup and one multiply-add per dispatched dimension,
// independent of the number of classes and methods.
func (t *Table) Dispatch(args ...any) (any, error) {
	dt, err := t.finalized()
	if err != nil {
		return nil, err
	}
	if len(args) != t.params {
		return nil, fmt.Errorf("%s: %w: got %d, want %d", t.name, ErrArity, len(args), t.params)
	}
	offset := 0
	for d := range t.dims {
		arg := args[t.dims[d].position]
		c, err := t.registry.ClassOf(arg)
		if err != nil {
			return nil, t.bindingError(t.dims[d].position, err)
		}
		rw, err := t.rowOfClass(dt, c, d)
		if err != nil {
			return nil, err
		}
		offset += rw.Index * dt.strides[d]
	}
	return t.invoke(dt, offset, args)
}

// Call dispatches using rows acquired earlier with RowOf, one per dimension
// in order. Rows from a previous generation of the table, from another
// table or from another dimension are a setup-protocol violation and make
// Call panic with a *StaleBindingError.
func (t *Table) Call(rows []Row, args ...any) (any, error) {
	dt, err := t.finalized()
	if err != nil {
		return nil, err
	}
	if len(rows) != len(t.dims) {
		return nil, fmt.Errorf("%s: %w: got %d rows, want %d", t.name, ErrArity, len(rows), len(t.dims))
	}
	if len(args) != t.params {
		return nil, fmt.Errorf("%s: %w: got %d, want %d", t.name, ErrArity, len(args), t.params)
	}
	offset := 0
	for d, rw := range rows {
		if rw.table != dt || rw.dim != d || rw.Generation != dt.gen || rw.Index < 0 || rw.Index >= len(dt.groups[d]) {
			panic(&StaleBindingError{Table: t.name, Dimension: d, RowGeneration: rw.Generation, TableGeneration: dt.gen})
		}
		offset += rw.Index * dt.strides[d]
	}
	return t.invoke(dt, offset, args)
}

func (t *Table) invoke(dt *dispatchTable, offset int, args []any) (any, error) {
	m := dt.cells[offset]
	if m.isSentinel() {
		return nil, t.sentinelError(dt, offset, t.argClassNames(args))
	}
	return m.body(&Call{Table: t, Method: m, Args: args})
}

// argClassNames names the classes of the dispatched arguments, for errors.
func (t *Table) argClassNames(args []any) []string {
	names := make([]string, len(t.dims))
	for d, dim := range t.dims {
		if c, err := t.registry.ClassOf(args[dim.position]); err == nil {
			names[d] = c.name
		} else {
			names[d] = fmt.Sprintf("%T", args[dim.position])
		}
	}
	return names
}

// Dispatch is Table.Dispatch on t. The table must belong to r.
func (r *Registry) Dispatch(t *Table, args ...any) (any, error) {
	if t.registry != r {
		return nil, fmt.Errorf("%s: %w", t.name, ErrForeignRegistry)
	}
	return t.Dispatch(args...)
}
