package mm

import (
	"errors"
	"fmt"
	"reflect"
)

// Dispatchable is implemented by values that carry their class themselves.
// Values that do not are looked up in the registry's runtime-type side
// table, keyed by their dynamic Go type.
type Dispatchable interface {
	DispatchClass() *Class
}

var dispatchableType = reflect.TypeFor[Dispatchable]()

// Object is embedded by types that opt into dispatch. The class pointer is
// set once, by Registry.Init, when the value is constructed.
type Object struct {
	class *Class
}

// DispatchClass implements Dispatchable.
func (o *Object) DispatchClass() *Class { return o.class }

func (o *Object) bindClass(c *Class) error {
	if o.class != nil && o.class != c {
		return fmt.Errorf("%w: %s, not %s", ErrRebound, o.class.name, c.name)
	}
	o.class = c
	return nil
}

// binder is satisfied by every type embedding Object.
type binder interface {
	Dispatchable
	bindClass(c *Class) error
}

// instance is the Dispatchable used for classes that exist only by name.
type instance struct {
	class *Class
}

func (i instance) DispatchClass() *Class { return i.class }

// Instance returns a value of class c, for classes declared without a Go
// type.
func Instance(c *Class) Dispatchable { return instance{class: c} }

// Init binds an Object-embedding value to the class registered for its
// dynamic type. Call it from the value's constructor.
func (r *Registry) Init(v Dispatchable) error {
	b, ok := v.(binder)
	if !ok {
		return fmt.Errorf("%T does not embed mm.Object", v)
	}
	c, ok := r.byType[reflect.TypeOf(v)]
	if !ok {
		return fmt.Errorf("%T: %w", v, ErrUnknownClass)
	}
	return b.bindClass(c)
}

// ClassOf returns the class of v: the class it carries if it is
// Dispatchable and bound, otherwise the class registered for its dynamic
// type.
func (r *Registry) ClassOf(v any) (*Class, error) {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, &BindingError{Position: -1, Class: fmt.Sprintf("nil %T", v), Err: ErrUnknownClass}
	}
	if d, ok := v.(Dispatchable); ok {
		if c := d.DispatchClass(); c != nil {
			if c.registry != r {
				return nil, fmt.Errorf("%s: %w", c.name, ErrForeignRegistry)
			}
			return c, nil
		}
	}
	if c, ok := r.byType[reflect.TypeOf(v)]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%T: %w", v, ErrUnknownClass)
}

// Row locates a class along one dimension of a dispatch table. It is only
// valid for the table, dimension and generation it was acquired from.
type Row struct {
	Index      int
	Generation uint64

	table *dispatchTable
	dim   int
}

// RowOf returns the row of v's class along dimension dim of t.
func (t *Table) RowOf(v any, dim int) (Row, error) {
	dt, err := t.finalized()
	if err != nil {
		return Row{}, err
	}
	if dim < 0 || dim >= len(t.dims) {
		return Row{}, fmt.Errorf("%s: dimension %d: %w", t.name, dim, ErrArity)
	}
	c, err := t.registry.ClassOf(v)
	if err != nil {
		return Row{}, t.bindingError(t.dims[dim].position, err)
	}
	return t.rowOfClass(dt, c, dim)
}

// bindingError attaches the table and argument position to a ClassOf
// failure.
func (t *Table) bindingError(pos int, err error) error {
	var be *BindingError
	if errors.As(err, &be) && be.Table == "" {
		be.Table, be.Position = t.name, pos
		return be
	}
	return &BindingError{Table: t.name, Position: pos, Err: err}
}

func (t *Table) rowOfClass(dt *dispatchTable, c *Class, d int) (Row, error) {
	dim := &t.dims[d]
	fail := func(err error) (Row, error) {
		return Row{}, &BindingError{Table: t.name, Position: dim.position, Class: c.name, Err: err}
	}
	switch {
	case c.registry != t.registry:
		return fail(ErrForeignRegistry)
	case c.abstract:
		return fail(ErrAbstractClass)
	case c.hier == nil:
		return fail(ErrPendingClass)
	case !c.ConformsTo(dim.bound):
		return fail(ErrNotConforming)
	}
	if dim.slot >= len(c.rows) {
		panic(&StaleBindingError{Table: t.name, Dimension: d, TableGeneration: dt.gen})
	}
	rw := c.rows[dim.slot]
	if rw.gen != dt.gen {
		panic(&StaleBindingError{Table: t.name, Dimension: d, RowGeneration: rw.gen, TableGeneration: dt.gen})
	}
	return Row{Index: rw.index, Generation: rw.gen, table: dt, dim: d}, nil
}
