package mm

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Options tune how a Registry resolves its tables.
type Options struct {
	// Grouping collapses classes with identical applicable-method sets into
	// one table index. Without it every concrete class gets its own index.
	Grouping bool

	// RejectDuplicates makes RegisterMethod fail on a bound tuple that is
	// already registered on the table, instead of logging a warning.
	RejectDuplicates bool
}

// DefaultOptions returns the options used by NewRegistry.
func DefaultOptions() Options {
	return Options{Grouping: true}
}

// ---------------------------------------------------------------------------
// Registry: classes, tables and the finalize barrier
// ---------------------------------------------------------------------------

// Registry owns every class and table of one dispatch universe.
//
// Registration calls are serialized by an internal mutex, but they must not
// overlap with dispatch: register everything, call Finalize, then dispatch.
// Re-registration after calls have started requires quiescing all callers
// until the next Finalize returns.
type Registry struct {
	mu   sync.Mutex
	opts Options

	classes []*Class
	byName  map[string]*Class
	byType  map[reflect.Type]*Class
	seq     int

	tables      []*Table
	tableByName map[string]*Table

	generation uint64
}

// NewRegistry creates an empty registry with DefaultOptions.
func NewRegistry() *Registry {
	return NewRegistryWithOptions(DefaultOptions())
}

// NewRegistryWithOptions creates an empty registry.
func NewRegistryWithOptions(opts Options) *Registry {
	return &Registry{
		opts:        opts,
		byName:      make(map[string]*Class),
		byType:      make(map[reflect.Type]*Class),
		tableByName: make(map[string]*Table),
	}
}

// Options returns the options the registry was created with.
func (r *Registry) Options() Options { return r.opts }

// Generation counts the finalizes that rebuilt at least one table.
func (r *Registry) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// ---------------------------------------------------------------------------
// Class registration
// ---------------------------------------------------------------------------

// RegisterClass adds a class known only by name. Hierarchy analysis is
// deferred to the next Finalize.
func (r *Registry) RegisterClass(name string, bases ...*Class) (*Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addClass(name, nil, bases)
}

// RegisterType adds a class for a Go type. Types that implement
// Dispatchable (usually by embedding Object) are bound per instance through
// Init; other types are foreign and resolved through the side table.
func (r *Registry) RegisterType(t reflect.Type, bases ...*Class) (*Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byType[t]; ok {
		return nil, fmt.Errorf("%s: %w", t, ErrDuplicateClass)
	}
	c, err := r.addClass(t.String(), t, bases)
	if err != nil {
		return nil, err
	}
	c.foreign = !t.Implements(dispatchableType)
	r.byType[t] = c
	return c, nil
}

// Register adds a class for the Go type T.
func Register[T any](r *Registry, bases ...*Class) (*Class, error) {
	return r.RegisterType(reflect.TypeFor[T](), bases...)
}

func (r *Registry) addClass(name string, t reflect.Type, bases []*Class) (*Class, error) {
	if _, ok := r.byName[name]; ok {
		return nil, fmt.Errorf("%s: %w", name, ErrDuplicateClass)
	}
	if err := r.checkOwned(bases); err != nil {
		return nil, err
	}
	c := newClass(r, name, t)
	c.seq = r.seq
	r.seq++
	c.bases = append([]*Class(nil), bases...)
	for _, b := range bases {
		b.specs = append(b.specs, c)
	}
	r.classes = append(r.classes, c)
	r.byName[name] = c
	log.Debugf("registered class %s", name)
	return c, nil
}

func (r *Registry) checkOwned(classes []*Class) error {
	for _, c := range classes {
		if c == nil {
			return fmt.Errorf("nil class: %w", ErrUnknownClass)
		}
		if c.registry != r {
			return fmt.Errorf("%s: %w", c.name, ErrForeignRegistry)
		}
	}
	return nil
}

// MarkAbstract marks c abstract: it keeps its place in masks but never
// receives a table index and may not appear as a call-site class.
func (r *Registry) MarkAbstract(c *Class) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !c.abstract {
		c.abstract = true
		c.dirty = true
	}
}

// SetBases replaces the direct bases of c. A cycle introduced here is
// reported by the next Finalize.
func (r *Registry) SetBases(c *Class, bases ...*Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOwned(append([]*Class{c}, bases...)); err != nil {
		return err
	}
	for _, b := range c.bases {
		b.specs = removeClass(b.specs, c)
		b.dirty = true
	}
	c.bases = append([]*Class(nil), bases...)
	for _, b := range bases {
		b.specs = append(b.specs, c)
	}
	c.dirty = true
	return nil
}

// UnregisterClass removes a class that nothing else refers to: no
// specializers, no table or method bound.
func (r *Registry) UnregisterClass(c *Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOwned([]*Class{c}); err != nil {
		return err
	}
	if len(c.specs) > 0 {
		return fmt.Errorf("%s: %w by %s", c.name, ErrClassInUse, c.specs[0].name)
	}
	for _, t := range r.tables {
		for _, b := range t.Bounds() {
			if b == c {
				return fmt.Errorf("%s: %w by table %s", c.name, ErrClassInUse, t.name)
			}
		}
		for _, m := range t.methods {
			for _, b := range m.bounds {
				if b == c {
					return fmt.Errorf("%s: %w by method %s", c.name, ErrClassInUse, m)
				}
			}
		}
	}

	for _, b := range c.bases {
		b.specs = removeClass(b.specs, c)
		b.dirty = true
	}
	r.classes = removeClass(r.classes, c)
	delete(r.byName, c.name)
	if c.goType != nil {
		delete(r.byType, c.goType)
	}
	c.registry = nil
	c.hier = nil
	c.rows = nil
	log.Debugf("unregistered class %s", c.name)
	return nil
}

// Class returns the class registered under name, or nil.
func (r *Registry) Class(name string) *Class {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byName[name]
}

// ClassForType returns the class registered for t, or nil.
func (r *Registry) ClassForType(t reflect.Type) *Class {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byType[t]
}

// Classes returns all classes in registration order.
func (r *Registry) Classes() []*Class {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Class(nil), r.classes...)
}

// ---------------------------------------------------------------------------
// Tables and methods
// ---------------------------------------------------------------------------

// CreateTable creates a table whose parameters are all dispatched, the i'th
// one bounded by bounds[i].
func (r *Registry) CreateTable(name string, bounds ...*Class) (*Table, error) {
	sig := Signature{Params: len(bounds)}
	for i, b := range bounds {
		sig.Virtuals = append(sig.Virtuals, Virtual{Position: i, Bound: b})
	}
	return r.CreateTableWithSignature(name, sig)
}

// CreateTableWithSignature creates a table from an explicit signature.
// Dispatched positions must be strictly increasing and within Params.
func (r *Registry) CreateTableWithSignature(name string, sig Signature) (*Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tableByName[name]; ok {
		return nil, fmt.Errorf("%s: %w", name, ErrDuplicateTable)
	}
	if len(sig.Virtuals) == 0 {
		return nil, fmt.Errorf("%s: %w: no dispatched parameter", name, ErrSignature)
	}
	t := &Table{name: name, registry: r, params: sig.Params, dirty: true}
	prev := -1
	for _, v := range sig.Virtuals {
		if v.Position <= prev || v.Position >= sig.Params {
			return nil, fmt.Errorf("%s: %w: position %d", name, ErrSignature, v.Position)
		}
		if err := r.checkOwned([]*Class{v.Bound}); err != nil {
			return nil, err
		}
		prev = v.Position
		t.dims = append(t.dims, dimension{position: v.Position, bound: v.Bound})
	}
	r.tables = append(r.tables, t)
	r.tableByName[name] = t
	return t, nil
}

// Table returns the table registered under name, or nil.
func (r *Registry) Table(name string) *Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tableByName[name]
}

// Tables returns all tables in creation order.
func (r *Registry) Tables() []*Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Table(nil), r.tables...)
}

// RegisterMethod adds a method to t with one bound per dispatched
// dimension. A bound tuple identical to an existing method's is ambiguous
// wherever both apply; it is logged, or rejected with a
// *DuplicateBoundError under Options.RejectDuplicates.
func (r *Registry) RegisterMethod(t *Table, name string, bounds []*Class, body Body) (*Method, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.registry != r {
		return nil, fmt.Errorf("%s: %w", t.name, ErrForeignRegistry)
	}
	if len(bounds) != len(t.dims) {
		return nil, fmt.Errorf("%s: method %s: %w: got %d bounds, want %d",
			t.name, name, ErrArity, len(bounds), len(t.dims))
	}
	if body == nil {
		return nil, fmt.Errorf("%s: method %s has no body", t.name, name)
	}
	if err := r.checkOwned(bounds); err != nil {
		return nil, err
	}

	m := &Method{
		name:   name,
		table:  t,
		bounds: append([]*Class(nil), bounds...),
		body:   body,
	}
	for _, prev := range t.methods {
		if prev.sameBounds(m) {
			dup := t.duplicate(prev, m)
			if r.opts.RejectDuplicates {
				return nil, dup
			}
			log.Warningf("%s", dup)
			break
		}
	}
	t.methods = append(t.methods, m)
	t.dirty = true
	return m, nil
}

// UnregisterMethod retires m from its table.
func (r *Registry) UnregisterMethod(m *Method) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := m.table
	if t == nil || t.registry != r {
		return fmt.Errorf("%s: %w", m.name, ErrForeignRegistry)
	}
	for i, x := range t.methods {
		if x == m {
			t.methods = append(t.methods[:i:i], t.methods[i+1:]...)
			m.retired = true
			t.dirty = true
			return nil
		}
	}
	return fmt.Errorf("%s: method %s is not registered", t.name, m.name)
}

// ---------------------------------------------------------------------------
// Finalize
// ---------------------------------------------------------------------------

// Finalize rebuilds every dirty hierarchy, re-resolves every table that is
// dirty or depends on a rebuilt hierarchy, and swaps in the new dispatch
// tables. Hierarchies with a cycle are left untouched, as are the tables
// depending on them; their errors are joined into the returned error. The
// report describes every table after the rebuild.
func (r *Registry) Finalize() (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hierarchies, err := r.rebuildHierarchies()
	errs := []error{err}

	gen := r.generation + 1
	rebuilt := make(map[*Table]bool)
	for _, t := range r.tables {
		if !t.needsRebuild() {
			continue
		}
		if t.blocked() {
			t.dirty = true
			log.Warningf("%s: not resolved, a bound's hierarchy failed to build", t.name)
			continue
		}
		dt, err := newResolver(t, r.opts.Grouping).resolve(gen)
		if err != nil {
			t.dirty = true
			errs = append(errs, err)
			continue
		}
		t.current.Store(dt)
		t.dirty = false
		rebuilt[t] = true
	}
	if len(rebuilt) > 0 {
		r.generation = gen
	}

	log.Infof("finalize: %d hierarchies rebuilt, %d tables resolved, generation %d",
		hierarchies, len(rebuilt), r.generation)
	return r.report(hierarchies, rebuilt), errors.Join(errs...)
}

// rebuildHierarchies builds every component containing a dirty class.
func (r *Registry) rebuildHierarchies() (int, error) {
	visited := make(map[*Class]bool)
	var errs []error
	built := 0
	for _, c := range r.classes {
		if !c.dirty || visited[c] {
			continue
		}
		component := collectComponent(c, visited)
		if _, err := buildHierarchy(component); err != nil {
			log.Errorf("%s", err)
			errs = append(errs, err)
			continue
		}
		built++
		log.Debugf("hierarchy rooted at %s: %d classes", component[0].name, len(component))
	}
	return built, errors.Join(errs...)
}

// needsRebuild reports whether t is dirty or one of its bounds moved to a
// new hierarchy.
func (t *Table) needsRebuild() bool {
	if t.dirty {
		return true
	}
	for _, d := range t.dims {
		if d.hier != d.bound.hier {
			return true
		}
	}
	return false
}

// blocked reports whether some class t depends on has no usable hierarchy.
func (t *Table) blocked() bool {
	for _, d := range t.dims {
		if d.bound.dirty || d.bound.hier == nil {
			return true
		}
	}
	for _, m := range t.methods {
		for _, b := range m.bounds {
			if b.dirty || b.hier == nil {
				return true
			}
		}
	}
	return false
}
