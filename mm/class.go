package mm

import (
	"reflect"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"
)

// classNamespace seeds the name-based UUIDs that identify classes, so the
// same type name yields the same identity in every process.
var classNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/chazu/multimethods/class"))

// ---------------------------------------------------------------------------
// Class: a node of a dispatch hierarchy
// ---------------------------------------------------------------------------

// Class is a registered runtime type participating in dispatch.
//
// Classes are owned by the Registry that created them and live as long as
// it does. Everything below the edge fields is computed by Finalize.
type Class struct {
	name     string
	id       uuid.UUID
	goType   reflect.Type // nil for classes declared by name only
	foreign  bool
	abstract bool
	seq      int
	registry *Registry

	bases []*Class // direct bases
	specs []*Class // direct specializers (inverse of bases)

	// dirty means the class's hierarchy must be rebuilt by the next Finalize.
	dirty bool

	hier    *hierarchy
	index   int            // topological index inside hier
	ordinal int            // position among concrete classes, -1 if abstract
	mask    *bitset.BitSet // bit set for every ancestor, self included

	// rows holds, per allocated (table, dimension) slot, the group index of
	// this class along that dimension.
	rows []row
}

type row struct {
	index int
	gen   uint64
}

func newClass(r *Registry, name string, t reflect.Type) *Class {
	key := name
	if t != nil {
		base, stars := t, ""
		for base.Kind() == reflect.Pointer {
			base, stars = base.Elem(), stars+"*"
		}
		if base.PkgPath() != "" {
			key = stars + base.PkgPath() + "." + base.Name()
		}
	}
	return &Class{
		name:     name,
		id:       uuid.NewSHA1(classNamespace, []byte(key)),
		goType:   t,
		registry: r,
		ordinal:  -1,
		dirty:    true,
	}
}

// Name returns the class name. For Go types this is reflect.Type.String().
func (c *Class) Name() string { return c.name }

// String implements the Stringer interface.
func (c *Class) String() string { return c.name }

// ID returns the stable identity of the class.
func (c *Class) ID() uuid.UUID { return c.id }

// Type returns the Go type bound to the class, or nil for declared classes.
func (c *Class) Type() reflect.Type { return c.goType }

// IsForeign reports whether instances are resolved through the registry's
// runtime-type side table instead of carrying their class themselves.
func (c *Class) IsForeign() bool { return c.foreign }

// IsAbstract reports whether the class was marked abstract.
func (c *Class) IsAbstract() bool { return c.abstract }

// Bases returns the direct bases in declaration order.
func (c *Class) Bases() []*Class {
	return append([]*Class(nil), c.bases...)
}

// Specializers returns the classes that name c as a direct base.
func (c *Class) Specializers() []*Class {
	return append([]*Class(nil), c.specs...)
}

// Index returns the topological index of the class within its hierarchy,
// or -1 before the class has been finalized.
func (c *Class) Index() int {
	if c.hier == nil {
		return -1
	}
	return c.index
}

// Root returns the first class of c's hierarchy in topological order, or
// nil before the class has been finalized.
func (c *Class) Root() *Class {
	if c.hier == nil {
		return nil
	}
	return c.hier.root()
}

// ConformsTo reports whether c is-a other. The test is a single bit lookup
// and reflects the hierarchy as of the last Finalize; classes registered
// since then only conform to themselves.
func (c *Class) ConformsTo(other *Class) bool {
	if c == other {
		return true
	}
	if c.hier == nil || c.hier != other.hier {
		return false
	}
	return c.mask.Test(uint(other.index))
}

func (c *Class) setRow(slot, index int, gen uint64) {
	if slot >= len(c.rows) {
		grown := make([]row, slot+1)
		copy(grown, c.rows)
		c.rows = grown
	}
	c.rows[slot] = row{index: index, gen: gen}
}

func removeClass(list []*Class, c *Class) []*Class {
	for i, x := range list {
		if x == c {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func classNames(classes []*Class) []string {
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = c.name
	}
	return names
}
