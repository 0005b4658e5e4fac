package manifest

import (
	"errors"
	"fmt"

	"github.com/chazu/multimethods/mm"
)

// Bindings maps declared names to the registry objects created for them.
type Bindings struct {
	Classes map[string]*mm.Class
	Tables  map[string]*mm.Table
	// Methods is keyed by "table.method".
	Methods map[string]*mm.Method
}

// MethodKey is the Bindings.Methods and bodies key of a method.
func MethodKey(table, method string) string { return table + "." + method }

// Apply declares every class, table and method of m on r. A body found in
// bodies under MethodKey replaces the declared result. Apply does not
// finalize r.
func (m *Manifest) Apply(r *mm.Registry, bodies map[string]mm.Body) (*Bindings, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	b := &Bindings{
		Classes: make(map[string]*mm.Class),
		Tables:  make(map[string]*mm.Table),
		Methods: make(map[string]*mm.Method),
	}

	// Bases are wired in a second pass so declarations may refer forward.
	for _, cd := range m.Classes {
		c, err := r.RegisterClass(cd.Name)
		if err != nil {
			return nil, err
		}
		b.Classes[cd.Name] = c
	}
	for _, cd := range m.Classes {
		c := b.Classes[cd.Name]
		if len(cd.Bases) > 0 {
			if err := r.SetBases(c, b.lookup(cd.Bases)...); err != nil {
				return nil, err
			}
		}
		if cd.Abstract {
			r.MarkAbstract(c)
		}
	}

	for _, td := range m.Tables {
		t, err := r.CreateTableWithSignature(td.Name, td.signature(b.Classes))
		if err != nil {
			return nil, err
		}
		b.Tables[td.Name] = t
	}

	for _, md := range m.Methods {
		key := MethodKey(md.Table, md.Name)
		body, ok := bodies[key]
		if !ok {
			body = md.body()
		}
		meth, err := r.RegisterMethod(b.Tables[md.Table], md.Name, b.lookup(md.Bounds), body)
		if err != nil {
			return nil, err
		}
		b.Methods[key] = meth
	}

	log.Infof("applied %d classes, %d tables, %d methods",
		len(m.Classes), len(m.Tables), len(m.Methods))
	return b, nil
}

func (b *Bindings) lookup(names []string) []*mm.Class {
	classes := make([]*mm.Class, len(names))
	for i, n := range names {
		classes[i] = b.Classes[n]
	}
	return classes
}

// Args builds the argument list of a call to the named table from one class
// name per dispatched dimension. Pass-through parameters are nil.
func (b *Bindings) Args(table string, names ...string) ([]any, error) {
	t, ok := b.Tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	sig := t.Signature()
	if len(names) != len(sig.Virtuals) {
		return nil, fmt.Errorf("%s: %w: got %d classes, want %d",
			table, mm.ErrArity, len(names), len(sig.Virtuals))
	}
	args := make([]any, sig.Params)
	for i, n := range names {
		c, ok := b.Classes[n]
		if !ok {
			return nil, fmt.Errorf("%s: %w", n, mm.ErrUnknownClass)
		}
		args[sig.Virtuals[i].Position] = mm.Instance(c)
	}
	return args, nil
}

// body builds the entry point of a declared method.
func (md MethodDecl) body() mm.Body {
	result := md.Result
	if result == "" {
		result = md.Name
	}
	if !md.CallNext {
		return func(*mm.Call) (any, error) { return result, nil }
	}
	return func(call *mm.Call) (any, error) {
		rest, err := call.Next()
		switch {
		case errors.Is(err, mm.ErrUndefined):
			return result, nil
		case err != nil:
			return nil, err
		}
		return fmt.Sprintf("%s>%v", result, rest), nil
	}
}
