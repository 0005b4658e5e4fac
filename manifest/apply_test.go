package manifest

import (
	"errors"
	"testing"

	"github.com/chazu/multimethods/mm"
)

func applySpace(t *testing.T, bodies map[string]mm.Body) (*mm.Registry, *Bindings) {
	t.Helper()
	m, err := Parse([]byte(spaceTOML), ".toml")
	if err != nil {
		t.Fatal(err)
	}
	r := mm.NewRegistryWithOptions(m.Options())
	b, err := m.Apply(r, bodies)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if _, err := r.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	return r, b
}

func TestApply(t *testing.T) {
	r, b := applySpace(t, nil)

	ship, object := b.Classes["Ship"], b.Classes["Object"]
	if !ship.ConformsTo(object) {
		t.Error("Ship should conform to Object despite the forward reference")
	}
	if !object.IsAbstract() {
		t.Error("Object should be abstract")
	}
	collide := b.Tables["collide"]
	if collide.Params() != 3 || collide.Arity() != 2 {
		t.Errorf("collide params = %d, arity = %d; want 3, 2", collide.Params(), collide.Arity())
	}
	if r.Options().Grouping {
		t.Error("registry should use the manifest's options")
	}

	tests := []struct {
		a, b string
		want string
	}{
		{"Ship", "Asteroid", "kaboom!"},
		{"Asteroid", "Asteroid", "traverse>kaboom!"},
	}
	for _, tt := range tests {
		args, err := b.Args("collide", tt.a, tt.b)
		if err != nil {
			t.Fatal(err)
		}
		got, err := collide.Dispatch(args...)
		if err != nil {
			t.Fatalf("collide(%s, %s) failed: %v", tt.a, tt.b, err)
		}
		if got != tt.want {
			t.Errorf("collide(%s, %s) = %v, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestApplyBodies(t *testing.T) {
	bodies := map[string]mm.Body{
		MethodKey("collide", "rocks"): func(*mm.Call) (any, error) { return "custom", nil },
	}
	_, b := applySpace(t, bodies)

	args, _ := b.Args("collide", "Asteroid", "Asteroid")
	got, err := b.Tables["collide"].Dispatch(args...)
	if err != nil || got != "custom" {
		t.Errorf("collide(Asteroid, Asteroid) = %v, %v; want custom", got, err)
	}
	if b.Methods[MethodKey("collide", "rocks")] == nil {
		t.Error("method binding missing")
	}
}

func TestApplyRejectsDuplicates(t *testing.T) {
	m := &Manifest{
		Engine:  Engine{RejectDuplicates: true},
		Classes: []ClassDecl{{Name: "Object"}},
		Tables:  []TableDecl{{Name: "hit", Bounds: []string{"Object"}}},
		Methods: []MethodDecl{
			{Table: "hit", Name: "a", Bounds: []string{"Object"}},
			{Table: "hit", Name: "b", Bounds: []string{"Object"}},
		},
	}
	_, err := m.Apply(mm.NewRegistryWithOptions(m.Options()), nil)
	if !errors.Is(err, mm.ErrDuplicateBound) {
		t.Errorf("err = %v, want ErrDuplicateBound", err)
	}
}

func TestApplyCycle(t *testing.T) {
	m := &Manifest{
		Classes: []ClassDecl{
			{Name: "A", Bases: []string{"B"}},
			{Name: "B", Bases: []string{"A"}},
		},
	}
	r := mm.NewRegistry()
	if _, err := m.Apply(r, nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if _, err := r.Finalize(); !errors.Is(err, mm.ErrCycle) {
		t.Errorf("err = %v, want ErrCycle", err)
	}
}

func TestApplyInvalid(t *testing.T) {
	m := &Manifest{Classes: []ClassDecl{{Name: "Ship", Bases: []string{"Object"}}}}
	r := mm.NewRegistry()
	if _, err := m.Apply(r, nil); err == nil {
		t.Fatal("expected validation error")
	}
	if len(r.Classes()) != 0 {
		t.Error("an invalid manifest should not touch the registry")
	}
}

func TestBindingsArgs(t *testing.T) {
	_, b := applySpace(t, nil)
	args, err := b.Args("collide", "Ship", "Asteroid")
	if err != nil {
		t.Fatal(err)
	}
	if len(args) != 3 || args[2] != nil {
		t.Errorf("args = %v, want two instances and a nil pass-through", args)
	}
	if _, err := b.Args("collide", "Ship"); !errors.Is(err, mm.ErrArity) {
		t.Errorf("err = %v, want ErrArity", err)
	}
	if _, err := b.Args("collide", "Ship", "Comet"); !errors.Is(err, mm.ErrUnknownClass) {
		t.Errorf("err = %v, want ErrUnknownClass", err)
	}
	if _, err := b.Args("missing", "Ship"); err == nil {
		t.Error("expected error for unknown table")
	}
}
