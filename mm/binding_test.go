package mm

import (
	"errors"
	"reflect"
	"testing"
)

type vessel struct {
	Object
	name string
}

type frigate struct {
	vessel
}

// rock does not embed Object; it is resolved through the type side table.
type rock struct {
	mass int
}

type unregistered struct {
	Object
}

type fleet struct {
	r                           *Registry
	body, vessel, frigate, rock *Class
	collide                     *Table
}

func newFleet(t *testing.T) *fleet {
	t.Helper()
	r := NewRegistry()
	f := &fleet{r: r}
	var err error
	if f.body, err = r.RegisterClass("Body"); err != nil {
		t.Fatal(err)
	}
	if f.vessel, err = Register[*vessel](r, f.body); err != nil {
		t.Fatal(err)
	}
	if f.frigate, err = Register[*frigate](r, f.vessel); err != nil {
		t.Fatal(err)
	}
	if f.rock, err = Register[rock](r, f.body); err != nil {
		t.Fatal(err)
	}
	if f.collide, err = r.CreateTable("collide", f.body, f.body); err != nil {
		t.Fatal(err)
	}
	mustMethod(t, r, f.collide, "bodies", constant("bounce"), f.body, f.body)
	mustMethod(t, r, f.collide, "ram", constant("ram"), f.vessel, f.rock)
	mustMethod(t, r, f.collide, "broadside", constant("broadside"), f.frigate, f.vessel)
	mustFinalize(t, r)
	return f
}

func (f *fleet) newVessel(t *testing.T, name string) *vessel {
	t.Helper()
	v := &vessel{name: name}
	if err := f.r.Init(v); err != nil {
		t.Fatalf("Init(%s) failed: %v", name, err)
	}
	return v
}

func (f *fleet) newFrigate(t *testing.T) *frigate {
	t.Helper()
	v := &frigate{}
	if err := f.r.Init(v); err != nil {
		t.Fatalf("Init(frigate) failed: %v", err)
	}
	return v
}

func TestRegisterTypeForeignness(t *testing.T) {
	f := newFleet(t)
	if f.vessel.IsForeign() {
		t.Error("a type embedding Object is not foreign")
	}
	if !f.rock.IsForeign() {
		t.Error("a plain struct type is foreign")
	}
	if f.vessel.Type() != reflect.TypeFor[*vessel]() {
		t.Errorf("Type = %v, want *vessel", f.vessel.Type())
	}
	if f.r.ClassForType(reflect.TypeFor[rock]()) != f.rock {
		t.Error("ClassForType(rock) should return the rock class")
	}
	if _, err := Register[rock](f.r); !errors.Is(err, ErrDuplicateClass) {
		t.Errorf("err = %v, want ErrDuplicateClass", err)
	}
}

func TestInitBindsClass(t *testing.T) {
	f := newFleet(t)
	v := f.newVessel(t, "Argo")
	if v.DispatchClass() != f.vessel {
		t.Errorf("DispatchClass = %v, want %v", v.DispatchClass(), f.vessel)
	}
	fr := f.newFrigate(t)
	if fr.DispatchClass() != f.frigate {
		t.Errorf("DispatchClass = %v, want %v", fr.DispatchClass(), f.frigate)
	}

	// Binding again to the same class is harmless.
	if err := f.r.Init(v); err != nil {
		t.Errorf("re-Init: %v", err)
	}
}

func TestInitErrors(t *testing.T) {
	f := newFleet(t)
	if err := f.r.Init(&unregistered{}); !errors.Is(err, ErrUnknownClass) {
		t.Errorf("unregistered type: err = %v, want ErrUnknownClass", err)
	}
	if err := f.r.Init(Instance(f.body)); err == nil {
		t.Error("Init of a value without Object should fail")
	}

	// A value already bound in one registry cannot be rebound by another.
	other := newFleet(t)
	v := f.newVessel(t, "Argo")
	if err := other.r.Init(v); !errors.Is(err, ErrRebound) {
		t.Errorf("err = %v, want ErrRebound", err)
	}
}

func TestClassOf(t *testing.T) {
	f := newFleet(t)
	tests := []struct {
		name string
		v    any
		want *Class
	}{
		{"embedded", f.newVessel(t, "Argo"), f.vessel},
		{"embeddedUnbound", &vessel{}, f.vessel},
		{"foreign", rock{mass: 3}, f.rock},
		{"declared", Instance(f.body), f.body},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.r.ClassOf(tt.v)
			if err != nil {
				t.Fatalf("ClassOf failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ClassOf = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := f.r.ClassOf(&rock{}); !errors.Is(err, ErrUnknownClass) {
		t.Errorf("*rock: err = %v, want ErrUnknownClass", err)
	}
}

func TestClassOfNilPointer(t *testing.T) {
	f := newFleet(t)
	_, err := f.r.ClassOf((*vessel)(nil))
	var be *BindingError
	if !errors.As(err, &be) || !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("err = %v, want *BindingError wrapping ErrUnknownClass", err)
	}

	_, err = f.collide.Dispatch((*frigate)(nil), rock{})
	if !errors.As(err, &be) || !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("Dispatch: err = %v, want *BindingError wrapping ErrUnknownClass", err)
	}
	if be.Table != "collide" || be.Position != 0 {
		t.Errorf("BindingError = %+v, want collide argument 0", be)
	}
}

func TestDispatchEmbeddedAndForeign(t *testing.T) {
	f := newFleet(t)
	argo := f.newVessel(t, "Argo")
	frig := f.newFrigate(t)

	tests := []struct {
		name string
		a, b any
		want string
	}{
		{"vesselRock", argo, rock{}, "ram"},
		{"frigateRock", frig, rock{}, "ram"},
		{"frigateVessel", frig, argo, "broadside"},
		{"rockVessel", rock{}, argo, "bounce"},
		{"vesselVessel", argo, argo, "bounce"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.collide.Dispatch(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Dispatch failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Dispatch = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestEmbeddedAndSideTableAgree(t *testing.T) {
	f := newFleet(t)
	bound := f.newVessel(t, "Argo")
	unbound := &vessel{name: "Ghost"}

	for d := 0; d < f.collide.Arity(); d++ {
		rb, err := f.collide.RowOf(bound, d)
		if err != nil {
			t.Fatal(err)
		}
		ru, err := f.collide.RowOf(unbound, d)
		if err != nil {
			t.Fatal(err)
		}
		if rb != ru {
			t.Errorf("dimension %d: bound row %+v, side table row %+v", d, rb, ru)
		}
	}
}

func TestRowOfErrors(t *testing.T) {
	f := newFleet(t)
	if _, err := f.collide.RowOf(rock{}, 2); !errors.Is(err, ErrArity) {
		t.Errorf("err = %v, want ErrArity", err)
	}
	_, err := f.collide.RowOf(3.5, 0)
	var be *BindingError
	if !errors.As(err, &be) || !errors.Is(err, ErrUnknownClass) {
		t.Errorf("err = %v, want *BindingError wrapping ErrUnknownClass", err)
	}
}
