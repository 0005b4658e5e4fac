package wire

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/chazu/multimethods/mm"
)

func buildRegistry(t *testing.T) *mm.Registry {
	t.Helper()
	r := mm.NewRegistry()
	object, _ := r.RegisterClass("Object")
	ship, _ := r.RegisterClass("Ship", object)
	asteroid, _ := r.RegisterClass("Asteroid", object)
	hit, err := r.CreateTable("hit", object, object)
	if err != nil {
		t.Fatal(err)
	}
	body := func(*mm.Call) (any, error) { return nil, nil }
	for _, m := range []struct {
		name   string
		bounds []*mm.Class
	}{
		{"asteroidFirst", []*mm.Class{asteroid, object}},
		{"asteroidSecond", []*mm.Class{object, asteroid}},
		{"ships", []*mm.Class{ship, ship}},
	} {
		if _, err := r.RegisterMethod(hit, m.name, m.bounds, body); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.Finalize(); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestMarshalReportRoundTrip(t *testing.T) {
	rep := buildRegistry(t).Report()
	data, err := MarshalReport(rep)
	if err != nil {
		t.Fatalf("MarshalReport failed: %v", err)
	}
	got, err := UnmarshalReport(data)
	if err != nil {
		t.Fatalf("UnmarshalReport failed: %v", err)
	}
	if !reflect.DeepEqual(got, rep) {
		t.Errorf("round trip changed the report:\n got %+v\nwant %+v", got, rep)
	}
	if len(got.Tables) != 1 || len(got.Tables[0].Ambiguities) != 1 {
		t.Errorf("want one table with one ambiguous cell, got %+v", got.Tables)
	}
}

func TestMarshalReportCanonical(t *testing.T) {
	r := buildRegistry(t)
	first, err := MarshalReport(r.Report())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Finalize(); err != nil {
		t.Fatal(err)
	}
	second, err := MarshalReport(r.Report())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("a no-op finalize should leave the encoded report unchanged")
	}

	// Two registries built the same way encode identically.
	other, err := MarshalReport(buildRegistry(t).Report())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, other) {
		t.Error("identical registries should encode identically")
	}
}

func TestUnmarshalReportError(t *testing.T) {
	if _, err := UnmarshalReport([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error for malformed input")
	}
}
