package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestBundleRoundTrip(t *testing.T) {
	m, err := Parse([]byte(spaceTOML), ".toml")
	if err != nil {
		t.Fatal(err)
	}
	data, err := MarshalBundle(m)
	if err != nil {
		t.Fatalf("MarshalBundle failed: %v", err)
	}
	again, err := MarshalBundle(m)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Error("bundle encoding should be deterministic")
	}

	got, err := UnmarshalBundle(data)
	if err != nil {
		t.Fatalf("UnmarshalBundle failed: %v", err)
	}
	if !reflect.DeepEqual(got.Classes, m.Classes) {
		t.Errorf("classes = %+v, want %+v", got.Classes, m.Classes)
	}
	if !reflect.DeepEqual(got.Methods, m.Methods) {
		t.Errorf("methods = %+v, want %+v", got.Methods, m.Methods)
	}
	if got.Options() != m.Options() {
		t.Errorf("options = %+v, want %+v", got.Options(), m.Options())
	}
}

func TestLoadBundleFile(t *testing.T) {
	m, err := Parse([]byte(spaceTOML), ".toml")
	if err != nil {
		t.Fatal(err)
	}
	data, err := MarshalBundle(m)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "space.cbor")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(loaded.Tables) != 1 || loaded.Tables[0].Name != "collide" {
		t.Errorf("tables = %+v, want collide", loaded.Tables)
	}
}

func TestBundleRejectsIncludes(t *testing.T) {
	m := &Manifest{Includes: []string{"base.toml"}}
	if _, err := MarshalBundle(m); err == nil {
		t.Error("expected error for unresolved includes")
	}
}
