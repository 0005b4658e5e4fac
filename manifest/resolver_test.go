package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func classNames(m *Manifest) []string {
	var names []string
	for _, c := range m.Classes {
		names = append(names, c.Name)
	}
	return names
}

func TestResolveIncludes(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "shapes"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "base.toml", "[[class]]\nname = \"Object\"\n")
	writeFile(t, filepath.Join(dir, "shapes"), "shapes.yaml", `
include: [../base.toml]
classes:
  - name: Shape
    bases: [Object]
`)
	// base.toml is reached twice but merged once.
	writeFile(t, dir, FileName, `
include = ["base.toml", "shapes/shapes.yaml"]

[engine]
verbosity = 1

[[class]]
name = "Circle"
bases = ["Shape"]
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got := strings.Join(classNames(m), ",")
	if got != "Object,Shape,Circle" {
		t.Errorf("classes = %s, want Object,Shape,Circle", got)
	}
	if m.Engine.Verbosity != 1 {
		t.Errorf("verbosity = %d, want the root's 1", m.Engine.Verbosity)
	}
	if len(m.Includes) != 0 {
		t.Errorf("resolved manifest still has includes %v", m.Includes)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestResolveIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.toml", "include = [\"b.toml\"]\n")
	writeFile(t, dir, "b.toml", "include = [\"a.toml\"]\n")

	_, err := LoadFile(filepath.Join(dir, "a.toml"))
	if err == nil || !strings.Contains(err.Error(), "include cycle") {
		t.Errorf("err = %v, want include cycle", err)
	}
}

func TestResolveMissingInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, "include = [\"missing.toml\"]\n")

	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "missing.toml") {
		t.Errorf("err = %v, want it to name missing.toml", err)
	}
}

func TestResolveInMemory(t *testing.T) {
	m := &Manifest{Classes: []ClassDecl{{Name: "Object"}}}
	got, err := NewResolver(m, "").Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Classes) != 1 {
		t.Errorf("classes = %v, want [Object]", classNames(got))
	}
}
