// Package manifest handles multimethods.toml declaration files: the classes,
// tables and methods of a dispatch universe plus the engine options used to
// resolve them.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/chazu/multimethods/mm"
	"gopkg.in/yaml.v3"
)

// FileName is the manifest FindAndLoad looks for.
const FileName = "multimethods.toml"

// Manifest represents a declaration file.
type Manifest struct {
	Engine   Engine       `toml:"engine" yaml:"engine" cbor:"engine"`
	Includes []string     `toml:"include" yaml:"include" cbor:"include,omitempty"`
	Classes  []ClassDecl  `toml:"class" yaml:"classes" cbor:"classes"`
	Tables   []TableDecl  `toml:"table" yaml:"tables" cbor:"tables"`
	Methods  []MethodDecl `toml:"method" yaml:"methods" cbor:"methods"`

	// Dir is the directory containing the manifest file (set at load time).
	Dir string `toml:"-" yaml:"-" cbor:"-"`
}

// Engine configures resolution and logging.
type Engine struct {
	// Grouping defaults to true when unset.
	Grouping         *bool `toml:"grouping" yaml:"grouping" cbor:"grouping,omitempty"`
	RejectDuplicates bool  `toml:"reject-duplicates" yaml:"reject-duplicates" cbor:"reject-duplicates"`
	Verbosity        int   `toml:"verbosity" yaml:"verbosity" cbor:"verbosity"`
}

// ClassDecl declares one class. Bases may name classes declared later in
// the file or in an included file.
type ClassDecl struct {
	Name     string   `toml:"name" yaml:"name" cbor:"name"`
	Bases    []string `toml:"bases" yaml:"bases" cbor:"bases,omitempty"`
	Abstract bool     `toml:"abstract" yaml:"abstract" cbor:"abstract,omitempty"`
}

// TableDecl declares a generic operation. Without Positions every parameter
// is dispatched and Params defaults to len(Bounds).
type TableDecl struct {
	Name      string   `toml:"name" yaml:"name" cbor:"name"`
	Bounds    []string `toml:"bounds" yaml:"bounds" cbor:"bounds"`
	Params    int      `toml:"params" yaml:"params" cbor:"params,omitempty"`
	Positions []int    `toml:"positions" yaml:"positions" cbor:"positions,omitempty"`
}

// MethodDecl declares a method. Declared methods return Result; with
// CallNext they append the result of the next-most-specific method.
type MethodDecl struct {
	Table    string   `toml:"table" yaml:"table" cbor:"table"`
	Name     string   `toml:"name" yaml:"name" cbor:"name"`
	Bounds   []string `toml:"bounds" yaml:"bounds" cbor:"bounds"`
	Result   string   `toml:"result" yaml:"result" cbor:"result,omitempty"`
	CallNext bool     `toml:"call-next" yaml:"call-next" cbor:"call-next,omitempty"`
}

// Load parses the multimethods.toml file in dir and its includes.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a manifest file and its includes. The format follows the
// extension: .toml, .yaml/.yml, or .cbor for a bundle.
func LoadFile(path string) (*Manifest, error) {
	m, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return NewResolver(m, path).Resolve()
}

func readFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest. ext selects the format as in LoadFile.
func Parse(data []byte, ext string) (*Manifest, error) {
	var m Manifest
	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.Decode(string(data), &m)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	case ".cbor":
		return UnmarshalBundle(data)
	default:
		return nil, fmt.Errorf("unknown manifest format %q", ext)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a multimethods.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Options returns the engine options for a registry built from m.
func (m *Manifest) Options() mm.Options {
	opts := mm.DefaultOptions()
	if m.Engine.Grouping != nil {
		opts.Grouping = *m.Engine.Grouping
	}
	opts.RejectDuplicates = m.Engine.RejectDuplicates
	return opts
}

// Validate checks that every name a declaration refers to is declared and
// that every arity matches.
func (m *Manifest) Validate() error {
	var errs []error
	classes := make(map[string]bool)
	for _, c := range m.Classes {
		if c.Name == "" {
			errs = append(errs, errors.New("class with empty name"))
			continue
		}
		if classes[c.Name] {
			errs = append(errs, fmt.Errorf("class %s declared twice", c.Name))
		}
		classes[c.Name] = true
	}
	known := func(what, name string) {
		if !classes[name] {
			errs = append(errs, fmt.Errorf("%s: unknown class %q", what, name))
		}
	}
	for _, c := range m.Classes {
		for _, b := range c.Bases {
			known("class "+c.Name, b)
		}
	}

	arity := make(map[string]int)
	for _, t := range m.Tables {
		if _, ok := arity[t.Name]; ok {
			errs = append(errs, fmt.Errorf("table %s declared twice", t.Name))
		}
		arity[t.Name] = len(t.Bounds)
		if len(t.Bounds) == 0 {
			errs = append(errs, fmt.Errorf("table %s has no bounds", t.Name))
		}
		if len(t.Positions) > 0 && len(t.Positions) != len(t.Bounds) {
			errs = append(errs, fmt.Errorf("table %s: %d positions for %d bounds",
				t.Name, len(t.Positions), len(t.Bounds)))
		}
		for _, b := range t.Bounds {
			known("table "+t.Name, b)
		}
	}

	for _, md := range m.Methods {
		n, ok := arity[md.Table]
		if !ok {
			errs = append(errs, fmt.Errorf("method %s: unknown table %q", md.Name, md.Table))
			continue
		}
		if len(md.Bounds) != n {
			errs = append(errs, fmt.Errorf("method %s.%s: %d bounds, want %d",
				md.Table, md.Name, len(md.Bounds), n))
		}
		for _, b := range md.Bounds {
			known("method "+md.Table+"."+md.Name, b)
		}
	}
	return errors.Join(errs...)
}

// signature converts a table declaration into an mm.Signature.
func (t TableDecl) signature(classes map[string]*mm.Class) mm.Signature {
	sig := mm.Signature{Params: t.Params}
	for i, b := range t.Bounds {
		pos := i
		if len(t.Positions) > 0 {
			pos = t.Positions[i]
		}
		sig.Virtuals = append(sig.Virtuals, mm.Virtual{Position: pos, Bound: classes[b]})
	}
	if sig.Params == 0 {
		sig.Params = len(t.Bounds)
		if n := len(sig.Virtuals); n > 0 && sig.Virtuals[n-1].Position >= sig.Params {
			sig.Params = sig.Virtuals[n-1].Position + 1
		}
	}
	return sig
}
