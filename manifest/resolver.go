package manifest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("multimethods.manifest")

// Resolver merges a manifest with the manifests it includes.
type Resolver struct {
	root     *Manifest
	path     string
	visiting map[string]bool
	done     map[string]bool
}

// NewResolver creates a resolver for m, loaded from path. path may be empty
// for a manifest that was not read from a file.
func NewResolver(m *Manifest, path string) *Resolver {
	return &Resolver{
		root:     m,
		path:     path,
		visiting: make(map[string]bool),
		done:     make(map[string]bool),
	}
}

// Resolve returns a single manifest holding the declarations of every
// included file before those of the file including it (includes first,
// recursively). Each file is merged once; an include cycle is an error.
// The engine section of the root wins.
func (r *Resolver) Resolve() (*Manifest, error) {
	out := &Manifest{Engine: r.root.Engine, Dir: r.root.Dir}
	var chain []string
	if r.path != "" {
		abs, err := filepath.Abs(r.path)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve path %s: %w", r.path, err)
		}
		r.visiting[abs] = true
		chain = []string{abs}
	}
	if err := r.resolveAll(r.root, out, chain); err != nil {
		return nil, err
	}
	return out, nil
}

// resolveAll merges the includes of m into out, then m itself.
func (r *Resolver) resolveAll(m *Manifest, out *Manifest, chain []string) error {
	for _, inc := range m.Includes {
		path := inc
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.Dir, path)
		}
		path = filepath.Clean(path)

		if r.visiting[path] {
			return fmt.Errorf("include cycle: %s", strings.Join(append(chain, path), " -> "))
		}
		if r.done[path] {
			continue
		}

		r.visiting[path] = true
		dep, err := readFile(path)
		if err != nil {
			return fmt.Errorf("resolving include %s: %w", inc, err)
		}
		if err := r.resolveAll(dep, out, append(chain, path)); err != nil {
			return err
		}
		r.visiting[path] = false
		r.done[path] = true
		log.Debugf("merged include %s", path)
	}

	out.Classes = append(out.Classes, m.Classes...)
	out.Tables = append(out.Tables, m.Tables...)
	out.Methods = append(out.Methods, m.Methods...)
	return nil
}
