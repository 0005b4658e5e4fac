// mmc loads a multimethods manifest, resolves its dispatch tables and
// prints them.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/multimethods/manifest"
	"github.com/chazu/multimethods/mm"
	"github.com/chazu/multimethods/mm/wire"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// callList collects repeated -call flags.
type callList []string

func (c *callList) String() string { return strings.Join(*c, " ") }

func (c *callList) Set(v string) error {
	*c = append(*c, v)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mmc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbosity := fs.Int("v", -1, "Log verbosity (overrides engine.verbosity of the manifest)")
	format := fs.String("format", "auto", "Output format: auto, table, plain")
	reportPath := fs.String("report", "", "Write the finalize report as CBOR to this file")
	bundlePath := fs.String("bundle", "", "Write the resolved manifest as a CBOR bundle to this file")
	quiet := fs.Bool("q", false, "Do not print the dispatch tables")
	var calls callList
	fs.Var(&calls, "call", "Dispatch table:Class,Class,... after finalizing (repeatable)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: mmc [options] [manifest]\n\n")
		fmt.Fprintf(stderr, "Resolves the dispatch tables declared in a manifest (.toml, .yaml or .cbor).\n")
		fmt.Fprintf(stderr, "Without a path, multimethods.toml is searched upwards from the current directory.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  mmc                                    # Print the tables of ./multimethods.toml\n")
		fmt.Fprintf(stderr, "  mmc space.yaml -call collide:Ship,Asteroid\n")
		fmt.Fprintf(stderr, "  mmc -q -report tables.cbor             # Write the report only\n")
		fmt.Fprintf(stderr, "  mmc -v 4 space.toml                    # Trace resolution\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return 2
	}

	m, err := loadManifest(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	level := m.Engine.Verbosity
	if *verbosity >= 0 {
		level = *verbosity
	}
	commonlog.Configure(level, nil)

	r := mm.NewRegistryWithOptions(m.Options())
	b, err := m.Apply(r, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	status := 0
	rep, err := r.Finalize()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		status = 1
	}

	if !*quiet {
		out, err := newPrinter(*format, stdout)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		out.report(rep)
	}

	for _, c := range calls {
		if err := runCall(stdout, b, c); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			status = 1
		}
	}

	if *reportPath != "" {
		data, err := wire.MarshalReport(rep)
		if err == nil {
			err = os.WriteFile(*reportPath, data, 0644)
		}
		if err != nil {
			fmt.Fprintf(stderr, "Error writing report: %v\n", err)
			return 1
		}
	}
	if *bundlePath != "" {
		data, err := manifest.MarshalBundle(m)
		if err == nil {
			err = os.WriteFile(*bundlePath, data, 0644)
		}
		if err != nil {
			fmt.Fprintf(stderr, "Error writing bundle: %v\n", err)
			return 1
		}
	}
	return status
}

func loadManifest(path string) (*manifest.Manifest, error) {
	if path != "" {
		return manifest.LoadFile(path)
	}
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("no %s found", manifest.FileName)
	}
	return m, nil
}

// runCall dispatches one "table:Class,Class" call and prints its result.
// Undefined and ambiguous calls are printed, not returned as errors.
func runCall(w io.Writer, b *manifest.Bindings, spec string) error {
	table, list, ok := strings.Cut(spec, ":")
	if !ok {
		return fmt.Errorf("bad call %q, want table:Class,Class", spec)
	}
	names := strings.Split(list, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	args, err := b.Args(table, names...)
	if err != nil {
		return err
	}

	label := fmt.Sprintf("%s(%s)", table, strings.Join(names, ", "))
	result, err := b.Tables[table].Dispatch(args...)
	switch {
	case errors.Is(err, mm.ErrUndefined), errors.Is(err, mm.ErrAmbiguous):
		fmt.Fprintf(w, "%s: %v\n", label, err)
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(w, "%s = %v\n", label, result)
	return nil
}
