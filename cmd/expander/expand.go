package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"hygienic/expander-go/pkg/driver"
	"hygienic/expander-go/pkg/expander"
	"hygienic/expander-go/pkg/term"
)

type expandOptions struct {
	trace bool
	json  bool
	file  string
}

func parseExpandArgs(args []string) (expandOptions, error) {
	var opts expandOptions
	for _, arg := range args {
		switch {
		case arg == "--trace":
			opts.trace = true
		case arg == "--json":
			opts.json = true
		case strings.HasPrefix(arg, "-"):
			return opts, fmt.Errorf("unknown flag %s", arg)
		case opts.file != "":
			return opts, fmt.Errorf("expand takes a single file (received %s and %s)", opts.file, arg)
		default:
			opts.file = arg
		}
	}
	if opts.file == "" {
		return opts, errors.New("expand requires a file")
	}
	return opts, nil
}

func runExpand(args []string) int {
	opts, err := parseExpandArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "expander expand: %v\n", err)
		printUsage()
		return 1
	}
	entry, err := filepath.Abs(opts.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "expander expand: %v\n", err)
		return 1
	}

	manifest, lock, err := loadProject(filepath.Dir(entry))
	if err != nil {
		fmt.Fprintf(os.Stderr, "expander expand: %v\n", err)
		return 1
	}
	cfg, err := driver.LoadConfig(manifest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "expander expand: %v\n", err)
		return 1
	}
	if opts.trace {
		cfg.Trace = func(ev expander.Event) { printEvent(os.Stderr, ev) }
	}

	session, closeReader, err := driver.NewSession(cfg, lock, filepath.Dir(entry))
	if err != nil {
		fmt.Fprintf(os.Stderr, "expander expand: %v\n", err)
		return 1
	}
	defer closeReader()

	mod, err := session.Modules.LoadAndCompile(entry)
	if err != nil {
		fmt.Fprintln(os.Stderr, driver.DescribeError(err))
		return 1
	}
	if opts.json {
		data, err := term.Marshal(mod.Body, session.Alloc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "expander expand: %v\n", err)
			return 1
		}
		fmt.Fprintln(os.Stdout, string(data))
		return 0
	}
	printModule(os.Stdout, mod)
	return 0
}

// loadProject finds the manifest governing dir and its lockfile. Both are
// optional; a manifest with dependencies but no lockfile is an error.
func loadProject(dir string) (*driver.Manifest, *driver.Lockfile, error) {
	path, err := driver.FindManifest(dir)
	if errors.Is(err, driver.ErrManifestNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	manifest, err := driver.LoadManifest(path)
	if err != nil {
		return nil, nil, err
	}
	lockPath := filepath.Join(filepath.Dir(manifest.Path), "package.lock")
	lock, err := driver.LoadLockfile(lockPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if len(manifest.Dependencies) > 0 {
			return nil, nil, fmt.Errorf("package.lock missing for %q; run `expander deps install`", manifest.Name)
		}
		return manifest, nil, nil
	case err != nil:
		return nil, nil, fmt.Errorf("failed to read lockfile %s: %w", lockPath, err)
	}
	if lock.Root != manifest.Name {
		return nil, nil, fmt.Errorf("lockfile root %q does not match manifest name %q", lock.Root, manifest.Name)
	}
	return manifest, lock, nil
}

func printModule(w io.Writer, mod *expander.Module) {
	fmt.Fprintf(w, "module %s\n", mod.Specifier)
	for _, p := range mod.Pragmas {
		fmt.Fprintf(w, "pragma %s\n", p.Syntax("kind").Value)
	}
	for _, imp := range mod.ImportEntries {
		suffix := ""
		if imp.Bool("forSyntax") {
			suffix = " for syntax"
		}
		fmt.Fprintf(w, "import %s%s\n", imp.Syntax("moduleSpecifier").Value, suffix)
	}
	for _, exp := range mod.ExportEntries {
		fmt.Fprintf(w, "export %s\n", exp.Kind())
	}
	for _, t := range mod.Body {
		fmt.Fprintf(w, "  %s\n", t.Kind())
	}
}

func printEvent(w io.Writer, ev expander.Event) {
	switch ev.Kind {
	case "expand":
		fmt.Fprintf(w, "expand %s at %d:%d (phase %d)\n", ev.Name, ev.Pos.Line, ev.Pos.Column, ev.Phase)
	default:
		fmt.Fprintf(w, "%s %s (phase %d)\n", ev.Kind, ev.Name, ev.Phase)
	}
}
