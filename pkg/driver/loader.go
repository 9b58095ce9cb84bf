package driver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// NotFoundError reports a module path with no file behind it.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("driver: module %s not found", e.Path)
}

// ResolveError reports an import specifier that names no module.
type ResolveError struct {
	Specifier string
	From      string
	Reason    string
}

func (e *ResolveError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("driver: cannot resolve %q: %s", e.Specifier, e.Reason)
	}
	return fmt.Sprintf("driver: cannot resolve %q from %s: %s", e.Specifier, e.From, e.Reason)
}

// FileLoader reads module source from the filesystem.
func FileLoader(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &NotFoundError{Path: path}
		}
		return "", fmt.Errorf("driver: read %s: %w", path, err)
	}
	return string(data), nil
}

// Extensions are tried, in order, after a specifier that names no file.
var Extensions = []string{".js", ".sjs"}

// Resolver maps import specifiers to canonical file paths. Relative and
// absolute specifiers are joined with the importing module's directory;
// bare specifiers name an installed package (`pkg` or `pkg/sub/path`).
type Resolver struct {
	packages map[string]string
}

// NewResolver builds a resolver over the packages recorded in lock. A nil
// lock resolves only relative and absolute specifiers.
func NewResolver(lock *Lockfile, cacheDir string) *Resolver {
	r := &Resolver{packages: make(map[string]string)}
	if lock != nil {
		for _, pkg := range lock.Packages {
			r.packages[pkg.Name] = pkg.Dir(cacheDir)
		}
	}
	return r
}

// Resolve implements expander.ModuleResolver.
func (r *Resolver) Resolve(specifier, cwd string) (string, error) {
	if specifier == "" {
		return "", &ResolveError{Specifier: specifier, From: cwd, Reason: "empty specifier"}
	}
	var base string
	switch {
	case filepath.IsAbs(specifier):
		base = filepath.Clean(specifier)
	case strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") || specifier == "." || specifier == "..":
		if cwd == "" {
			wd, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("driver: resolve working directory: %w", err)
			}
			cwd = wd
		}
		base = filepath.Join(cwd, filepath.FromSlash(specifier))
	default:
		name, rest, _ := strings.Cut(specifier, "/")
		dir, ok := r.packages[sanitizeSegment(name)]
		if !ok {
			return "", &ResolveError{Specifier: specifier, From: cwd, Reason: fmt.Sprintf("package %s is not installed", name)}
		}
		if rest == "" {
			return r.packageMain(specifier, dir)
		}
		base = filepath.Join(dir, filepath.FromSlash(rest))
	}

	path, ok := probe(base)
	if !ok {
		return "", &ResolveError{Specifier: specifier, From: cwd, Reason: "no such module"}
	}
	return canonical(path)
}

// packageMain is the package manifest's main entry, or its index module.
func (r *Resolver) packageMain(specifier, dir string) (string, error) {
	base := filepath.Join(dir, "index")
	if m, err := LoadManifest(filepath.Join(dir, "package.yml")); err == nil && m.Main != "" {
		base = filepath.Join(dir, filepath.FromSlash(m.Main))
	}
	path, ok := probe(base)
	if !ok {
		return "", &ResolveError{Specifier: specifier, Reason: fmt.Sprintf("package has no entry module at %s", base)}
	}
	return canonical(path)
}

func probe(base string) (string, bool) {
	if isFile(base) {
		return base, true
	}
	for _, ext := range Extensions {
		if isFile(base + ext) {
			return base + ext, true
		}
	}
	for _, ext := range Extensions {
		index := filepath.Join(base, "index"+ext)
		if isFile(index) {
			return index, true
		}
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// canonical makes path absolute and resolves symlinks so one module is
// cached once however it is reached.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("driver: resolve %s: %w", path, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("driver: resolve %s: %w", abs, err)
	}
	return real, nil
}
