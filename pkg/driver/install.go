package driver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Installer resolves a manifest's macro-library dependencies, transitively,
// into lockfile entries. Git dependencies are fetched into the cache
// directory; path dependencies are linked in place.
type Installer struct {
	manifest  *Manifest
	root      string
	cacheDir  string
	git       *gitFetcher
	logs      []string
	resolved  map[string]*LockedPackage
	resolving map[string]bool
}

func NewInstaller(manifest *Manifest, cacheDir string) *Installer {
	return &Installer{
		manifest: manifest,
		root:     filepath.Dir(manifest.Path),
		cacheDir: cacheDir,
		git:      &gitFetcher{cacheDir: cacheDir},
	}
}

// Install resolves every dependency and replaces lock's packages with the
// result. It reports whether the package set changed, along with progress
// lines for the caller to print.
func (in *Installer) Install(lock *Lockfile) (bool, []string, error) {
	in.logs = nil
	in.resolved = make(map[string]*LockedPackage)
	in.resolving = make(map[string]bool)

	for _, name := range in.manifest.DependencyNames() {
		if err := in.install(name, in.manifest.Dependencies[name].clone(), in.root); err != nil {
			return false, in.logs, err
		}
	}

	desired := make([]*LockedPackage, 0, len(in.resolved))
	for _, pkg := range in.resolved {
		desired = append(desired, pkg)
	}
	sort.Slice(desired, func(i, j int) bool { return desired[i].Name < desired[j].Name })

	existing := make(map[string]*LockedPackage, len(lock.Packages))
	for _, pkg := range lock.Packages {
		if pkg != nil {
			existing[pkg.Name] = pkg
		}
	}
	changed := len(desired) != len(existing)
	for _, pkg := range desired {
		if current, ok := existing[pkg.Name]; !ok || !lockedPackageEqual(current, pkg) {
			changed = true
		}
	}
	lock.Packages = desired
	return changed, in.logs, nil
}

func (in *Installer) install(name string, spec *DependencySpec, base string) error {
	key := sanitizeSegment(name)
	if _, ok := in.resolved[key]; ok {
		return nil
	}
	if in.resolving[key] {
		return fmt.Errorf("dependency cycle detected at %s", key)
	}
	in.resolving[key] = true
	defer delete(in.resolving, key)

	var (
		pkg *LockedPackage
		dir string
		err error
	)
	switch {
	case spec.Path != "":
		pkg, dir, err = in.link(name, spec, base)
	case spec.Git != "":
		pkg, dir, err = in.git.Fetch(name, spec)
		if err == nil {
			in.logs = append(in.logs, fmt.Sprintf("fetched %s %s", pkg.Name, pkg.Version))
		}
	default:
		err = fmt.Errorf("dependency %q: must specify git or path", name)
	}
	if err != nil {
		return err
	}

	// A library without its own manifest has no further dependencies.
	child, err := LoadManifest(filepath.Join(dir, "package.yml"))
	switch {
	case err == nil:
		for _, childName := range child.DependencyNames() {
			if err := in.install(childName, child.Dependencies[childName].clone(), dir); err != nil {
				return err
			}
			pkg.Dependencies = append(pkg.Dependencies, sanitizeSegment(childName))
		}
		sort.Strings(pkg.Dependencies)
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("dependency %q: %w", name, err)
	}

	in.resolved[key] = pkg
	return nil
}

func (in *Installer) link(name string, spec *DependencySpec, base string) (*LockedPackage, string, error) {
	dir := spec.Path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("dependency %q: resolve path %q: %w", name, spec.Path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, "", fmt.Errorf("dependency %q: stat %s: %w", name, abs, err)
	}
	if !info.IsDir() {
		return nil, "", fmt.Errorf("dependency %q: expected directory at %s", name, abs)
	}
	version := "0.0.0-dev"
	if m, err := LoadManifest(filepath.Join(abs, "package.yml")); err == nil && m.Version != "" {
		version = m.Version
	}
	in.logs = append(in.logs, fmt.Sprintf("linked %s %s (%s)", sanitizeSegment(name), version, abs))
	return &LockedPackage{
		Name:    sanitizeSegment(name),
		Version: version,
		Source:  "path:" + abs,
	}, abs, nil
}
