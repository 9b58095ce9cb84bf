package driver

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(strings.TrimLeft(contents, "\n")), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// initGitRepo commits everything under dir and returns the commit hash.
func initGitRepo(t *testing.T, dir string) string {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		_, err = worktree.Add(filepath.ToSlash(rel))
		return err
	}); err != nil {
		t.Fatalf("stage files: %v", err)
	}
	hash, err := worktree.Commit("init", &git.CommitOptions{
		Author: &object.Signature{Name: "Expander Tests", Email: "tests@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return hash.String()
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.yml")
	writeFile(t, path, `
name: my-app
version: 0.1.0
main: src/main.js
dependencies:
  local-macros: ../macros
  remote:
    git: https://example.com/remote.git
    tag: v1.2.0
expander:
  max_expansions: 64
  max_depth: 8
`)
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Name != "my_app" || m.Main != "src/main.js" {
		t.Fatalf("manifest = %+v", m)
	}
	if got := m.Dependencies["local-macros"]; got == nil || got.Path != "../macros" {
		t.Fatalf("path shorthand = %+v", got)
	}
	if got := m.Dependencies["remote"]; got == nil || got.Git != "https://example.com/remote.git" || got.Tag != "v1.2.0" {
		t.Fatalf("git dependency = %+v", got)
	}
	if m.Expander.MaxExpansions != 64 || m.Expander.MaxDepth != 8 {
		t.Fatalf("limits = %+v", m.Expander)
	}
	if names := m.DependencyNames(); len(names) != 2 || names[0] != "local-macros" {
		t.Fatalf("DependencyNames = %v", names)
	}
}

func TestLoadManifestValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.yml")
	writeFile(t, path, `
version: 0.1.0
dependencies:
  broken:
    git: https://example.com/broken.git
`)
	_, err := LoadManifest(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Issues) != 2 {
		t.Fatalf("issues = %q", verr.Issues)
	}

	writeFile(t, path, "name: app\ntargets: {}\n")
	if _, err := LoadManifest(path); err == nil || !strings.Contains(err.Error(), "targets") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestFindManifestWalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.yml"), "name: app\n")
	nested := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, err := FindManifest(nested)
	if err != nil {
		t.Fatalf("FindManifest: %v", err)
	}
	if got != filepath.Join(root, "package.yml") {
		t.Fatalf("FindManifest = %q", got)
	}
}

func TestLockfileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "package.lock")
	lock := NewLockfile("my-app", "expander test")
	lock.Packages = []*LockedPackage{
		{Name: "zeta", Version: "1.0.0", Source: "path:/tmp/zeta"},
		{Name: "alpha", Version: "v1@abc", Source: "git+https://example.com/a.git@abc", Checksum: "ff", Dependencies: []string{"zeta"}},
	}
	if err := WriteLockfile(lock, path); err != nil {
		t.Fatalf("WriteLockfile: %v", err)
	}
	loaded, err := LoadLockfile(path)
	if err != nil {
		t.Fatalf("LoadLockfile: %v", err)
	}
	if loaded.Root != "my_app" || len(loaded.Packages) != 2 || loaded.Packages[0].Name != "alpha" {
		t.Fatalf("loaded = %+v", loaded)
	}
	if !lockedPackageEqual(loaded.Find("alpha"), lock.Find("alpha")) {
		t.Fatalf("alpha changed: %+v", loaded.Find("alpha"))
	}
	if got := loaded.Find("zeta").Dir("/cache"); got != "/tmp/zeta" {
		t.Fatalf("path package dir = %q", got)
	}
	if got := loaded.Find("alpha").Dir("/cache"); got != filepath.Join("/cache", "pkg", "src", "alpha", "v1_abc") {
		t.Fatalf("git package dir = %q", got)
	}

	if _, err := LoadLockfile(filepath.Join(t.TempDir(), "package.lock")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestFileLoaderNotFound(t *testing.T) {
	_, err := FileLoader(filepath.Join(t.TempDir(), "missing.js"))
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestResolver(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app", "util.js"), "#lang \"sweet\";\n")
	writeFile(t, filepath.Join(root, "app", "lib", "index.js"), "#lang \"sweet\";\n")
	writeFile(t, filepath.Join(root, "macros", "package.yml"), "name: macros\nmain: src/all\n")
	writeFile(t, filepath.Join(root, "macros", "src", "all.sjs"), "#lang \"sweet\";\n")
	writeFile(t, filepath.Join(root, "macros", "src", "swap.js"), "#lang \"sweet\";\n")
	root, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}

	lock := NewLockfile("app", "test")
	lock.Packages = []*LockedPackage{{Name: "macros", Version: "0.0.0-dev", Source: "path:" + filepath.Join(root, "macros")}}
	r := NewResolver(lock, filepath.Join(root, "cache"))
	cwd := filepath.Join(root, "app")

	cases := map[string]string{
		"./util":          filepath.Join(root, "app", "util.js"),
		"./util.js":       filepath.Join(root, "app", "util.js"),
		"./lib":           filepath.Join(root, "app", "lib", "index.js"),
		"../app/util":     filepath.Join(root, "app", "util.js"),
		"macros":          filepath.Join(root, "macros", "src", "all.sjs"),
		"macros/src/swap": filepath.Join(root, "macros", "src", "swap.js"),
	}
	for spec, want := range cases {
		got, err := r.Resolve(spec, cwd)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", spec, err)
		}
		if got != want {
			t.Fatalf("Resolve(%q) = %q, want %q", spec, got, want)
		}
	}

	for _, spec := range []string{"./nope", "unknown-pkg/x"} {
		_, err := r.Resolve(spec, cwd)
		var rerr *ResolveError
		if !errors.As(err, &rerr) {
			t.Fatalf("Resolve(%q): expected ResolveError, got %v", spec, err)
		}
	}
}

func TestResolverCanonicalisesSymlinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "real", "m.js"), "#lang \"sweet\";\n")
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "alias")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	r := NewResolver(nil, "")
	a, err := r.Resolve("./real/m", root)
	if err != nil {
		t.Fatalf("Resolve real: %v", err)
	}
	b, err := r.Resolve("./alias/m", root)
	if err != nil {
		t.Fatalf("Resolve alias: %v", err)
	}
	if a != b {
		t.Fatalf("symlinked paths differ: %q vs %q", a, b)
	}
}

func TestInstallPathDependencies(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app", "package.yml"), `
name: app
dependencies:
  outer: ../outer
`)
	writeFile(t, filepath.Join(root, "outer", "package.yml"), `
name: outer
version: 2.0.0
dependencies:
  inner: ../inner
`)
	writeFile(t, filepath.Join(root, "inner", "index.js"), "#lang \"sweet\";\n")

	m, err := LoadManifest(filepath.Join(root, "app", "package.yml"))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	lock := NewLockfile(m.Name, "test")
	changed, logs, err := NewInstaller(m, filepath.Join(root, "cache")).Install(lock)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !changed || len(logs) != 2 {
		t.Fatalf("changed = %v, logs = %q", changed, logs)
	}
	outer, inner := lock.Find("outer"), lock.Find("inner")
	if outer == nil || inner == nil {
		t.Fatalf("packages = %+v", lock.Packages)
	}
	if outer.Version != "2.0.0" || len(outer.Dependencies) != 1 || outer.Dependencies[0] != "inner" {
		t.Fatalf("outer = %+v", outer)
	}
	if inner.Version != "0.0.0-dev" || inner.Dir("") != filepath.Join(root, "inner") {
		t.Fatalf("inner = %+v", inner)
	}

	changed, _, err = NewInstaller(m, filepath.Join(root, "cache")).Install(lock)
	if err != nil {
		t.Fatalf("second Install: %v", err)
	}
	if changed {
		t.Fatalf("second install reported a change")
	}
}

func TestInstallDetectsCycles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app", "package.yml"), "name: app\ndependencies:\n  a: ../a\n")
	writeFile(t, filepath.Join(root, "a", "package.yml"), "name: a\ndependencies:\n  b: ../b\n")
	writeFile(t, filepath.Join(root, "b", "package.yml"), "name: b\ndependencies:\n  a: ../a\n")
	m, err := LoadManifest(filepath.Join(root, "app", "package.yml"))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	_, _, err = NewInstaller(m, t.TempDir()).Install(NewLockfile("app", "test"))
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestInstallGitDependency(t *testing.T) {
	root := t.TempDir()
	repoDir := filepath.Join(root, "swap-macros")
	writeFile(t, filepath.Join(repoDir, "index.js"), "#lang \"sweet\";\nexport syntax swap = function (a, b) { return #`${b}`; };\n")
	commit := initGitRepo(t, repoDir)

	writeFile(t, filepath.Join(root, "app", "package.yml"), `
name: app
dependencies:
  swap-macros:
    git: `+repoDir+`
    rev: `+commit+`
`)
	m, err := LoadManifest(filepath.Join(root, "app", "package.yml"))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	cache := filepath.Join(root, "cache")
	lock := NewLockfile(m.Name, "test")
	if _, _, err := NewInstaller(m, cache).Install(lock); err != nil {
		t.Fatalf("Install: %v", err)
	}
	pkg := lock.Find("swap_macros")
	if pkg == nil {
		t.Fatalf("packages = %+v", lock.Packages)
	}
	if pkg.Version != commit || pkg.Source != "git+"+repoDir+"@"+commit || pkg.Checksum == "" {
		t.Fatalf("locked = %+v", pkg)
	}
	if _, err := os.Stat(filepath.Join(pkg.Dir(cache), "index.js")); err != nil {
		t.Fatalf("checkout missing: %v", err)
	}

	got, err := NewResolver(lock, cache).Resolve("swap-macros", filepath.Join(root, "app"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(got) != "index.js" {
		t.Fatalf("Resolve = %q", got)
	}
}

func TestLoadConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("EXPANDER_HOME", home)
	t.Setenv("EXPANDER_MAX_EXPANSIONS", "10")
	t.Setenv("EXPANDER_MAX_DEPTH", "")
	cfg, err := LoadConfig(&Manifest{Expander: Limits{MaxExpansions: 99, MaxDepth: 7}})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Home != home || cfg.MaxExpansions != 10 || cfg.MaxDepth != 7 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestDescribeError(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.js")
	writeFile(t, main, "#lang \"sweet\";\nvar = 1;\n")
	session, closeReader, err := NewSession(&Config{Home: t.TempDir()}, nil, dir)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer closeReader()

	_, err = session.Modules.LoadAndCompile(main)
	if err == nil {
		t.Fatalf("expected syntax error")
	}
	got := DescribeError(err)
	if !strings.HasPrefix(got, "compile: "+main+":2:") {
		t.Fatalf("DescribeError = %q", got)
	}

	if got := DescribeError(&ResolveError{Specifier: "x", Reason: "nope"}); got != `expander: driver: cannot resolve "x": nope` {
		t.Fatalf("DescribeError = %q", got)
	}
}
