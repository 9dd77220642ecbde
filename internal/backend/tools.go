package backend

import (
	"bufio"
	"context"
	"debug/buildinfo"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/tomek7667/devconsole/internal/domain"
)

type npmManifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// npmGlobalRoots returns candidate global node_modules directories.
func (l *Local) npmGlobalRoots() []string {
	var roots []string
	if prefix := os.Getenv("npm_config_prefix"); prefix != "" {
		roots = append(roots, filepath.Join(prefix, "lib", "node_modules"))
	}
	roots = append(roots,
		filepath.Join(l.opts.Home, ".npm-global", "lib", "node_modules"),
		filepath.Join(l.opts.Home, ".local", "lib", "node_modules"),
	)
	return dedupe(roots)
}

func (l *Local) goBinDir() string {
	if gobin := os.Getenv("GOBIN"); gobin != "" {
		return gobin
	}
	return filepath.Join(l.opts.Home, "go", "bin")
}

func (l *Local) cargoBinDir() string {
	return filepath.Join(l.opts.Home, ".cargo", "bin")
}

func (l *Local) pipSitePackages() []string {
	matches, _ := filepath.Glob(filepath.Join(l.opts.Home, ".local", "lib", "python*", "site-packages"))
	sort.Strings(matches)
	return matches
}

// npmPackages yields every package directory under root, including scoped ones.
func npmPackages(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && e.Type()&fs.ModeSymlink == 0 {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if strings.HasPrefix(name, "@") {
			scoped, err := os.ReadDir(filepath.Join(root, name))
			if err != nil {
				continue
			}
			for _, s := range scoped {
				out = append(out, filepath.Join(root, name, s.Name()))
			}
			continue
		}
		out = append(out, filepath.Join(root, name))
	}
	return out
}

func readNpmManifest(dir string) (npmManifest, error) {
	var m npmManifest
	b, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, err
	}
	return m, nil
}

func splitScope(full string) (scope, name string) {
	if strings.HasPrefix(full, "@") {
		if i := strings.Index(full, "/"); i > 0 {
			return full[:i], full[i+1:]
		}
	}
	return "", full
}

func executables(dir string) []os.DirEntry {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []os.DirEntry
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e)
	}
	return out
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Toolchain proxies rustup installs into ~/.cargo/bin.
var rustupProxies = map[string]struct{}{
	"cargo": {}, "cargo-clippy": {}, "cargo-fmt": {}, "cargo-miri": {}, "clippy-driver": {},
	"rls": {}, "rust-analyzer": {}, "rust-gdb": {}, "rust-gdbgui": {}, "rust-lldb": {},
	"rustc": {}, "rustdoc": {}, "rustfmt": {}, "rustup": {},
}

type distInfo struct {
	dir      string
	name     string
	version  string
	summary  string
	topLevel []string
}

func readDistInfo(dir string) (distInfo, error) {
	d := distInfo{dir: dir}
	f, err := os.Open(filepath.Join(dir, "METADATA"))
	if err != nil {
		return d, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			break
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		switch k {
		case "Name":
			d.name = v
		case "Version":
			d.version = v
		case "Summary":
			d.summary = v
		}
	}
	if b, err := os.ReadFile(filepath.Join(dir, "top_level.txt")); err == nil {
		for _, t := range strings.Fields(string(b)) {
			d.topLevel = append(d.topLevel, t)
		}
	}
	return d, sc.Err()
}

func (l *Local) distInfos() []distInfo {
	var out []distInfo
	for _, site := range l.pipSitePackages() {
		matches, _ := filepath.Glob(filepath.Join(site, "*.dist-info"))
		for _, m := range matches {
			d, err := readDistInfo(m)
			if err != nil || d.name == "" {
				continue
			}
			out = append(out, d)
		}
	}
	return out
}

func (l *Local) scanTools(ctx context.Context, _ Args) (any, error) {
	var tools []domain.Tool

	for _, root := range l.npmGlobalRoots() {
		for _, dir := range npmPackages(root) {
			m, err := readNpmManifest(dir)
			if err != nil {
				continue
			}
			full := m.Name
			if full == "" {
				full = filepath.Base(dir)
			}
			scope, name := splitScope(full)
			size, _, _ := dirUsage(ctx, dir)
			tools = append(tools, domain.Tool{
				Name: name, Scope: scope, FullName: full, Version: m.Version,
				Source: domain.SourceNpm, InstallPath: dir, SizeBytes: size, Description: m.Description,
			})
		}
	}

	for _, e := range executables(l.cargoBinDir()) {
		if _, proxy := rustupProxies[e.Name()]; proxy {
			continue
		}
		path := filepath.Join(l.cargoBinDir(), e.Name())
		tools = append(tools, domain.Tool{
			Name: e.Name(), FullName: e.Name(), Source: domain.SourceCargo,
			InstallPath: path, SizeBytes: fileSize(path),
		})
	}

	for _, e := range executables(l.goBinDir()) {
		path := filepath.Join(l.goBinDir(), e.Name())
		t := domain.Tool{
			Name: e.Name(), FullName: e.Name(), Source: domain.SourceGo,
			InstallPath: path, SizeBytes: fileSize(path),
		}
		if bi, err := buildinfo.ReadFile(path); err == nil {
			t.FullName = bi.Path
			t.Version = bi.Main.Version
		}
		tools = append(tools, t)
	}

	for _, d := range l.distInfos() {
		tools = append(tools, domain.Tool{
			Name: d.name, FullName: d.name, Version: d.version, Source: domain.SourcePip,
			InstallPath: d.dir, Description: d.summary,
		})
	}

	localBin := filepath.Join(l.opts.Home, ".local", "bin")
	for _, e := range executables(localBin) {
		path := filepath.Join(localBin, e.Name())
		src := domain.SourceManual
		if isScript(path) {
			src = domain.SourceScript
		}
		tools = append(tools, domain.Tool{
			Name: e.Name(), FullName: e.Name(), Source: src, InstallPath: path, SizeBytes: fileSize(path),
		})
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	sort.SliceStable(tools, func(i, j int) bool {
		if tools[i].Source != tools[j].Source {
			return tools[i].Source < tools[j].Source
		}
		return tools[i].FullName < tools[j].FullName
	})
	if tools == nil {
		tools = []domain.Tool{}
	}
	return tools, nil
}

func isScript(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, 2)
	n, _ := f.Read(buf)
	return n == 2 && string(buf) == "#!"
}

// scanOrphans reports installs whose package-manager bookkeeping no longer
// matches what is on disk.
func (l *Local) scanOrphans(ctx context.Context, _ Args) (any, error) {
	out := []domain.OrphanDependency{}

	for _, root := range l.npmGlobalRoots() {
		for _, dir := range npmPackages(root) {
			if _, err := readNpmManifest(dir); err == nil {
				continue
			}
			size, _, _ := dirUsage(ctx, dir)
			out = append(out, domain.OrphanDependency{
				Name: filepath.Base(dir), Source: domain.SourceNpm,
				Reason: "package.json missing or unreadable", SizeBytes: size,
			})
		}
	}

	for _, d := range l.distInfos() {
		if len(d.topLevel) == 0 {
			continue
		}
		site := filepath.Dir(d.dir)
		missing := true
		for _, t := range d.topLevel {
			if _, err := os.Stat(filepath.Join(site, t)); err == nil {
				missing = false
				break
			}
			if _, err := os.Stat(filepath.Join(site, t+".py")); err == nil {
				missing = false
				break
			}
		}
		if missing {
			size, _, _ := dirUsage(ctx, d.dir)
			out = append(out, domain.OrphanDependency{
				Name: d.name, Version: d.version, Source: domain.SourcePip,
				Reason: "metadata present but package files missing", SizeBytes: size,
			})
		}
	}

	for _, e := range executables(l.cargoBinDir()) {
		path := filepath.Join(l.cargoBinDir(), e.Name())
		if e.Type()&fs.ModeSymlink == 0 {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			out = append(out, domain.OrphanDependency{
				Name: e.Name(), Source: domain.SourceCargo, Reason: "dangling binary link",
			})
		}
	}

	for _, e := range executables(l.goBinDir()) {
		path := filepath.Join(l.goBinDir(), e.Name())
		if _, err := buildinfo.ReadFile(path); err != nil {
			out = append(out, domain.OrphanDependency{
				Name: e.Name(), Source: domain.SourceGo,
				Reason: "not a Go binary; left over in GOBIN", SizeBytes: fileSize(path),
			})
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return out, nil
}

var packageNameRe = regexp.MustCompile(`^@?[A-Za-z0-9][A-Za-z0-9._\-]*(/[A-Za-z0-9][A-Za-z0-9._\-]*)?$`)

func (l *Local) uninstallPackage(ctx context.Context, args Args) (any, error) {
	srcArg, err := args.String("source")
	if err != nil {
		return nil, err
	}
	name, err := args.String("name")
	if err != nil {
		return nil, err
	}
	if !packageNameRe.MatchString(name) {
		return nil, fmt.Errorf("%w: invalid package name %q", ErrBadArgs, name)
	}

	switch domain.ParseToolSource(srcArg) {
	case domain.SourceNpm:
		return l.run(ctx, l.opts.Home, "npm", "uninstall", "-g", name)
	case domain.SourceCargo:
		return l.run(ctx, l.opts.Home, "cargo", "uninstall", name)
	case domain.SourcePip:
		return l.run(ctx, l.opts.Home, "python3", "-m", "pip", "uninstall", "-y", name)
	case domain.SourceGo:
		if strings.ContainsAny(name, `/\`) {
			return nil, fmt.Errorf("%w: go binary name must not contain a path", ErrBadArgs)
		}
		path := filepath.Join(l.goBinDir(), name)
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		return fmt.Sprintf("removed %s", path), nil
	}
	return nil, fmt.Errorf("%w: cannot uninstall packages from source %q", ErrBadArgs, srcArg)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
