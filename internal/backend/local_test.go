package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	latest "github.com/tcnksm/go-latest"
	"github.com/tomek7667/devconsole/internal/domain"
)

type runCall struct {
	dir  string
	name string
	args []string
}

type fakeRunner struct {
	calls []runCall
	out   string
	err   error
}

func (f *fakeRunner) run(_ context.Context, dir, name string, args ...string) (string, error) {
	f.calls = append(f.calls, runCall{dir: dir, name: name, args: args})
	return f.out, f.err
}

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
}

func newTestLocal(t *testing.T, opts Options) (*Local, string) {
	t.Helper()
	t.Setenv("GOBIN", "")
	t.Setenv("npm_config_prefix", "")
	if opts.Home == "" {
		opts.Home = t.TempDir()
	}
	l, err := NewLocal(opts)
	require.NoError(t, err)
	return l, opts.Home
}

func TestInvoke_UnknownCommand(t *testing.T) {
	l, _ := newTestLocal(t, Options{})
	_, err := l.Invoke(context.Background(), Command("format_disk"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownCommand))

	var ce *CommandError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, Command("format_disk"), ce.Command)
}

func TestParseCommand(t *testing.T) {
	for _, c := range Commands() {
		got, err := ParseCommand(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCommand("nope")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestArgs(t *testing.T) {
	a := Args{"s": "x", "blank": " ", "n": float64(12), "frac": 1.5, "str": "42", "b": true, "bs": "true"}

	s, err := a.String("s")
	require.NoError(t, err)
	assert.Equal(t, "x", s)
	_, err = a.String("blank")
	assert.ErrorIs(t, err, ErrBadArgs)
	_, err = a.String("missing")
	assert.ErrorIs(t, err, ErrBadArgs)
	raw, err := a.RawString("blank")
	require.NoError(t, err)
	assert.Equal(t, " ", raw)

	n, err := a.Int("n")
	require.NoError(t, err)
	assert.EqualValues(t, 12, n)
	n, err = a.Int("str")
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)
	_, err = a.Int("frac")
	assert.ErrorIs(t, err, ErrBadArgs)

	assert.True(t, a.Bool("b"))
	assert.True(t, a.Bool("bs"))
	assert.False(t, a.Bool("missing"))
}

func TestConfigFile_WriteReadPreservesMode(t *testing.T) {
	l, home := newTestLocal(t, Options{})
	path := filepath.Join(home, ".config", "app", "settings.json")
	writeFile(t, path, `{"a":1}`, 0o600)

	_, err := l.Invoke(context.Background(), CmdWriteConfigFile, Args{"path": path, "content": `{"a":2}`})
	require.NoError(t, err)

	got, err := Call[string](context.Background(), l, CmdReadConfigFile, Args{"path": path})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, got)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestConfigFile_RejectsRelativePath(t *testing.T) {
	l, _ := newTestLocal(t, Options{})
	_, err := l.Invoke(context.Background(), CmdReadConfigFile, Args{"path": "relative/settings.json"})
	assert.ErrorIs(t, err, ErrBadArgs)
}

func TestConfigFile_RejectsOtherExtensions(t *testing.T) {
	l, home := newTestLocal(t, Options{})
	keys := filepath.Join(home, ".ssh", "authorized_keys")
	writeFile(t, keys, "ssh-ed25519 AAAA user", 0o600)

	_, err := l.Invoke(context.Background(), CmdWriteConfigFile, Args{"path": keys, "content": "ssh-ed25519 OTHER"})
	assert.ErrorIs(t, err, ErrBadArgs)
	_, err = l.Invoke(context.Background(), CmdReadConfigFile, Args{"path": keys})
	assert.ErrorIs(t, err, ErrBadArgs)

	got, err := os.ReadFile(keys)
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519 AAAA user", string(got))
}

func TestListConfigDirsAndFiles(t *testing.T) {
	extra := t.TempDir()
	l, home := newTestLocal(t, Options{ConfigDirs: []string{extra}})
	writeFile(t, filepath.Join(home, ".config", "zed", "settings.json"), "{}", 0o644)
	writeFile(t, filepath.Join(home, ".config", "empty", "notes.txt"), "", 0o644)
	writeFile(t, filepath.Join(home, ".docker", "config.json"), "{}", 0o644)
	writeFile(t, filepath.Join(home, ".docker", "daemon.yaml"), "a: 1", 0o644)

	dirs, err := Call[[]domain.ConfigDir](context.Background(), l, CmdListConfigDirs, nil)
	require.NoError(t, err)
	var names []string
	for _, d := range dirs {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{".docker", "zed", filepath.Base(extra)}, names)

	files, err := Call[[]string](context.Background(), l, CmdListConfigFiles, Args{"path": filepath.Join(home, ".docker")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(home, ".docker", "config.json"),
		filepath.Join(home, ".docker", "daemon.yaml"),
	}, files)
}

func TestScanTools(t *testing.T) {
	l, home := newTestLocal(t, Options{})
	npm := filepath.Join(home, ".npm-global", "lib", "node_modules")
	writeFile(t, filepath.Join(npm, "typescript", "package.json"), `{"name":"typescript","version":"5.4.0","description":"TS"}`, 0o644)
	writeFile(t, filepath.Join(npm, "@vue", "cli", "package.json"), `{"name":"@vue/cli","version":"5.0.8"}`, 0o644)
	writeFile(t, filepath.Join(home, ".cargo", "bin", "ripgrep"), "bin", 0o755)
	writeFile(t, filepath.Join(home, ".cargo", "bin", "rustc"), "proxy", 0o755)
	writeFile(t, filepath.Join(home, ".local", "bin", "hello"), "#!/bin/sh\necho hi\n", 0o755)
	writeFile(t, filepath.Join(home, ".local", "lib", "python3.12", "site-packages", "black-24.1.0.dist-info", "METADATA"),
		"Metadata-Version: 2.1\nName: black\nVersion: 24.1.0\nSummary: The formatter\n\nbody", 0o644)

	tools, err := Call[[]domain.Tool](context.Background(), l, CmdScanTools, nil)
	require.NoError(t, err)

	byName := make(map[string]domain.Tool)
	for _, tool := range tools {
		byName[tool.FullName] = tool
	}
	require.Contains(t, byName, "typescript")
	assert.Equal(t, "5.4.0", byName["typescript"].Version)
	assert.Equal(t, domain.SourceNpm, byName["typescript"].Source)

	require.Contains(t, byName, "@vue/cli")
	assert.Equal(t, "@vue", byName["@vue/cli"].Scope)
	assert.Equal(t, "cli", byName["@vue/cli"].Name)

	assert.Contains(t, byName, "ripgrep")
	assert.NotContains(t, byName, "rustc")

	require.Contains(t, byName, "black")
	assert.Equal(t, domain.SourcePip, byName["black"].Source)
	assert.Equal(t, "The formatter", byName["black"].Description)

	require.Contains(t, byName, "hello")
	assert.Equal(t, domain.SourceScript, byName["hello"].Source)

	for i := 1; i < len(tools); i++ {
		assert.LessOrEqual(t, string(tools[i-1].Source), string(tools[i].Source))
	}
}

func TestScanOrphans(t *testing.T) {
	l, home := newTestLocal(t, Options{})
	npm := filepath.Join(home, ".npm-global", "lib", "node_modules")
	writeFile(t, filepath.Join(npm, "broken", "index.js"), "module.exports = 1", 0o644)
	writeFile(t, filepath.Join(npm, "fine", "package.json"), `{"name":"fine"}`, 0o644)
	writeFile(t, filepath.Join(home, "go", "bin", "leftover.sh"), "#!/bin/sh", 0o755)
	site := filepath.Join(home, ".local", "lib", "python3.12", "site-packages")
	writeFile(t, filepath.Join(site, "ghost-1.0.dist-info", "METADATA"), "Name: ghost\nVersion: 1.0\n", 0o644)
	writeFile(t, filepath.Join(site, "ghost-1.0.dist-info", "top_level.txt"), "ghost\n", 0o644)

	orphans, err := Call[[]domain.OrphanDependency](context.Background(), l, CmdScanOrphans, nil)
	require.NoError(t, err)

	got := make(map[string]domain.ToolSource)
	for _, o := range orphans {
		got[o.Name] = o.Source
	}
	assert.Equal(t, map[string]domain.ToolSource{
		"broken":      domain.SourceNpm,
		"ghost":       domain.SourcePip,
		"leftover.sh": domain.SourceGo,
	}, got)
}

func TestDiskUsage(t *testing.T) {
	l, home := newTestLocal(t, Options{})
	writeFile(t, filepath.Join(home, ".cache", "a", "one"), strings.Repeat("x", 100), 0o644)
	writeFile(t, filepath.Join(home, ".cache", "b"), strings.Repeat("x", 50), 0o644)
	writeFile(t, filepath.Join(home, "Downloads", "file.iso"), strings.Repeat("x", 10), 0o644)

	rows, err := Call[[]domain.DiskUsage](context.Background(), l, CmdScanDiskUsage, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Caches", rows[0].Category)
	assert.EqualValues(t, 150, rows[0].SizeBytes)
	assert.EqualValues(t, 2, rows[0].ItemCount)
	assert.Equal(t, "Downloads", rows[1].Category)

	children, err := Call[[]domain.DiskUsage](context.Background(), l, CmdDiskUsageAtPath, Args{"path": filepath.Join(home, ".cache")})
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, domain.DiskUsage{Category: "a", Path: filepath.Join(home, ".cache", "a"), SizeBytes: 100, ItemCount: 1}, children[0])
	assert.Equal(t, domain.DiskUsage{Category: "b", Path: filepath.Join(home, ".cache", "b"), SizeBytes: 50, ItemCount: 1}, children[1])

	_, err = l.Invoke(context.Background(), CmdDiskUsageAtPath, Args{"path": filepath.Join(home, "missing")})
	assert.Error(t, err)
}

func TestScanCaches(t *testing.T) {
	l, home := newTestLocal(t, Options{})
	writeFile(t, filepath.Join(home, ".cache", "pip", "wheel"), strings.Repeat("x", 20), 0o644)

	caches, err := Call[[]domain.CacheInfo](context.Background(), l, CmdScanCaches, nil)
	require.NoError(t, err)
	require.Len(t, caches, len(cacheLocations))
	for _, c := range caches {
		if c.Name == "pip" {
			assert.True(t, c.Exists)
			assert.EqualValues(t, 20, c.SizeBytes)
		} else {
			assert.False(t, c.Exists, c.Name)
		}
	}
}

func TestCreateProject(t *testing.T) {
	runner := &fakeRunner{out: "done\n"}
	parent := t.TempDir()
	l, _ := newTestLocal(t, Options{
		Runner: runner.run,
		Templates: []domain.ProjectTemplate{
			{Name: "here", Command: "git init --quiet", Category: "misc"},
		},
	})

	out, err := Call[string](context.Background(), l, CmdCreateProject, Args{"template": "cargo-bin", "name": "demo", "path": parent})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, runCall{dir: parent, name: "cargo", args: []string{"new", "demo"}}, runner.calls[0])

	_, err = Call[string](context.Background(), l, CmdCreateProject, Args{"template": "here", "name": "repo", "path": parent})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(parent, "repo"), runner.calls[1].dir)
	assert.DirExists(t, filepath.Join(parent, "repo"))
}

func TestCreateProject_Rejects(t *testing.T) {
	runner := &fakeRunner{}
	parent := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(parent, "taken"), 0o755))
	l, _ := newTestLocal(t, Options{Runner: runner.run})

	cases := []Args{
		{"template": "rm -rf /", "name": "x", "path": parent},
		{"template": "cargo-bin", "name": "../escape", "path": parent},
		{"template": "cargo-bin", "name": "x", "path": "relative"},
		{"template": "cargo-bin", "name": "taken", "path": parent},
	}
	for _, args := range cases {
		_, err := l.Invoke(context.Background(), CmdCreateProject, args)
		assert.Error(t, err, args)
	}
	assert.Empty(t, runner.calls)
}

func TestListTemplates_MergesByName(t *testing.T) {
	l, _ := newTestLocal(t, Options{Templates: []domain.ProjectTemplate{
		{Name: "cargo-bin", Description: "custom", Command: "cargo new --vcs none {name}", Category: "rust"},
		{Name: "", Command: "ignored"},
	}})
	tpls, err := Call[[]domain.ProjectTemplate](context.Background(), l, CmdListTemplates, nil)
	require.NoError(t, err)
	assert.Len(t, tpls, len(builtinTemplates))
	for _, tpl := range tpls {
		if tpl.Name == "cargo-bin" {
			assert.Equal(t, "custom", tpl.Description)
		}
	}
}

func TestUninstallPackage(t *testing.T) {
	runner := &fakeRunner{out: "removed"}
	l, home := newTestLocal(t, Options{Runner: runner.run})

	_, err := l.Invoke(context.Background(), CmdUninstallPackage, Args{"source": "npm", "name": "@vue/cli"})
	require.NoError(t, err)
	assert.Equal(t, runCall{dir: home, name: "npm", args: []string{"uninstall", "-g", "@vue/cli"}}, runner.calls[0])

	_, err = l.Invoke(context.Background(), CmdUninstallPackage, Args{"source": "pip", "name": "black"})
	require.NoError(t, err)
	assert.Equal(t, "python3", runner.calls[1].name)

	bin := filepath.Join(home, "go", "bin", "gopls")
	writeFile(t, bin, "bin", 0o755)
	_, err = l.Invoke(context.Background(), CmdUninstallPackage, Args{"source": "go", "name": "gopls"})
	require.NoError(t, err)
	assert.NoFileExists(t, bin)

	_, err = l.Invoke(context.Background(), CmdUninstallPackage, Args{"source": "npm", "name": "x; rm -rf ~"})
	assert.ErrorIs(t, err, ErrBadArgs)
	_, err = l.Invoke(context.Background(), CmdUninstallPackage, Args{"source": "manual", "name": "tool"})
	assert.ErrorIs(t, err, ErrBadArgs)
	assert.Len(t, runner.calls, 2)
}

func TestCheckUpdate(t *testing.T) {
	var gotCurrent string
	l, _ := newTestLocal(t, Options{
		Version:     "v1.2.0",
		UpdateOwner: "tomek7667",
		UpdateRepo:  "devconsole",
		Latest: func(owner, repo, current string) (*latest.CheckResponse, error) {
			gotCurrent = current
			return &latest.CheckResponse{Current: "1.3.0", Outdated: true}, nil
		},
	})
	info, err := Call[domain.UpdateInfo](context.Background(), l, CmdCheckUpdate, nil)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", gotCurrent)
	assert.Equal(t, domain.UpdateInfo{
		Current:  "v1.2.0",
		Latest:   "1.3.0",
		Outdated: true,
		URL:      "https://github.com/tomek7667/devconsole/releases",
	}, info)
}

func TestCheckUpdate_SkippedTagsDoNotHideResult(t *testing.T) {
	l, _ := newTestLocal(t, Options{
		Version:     "v1.2.0",
		UpdateOwner: "tomek7667",
		UpdateRepo:  "devconsole",
		Latest: func(string, string, string) (*latest.CheckResponse, error) {
			return &latest.CheckResponse{Current: "1.4.0", Outdated: true, Malformeds: []string{"nightly", "release-x"}}, nil
		},
	})
	info, err := Call[domain.UpdateInfo](context.Background(), l, CmdCheckUpdate, nil)
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", info.Latest)
	assert.True(t, info.Outdated)
}

func TestCheckUpdate_NoResponse(t *testing.T) {
	l, _ := newTestLocal(t, Options{
		Version:     "v1.2.0",
		UpdateOwner: "tomek7667",
		UpdateRepo:  "devconsole",
		Latest: func(string, string, string) (*latest.CheckResponse, error) {
			return nil, nil
		},
	})
	info, err := Call[domain.UpdateInfo](context.Background(), l, CmdCheckUpdate, nil)
	require.NoError(t, err)
	assert.Equal(t, "v1.2.0", info.Current)
	assert.Empty(t, info.Latest)
	assert.False(t, info.Outdated)
}

func TestCheckUpdate_DevBuild(t *testing.T) {
	l, _ := newTestLocal(t, Options{
		Version:     "dev",
		UpdateOwner: "tomek7667",
		UpdateRepo:  "devconsole",
		Latest: func(string, string, string) (*latest.CheckResponse, error) {
			return nil, errors.New("must not be called")
		},
	})
	info, err := Call[domain.UpdateInfo](context.Background(), l, CmdCheckUpdate, nil)
	require.NoError(t, err)
	assert.False(t, info.Outdated)
}

func TestTerminateProcess_RefusesProtected(t *testing.T) {
	l, _ := newTestLocal(t, Options{})
	for _, pid := range []any{1, 0, os.Getpid()} {
		_, err := l.Invoke(context.Background(), CmdTerminateProcess, Args{"pid": pid})
		assert.ErrorIs(t, err, errProtectedProcess)
	}
	_, err := l.Invoke(context.Background(), CmdTerminateProcess, Args{})
	assert.ErrorIs(t, err, ErrBadArgs)
}

func TestIsDevProcess(t *testing.T) {
	assert.True(t, isDevProcess("node"))
	assert.True(t, isDevProcess("node.exe"))
	assert.True(t, isDevProcess("python3.12"))
	assert.True(t, isDevProcess("rust-analyzer"))
	assert.False(t, isDevProcess("systemd"))
	assert.False(t, isDevProcess("nodejs-helper-not"))
}
