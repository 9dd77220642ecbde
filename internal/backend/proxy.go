package backend

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-ini/ini"
	"github.com/tomek7667/devconsole/internal/domain"
	"go.uber.org/zap"
)

// cargoMirror names the source that crates-io is replaced with when a
// registry mirror is set and none was configured before.
const cargoMirror = "mirror"

// proxyFile reads and rewrites the proxy settings of one tool.
type proxyFile interface {
	load(path string) (proxy, registry *string, err error)
	render(path string, proxy, registry *string) ([]byte, error)
}

type proxyTool struct {
	name     string
	registry bool
	path     func(l *Local) string
	file     proxyFile
}

var proxyTools = []proxyTool{
	{
		name:     "npm",
		registry: true,
		path:     func(l *Local) string { return filepath.Join(l.opts.Home, ".npmrc") },
		file:     iniFile{proxyKeys: []string{"proxy", "https-proxy"}, registryKey: "registry"},
	},
	{
		name:     "pip",
		registry: true,
		path:     (*Local).pipConfigPath,
		file:     iniFile{section: "global", proxyKeys: []string{"proxy"}, registryKey: "index-url"},
	},
	{
		name:     "cargo",
		registry: true,
		path:     (*Local).cargoConfigPath,
		file:     cargoFile{},
	},
	{
		name: "git",
		path: func(l *Local) string { return filepath.Join(l.opts.Home, ".gitconfig") },
		file: iniFile{section: "http", proxyKeys: []string{"proxy"}},
	},
}

func (l *Local) pipConfigPath() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(l.opts.Home, "AppData", "Roaming", "pip", "pip.ini")
	}
	legacy := filepath.Join(l.opts.Home, ".pip", "pip.conf")
	if _, err := os.Stat(legacy); err == nil {
		return legacy
	}
	return filepath.Join(l.opts.Home, ".config", "pip", "pip.conf")
}

func (l *Local) cargoConfigPath() string {
	dir := filepath.Join(l.opts.Home, ".cargo")
	legacy := filepath.Join(dir, "config")
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		if info, err := os.Stat(legacy); err == nil && !info.IsDir() {
			return legacy
		}
	}
	return filepath.Join(dir, "config.toml")
}

func findProxyTool(name string) (proxyTool, bool) {
	for _, t := range proxyTools {
		if t.name == name {
			return t, true
		}
	}
	return proxyTool{}, false
}

func (l *Local) proxyConfig(t proxyTool) (domain.ProxyConfig, error) {
	path := t.path(l)
	cfg := domain.ProxyConfig{Tool: t.name, Path: path, SupportsRegistry: t.registry}
	proxy, registry, err := t.file.load(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read %s: %w", path, err)
	}
	cfg.Proxy = proxy
	if t.registry {
		cfg.Registry = registry
	}
	return cfg, nil
}

func (l *Local) getProxyConfigs(_ context.Context, _ Args) (any, error) {
	out := make([]domain.ProxyConfig, 0, len(proxyTools))
	for _, t := range proxyTools {
		cfg, err := l.proxyConfig(t)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// setProxyConfig writes both settings of one tool. An absent, null or empty
// value removes the setting.
func (l *Local) setProxyConfig(_ context.Context, args Args) (any, error) {
	name, err := args.String("tool")
	if err != nil {
		return nil, err
	}
	t, ok := findProxyTool(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown tool %q", ErrBadArgs, name)
	}
	proxy, err := optionalURL(args, "proxy")
	if err != nil {
		return nil, err
	}
	registry, err := optionalURL(args, "registry")
	if err != nil {
		return nil, err
	}
	if registry != nil && !t.registry {
		return nil, fmt.Errorf("%w: %s has no package registry setting", ErrBadArgs, name)
	}

	path := t.path(l)
	data, err := t.file.render(path, proxy, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", path, err)
	}
	mode := os.FileMode(0o600)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	} else if !isNotExist(err) {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(path, data, mode); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	l.log.Info("proxy settings saved", zap.String("tool", name), zap.String("path", path))
	return l.proxyConfig(t)
}

func optionalURL(args Args, key string) (*string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %q must be a string", ErrBadArgs, key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" || strings.ContainsAny(s, " \t") {
		return nil, fmt.Errorf("%w: %q is not a URL: %q", ErrBadArgs, key, s)
	}
	return &s, nil
}

var iniOptions = ini.LoadOptions{
	AllowBooleanKeys:    true,
	AllowShadows:        true,
	IgnoreInlineComment: true,
	KeyValueDelimiters:  "=",
}

// iniFile covers .npmrc, pip.conf and .gitconfig. Comments and unrelated
// keys survive a rewrite.
type iniFile struct {
	section     string
	proxyKeys   []string
	registryKey string
}

func loadINI(path string) (*ini.File, error) {
	if _, err := os.Stat(path); isNotExist(err) {
		return ini.Empty(iniOptions), nil
	}
	return ini.LoadSources(iniOptions, path)
}

func (f iniFile) load(path string) (proxy, registry *string, err error) {
	file, err := loadINI(path)
	if err != nil {
		return nil, nil, err
	}
	sec, err := file.GetSection(f.section)
	if err != nil {
		return nil, nil, nil
	}
	for _, k := range f.proxyKeys {
		if v := keyValue(sec, k); v != nil {
			proxy = v
			break
		}
	}
	if f.registryKey != "" {
		registry = keyValue(sec, f.registryKey)
	}
	return proxy, registry, nil
}

func keyValue(sec *ini.Section, key string) *string {
	if !sec.HasKey(key) {
		return nil
	}
	v := strings.TrimSpace(sec.Key(key).String())
	if v == "" {
		return nil
	}
	return &v
}

func setKey(sec *ini.Section, key string, v *string) {
	if v == nil {
		sec.DeleteKey(key)
		return
	}
	sec.Key(key).SetValue(*v)
}

func (f iniFile) render(path string, proxy, registry *string) ([]byte, error) {
	file, err := loadINI(path)
	if err != nil {
		return nil, err
	}
	sec := file.Section(f.section)
	for _, k := range f.proxyKeys {
		setKey(sec, k, proxy)
	}
	if f.registryKey != "" {
		setKey(sec, f.registryKey, registry)
	}
	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// cargoFile covers ~/.cargo/config.toml: [http] proxy, and a crates-io
// source replacement for the registry. Comments are not preserved.
type cargoFile struct{}

func loadTOML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if isNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	doc := map[string]any{}
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func table(doc map[string]any, key string, create bool) map[string]any {
	if t, ok := doc[key].(map[string]any); ok {
		return t
	}
	if !create {
		return nil
	}
	t := map[string]any{}
	doc[key] = t
	return t
}

func stringAt(t map[string]any, key string) *string {
	if t == nil {
		return nil
	}
	s, ok := t[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func (cargoFile) load(path string) (proxy, registry *string, err error) {
	doc, err := loadTOML(path)
	if err != nil {
		return nil, nil, err
	}
	proxy = stringAt(table(doc, "http", false), "proxy")
	sources := table(doc, "source", false)
	if replace := stringAt(table(sources, "crates-io", false), "replace-with"); replace != nil {
		registry = stringAt(table(sources, *replace, false), "registry")
	}
	return proxy, registry, nil
}

func (cargoFile) render(path string, proxy, registry *string) ([]byte, error) {
	doc, err := loadTOML(path)
	if err != nil {
		return nil, err
	}

	if proxy != nil {
		table(doc, "http", true)["proxy"] = *proxy
	} else if h := table(doc, "http", false); h != nil {
		delete(h, "proxy")
		if len(h) == 0 {
			delete(doc, "http")
		}
	}

	sources := table(doc, "source", registry != nil)
	if sources != nil {
		crates := table(sources, "crates-io", registry != nil)
		if registry != nil {
			name := cargoMirror
			if replace := stringAt(crates, "replace-with"); replace != nil {
				name = *replace
			}
			crates["replace-with"] = name
			table(sources, name, true)["registry"] = *registry
		} else if crates != nil {
			if replace := stringAt(crates, "replace-with"); replace != nil {
				delete(crates, "replace-with")
				if *replace == cargoMirror {
					delete(sources, cargoMirror)
				}
			}
			if len(crates) == 0 {
				delete(sources, "crates-io")
			}
		}
		if len(sources) == 0 {
			delete(doc, "source")
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
