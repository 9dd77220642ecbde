package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tomek7667/devconsole/internal/domain"
)

// Extensions recognised as editable config files.
var configExts = map[string]struct{}{
	".json": {},
	".yaml": {},
	".yml":  {},
}

const maxConfigFileSize = 4 << 20

func isConfigFile(name string) bool {
	_, ok := configExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// configPath is the absolute "path" argument, which must name a file with
// one of the config extensions.
func configPath(args Args) (string, error) {
	path, err := absPath(args, "path")
	if err != nil {
		return "", err
	}
	if !isConfigFile(path) {
		return "", fmt.Errorf("%w: %s is not a .json, .yaml or .yml file", ErrBadArgs, path)
	}
	return path, nil
}

func (l *Local) readConfigFile(_ context.Context, args Args) (any, error) {
	path, err := configPath(args)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrBadArgs, path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("%s is too large to edit (%d bytes)", path, info.Size())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *Local) writeConfigFile(_ context.Context, args Args) (any, error) {
	path, err := configPath(args)
	if err != nil {
		return nil, err
	}
	content, err := args.RawString("content")
	if err != nil {
		return nil, err
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s is a directory", ErrBadArgs, path)
		}
		mode = info.Mode().Perm()
	} else if !isNotExist(err) {
		return nil, err
	}
	if err := writeFileAtomic(path, []byte(content), mode); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return fmt.Sprintf("saved %s", path), nil
}

// writeFileAtomic replaces path via a temp file in the same directory.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if mode != 0 {
		_ = os.Chmod(tmpName, mode)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func hasConfigFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && isConfigFile(e.Name()) {
			return true
		}
	}
	return false
}

// listConfigDirs returns ~/.config/* and home dot-directories that hold at
// least one config file, plus configured extra directories.
func (l *Local) listConfigDirs(_ context.Context, _ Args) (any, error) {
	seen := make(map[string]struct{})
	var out []domain.ConfigDir
	add := func(name, path string) {
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		out = append(out, domain.ConfigDir{Name: name, Path: path})
	}

	xdg := filepath.Join(l.opts.Home, ".config")
	if entries, err := os.ReadDir(xdg); err == nil {
		for _, e := range entries {
			path := filepath.Join(xdg, e.Name())
			if e.IsDir() && hasConfigFiles(path) {
				add(e.Name(), path)
			}
		}
	}
	if entries, err := os.ReadDir(l.opts.Home); err == nil {
		for _, e := range entries {
			name := e.Name()
			if !e.IsDir() || !strings.HasPrefix(name, ".") || name == ".config" {
				continue
			}
			path := filepath.Join(l.opts.Home, name)
			if hasConfigFiles(path) {
				add(name, path)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})

	for _, dir := range l.opts.ConfigDirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			add(filepath.Base(abs), abs)
		}
	}
	if out == nil {
		out = []domain.ConfigDir{}
	}
	return out, nil
}

func (l *Local) listConfigFiles(_ context.Context, args Args) (any, error) {
	dir, err := absPath(args, "path")
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	out := []string{}
	for _, e := range entries {
		if !e.IsDir() && isConfigFile(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
