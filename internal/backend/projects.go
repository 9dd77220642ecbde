package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/shlex"
	"github.com/tomek7667/devconsole/internal/domain"
)

// Template commands use {name} as the project name placeholder.
const namePlaceholder = "{name}"

var builtinTemplates = []domain.ProjectTemplate{
	{Name: "vite-react", Description: "React + TypeScript with Vite", Command: "npm create vite@latest {name} -- --template react-ts", Category: "web"},
	{Name: "vite-vue", Description: "Vue + TypeScript with Vite", Command: "npm create vite@latest {name} -- --template vue-ts", Category: "web"},
	{Name: "next", Description: "Next.js application", Command: "npx create-next-app@latest {name} --ts --eslint --use-npm", Category: "web"},
	{Name: "cargo-bin", Description: "Rust binary crate", Command: "cargo new {name}", Category: "rust"},
	{Name: "cargo-lib", Description: "Rust library crate", Command: "cargo new --lib {name}", Category: "rust"},
	{Name: "go-hello", Description: "Go module from the hello example", Command: "go run golang.org/x/tools/cmd/gonew@latest golang.org/x/example/hello example.com/{name} {name}", Category: "go"},
	{Name: "uv-app", Description: "Python application with uv", Command: "uv init {name}", Category: "python"},
}

// mergeTemplates overlays extra on base by name; order is by category, then name.
func mergeTemplates(base, extra []domain.ProjectTemplate) []domain.ProjectTemplate {
	byName := make(map[string]domain.ProjectTemplate, len(base)+len(extra))
	for _, t := range base {
		byName[t.Name] = t
	}
	for _, t := range extra {
		if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.Command) == "" {
			continue
		}
		byName[t.Name] = t
	}
	out := make([]domain.ProjectTemplate, 0, len(byName))
	for _, t := range byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (l *Local) listTemplates(_ context.Context, _ Args) (any, error) {
	return append([]domain.ProjectTemplate(nil), l.templates...), nil
}

func (l *Local) template(name string) (domain.ProjectTemplate, bool) {
	for _, t := range l.templates {
		if t.Name == name {
			return t, true
		}
	}
	return domain.ProjectTemplate{}, false
}

var projectNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]*$`)

// templateArgv splits a template command and substitutes the project name.
func templateArgv(command, name string) ([]string, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("invalid template command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("invalid template command: empty")
	}
	for i, a := range argv {
		argv[i] = strings.ReplaceAll(a, namePlaceholder, name)
	}
	return argv, nil
}

// createProject runs a known template in the parent directory. Only templates
// from the registry can be run; the project name is validated.
func (l *Local) createProject(ctx context.Context, args Args) (any, error) {
	tplName, err := args.String("template")
	if err != nil {
		return nil, err
	}
	name, err := args.String("name")
	if err != nil {
		return nil, err
	}
	if !projectNameRe.MatchString(name) {
		return nil, fmt.Errorf("%w: invalid project name %q", ErrBadArgs, name)
	}
	parent, err := absPath(args, "path")
	if err != nil {
		return nil, err
	}
	tpl, ok := l.template(tplName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown template %q", ErrBadArgs, tplName)
	}

	info, err := os.Stat(parent)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrBadArgs, parent)
	}
	target := filepath.Join(parent, name)
	if _, err := os.Stat(target); err == nil {
		return nil, fmt.Errorf("%s already exists", target)
	}

	argv, err := templateArgv(tpl.Command, name)
	if err != nil {
		return nil, err
	}
	dir := parent
	if !strings.Contains(tpl.Command, namePlaceholder) {
		// Commands without a placeholder initialise the current directory.
		if err := os.MkdirAll(target, 0o755); err != nil {
			return nil, err
		}
		dir = target
	}
	out, err := l.run(ctx, dir, argv[0], argv[1:]...)
	if err != nil {
		return nil, err
	}
	return strings.TrimSpace(out), nil
}
