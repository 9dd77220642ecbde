package configdoc

import (
	"context"

	"github.com/tomek7667/devconsole/internal/backend"
	"github.com/tomek7667/devconsole/internal/domain"
)

// Editor reads and writes config documents through a backend.
type Editor struct {
	inv backend.Invoker
}

func NewEditor(inv backend.Invoker) *Editor {
	return &Editor{inv: inv}
}

func (e *Editor) Dirs(ctx context.Context) ([]domain.ConfigDir, error) {
	return backend.Call[[]domain.ConfigDir](ctx, e.inv, backend.CmdListConfigDirs, nil)
}

func (e *Editor) Files(ctx context.Context, dir string) ([]string, error) {
	return backend.Call[[]string](ctx, e.inv, backend.CmdListConfigFiles, backend.Args{"path": dir})
}

func (e *Editor) Open(ctx context.Context, path string) (*Document, error) {
	raw, err := backend.Call[string](ctx, e.inv, backend.CmdReadConfigFile, backend.Args{"path": path})
	if err != nil {
		return nil, err
	}
	return Parse(path, raw), nil
}

// SaveFields applies edits to the file's current content and writes it back.
func (e *Editor) SaveFields(ctx context.Context, path string, edits map[string]string) (*Document, error) {
	doc, err := e.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	content, err := doc.Apply(edits)
	if err != nil {
		return nil, err
	}
	return e.SaveRaw(ctx, path, content)
}

// SaveRaw writes content verbatim.
func (e *Editor) SaveRaw(ctx context.Context, path, content string) (*Document, error) {
	_, err := e.inv.Invoke(ctx, backend.CmdWriteConfigFile, backend.Args{"path": path, "content": content})
	if err != nil {
		return nil, err
	}
	return Parse(path, content), nil
}
