package configdoc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomek7667/devconsole/internal/backend"
	"github.com/tomek7667/devconsole/internal/domain"
	"github.com/tomek7667/devconsole/internal/flatten"
)

func fieldsByPath(doc *Document) map[string]flatten.Field {
	out := make(map[string]flatten.Field, len(doc.Fields))
	for _, f := range doc.Fields {
		out[f.Path] = f
	}
	return out
}

func TestParse_JSON(t *testing.T) {
	doc := Parse("/home/u/.config/app/settings.json", `{
  "editor": {"fontSize": 14, "wordWrap": true, "rulers": [80, 120]},
  "theme": "dark",
  "proxy": null,
  "bigId": 12345678901234567890
}`)
	require.True(t, doc.Structured)
	assert.Equal(t, FormatJSON, doc.Format)

	f := fieldsByPath(doc)
	require.Len(t, f, 6)
	assert.Equal(t, flatten.WidgetNumber, f["editor.fontSize"].Widget)
	assert.Equal(t, flatten.WidgetSwitch, f["editor.wordWrap"].Widget)
	assert.Equal(t, flatten.WidgetJSON, f["editor.rulers"].Widget)
	assert.Equal(t, "[80,120]", f["editor.rulers"].Text)
	assert.Equal(t, flatten.KindNull, f["proxy"].Kind)
	assert.Equal(t, "12345678901234567890", f["bigId"].Text)

	paths := make([]string, 0, len(doc.Fields))
	for _, fl := range doc.Fields {
		paths = append(paths, fl.Path)
	}
	assert.IsNonDecreasing(t, paths)
}

func TestParse_YAML(t *testing.T) {
	doc := Parse("/etc/app/config.yml", "server:\n  port: 8080\n  tls: false\nname: demo\ntags: [a, b]\n1: one\n")
	require.True(t, doc.Structured)
	assert.Equal(t, FormatYAML, doc.Format)

	f := fieldsByPath(doc)
	assert.Equal(t, flatten.KindNumber, f["server.port"].Kind)
	assert.Equal(t, "8080", f["server.port"].Text)
	assert.Equal(t, flatten.KindBool, f["server.tls"].Kind)
	assert.Equal(t, flatten.KindArray, f["tags"].Kind)
	assert.Equal(t, "one", f["1"].Text)
}

func TestParse_FallsBackToRaw(t *testing.T) {
	cases := map[string]string{
		"broken.json":   `{"a": `,
		"array.json":    `[1, 2, 3]`,
		"trailing.json": `{"a": 1} {"b": 2}`,
		"scalar.yaml":   "just a string",
		"bad.yaml":      "a: [1, 2",
		"notes.txt":     "a=1",
	}
	for name, raw := range cases {
		doc := Parse("/tmp/"+name, raw)
		assert.False(t, doc.Structured, name)
		assert.NotEmpty(t, doc.ParseError, name)
		assert.Empty(t, doc.Fields, name)
		assert.Equal(t, raw, doc.Raw, name)

		_, err := doc.Apply(map[string]string{"a": "1"})
		assert.Error(t, err, name)
	}
}

func TestParse_DottedKeysFallBackToRaw(t *testing.T) {
	cases := map[string]string{
		"settings.json": `{"editor.fontSize":14,"files.autoSave":"off"}`,
		"clash.json":    `{"editor.fontSize":14,"editor":{"fontSize":12}}`,
		"nested.yaml":   "server:\n  tls.cert: /etc/cert.pem\n",
	}
	for name, raw := range cases {
		doc := Parse("/tmp/"+name, raw)
		assert.False(t, doc.Structured, name)
		assert.Contains(t, doc.ParseError, "contains", name)
		assert.Empty(t, doc.Fields, name)

		_, err := doc.Apply(map[string]string{})
		assert.Error(t, err, name)
	}
}

func TestParse_EmptyYAMLIsEmptyObject(t *testing.T) {
	doc := Parse("/tmp/empty.yaml", "")
	assert.True(t, doc.Structured)
	assert.Empty(t, doc.Fields)
}

func TestApply_JSON(t *testing.T) {
	doc := Parse("/tmp/a.json", `{"editor":{"fontSize":14,"wordWrap":true},"theme":"dark","bigId":12345678901234567890}`)
	out, err := doc.Apply(map[string]string{
		"editor.fontSize": "16",
		"editor.wordWrap": "false",
		"theme":           "light",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"editor":{"fontSize":16,"wordWrap":false},"theme":"light","bigId":12345678901234567890}`, out)
	assert.Contains(t, out, "12345678901234567890")
	assert.Contains(t, out, "\n  \"bigId\"")
}

func TestApply_RejectsBadInput(t *testing.T) {
	doc := Parse("/tmp/a.json", `{"n":1,"b":true}`)
	_, err := doc.Apply(map[string]string{"n": "twelve"})
	assert.Error(t, err)
	_, err = doc.Apply(map[string]string{"b": "maybe"})
	assert.Error(t, err)
	for _, text := range []string{"+5", ".5", "1_000", "0x1p4"} {
		_, err = doc.Apply(map[string]string{"n": text})
		assert.ErrorIs(t, err, flatten.ErrInvalidValue, text)
	}
	yamlDoc := Parse("/tmp/a.yaml", "n: 1\n")
	_, err = yamlDoc.Apply(map[string]string{"n": "1_000"})
	assert.ErrorIs(t, err, flatten.ErrInvalidValue)

	_, err = doc.Apply(map[string]string{"missing": "x"})
	var uf *flatten.UnknownFieldError
	assert.True(t, errors.As(err, &uf))
}

func TestApply_YAMLKeepsNumbersUnquoted(t *testing.T) {
	doc := Parse("/tmp/a.yaml", "server:\n  port: 8080\n  ratio: 0.5\nname: demo\n")
	out, err := doc.Apply(map[string]string{"server.port": "9090", "server.ratio": "0.75"})
	require.NoError(t, err)
	assert.Equal(t, "name: demo\nserver:\n  port: 9090\n  ratio: 0.75\n", out)
}

func TestRender_RoundTripWithoutArrays(t *testing.T) {
	raw := `{"a":{"b":{"c":"x","d":false}},"e":1.25,"f":{}}`
	doc := Parse("/tmp/a.json", raw)
	out, err := Render(FormatJSON, doc.Flat())
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

type memFS struct {
	mu    sync.Mutex
	files map[string]string
}

func (m *memFS) Invoke(_ context.Context, cmd backend.Command, args backend.Args) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch cmd {
	case backend.CmdReadConfigFile:
		p, _ := args.String("path")
		content, ok := m.files[p]
		if !ok {
			return nil, &backend.CommandError{Command: cmd, Err: errors.New("no such file")}
		}
		return json.Marshal(content)
	case backend.CmdWriteConfigFile:
		p, _ := args.String("path")
		content, _ := args.RawString("content")
		m.files[p] = content
		return json.Marshal("saved")
	case backend.CmdListConfigDirs:
		return json.Marshal([]domain.ConfigDir{{Name: "app", Path: "/cfg/app"}})
	case backend.CmdListConfigFiles:
		return json.Marshal([]string{"/cfg/app/a.json"})
	}
	return nil, &backend.CommandError{Command: cmd, Err: backend.ErrUnknownCommand}
}

func TestEditor(t *testing.T) {
	fs := &memFS{files: map[string]string{"/cfg/app/a.json": `{"port":3000,"debug":false}`}}
	ed := NewEditor(fs)
	ctx := context.Background()

	dirs, err := ed.Dirs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ConfigDir{{Name: "app", Path: "/cfg/app"}}, dirs)
	files, err := ed.Files(ctx, "/cfg/app")
	require.NoError(t, err)
	assert.Equal(t, []string{"/cfg/app/a.json"}, files)

	doc, err := ed.Open(ctx, "/cfg/app/a.json")
	require.NoError(t, err)
	assert.Len(t, doc.Fields, 2)

	saved, err := ed.SaveFields(ctx, "/cfg/app/a.json", map[string]string{"debug": "true"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"port":3000,"debug":true}`, fs.files["/cfg/app/a.json"])
	assert.Equal(t, "true", fieldsByPath(saved)["debug"].Text)

	_, err = ed.SaveRaw(ctx, "/cfg/app/a.json", "not json")
	require.NoError(t, err)
	assert.Equal(t, "not json", fs.files["/cfg/app/a.json"])

	_, err = ed.SaveFields(ctx, "/cfg/app/a.json", map[string]string{"debug": "false"})
	assert.Error(t, err)
	assert.Equal(t, "not json", fs.files["/cfg/app/a.json"])

	_, err = ed.Open(ctx, "/cfg/app/missing.json")
	assert.Error(t, err)
}
