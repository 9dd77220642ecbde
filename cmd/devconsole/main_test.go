package main

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomek7667/devconsole/internal/backend"
)

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{"path=/home/u/.cache", "content=a=b", "all=true"})
	require.NoError(t, err)
	assert.Equal(t, backend.Args{"path": "/home/u/.cache", "content": "a=b", "all": "true"}, args)
	assert.True(t, args.Bool("all"))

	_, err = parseArgs([]string{"nokey"})
	assert.Error(t, err)
	_, err = parseArgs([]string{"=value"})
	assert.Error(t, err)
}

func TestBuildMeta(t *testing.T) {
	tagged := metaFromBuildInfo(&debug.BuildInfo{Main: debug.Module{Version: "v1.4.0"}})
	assert.Equal(t, "v1.4.0", tagged.String())
	assert.Equal(t, "v1.4.0", tagged.release())

	local := metaFromBuildInfo(&debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.modified", Value: "true"},
		},
	})
	assert.Equal(t, "dev", local.release())
	assert.Equal(t, "abc123 (modified)", local.String())

	assert.Equal(t, "unknown", metaFromBuildInfo(nil).String())

	assert.True(t, tagged.sameBuild(buildMeta{version: "v1.4.0", revision: "zzz"}))
	assert.False(t, tagged.sameBuild(buildMeta{version: "v1.5.0"}))
	assert.False(t, local.sameBuild(buildMeta{version: "(devel)", revision: "abc123"}))
	assert.True(t, buildMeta{revision: "r1"}.sameBuild(buildMeta{revision: "r1"}))
}
