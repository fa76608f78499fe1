package project

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockc/internal/virtualize"
)

const sumProgram = `
items:
  - use: math
  - var: total
    value: 0
  - handler: go
    on: [on_flag_clicked]
    body:
      - set: total
        to: {call: "math::add", args: [2, 3]}
`

func TestExpand(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"lib/math.yaml": mathModule,
		"main.yaml":     sumProgram,
	})

	exp, err := Expand(filepath.Join(dir, "main.yaml"), []string{filepath.Join(dir, "lib")}, 4, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"math::add"}, exp.Resolve.CompileSet)
	assert.Equal(t, []string{"math"}, exp.Resolve.Modules)
	assert.True(t, exp.Virtualize.Injected)
	assert.Equal(t, 4, exp.Virtualize.FrameWidth)
	assert.Empty(t, exp.Warnings)

	src := exp.Source()
	assert.Contains(t, src, "math::add")
	assert.Contains(t, src, virtualize.MemoryList)
	assert.NotContains(t, src, "use math;")
}

func TestExpand_NoModules(t *testing.T) {
	dir := writeTree(t, map[string]string{"main.yaml": stageProgram})

	exp, err := Expand(filepath.Join(dir, "main.yaml"), nil, 16, nil)
	require.NoError(t, err)
	assert.Empty(t, exp.Resolve.CompileSet)
	assert.False(t, exp.Virtualize.Injected)
	assert.NotNil(t, exp.Warnings)
}

func TestExpand_RejectsModule(t *testing.T) {
	dir := writeTree(t, map[string]string{"math.yaml": mathModule})

	_, err := Expand(filepath.Join(dir, "math.yaml"), nil, 16, nil)
	assert.ErrorContains(t, err, "expected a program document")
}
