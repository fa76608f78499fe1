package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/blockc/internal/config"
)

// ErrExists is returned by Scaffold when the directory already holds a
// project file.
var ErrExists = errors.New("project already exists")

const scaffoldConfig = `project:
  name: %s
  output: build
  packages: []
  extensions: []

stage:
  path: stage.yaml

sprites:
  - name: Cat
    path: sprites/cat.yaml
`

const scaffoldStage = `items:
  - var: score
    type: number
    public: true
    value: 0
  - costume: backdrop
    path: assets/backdrop.svg
  - handler: reset
    on: [on_flag_clicked]
    body:
      - set: score
        to: 0
`

const scaffoldSprite = `items:
  - costume: cat
    path: ../assets/cat.svg
  - proc: greet
    params: [{who: string}]
    body:
      - call: say_for
        args: [{call: join, args: ["Hello, ", {var: who}]}, 2]
  - handler: start
    on: [on_flag_clicked]
    body:
      - call: greet
        args: [world]
      - set: score
        to: {op: "+", left: {var: score}, right: 1}
`

const scaffoldBackdrop = `<svg xmlns="http://www.w3.org/2000/svg" width="480" height="360" viewBox="0 0 480 360">
  <rect width="480" height="360" fill="#ffffff"/>
</svg>
`

const scaffoldCostume = `<svg xmlns="http://www.w3.org/2000/svg" width="64" height="64" viewBox="0 0 64 64">
  <circle cx="32" cy="32" r="30" fill="#ffab19" stroke="#cf8b17" stroke-width="2"/>
</svg>
`

// Scaffold creates a starter project named name in dir and returns the
// files it wrote, relative to dir.
func Scaffold(dir, name string) ([]string, error) {
	for _, f := range []string{config.FileName, config.FileNameAlt} {
		if _, err := os.Stat(filepath.Join(dir, f)); err == nil {
			return nil, fmt.Errorf("%w in %s", ErrExists, dir)
		}
	}
	if name == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		name = filepath.Base(abs)
	}

	files := []struct {
		path, body string
	}{
		{config.FileName, fmt.Sprintf(scaffoldConfig, name)},
		{"stage.yaml", scaffoldStage},
		{filepath.Join("sprites", "cat.yaml"), scaffoldSprite},
		{filepath.Join("assets", "backdrop.svg"), scaffoldBackdrop},
		{filepath.Join("assets", "cat.svg"), scaffoldCostume},
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		p := filepath.Join(dir, f.path)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("scaffold: %w", err)
		}
		if err := os.WriteFile(p, []byte(f.body), 0o644); err != nil {
			return nil, fmt.Errorf("scaffold: %w", err)
		}
		written = append(written, f.path)
	}
	return written, nil
}
