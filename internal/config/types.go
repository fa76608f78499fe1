// Package config loads blockc.yaml project files.
//
// Values are layered with koanf. From lowest to highest precedence they
// come from the defaults, the project file, BLOCKC_ environment variables,
// and command-line flags that were set explicitly.
package config

// File names searched for, in order.
const (
	FileName    = "blockc.yaml"
	FileNameAlt = "blockc.yml"
)

// EnvPrefix selects the environment variables that override the project
// file. A double underscore separates nesting levels, so
// BLOCKC_PROJECT__OUTPUT sets project.output.
const EnvPrefix = "BLOCKC_"

// Defaults.
const (
	DefaultOutput     = "build"
	DefaultCache      = ".blockc/cache.db"
	DefaultStagePath  = "stage.yaml"
	DefaultFrameWidth = 16
)

// MemoryCache keeps the build cache in memory for the duration of one run.
const MemoryCache = ":memory:"

// Config is a loaded project.
type Config struct {
	Project Project  `koanf:"project"`
	Stage   Target   `koanf:"stage"`
	Sprites []Target `koanf:"sprites"`

	// Root is the directory holding the project file. Every relative path
	// has been resolved against it.
	Root string `koanf:"-"`

	// File is the project file that was loaded.
	File string `koanf:"-"`
}

// Project holds the settings shared by every target.
type Project struct {
	// Name is the archive name. Defaults to the base name of Root.
	Name string `koanf:"name"`

	// Output is the directory the .sb3 archive is written to.
	Output string `koanf:"output"`

	// Packages lists module documents, or directories of them, that
	// programs may import with use.
	Packages []string `koanf:"packages"`

	// Extensions lists block extensions enabled for every target.
	Extensions []string `koanf:"extensions"`

	// ExtensionsDir holds additional CUE extension definitions.
	ExtensionsDir string `koanf:"extensions_dir"`

	// Cache is the SQLite build cache. MemoryCache disables persistence.
	Cache string `koanf:"cache"`

	// FrameWidth is the minimum frame width of virtualized routines.
	FrameWidth int `koanf:"frame_width"`

	// Debug also writes project.json next to the archive.
	Debug bool `koanf:"debug"`
}

// Target names one program document.
type Target struct {
	Name string `koanf:"name"`
	Path string `koanf:"path"`
}
