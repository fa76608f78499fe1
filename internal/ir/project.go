package ir

import (
	"encoding/json"
	"slices"
)

// Variable is a scalar variable entry: serialized as [name, value].
type Variable struct {
	Name  string
	Value any
}

// MarshalJSON encodes [name, value].
func (v Variable) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{v.Name, v.Value})
}

// List is a list entry: serialized as [name, items].
type List struct {
	Name  string
	Items []any
}

// MarshalJSON encodes [name, items].
func (l List) MarshalJSON() ([]byte, error) {
	items := l.Items
	if items == nil {
		items = []any{}
	}
	return json.Marshal([]any{l.Name, items})
}

// Costume is an image asset entry.
type Costume struct {
	Name             string  `json:"name"`
	AssetID          string  `json:"assetId"`
	MD5Ext           string  `json:"md5ext"`
	DataFormat       string  `json:"dataFormat"`
	RotationCenterX  float64 `json:"rotationCenterX"`
	RotationCenterY  float64 `json:"rotationCenterY"`
	BitmapResolution int     `json:"bitmapResolution,omitempty"`
}

// Sound is an audio asset entry.
type Sound struct {
	Name        string `json:"name"`
	AssetID     string `json:"assetId"`
	MD5Ext      string `json:"md5ext"`
	DataFormat  string `json:"dataFormat"`
	Rate        int    `json:"rate"`
	SampleCount int    `json:"sampleCount"`
}

// AssetInstruction tells the packager to copy Source into the archive as
// Destination.
type AssetInstruction struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Target is a compiled stage or sprite.
type Target struct {
	IsStage        bool                  `json:"isStage"`
	Name           string                `json:"name"`
	Variables      map[string]Variable   `json:"variables"`
	Lists          map[string]List       `json:"lists"`
	Broadcasts     map[string]string     `json:"broadcasts"`
	Blocks         map[BlockID]*Block    `json:"blocks"`
	Comments       map[CommentID]Comment `json:"comments"`
	CurrentCostume int                   `json:"currentCostume"`
	Costumes       []Costume             `json:"costumes"`
	Sounds         []Sound               `json:"sounds"`
	Volume         float64               `json:"volume"`
	LayerOrder     int                   `json:"layerOrder"`

	// Stage-only properties.
	Tempo                int     `json:"tempo,omitempty"`
	VideoTransparency    float64 `json:"videoTransparency,omitempty"`
	VideoState           string  `json:"videoState,omitempty"`
	TextToSpeechLanguage *string `json:"textToSpeechLanguage,omitempty"`

	// Sprite-only properties.
	Visible       *bool    `json:"visible,omitempty"`
	X             *float64 `json:"x,omitempty"`
	Y             *float64 `json:"y,omitempty"`
	Size          *float64 `json:"size,omitempty"`
	Direction     *float64 `json:"direction,omitempty"`
	Draggable     *bool    `json:"draggable,omitempty"`
	RotationStyle string   `json:"rotationStyle,omitempty"`
}

// NewTarget returns a target with all tables allocated and the default
// properties for its kind.
func NewTarget(name string, isStage bool) *Target {
	t := &Target{
		IsStage:    isStage,
		Name:       name,
		Variables:  make(map[string]Variable),
		Lists:      make(map[string]List),
		Broadcasts: make(map[string]string),
		Blocks:     make(map[BlockID]*Block),
		Comments:   make(map[CommentID]Comment),
		Costumes:   []Costume{},
		Sounds:     []Sound{},
		Volume:     100,
	}
	if isStage {
		t.Tempo = 60
		t.VideoTransparency = 50
		t.VideoState = "on"
		return t
	}
	visible, draggable := true, false
	x, y, size, dir := 0.0, 0.0, 100.0, 90.0
	t.Visible, t.Draggable = &visible, &draggable
	t.X, t.Y, t.Size, t.Direction = &x, &y, &size, &dir
	t.RotationStyle = "all around"
	t.LayerOrder = 1
	return t
}

// Meta is the project.json metadata block.
type Meta struct {
	SemVer string `json:"semver"`
	VM     string `json:"vm"`
	Agent  string `json:"agent"`
}

// Project is the complete project.json document.
type Project struct {
	Targets       []*Target         `json:"targets"`
	Monitors      []any             `json:"monitors"`
	Extensions    []string          `json:"extensions"`
	ExtensionURLs map[string]string `json:"extensionURLs,omitempty"`
	Meta          Meta              `json:"meta"`
}

// NewProject returns an empty project with default metadata.
func NewProject(agent string) *Project {
	return &Project{
		Targets:    []*Target{},
		Monitors:   []any{},
		Extensions: []string{},
		Meta:       Meta{SemVer: "3.0.0", VM: "0.2.0", Agent: agent},
	}
}

// BlockIDs returns the target's block ids in sorted order.
func (t *Target) BlockIDs() []BlockID {
	return sortedKeys(t.Blocks)
}

// TopLevel returns the ids of top-level blocks in sorted order.
func (t *Target) TopLevel() []BlockID {
	var out []BlockID
	for _, id := range t.BlockIDs() {
		if t.Blocks[id].TopLevel {
			out = append(out, id)
		}
	}
	return out
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
