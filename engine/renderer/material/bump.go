package material

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Carmen-Shannon/oxy-mfs/common"
)

// BumpType selects how a bump texture perturbs shading normals.
type BumpType int32

const (
	// BumpNone ignores bump textures.
	BumpNone BumpType = iota
	// BumpNormal reads a tangent-space normal map.
	BumpNormal
	// BumpHeight derives the normal from a height map by finite differences.
	BumpHeight
)

var bumpNames = map[BumpType]string{
	BumpNone:   "none",
	BumpNormal: "normal",
	BumpHeight: "height",
}

func (b BumpType) String() string {
	if name, ok := bumpNames[b]; ok {
		return name
	}
	return fmt.Sprintf("bump(%d)", int32(b))
}

// MarshalText implements encoding.TextMarshaler.
func (b BumpType) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting the lower-case names.
func (b *BumpType) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for k, v := range bumpNames {
		if v == name {
			*b = k
			return nil
		}
	}
	return fmt.Errorf("%w: unknown bump type %q", common.ErrConfiguration, name)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *BumpType) UnmarshalYAML(node *yaml.Node) error {
	return b.UnmarshalText([]byte(node.Value))
}
