// Package preset holds the static per-scene configuration read by the render passes and
// loads it from TOML or YAML files.
package preset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/material"
)

// Format is a preset file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Preset is immutable while a scene is rendered: loading a new one restarts accumulation.
type Preset struct {
	Name string `toml:"name" yaml:"name"`

	CameraEye    [3]float32 `toml:"camera_eye" yaml:"camera_eye"`
	CameraCenter [3]float32 `toml:"camera_center" yaml:"camera_center"`
	FovY         float32    `toml:"fov_y" yaml:"fov_y"` // degrees
	Near         float32    `toml:"near" yaml:"near"`
	Far          float32    `toml:"far" yaml:"far"`

	LightPosition  [3]float32 `toml:"light_position" yaml:"light_position"`
	LightMaxShift  float32    `toml:"light_max_shift" yaml:"light_max_shift"`
	LightIntensity float32    `toml:"light_intensity" yaml:"light_intensity"`

	GroundColor  [3]float32 `toml:"ground_color" yaml:"ground_color"`
	GroundHeight float32    `toml:"ground_height" yaml:"ground_height"`

	FocalDist  float32 `toml:"focal_dist" yaml:"focal_dist"`
	FocalPoint float32 `toml:"focal_point" yaml:"focal_point"`
	UseDOF     bool    `toml:"use_dof" yaml:"use_dof"`

	BumpType material.BumpType `toml:"bump_type" yaml:"bump_type"`
	Alpha    float32           `toml:"alpha" yaml:"alpha"`

	MaxFrames int     `toml:"max_frames" yaml:"max_frames"`
	Exposure  float32 `toml:"exposure" yaml:"exposure"`
}

// Default returns the preset used when nothing else is configured.
func Default() Preset {
	return Preset{
		Name:           "default",
		CameraEye:      [3]float32{0, 2, 6},
		CameraCenter:   [3]float32{0, 0.5, 0},
		FovY:           40,
		Near:           0.1,
		Far:            50,
		LightPosition:  [3]float32{0, 8, 0},
		LightMaxShift:  0.5,
		LightIntensity: 1,
		GroundColor:    [3]float32{0.8, 0.8, 0.8},
		GroundHeight:   0,
		FocalDist:      6,
		FocalPoint:     0.05,
		UseDOF:         false,
		BumpType:       material.BumpNone,
		Alpha:          0.5,
		MaxFrames:      16,
		Exposure:       1,
	}
}

// Eye returns the camera position.
func (p Preset) Eye() mgl32.Vec3 { return mgl32.Vec3(p.CameraEye) }

// Center returns the camera target.
func (p Preset) Center() mgl32.Vec3 { return mgl32.Vec3(p.CameraCenter) }

// Light returns the unjittered light position.
func (p Preset) Light() mgl32.Vec3 { return mgl32.Vec3(p.LightPosition) }

// Ground returns the ground plane color.
func (p Preset) Ground() mgl32.Vec3 { return mgl32.Vec3(p.GroundColor) }

// DOFScale returns 1 if depth of field is enabled and 0 otherwise.
func (p Preset) DOFScale() float32 {
	if p.UseDOF {
		return 1
	}
	return 0
}

// Validate checks the invariants the render passes rely on.
//
// Returns:
//   - error: common.ErrConfiguration describing the first violated rule
func (p Preset) Validate() error {
	switch {
	case p.Near <= 0 || p.Far <= p.Near:
		return fmt.Errorf("%w: preset %q clip planes near=%v far=%v", common.ErrConfiguration, p.Name, p.Near, p.Far)
	case p.FovY <= 0 || p.FovY >= 180:
		return fmt.Errorf("%w: preset %q field of view %v", common.ErrConfiguration, p.Name, p.FovY)
	case p.MaxFrames <= 0:
		return fmt.Errorf("%w: preset %q max frames %d", common.ErrConfiguration, p.Name, p.MaxFrames)
	case p.FocalDist <= 0:
		return fmt.Errorf("%w: preset %q focal distance %v", common.ErrConfiguration, p.Name, p.FocalDist)
	case p.LightMaxShift < 0 || p.FocalPoint < 0:
		return fmt.Errorf("%w: preset %q jitter scales must be non-negative", common.ErrConfiguration, p.Name)
	case p.Exposure < 0:
		return fmt.Errorf("%w: preset %q exposure %v", common.ErrConfiguration, p.Name, p.Exposure)
	}
	return nil
}

// Decode parses a preset. Fields missing from data keep their Default values.
//
// Parameters:
//   - data: the encoded preset
//   - format: the encoding of data
//
// Returns:
//   - Preset: the decoded preset
//   - error: a decode error or a validation error
func Decode(data []byte, format Format) (Preset, error) {
	p := Default()
	var err error
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&p)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err = dec.Decode(&p); errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		return Preset{}, fmt.Errorf("%w: unsupported preset format %q", common.ErrConfiguration, format)
	}
	if err != nil {
		return Preset{}, fmt.Errorf("%w: decode %s preset: %v", common.ErrConfiguration, format, err)
	}
	if err := p.Validate(); err != nil {
		return Preset{}, err
	}
	return p, nil
}

// Encode writes a preset in the given format.
func Encode(p Preset, format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		return toml.Marshal(p)
	case FormatYAML:
		return yaml.Marshal(p)
	}
	return nil, fmt.Errorf("%w: unsupported preset format %q", common.ErrConfiguration, format)
}

// FormatFor picks the format from a file extension.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Format: the detected format
//   - error: common.ErrConfiguration for unknown extensions
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: cannot infer preset format of %q", common.ErrConfiguration, path)
}

// Load reads and validates a preset file.
//
// Parameters:
//   - path: a .toml, .yaml or .yml file
//
// Returns:
//   - Preset: the loaded preset
//   - error: an I/O, decode or validation error
func Load(path string) (Preset, error) {
	format, err := FormatFor(path)
	if err != nil {
		return Preset{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("read preset %s: %w", path, err)
	}
	p, err := Decode(data, format)
	if err != nil {
		return Preset{}, fmt.Errorf("load preset %s: %w", path, err)
	}
	return p, nil
}
