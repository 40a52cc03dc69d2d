package preset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/material"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	for _, name := range Names() {
		p, err := Builtin(name)
		require.NoError(t, err)
		assert.NoError(t, p.Validate(), name)
		assert.Equal(t, name, p.Name)
	}
	_, err := Builtin("nope")
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestDecodeTOMLKeepsDefaults(t *testing.T) {
	data := []byte(`
name = "studio"
camera_eye = [1.0, 2.0, 3.0]
max_frames = 8
bump_type = "height"
use_dof = true
`)
	p, err := Decode(data, FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, "studio", p.Name)
	assert.Equal(t, [3]float32{1, 2, 3}, p.CameraEye)
	assert.Equal(t, 8, p.MaxFrames)
	assert.Equal(t, material.BumpHeight, p.BumpType)
	assert.Equal(t, float32(1), p.DOFScale())
	assert.Equal(t, Default().Near, p.Near)
}

func TestDecodeYAML(t *testing.T) {
	data := []byte(`
name: yard
ground_color: [0.1, 0.2, 0.3]
ground_height: -1
bump_type: normal
`)
	p, err := Decode(data, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, [3]float32{0.1, 0.2, 0.3}, p.GroundColor)
	assert.Equal(t, float32(-1), p.GroundHeight)
	assert.Equal(t, material.BumpNormal, p.BumpType)
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"zero frames", "max_frames = 0", FormatTOML},
		{"inverted planes", "near = 10\nfar = 1", FormatTOML},
		{"unknown field", "colour = 3", FormatTOML},
		{"unknown bump", "bump_type: parallax", FormatYAML},
		{"unknown yaml field", "colour: 3", FormatYAML},
		{"bad format", "", Format("ini")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), tt.format)
			assert.ErrorIs(t, err, common.ErrConfiguration)
		})
	}
}

func TestLoadAndEncodeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p, err := Builtin("soft-shadows")
	require.NoError(t, err)

	for _, ext := range []string{".toml", ".yaml"} {
		format, err := FormatFor("x" + ext)
		require.NoError(t, err)
		data, err := Encode(p, format)
		require.NoError(t, err)

		path := filepath.Join(dir, "preset"+ext)
		require.NoError(t, os.WriteFile(path, data, 0o644))
		loaded, err := Load(path)
		require.NoError(t, err, string(data))
		assert.Equal(t, p, loaded, ext)
	}

	_, err = Load(filepath.Join(dir, "preset.json"))
	assert.ErrorIs(t, err, common.ErrConfiguration)
}
