package material

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// TextureSource is where a material texture comes from: an already decoded image,
// raw encoded bytes, or a file path. Decoding happens once on first use.
type TextureSource struct {
	// Name is an identifier for this texture (e.g. "bricks-diffuse").
	Name string

	// Path is the file path for external textures.
	Path string

	// Data contains raw encoded image bytes (PNG, JPEG, BMP or TIFF).
	Data []byte

	once    sync.Once
	decoded image.Image
	err     error
}

// ImageSource wraps an already decoded image.
//
// Parameters:
//   - name: the texture identifier
//   - img: the image
//
// Returns:
//   - *TextureSource: a source whose Decode returns img
func ImageSource(name string, img image.Image) *TextureSource {
	t := &TextureSource{Name: name}
	t.once.Do(func() { t.decoded = img })
	return t
}

// FileSource references an image file on disk.
func FileSource(path string) *TextureSource {
	return &TextureSource{Name: path, Path: path}
}

// Decode returns the decoded image, reading embedded Data first and Path otherwise.
//
// Returns:
//   - image.Image: the decoded image
//   - error: error if the source is empty or decoding fails
func (t *TextureSource) Decode() (image.Image, error) {
	if t == nil {
		return nil, fmt.Errorf("texture is nil")
	}
	t.once.Do(func() {
		switch {
		case len(t.Data) > 0:
			t.decoded, _, t.err = image.Decode(bytes.NewReader(t.Data))
			if t.err != nil {
				t.err = fmt.Errorf("failed to decode embedded image %s: %w", t.Name, t.err)
			}
		case t.Path != "":
			file, err := os.Open(t.Path)
			if err != nil {
				t.err = fmt.Errorf("failed to open texture file %s: %w", t.Path, err)
				return
			}
			defer file.Close()
			t.decoded, _, t.err = image.Decode(file)
			if t.err != nil {
				t.err = fmt.Errorf("failed to decode texture file %s: %w", t.Path, t.err)
			}
		default:
			t.err = fmt.Errorf("texture %s has neither data nor path", t.Name)
		}
	})
	return t.decoded, t.err
}
