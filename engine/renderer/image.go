package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/Carmen-Shannon/oxy-mfs/common"
)

// ImageFormat is an encoding an image can be written in.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "png"
	ImageFormatJPEG ImageFormat = "jpeg"
	ImageFormatTIFF ImageFormat = "tiff"
	ImageFormatBMP  ImageFormat = "bmp"
)

// PixelsFromImage converts an image into four floats per texel with row 0 at the bottom, the
// layout expected by TextureDescriptor.Pixels.
//
// Parameters:
//   - img: the source image
//
// Returns:
//   - width, height: the image dimensions
//   - []float32: the texels in [0, 1]
func PixelsFromImage(img image.Image) (width, height int, pixels []float32) {
	b := img.Bounds()
	width, height = b.Dx(), b.Dy()
	pixels = make([]float32, 0, width*height*4)
	for y := height - 1; y >= 0; y-- {
		for x := range width {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			pixels = append(pixels, float32(c.R)/255, float32(c.G)/255, float32(c.B)/255, float32(c.A)/255)
		}
	}
	return width, height, pixels
}

// ImageFromPixels converts read back texels into an image with the top row first. Values are
// clamped to [0, 1] and quantized to 8 bits.
//
// Parameters:
//   - pixels: four floats per texel, row 0 at the bottom
//   - width, height: the texture dimensions
//
// Returns:
//   - *image.NRGBA: the image
//   - error: common.ErrResourceMismatch when the pixel count does not match the size
func ImageFromPixels(pixels []float32, width, height int) (*image.NRGBA, error) {
	if len(pixels) != width*height*4 {
		return nil, fmt.Errorf("%w: %d values for a %dx%d image", common.ErrResourceMismatch, len(pixels), width, height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	quantize := func(v float32) uint8 {
		if v != v {
			return 0
		}
		return uint8(math.Round(float64(common.Clamp(v, 0, 1)) * 255))
	}
	for y := range height {
		row := pixels[(height-1-y)*width*4:]
		for x := range width {
			p := row[x*4 : x*4+4]
			img.SetNRGBA(x, y, color.NRGBA{R: quantize(p[0]), G: quantize(p[1]), B: quantize(p[2]), A: quantize(p[3])})
		}
	}
	return img, nil
}

// ReadImage reads back a texture and converts it with ImageFromPixels.
//
// Parameters:
//   - r: the renderer owning t
//   - t: the texture to read
//
// Returns:
//   - *image.NRGBA: the image
//   - error: a readback failure
func ReadImage(r Renderer, t Texture) (*image.NRGBA, error) {
	pixels, err := r.ReadPixels(t)
	if err != nil {
		return nil, err
	}
	return ImageFromPixels(pixels, t.Width(), t.Height())
}

// ImageFormatFor picks the encoding from a file extension.
//
// Parameters:
//   - path: the output path
//
// Returns:
//   - ImageFormat: the encoding
//   - error: common.ErrConfiguration for unsupported extensions
func ImageFormatFor(path string) (ImageFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return ImageFormatPNG, nil
	case ".jpg", ".jpeg":
		return ImageFormatJPEG, nil
	case ".tif", ".tiff":
		return ImageFormatTIFF, nil
	case ".bmp":
		return ImageFormatBMP, nil
	}
	return "", fmt.Errorf("%w: unsupported image extension %q", common.ErrConfiguration, filepath.Ext(path))
}

// EncodeImage writes img to w in the given format.
func EncodeImage(w io.Writer, img image.Image, format ImageFormat) error {
	switch format {
	case ImageFormatPNG:
		return png.Encode(w, img)
	case ImageFormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case ImageFormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case ImageFormatBMP:
		return bmp.Encode(w, img)
	}
	return fmt.Errorf("%w: unsupported image format %q", common.ErrConfiguration, format)
}

// WriteImage encodes img into the file at path, choosing the format from the extension.
//
// Parameters:
//   - path: the output file, created or truncated
//   - img: the image
//
// Returns:
//   - error: an unsupported extension, or a file or encoding failure
func WriteImage(path string, img image.Image) (err error) {
	format, err := ImageFormatFor(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := EncodeImage(f, img, format); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
