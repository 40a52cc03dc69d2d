package renderer

import (
	"math"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/go-gl/mathgl/mgl32"
)

// softTexture stores four floats per texel, row 0 at the bottom, whatever the format.
// Stores apply the precision and channel set of the format so reads behave like a GPU.
type softTexture struct {
	label  string
	width  int
	height int
	format Format
	filter Filter
	wrap   Wrap
	data   []float32
}

var _ Texture = &softTexture{}

func newSoftTexture(desc TextureDescriptor) *softTexture {
	t := &softTexture{
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		filter: desc.Filter,
		wrap:   desc.Wrap,
		data:   make([]float32, desc.Width*desc.Height*4),
	}
	if desc.Pixels != nil {
		for i := 0; i < desc.Width*desc.Height; i++ {
			v := mgl32.Vec4{desc.Pixels[i*4], desc.Pixels[i*4+1], desc.Pixels[i*4+2], desc.Pixels[i*4+3]}
			t.storeIndex(i, v)
		}
	} else {
		t.clear(t.convert(mgl32.Vec4{}))
	}
	return t
}

func (t *softTexture) Label() string {
	return t.label
}

func (t *softTexture) Width() int {
	return t.width
}

func (t *softTexture) Height() int {
	return t.height
}

func (t *softTexture) Format() Format {
	return t.format
}

func (t *softTexture) Release() {
	t.data = nil
}

// convert applies the format's channel set and precision to v.
func (t *softTexture) convert(v mgl32.Vec4) mgl32.Vec4 {
	switch t.format {
	case FormatRGBA8, FormatBGRA8:
		return quantize(v)
	case FormatRGB8:
		v = quantize(v)
		v[3] = 1
	case FormatRG32F:
		v[2], v[3] = 0, 1
	case FormatR32F, FormatDepth32F:
		v[1], v[2], v[3] = 0, 0, 1
	}
	return v
}

func quantize(v mgl32.Vec4) mgl32.Vec4 {
	for i, c := range v {
		if c != c {
			c = 0
		}
		v[i] = float32(math.Round(float64(common.Clamp(c, 0, 1))*255)) / 255
	}
	return v
}

func (t *softTexture) clear(v mgl32.Vec4) {
	v = t.convert(v)
	for i := 0; i < len(t.data); i += 4 {
		copy(t.data[i:i+4], v[:])
	}
}

func (t *softTexture) storeIndex(i int, v mgl32.Vec4) {
	v = t.convert(v)
	copy(t.data[i*4:i*4+4], v[:])
}

func (t *softTexture) store(x, y int, v mgl32.Vec4) {
	t.storeIndex(y*t.width+x, v)
}

// depthAt and setDepth access the first channel only.
func (t *softTexture) depthAt(x, y int) float32 {
	return t.data[(y*t.width+x)*4]
}

func (t *softTexture) setDepth(x, y int, d float32) {
	t.data[(y*t.width+x)*4] = d
}

// load fetches a texel with coordinates clamped to the texture.
func (t *softTexture) load(x, y int) mgl32.Vec4 {
	x = common.Clamp(x, 0, t.width-1)
	y = common.Clamp(y, 0, t.height-1)
	i := (y*t.width + x) * 4
	return mgl32.Vec4{t.data[i], t.data[i+1], t.data[i+2], t.data[i+3]}
}

// texel maps normalized coordinates to the texel containing them.
func (t *softTexture) texel(uv mgl32.Vec2) (int, int) {
	x := int(math.Floor(float64(uv[0]) * float64(t.width)))
	y := int(math.Floor(float64(uv[1]) * float64(t.height)))
	return common.Clamp(x, 0, t.width-1), common.Clamp(y, 0, t.height-1)
}

func (t *softTexture) wrapCoord(c, size int) int {
	if t.wrap == WrapClamp {
		return common.Clamp(c, 0, size-1)
	}
	c %= size
	if c < 0 {
		c += size
	}
	return c
}

// sample reads the texture at normalized coordinates using its filter and wrap modes.
func (t *softTexture) sample(uv mgl32.Vec2) mgl32.Vec4 {
	if t.filter == FilterNearest {
		x := int(math.Floor(float64(uv[0]) * float64(t.width)))
		y := int(math.Floor(float64(uv[1]) * float64(t.height)))
		return t.load(t.wrapCoord(x, t.width), t.wrapCoord(y, t.height))
	}
	px := float64(uv[0])*float64(t.width) - 0.5
	py := float64(uv[1])*float64(t.height) - 0.5
	bx, by := math.Floor(px), math.Floor(py)
	fx, fy := float32(px-bx), float32(py-by)
	x0, y0 := t.wrapCoord(int(bx), t.width), t.wrapCoord(int(by), t.height)
	x1, y1 := t.wrapCoord(int(bx)+1, t.width), t.wrapCoord(int(by)+1, t.height)
	bottom := mix4(t.load(x0, y0), t.load(x1, y0), fx)
	top := mix4(t.load(x0, y1), t.load(x1, y1), fx)
	return mix4(bottom, top, fy)
}

// pixels returns a copy of the texel data.
func (t *softTexture) pixels() []float32 {
	return append([]float32(nil), t.data...)
}

func mix4(a, b mgl32.Vec4, f float32) mgl32.Vec4 {
	return a.Add(b.Sub(a).Mul(f))
}
