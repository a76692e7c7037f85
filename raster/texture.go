package raster

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/gogpu/rasterkernel/buffer"
)

// RGBAConverter packs/unpacks color.RGBA to the same 32-bit word layout
// AdaptPixel produces, so a texture and the color buffer share one wire
// format.
type RGBAConverter struct{}

func (RGBAConverter) ToDevice(c color.RGBA) uint32 {
	return uint32(c.A)<<24 | uint32(c.B)<<16 | uint32(c.G)<<8 | uint32(c.R)
}

func (RGBAConverter) ToHost(v uint32) color.RGBA {
	return color.RGBA{R: byte(v), G: byte(v >> 8), B: byte(v >> 16), A: byte(v >> 24)}
}

// Texture is the one sampler the Non-goals allow: a packed RGBA8 image
// sampled with 4-tap bilinear filtering and clamp-to-edge addressing. A
// fragment kernel receives it by convention through an argument name
// with a gclTexture prefix (see shader.TextureArg); the pipeline driver
// never interprets its contents itself.
type Texture struct {
	Width, Height int
	buf           *buffer.Buffer[color.RGBA, uint32]
}

// NewTexture wraps width*height RGBA8 pixels, row-major.
func NewTexture(width, height int, pixels []color.RGBA) *Texture {
	b := buffer.FromLiteral[color.RGBA, uint32](pixels, RGBAConverter{})
	b.ConvHostToDev()
	return &Texture{Width: width, Height: height, buf: b}
}

// LoadTexture decodes an already-open image into a Texture sized
// width x height, using golang.org/x/image/draw's bilinear resampler
// when img's dimensions don't already match.
func LoadTexture(img image.Image, width, height int) *Texture {
	if img.Bounds().Dx() != width || img.Bounds().Dy() != height {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		img = dst
	}
	pixels := make([]color.RGBA, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			pixels[y*width+x] = color.RGBA{R: byte(r >> 8), G: byte(g >> 8), B: byte(b >> 8), A: byte(a >> 8)}
		}
	}
	return NewTexture(width, height, pixels)
}

func (t *Texture) texel(x, y int) [4]float32 {
	x = clampInt(x, 0, t.Width-1)
	y = clampInt(y, 0, t.Height-1)
	packed := t.buf.DeviceData()[y*t.Width+x]
	return [4]float32{
		float32(packed & 0xFF),
		float32((packed >> 8) & 0xFF),
		float32((packed >> 16) & 0xFF),
		float32((packed >> 24) & 0xFF),
	}
}

// SampleBilinear performs a 4-tap bilinear fetch at normalized texture
// coordinates (u, v), each typically in [0,1], with clamp-to-edge
// addressing outside that range. Returns RGBA in [0,255] to match the
// color buffer's own scale.
func SampleBilinear(t *Texture, u, v float32) [4]float32 {
	fx := u*float32(t.Width) - 0.5
	fy := v*float32(t.Height) - 0.5
	x0 := int(math.Floor(float64(fx)))
	y0 := int(math.Floor(float64(fy)))
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	c00, c10 := t.texel(x0, y0), t.texel(x0+1, y0)
	c01, c11 := t.texel(x0, y0+1), t.texel(x0+1, y0+1)

	var out [4]float32
	for i := 0; i < 4; i++ {
		top := lerp(c00[i], c10[i], tx)
		bot := lerp(c01[i], c11[i], tx)
		out[i] = lerp(top, bot, ty)
	}
	return out
}
