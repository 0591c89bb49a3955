// Package images decodes raster images into the sample layout PDF image
// XObjects expect: 8-bit RGB or gray samples plus an optional 8-bit alpha
// channel used as a soft mask.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif" // register decoders
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DeviceRGB  = "DeviceRGB"
	DeviceGray = "DeviceGray"

	// FilterDCT marks Samples as an unmodified JPEG stream.
	FilterDCT = "DCTDecode"
)

var ErrEmptyImage = errors.New("image has no pixels")

// Image is decoded, immutable image data.
type Image struct {
	Width      int
	Height     int
	ColorSpace string
	Samples    []byte
	Filter     string
	Alpha      []byte
}

// HasAlpha reports whether the image needs a soft mask.
func (img *Image) HasAlpha() bool { return img.Alpha != nil }

// Options tunes decoding.
type Options struct {
	// MaxDimension downsamples images whose larger side exceeds it. Zero
	// keeps the original resolution.
	MaxDimension int
	// ReencodeJPEG decodes JPEG input instead of embedding it unchanged.
	ReencodeJPEG bool
}

// Decode reads PNG, JPEG, GIF, BMP, TIFF or WebP data.
func Decode(data []byte, opts Options) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrEmptyImage
	}
	fits := opts.MaxDimension <= 0 || (cfg.Width <= opts.MaxDimension && cfg.Height <= opts.MaxDimension)
	if format == "jpeg" && !opts.ReencodeJPEG && fits {
		if cs, ok := jpegColorSpace(cfg.ColorModel); ok {
			return &Image{Width: cfg.Width, Height: cfg.Height, ColorSpace: cs, Samples: data, Filter: FilterDCT}, nil
		}
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", format, err)
	}
	if !fits {
		src = downsample(src, opts.MaxDimension)
	}
	return FromImage(src), nil
}

// jpegColorSpace reports the color space of a JPEG that can be passed
// through; CMYK JPEGs need an inverted Decode array and are re-encoded.
func jpegColorSpace(m color.Model) (string, bool) {
	switch m {
	case color.GrayModel:
		return DeviceGray, true
	case color.YCbCrModel, color.RGBAModel:
		return DeviceRGB, true
	}
	return "", false
}

func downsample(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	ratio := float64(maxDim) / float64(max(w, h))
	nw, nh := max(1, int(float64(w)*ratio+0.5)), max(1, int(float64(h)*ratio+0.5))
	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// FromImage converts src to RGB or gray samples. The alpha channel is kept
// only when some pixel is not fully opaque.
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), src, bounds.Min, draw.Src)

	gray := isGray(src)
	out := &Image{Width: w, Height: h, ColorSpace: DeviceRGB}
	if gray {
		out.ColorSpace = DeviceGray
		out.Samples = make([]byte, 0, w*h)
	} else {
		out.Samples = make([]byte, 0, w*h*3)
	}
	alpha := make([]byte, 0, w*h)
	translucent := false
	for i := 0; i < w*h; i++ {
		px := nrgba.Pix[i*4 : i*4+4]
		if gray {
			out.Samples = append(out.Samples, px[0])
		} else {
			out.Samples = append(out.Samples, px[0], px[1], px[2])
		}
		alpha = append(alpha, px[3])
		if px[3] < 255 {
			translucent = true
		}
	}
	if translucent {
		out.Alpha = alpha
	}
	return out
}

func isGray(img image.Image) bool {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return true
	}
	return false
}
