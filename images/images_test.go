package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeOpaquePNG(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img, err := Decode(encodePNG(t, src), Options{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Width != 3 || img.Height != 2 || img.ColorSpace != DeviceRGB {
		t.Fatalf("unexpected image %dx%d %s", img.Width, img.Height, img.ColorSpace)
	}
	if len(img.Samples) != 18 || !bytes.Equal(img.Samples[:3], []byte{10, 20, 30}) {
		t.Fatalf("unexpected samples %v", img.Samples)
	}
	if img.HasAlpha() {
		t.Fatalf("opaque image should have no alpha")
	}
}

func TestDecodeTranslucentPNG(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(1, 1, color.NRGBA{R: 255, A: 128})
	img, err := Decode(encodePNG(t, src), Options{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !img.HasAlpha() || img.Alpha[3] != 128 || img.Alpha[0] != 0 {
		t.Fatalf("unexpected alpha %v", img.Alpha)
	}
}

func TestDecodeGray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 1))
	src.SetGray(2, 0, color.Gray{Y: 77})
	img, err := Decode(encodePNG(t, src), Options{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.ColorSpace != DeviceGray || len(img.Samples) != 4 || img.Samples[2] != 77 {
		t.Fatalf("unexpected gray image %+v", img)
	}
}

func TestJPEGPassthrough(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	img, err := Decode(buf.Bytes(), Options{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Filter != FilterDCT || !bytes.Equal(img.Samples, buf.Bytes()) {
		t.Fatalf("jpeg should pass through unchanged")
	}
	re, err := Decode(buf.Bytes(), Options{ReencodeJPEG: true})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if re.Filter != "" || len(re.Samples) != 8*8*3 {
		t.Fatalf("reencoded jpeg should be raw RGB, got filter %q len %d", re.Filter, len(re.Samples))
	}
}

func TestDownsample(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 400, 100))
	img, err := Decode(encodePNG(t, src), Options{MaxDimension: 100})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Width != 100 || img.Height != 25 {
		t.Fatalf("downsampled to %dx%d", img.Width, img.Height)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not an image"), Options{}); err == nil {
		t.Fatalf("expected error")
	}
}
