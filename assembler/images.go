package assembler

import (
	"github.com/wudi/docpdf/images"
	"github.com/wudi/docpdf/ir/raw"
	"github.com/wudi/docpdf/observability"
	"github.com/wudi/docpdf/resources"
)

func (a *assembler) embedImages() error {
	for _, e := range a.cat.Images() {
		if !a.usedImages[e.ID] {
			a.log.Debug("image not drawn, skipping", observability.String("key", string(e.Key)))
			continue
		}
		if e.Embedded {
			return &InvariantError{Element: -1, Msg: "image " + e.ID.ResourceName() + " embedded twice", Err: resources.ErrAlreadyEmbedded}
		}
		ref := a.embedImage(e.Image)
		if err := a.cat.MarkImageEmbedded(e.ID, ref); err != nil {
			return &InvariantError{Element: -1, Msg: "mark image embedded", Err: err}
		}
	}
	return nil
}

// embedImage writes an image XObject. JPEG data keeps its DCT encoding;
// raw samples are compressed by the writer. Alpha becomes a gray soft mask.
func (a *assembler) embedImage(img *images.Image) raw.ObjectRef {
	dict := imageDict(img.Width, img.Height, img.ColorSpace)
	if img.Filter != "" {
		dict.Put("Filter", raw.NameLiteral(img.Filter))
	}
	if img.HasAlpha() {
		mask := a.doc.Add(raw.NewStream(imageDict(img.Width, img.Height, images.DeviceGray), img.Alpha))
		dict.Put("SMask", raw.RefTo(mask))
	}
	return a.doc.Add(raw.NewStream(dict, img.Samples))
}

func imageDict(w, h int, colorSpace string) *raw.DictObj {
	return raw.Dict().
		Put("Type", raw.NameLiteral("XObject")).
		Put("Subtype", raw.NameLiteral("Image")).
		Put("Width", raw.NumberInt(int64(w))).
		Put("Height", raw.NumberInt(int64(h))).
		Put("ColorSpace", raw.NameLiteral(colorSpace)).
		Put("BitsPerComponent", raw.NumberInt(8))
}
