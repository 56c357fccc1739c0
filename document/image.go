package document

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ErrEmptyPage is returned for a zero-length page buffer.
var ErrEmptyPage = errors.New("empty page")

type rasterPage struct {
	Data          []byte
	Type          string
	Width, Height int
}

// pngInterlaceOffset is the position of the interlace byte in a PNG file:
// 8 byte signature, 8 byte chunk header, 12 bytes into IHDR.
const pngInterlaceOffset = 28

// normalize returns the page in a format the PDF writer can embed as-is.
// JPEG and GIF pass through, as does 8-bit non-interlaced PNG; everything
// else (BMP, TIFF, 16-bit or interlaced PNG) is re-encoded as 8-bit PNG.
func normalize(data []byte) (*rasterPage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPage
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	pg := &rasterPage{Data: data, Width: cfg.Width, Height: cfg.Height}
	switch format {
	case "jpeg":
		pg.Type = "JPG"
		return pg, nil
	case "gif":
		pg.Type = "GIF"
		return pg, nil
	case "png":
		if !deepColor(cfg.ColorModel) && len(data) > pngInterlaceOffset && data[pngInterlaceOffset] == 0 {
			pg.Type = "PNG"
			return pg, nil
		}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	var buf bytes.Buffer
	if err = png.Encode(&buf, rgba); err != nil {
		return nil, err
	}
	pg.Data = buf.Bytes()
	pg.Type = "PNG"
	return pg, nil
}

func deepColor(m color.Model) bool {
	switch m {
	case color.Gray16Model, color.RGBA64Model, color.NRGBA64Model:
		return true
	}
	return false
}
