package document

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalize(t *testing.T) {
	img := testImage(20, 10)

	data := encodePNG(t, img)
	pg, err := normalize(data)
	require.NoError(t, err)
	assert.Equal(t, "PNG", pg.Type)
	assert.Equal(t, data, pg.Data)
	assert.Equal(t, 20, pg.Width)
	assert.Equal(t, 10, pg.Height)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	pg, err = normalize(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "JPG", pg.Type)

	buf.Reset()
	require.NoError(t, bmp.Encode(&buf, img))
	pg, err = normalize(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "PNG", pg.Type)
	assert.Equal(t, []byte("\x89PNG"), pg.Data[:4])

	gray16 := image.NewGray16(image.Rect(0, 0, 4, 4))
	pg, err = normalize(encodePNG(t, gray16))
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(pg.Data))
	require.NoError(t, err)
	assert.NotEqual(t, color.Gray16Model, cfg.ColorModel)

	_, err = normalize(nil)
	assert.Equal(t, ErrEmptyPage, err)
	_, err = normalize([]byte("not an image"))
	assert.Error(t, err)
}

func TestFit(t *testing.T) {
	w, h := fit(100, 200, 50, 50)
	assert.Equal(t, 25.0, w)
	assert.Equal(t, 50.0, h)

	w, h = fit(10, 10, 100, 50)
	assert.Equal(t, 50.0, w)
	assert.Equal(t, 50.0, h)

	w, h = fit(0, 10, 100, 50)
	assert.Equal(t, 0.0, w)
	assert.Equal(t, 0.0, h)
}

func TestPDF(t *testing.T) {
	doc, err := PDF{}.NewDocument()
	require.NoError(t, err)

	img := testImage(30, 40)
	var jpg, bm bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, img, nil))
	require.NoError(t, bmp.Encode(&bm, img))

	require.NoError(t, doc.AppendPage(encodePNG(t, img)))
	require.NoError(t, doc.AppendPage(jpg.Bytes()))
	require.NoError(t, doc.AppendPage(bm.Bytes()))
	assert.Equal(t, 3, doc.(*pdfDocument).f.PageCount())

	data, err := doc.Finalize()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestPDF_BadPage(t *testing.T) {
	a := NewAggregator(PDF{}, nil)
	j := job("garbage")

	_, err := a.Assemble(j)
	var encErr *EncodeError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, 1, encErr.Page)
	assert.Equal(t, 1, j.Len())
}
