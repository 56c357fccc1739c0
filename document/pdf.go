package document

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// PDF encodes pages as a PDF, one image per page, scaled to fit inside the
// margins and centered horizontally.
type PDF struct {
	// Size is the page size name understood by fpdf. Defaults to A4.
	Size string
	// Margin in points. Defaults to 36.
	Margin float64
}

var _ Encoder = PDF{}

func (e PDF) NewDocument() (Document, error) {
	size := e.Size
	if size == "" {
		size = "A4"
	}
	margin := e.Margin
	if margin == 0 {
		margin = 36
	}

	f := fpdf.New("P", "pt", size, "")
	f.SetMargins(margin, margin, margin)
	f.SetAutoPageBreak(false, 0)
	if err := f.Error(); err != nil {
		return nil, err
	}
	return &pdfDocument{f: f, margin: margin}, nil
}

type pdfDocument struct {
	f      *fpdf.Fpdf
	margin float64
}

func (d *pdfDocument) AppendPage(data []byte) error {
	pg, err := normalize(data)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("page%d", d.f.PageCount()+1)
	opt := fpdf.ImageOptions{ImageType: pg.Type}
	d.f.RegisterImageOptionsReader(name, opt, bytes.NewReader(pg.Data))
	if err = d.f.Error(); err != nil {
		return err
	}

	d.f.AddPage()
	pw, ph := d.f.GetPageSize()
	w, h := fit(float64(pg.Width), float64(pg.Height), pw-2*d.margin, ph-2*d.margin)
	d.f.ImageOptions(name, (pw-w)/2, d.margin, w, h, false, opt, 0, "")
	return d.f.Error()
}

func (d *pdfDocument) Finalize() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.f.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fit scales w x h to the largest size that fits inside maxW x maxH while
// keeping the aspect ratio.
func fit(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	s := maxW / w
	if hs := maxH / h; hs < s {
		s = hs
	}
	return w * s, h * s
}
