package export

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"

	"github.com/jung-kurt/gofpdf"
)

// A4 portrait in millimetres.
const (
	PageWidthMM  = 210.0
	PageHeightMM = 297.0
)

// ImageHeightMM is the bitmap height once scaled to the page width.
func ImageHeightMM(pxWidth, pxHeight int) float64 {
	if pxWidth <= 0 {
		return 0
	}
	return float64(pxHeight) * PageWidthMM / float64(pxWidth)
}

// PageCount reports how many pages a bitmap of the given height fills.
func PageCount(imgHeight float64) int {
	pages := 1
	for left := imgHeight - PageHeightMM; left > 0; left -= PageHeightMM {
		pages++
	}
	return pages
}

// Paginate slices a tall PNG across A4 pages. Every page holds the whole
// bitmap shifted up by one page height per page; the last page keeps its
// trailing blank space.
func Paginate(png []byte) ([]byte, int, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(png))
	if err != nil {
		return nil, 0, fmt.Errorf("decode bitmap: %w", err)
	}
	if format != "png" {
		return nil, 0, fmt.Errorf("unexpected bitmap format %q", format)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, 0, fmt.Errorf("empty bitmap %dx%d", cfg.Width, cfg.Height)
	}

	imgHeight := ImageHeightMM(cfg.Width, cfg.Height)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("surface", opts, bytes.NewReader(png))
	if err := pdf.Error(); err != nil {
		return nil, 0, fmt.Errorf("register bitmap: %w", err)
	}

	pages := 0
	place := func(y float64) {
		pdf.AddPage()
		pdf.ImageOptions("surface", 0, y, PageWidthMM, imgHeight, false, opts, 0, "")
		pages++
	}

	heightLeft := imgHeight
	position := 0.0
	place(position)
	heightLeft -= PageHeightMM
	for heightLeft > 0 {
		position = heightLeft - imgHeight
		place(position)
		heightLeft -= PageHeightMM
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, 0, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), pages, nil
}
