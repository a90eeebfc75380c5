package detections

import (
	"fmt"
	"image"
	"image/color"

	"github.com/objinspect/inspection-service/models"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var labelFont *truetype.Font

func init() {
	var err error
	labelFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// boxPalette cycles per class index so the same class always draws in the
// same color.
var boxPalette = []color.RGBA{
	{R: 0xE6, G: 0x3C, B: 0x3C, A: 0xFF},
	{R: 0x3C, G: 0xB4, B: 0x4B, A: 0xFF},
	{R: 0x3C, G: 0x64, B: 0xE6, A: 0xFF},
	{R: 0xE6, G: 0xB4, B: 0x28, A: 0xFF},
	{R: 0xB4, G: 0x3C, B: 0xE6, A: 0xFF},
	{R: 0x28, G: 0xC8, B: 0xC8, A: 0xFF},
}

const (
	boxLineWidth   = 3.0
	labelTextSize  = 16.0
	labelPadding   = 4.0
	labelTextInset = 2.0
)

// Render draws labeled bounding boxes for dets onto a copy of src and
// returns the annotated image. src is not modified; an empty dets returns an
// unmarked copy.
func Render(src image.Image, dets []models.Detection) image.Image {
	dc := gg.NewContextForImage(src)
	face := truetype.NewFace(labelFont, &truetype.Options{Size: labelTextSize})
	dc.SetFontFace(face)

	for _, d := range dets {
		c := boxPalette[d.Class%len(boxPalette)]

		dc.SetColor(c)
		dc.SetLineWidth(boxLineWidth)
		dc.DrawRectangle(d.XMin, d.YMin, d.XMax-d.XMin, d.YMax-d.YMin)
		dc.Stroke()

		label := fmt.Sprintf("%s %.2f", d.Name, d.Confidence)
		tw, th := dc.MeasureString(label)

		// Label background sits above the box, or inside it at the top edge.
		ly := d.YMin - th - 2*labelPadding
		if ly < 0 {
			ly = d.YMin
		}
		dc.SetColor(c)
		dc.DrawRectangle(d.XMin, ly, tw+2*labelPadding, th+2*labelPadding)
		dc.Fill()

		dc.SetColor(color.White)
		dc.DrawString(label, d.XMin+labelPadding, ly+th+labelTextInset)
	}

	return dc.Image()
}
