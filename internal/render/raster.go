package render

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

// Rasterize 把渲染树画到一张透明画布上（尺寸取自 <svg width height>）。
func Rasterize(doc *Document, fonts *FontBook) (image.Image, error) {
	dc := gg.NewContext(doc.Width, doc.Height)
	r := rasterizer{dc: dc, fonts: fonts}
	if err := r.drawAll(doc.Children, 0, 0); err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

type rasterizer struct {
	dc    *gg.Context
	fonts *FontBook
}

func (r rasterizer) drawAll(nodes []Node, ox, oy float64) error {
	for _, n := range nodes {
		var err error
		switch n := n.(type) {
		case Group:
			err = r.drawAll(n.Children, ox+n.DX, oy+n.DY)
		case Rect:
			r.drawRect(n, ox, oy)
		case Image:
			err = r.drawImage(n, ox, oy)
		case Text:
			err = r.drawText(n, ox, oy)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r rasterizer) drawRect(n Rect, ox, oy float64) {
	if n.Fill == nil || n.Opacity <= 0 {
		return
	}
	rect := pixelRect(n.X+ox, n.Y+oy, n.W, n.H)
	r.dc.SetColor(withOpacity(n.Fill, n.Opacity))
	r.dc.DrawRectangle(float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()))
	r.dc.Fill()
}

func (r rasterizer) drawImage(n Image, ox, oy float64) error {
	src, err := imaging.Open(n.Href)
	if err != nil {
		return fmt.Errorf("读取 <image> %q 失败：%w", n.Href, err)
	}
	sb := src.Bounds()
	w, h := n.W, n.H
	if w <= 0 || h <= 0 {
		w, h = float64(sb.Dx()), float64(sb.Dy())
	}
	dr := pixelRect(n.X+ox, n.Y+oy, w, h)
	if dr.Dx() != sb.Dx() || dr.Dy() != sb.Dy() {
		scaled := image.NewNRGBA(image.Rect(0, 0, dr.Dx(), dr.Dy()))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, sb, draw.Src, nil)
		src = scaled
	}
	r.dc.DrawImage(src, dr.Min.X, dr.Min.Y)
	return nil
}

func (r rasterizer) drawText(n Text, ox, oy float64) error {
	if n.Content == "" || n.Fill == nil {
		return nil
	}
	face, err := r.fonts.Face(n.Family, n.Bold, n.Size)
	if err != nil {
		return fmt.Errorf("加载字体失败：%w", err)
	}
	var ax float64
	switch n.Anchor {
	case "middle":
		ax = 0.5
	case "end":
		ax = 1
	}
	r.dc.SetFontFace(face)
	r.dc.SetColor(n.Fill)
	// y 是基线位置（ay=0）。
	r.dc.DrawStringAnchored(n.Content, n.X+ox, n.Y+oy, ax, 0)
	return nil
}

func pixelRect(x, y, w, h float64) image.Rectangle {
	x0, y0 := int(math.Round(x)), int(math.Round(y))
	return image.Rect(x0, y0, x0+int(math.Round(w)), y0+int(math.Round(h)))
}
