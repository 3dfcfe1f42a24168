package render

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document 是解析后的渲染树：只保留模板实际用到的 SVG 子集。
type Document struct {
	Width    int
	Height   int
	Children []Node
}

// Node 是渲染树节点（Group / Rect / Image / Text）。
type Node interface{ isNode() }

type Group struct {
	DX, DY   float64
	Children []Node
}

type Rect struct {
	X, Y, W, H float64
	Fill       color.Color // nil 表示不绘制
	Opacity    float64
}

type Image struct {
	Href       string
	X, Y, W, H float64
}

type Text struct {
	X, Y    float64
	Family  string
	Size    float64
	Bold    bool
	Fill    color.Color
	Anchor  string // start / middle / end
	Content string
}

func (Group) isNode() {}
func (Rect) isNode()  {}
func (Image) isNode() {}
func (Text) isNode()  {}

const defaultFontSize = 16

// Parse 把 SVG 标记解析成渲染树。
//
// 标记交给 HTML5 解析器（svg 作为外来内容），因此 xlink:href 与 href 等价，
// viewBox 等属性名大小写也会被规范化。未知元素连同子树一起忽略。
func Parse(markup []byte) (*Document, error) {
	node, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return nil, err
	}
	doc := goquery.NewDocumentFromNode(node)
	root := doc.Find("svg").First()
	if root.Length() == 0 {
		return nil, errors.New("找不到 <svg> 根元素")
	}

	w, err := lengthAttr(root, "width", 0)
	if err != nil {
		return nil, err
	}
	h, err := lengthAttr(root, "height", 0)
	if err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("画布尺寸无效：%vx%v", w, h)
	}

	children, err := parseChildren(root)
	if err != nil {
		return nil, err
	}
	return &Document{Width: int(w + 0.5), Height: int(h + 0.5), Children: children}, nil
}

func parseChildren(parent *goquery.Selection) ([]Node, error) {
	var (
		out      []Node
		firstErr error
	)
	parent.Children().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n, err := parseNode(s)
		if err != nil {
			firstErr = err
			return false
		}
		if n != nil {
			out = append(out, n)
		}
		return true
	})
	return out, firstErr
}

func parseNode(s *goquery.Selection) (Node, error) {
	switch goquery.NodeName(s) {
	case "g":
		dx, dy, err := parseTransform(s.AttrOr("transform", ""))
		if err != nil {
			return nil, err
		}
		children, err := parseChildren(s)
		if err != nil {
			return nil, err
		}
		return Group{DX: dx, DY: dy, Children: children}, nil

	case "rect":
		var r Rect
		var err error
		if r.X, r.Y, r.W, r.H, err = box(s); err != nil {
			return nil, err
		}
		if r.Fill, err = parseColor(s.AttrOr("fill", "")); err != nil {
			return nil, err
		}
		if r.Opacity, err = lengthAttr(s, "opacity", 1); err != nil {
			return nil, err
		}
		return r, nil

	case "image":
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return nil, errors.New("<image> 缺少 href")
		}
		img := Image{Href: strings.TrimPrefix(strings.TrimSpace(href), "file://")}
		var err error
		if img.X, img.Y, img.W, img.H, err = box(s); err != nil {
			return nil, err
		}
		return img, nil

	case "text":
		t := Text{
			Family:  s.AttrOr("font-family", ""),
			Bold:    isBold(s.AttrOr("font-weight", "")),
			Anchor:  s.AttrOr("text-anchor", "start"),
			Content: strings.Join(strings.Fields(s.Text()), " "),
		}
		switch t.Anchor {
		case "start", "middle", "end":
		default:
			return nil, fmt.Errorf("不支持的 text-anchor：%q", t.Anchor)
		}
		var err error
		if t.X, err = lengthAttr(s, "x", 0); err != nil {
			return nil, err
		}
		if t.Y, err = lengthAttr(s, "y", 0); err != nil {
			return nil, err
		}
		if t.Size, err = lengthAttr(s, "font-size", defaultFontSize); err != nil {
			return nil, err
		}
		if t.Fill, err = parseColor(s.AttrOr("fill", "")); err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, nil
}

func box(s *goquery.Selection) (x, y, w, h float64, err error) {
	if x, err = lengthAttr(s, "x", 0); err != nil {
		return
	}
	if y, err = lengthAttr(s, "y", 0); err != nil {
		return
	}
	if w, err = lengthAttr(s, "width", 0); err != nil {
		return
	}
	h, err = lengthAttr(s, "height", 0)
	return
}

func lengthAttr(s *goquery.Selection, name string, def float64) (float64, error) {
	v, ok := s.Attr(name)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	f, err := parseLength(v)
	if err != nil {
		return 0, fmt.Errorf("<%s> 属性 %s 无效：%w", goquery.NodeName(s), name, err)
	}
	return f, nil
}

func parseLength(v string) (float64, error) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	return strconv.ParseFloat(v, 64)
}

// parseTransform 只支持 translate(x [y])；分隔符可以是空格或逗号。
func parseTransform(v string) (dx, dy float64, err error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, 0, nil
	}
	args, ok := strings.CutPrefix(v, "translate(")
	if !ok || !strings.HasSuffix(args, ")") {
		return 0, 0, fmt.Errorf("不支持的 transform：%q", v)
	}
	parts := strings.FieldsFunc(strings.TrimSuffix(args, ")"), func(r rune) bool {
		return r == ' ' || r == ','
	})
	if len(parts) < 1 || len(parts) > 2 {
		return 0, 0, fmt.Errorf("不支持的 transform：%q", v)
	}
	if dx, err = parseLength(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("transform 参数无效：%q", v)
	}
	if len(parts) == 2 {
		if dy, err = parseLength(parts[1]); err != nil {
			return 0, 0, fmt.Errorf("transform 参数无效：%q", v)
		}
	}
	return dx, dy, nil
}

func isBold(weight string) bool {
	switch strings.TrimSpace(weight) {
	case "bold", "bolder", "600", "700", "800", "900":
		return true
	}
	return false
}
