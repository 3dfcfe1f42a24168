package layout

const (
	DefaultBorder     = 100 // 足够避开 Mastodon 等客户端叠在图片上的按钮
	DefaultLineHeight = 24
	DefaultMinWidth   = 600
)

// Params 是排版的固定参数（来自配置，运行期不变）。
type Params struct {
	Border     int
	LineHeight int
	MinWidth   int
}

// Layout 是由照片尺寸推导出的画布几何。纯值，不缓存。
type Layout struct {
	PhotoWidth     int
	PhotoHeight    int
	PhotoTranslate int // PhotoWidth/2，模板用它把照片水平居中
	Border         int

	ImageWidth  int // 画布宽
	ImageHeight int // 画布高

	Line1Y int
	Line2Y int
	Line3Y int

	Line1XR int // 右对齐锚点
	Line2X  int // 居中锚点
}

// Compute 使用默认最小宽度计算排版。
//
// Compute(800, 600, 100, 24) => ImageWidth=1000 ImageHeight=920 Line1Y=748 Line3Y=820
func Compute(w, h, border, lineHeight int) Layout {
	return Params{Border: border, LineHeight: lineHeight, MinWidth: DefaultMinWidth}.Compute(w, h)
}

// Compute 是纯函数：相同输入必然得到相同输出。
//
// - 画布宽 = max(w, MinWidth) + 2*Border
// - 画布高 = h + 2*Border + 5*LineHeight（照片下方预留三行文字）
// - 三行基线分别位于照片底边下方 2 / 3.5 / 5 倍行高（再加 Border）
func (p Params) Compute(w, h int) Layout {
	width := max(w, p.MinWidth) + 2*p.Border
	base := h + p.Border
	return Layout{
		PhotoWidth:     w,
		PhotoHeight:    h,
		PhotoTranslate: w / 2,
		Border:         p.Border,

		ImageWidth:  width,
		ImageHeight: h + 2*p.Border + 5*p.LineHeight,

		Line1Y: base + 2*p.LineHeight,
		// 3.5 倍行高向下取整。
		Line2Y: base + p.LineHeight*7/2,
		Line3Y: base + 5*p.LineHeight,

		Line1XR: width - p.Border,
		Line2X:  width / 2,
	}
}
