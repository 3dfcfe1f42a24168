package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// parseColor 解析 fill 属性。返回 nil 表示不绘制（none / transparent）。
// 空串沿用 SVG 的默认值：黑色。
func parseColor(s string) (color.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return color.Black, nil
	case "none", "transparent":
		return nil, nil
	}

	if hex, ok := strings.CutPrefix(s, "#"); ok {
		switch len(hex) {
		case 3:
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		case 6:
		default:
			return nil, fmt.Errorf("颜色格式无效：%q", s)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("颜色格式无效：%q", s)
		}
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
	}

	if c, ok := colornames.Map[s]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("未知颜色：%q", s)
}

// withOpacity 把 0..1 的不透明度乘到颜色的 alpha 上。
func withOpacity(c color.Color, opacity float64) color.Color {
	if opacity >= 1 {
		return c
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(float64(n.A)*max(opacity, 0) + 0.5)
	return n
}
