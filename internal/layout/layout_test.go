package layout

import "testing"

func TestCompute_FixedOffsets(t *testing.T) {
	l := Compute(800, 600, 100, 24)

	want := Layout{
		PhotoWidth:     800,
		PhotoHeight:    600,
		PhotoTranslate: 400,
		Border:         100,
		ImageWidth:     1000,
		ImageHeight:    920,
		Line1Y:         748,
		Line2Y:         784,
		Line3Y:         820,
		Line1XR:        900,
		Line2X:         500,
	}
	if l != want {
		t.Fatalf("排版不符合预期：\ngot =%+v\nwant=%+v", l, want)
	}
}

func TestCompute_MinWidth(t *testing.T) {
	// 竖图：宽度不足 600 时画布按最小宽度计算，照片本身尺寸不变。
	l := Compute(450, 900, 100, 24)
	if l.ImageWidth != 800 {
		t.Fatalf("期望画布宽 800，实际 %d", l.ImageWidth)
	}
	if l.PhotoWidth != 450 || l.PhotoTranslate != 225 {
		t.Fatalf("照片尺寸不应被最小宽度影响：%+v", l)
	}
	if l.Line2X != 400 || l.Line1XR != 700 {
		t.Fatalf("锚点不符合预期：%+v", l)
	}
}

func TestCompute_OddLineHeightFloors(t *testing.T) {
	l := Params{Border: 10, LineHeight: 25, MinWidth: 0}.Compute(100, 100)
	// 25*3.5 = 87.5 => 87
	if l.Line2Y != 100+10+87 {
		t.Fatalf("Line2Y 应向下取整：%d", l.Line2Y)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	p := Params{Border: DefaultBorder, LineHeight: DefaultLineHeight, MinWidth: DefaultMinWidth}
	for _, dim := range [][2]int{{900, 600}, {600, 900}, {1, 1}, {900, 900}} {
		a := p.Compute(dim[0], dim[1])
		b := p.Compute(dim[0], dim[1])
		if a != b {
			t.Fatalf("相同输入得到不同输出：%+v vs %+v", a, b)
		}
	}
}
