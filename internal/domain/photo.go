package domain

// Locales 是标题必须齐全的语言集合（顺序即渲染顺序）。
var Locales = []string{"en", "fi", "fr"}

type Titles struct {
	En string
	Fi string
	Fr string
}

// Get 按语言取标题；未知语言返回空串。
func (t Titles) Get(locale string) string {
	switch locale {
	case "en":
		return t.En
	case "fi":
		return t.Fi
	case "fr":
		return t.Fr
	default:
		return ""
	}
}

// Missing 返回标题为空串的语言，按 Locales 顺序。
func (t Titles) Missing() []string {
	var out []string
	for _, l := range Locales {
		if t.Get(l) == "" {
			out = append(out, l)
		}
	}
	return out
}

// PhotoMetadata 是 i.json 的只读视图（只保留生成需要的字段）。
type PhotoMetadata struct {
	Titles    Titles
	DateTaken string // ISO-8601，例如 2024-05-01T10:00:00Z
}
