package render

import "strings"

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Sanitize 转义会破坏标记结构的字符（"Cats & Dogs" => "Cats &amp; Dogs"）。
func Sanitize(s string) string {
	return textEscaper.Replace(s)
}

// sanitizeAttr 额外转义双引号：值会落在 "..." 属性里。
func sanitizeAttr(s string) string {
	return strings.ReplaceAll(Sanitize(s), `"`, "&#34;")
}

// DateOnly 取 dateTaken 中 'T' 之前的部分；没有 'T' 时原样返回。
//
// DateOnly("2024-05-01T10:00:00") => "2024-05-01"
func DateOnly(dateTaken string) string {
	date, _, _ := strings.Cut(dateTaken, "T")
	return date
}
