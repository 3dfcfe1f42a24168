package domain

import (
	"fmt"
	"strings"
)

// Format 是中间栅格与最终产物共用的编码格式。
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat 接受 png / jpeg / jpg（大小写不敏感）。
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("format 只能是 png 或 jpeg，实际是 %q", s)
	}
}

// Ext 返回文件扩展名（含 '.'）。
func (f Format) Ext() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// ArtifactName 是产物在照片目录内的固定文件名。
func (f Format) ArtifactName() string {
	return "_to_social" + f.Ext()
}

// NormalizedImage 是缩放后的中间栅格。
//
// 约束：RasterPath 位于本次 run 的临时目录，下一张照片会覆盖它。
type NormalizedImage struct {
	RasterPath string
	Width      int
	Height     int
}
