package imgx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/John-Robertt/socialcard/internal/domain"
)

const (
	// DefaultBoxSize 是缩放后长边的上限（像素）。
	DefaultBoxSize = 900
	// DefaultJPEGQuality 与早期 JPEG 版本的社交图保持一致。
	DefaultJPEGQuality = 94
)

// Error 标记失败阶段（decode / encode），上层据此映射 error_code。
type Error struct {
	Stage string
	Path  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %q 失败：%v", e.Stage, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Stage 从 error 中提取失败阶段；若不是 *Error 则返回空串。
func Stage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}

// Normalizer 把源图缩放到 BoxSize 见方的框内，并写出中间栅格。
type Normalizer struct {
	BoxSize     int
	Format      domain.Format
	JPEGQuality int
}

// Normalize 解码 src、等比缩放（不放大），并写到 dst（覆盖）。
//
// 约束：
// - 解码不设像素上限：源图可能是上亿像素的专业扫描件（TIFF 解码器由 imaging 注册）
// - JPEG 按 EXIF 方向自动旋转
// - 输出去掉 alpha（铺白底），与最终产物格式一致
func (n Normalizer) Normalize(src, dst string) (domain.NormalizedImage, error) {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return domain.NormalizedImage{}, &Error{Stage: "decode", Path: src, Err: err}
	}

	out := Thumbnail(img, n.boxSize())

	if err := imaging.Save(out, dst, n.saveOptions()...); err != nil {
		return domain.NormalizedImage{}, &Error{Stage: "encode", Path: dst, Err: err}
	}

	b := out.Bounds()
	return domain.NormalizedImage{RasterPath: dst, Width: b.Dx(), Height: b.Dy()}, nil
}

// Thumbnail 把 img 等比缩放到 box×box 以内；较小的图保持原尺寸。
func Thumbnail(img image.Image, box int) *image.NRGBA {
	fitted := imaging.Fit(img, box, box, imaging.Lanczos)
	b := fitted.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, fitted, image.Pt(0, 0), 1.0)
}

// EncodeArtifact 把最终画布编码为 PNG/JPEG 字节（写盘交给 fsx 原子写入）。
func EncodeArtifact(img image.Image, f domain.Format, jpegQuality int) ([]byte, error) {
	n := Normalizer{Format: f, JPEGQuality: jpegQuality}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, n.imagingFormat(), n.saveOptions()...); err != nil {
		return nil, &Error{Stage: "encode", Path: f.ArtifactName(), Err: err}
	}
	return buf.Bytes(), nil
}

// Verify 完整解码一次 path，用于识别被中断写入截断的产物。
func Verify(path string) error {
	if _, err := imaging.Open(path); err != nil {
		return &Error{Stage: "decode", Path: path, Err: err}
	}
	return nil
}

func (n Normalizer) boxSize() int {
	if n.BoxSize <= 0 {
		return DefaultBoxSize
	}
	return n.BoxSize
}

func (n Normalizer) imagingFormat() imaging.Format {
	if n.Format == domain.FormatJPEG {
		return imaging.JPEG
	}
	return imaging.PNG
}

func (n Normalizer) saveOptions() []imaging.EncodeOption {
	q := n.JPEGQuality
	if q <= 0 || q > 100 {
		q = DefaultJPEGQuality
	}
	return []imaging.EncodeOption{imaging.JPEGQuality(q)}
}
