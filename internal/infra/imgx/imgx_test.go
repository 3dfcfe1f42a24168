package imgx

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"github.com/John-Robertt/socialcard/internal/domain"
)

func TestNormalize_TIFF_FitsBoxPreservesAspect(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scan.tif")
	writeTIFF(t, src, 1800, 1200)

	n := Normalizer{BoxSize: 900, Format: domain.FormatPNG}
	got, err := n.Normalize(src, filepath.Join(dir, "tmp.png"))
	if err != nil {
		t.Fatalf("Normalize 失败：%v", err)
	}
	if got.Width != 900 || got.Height != 600 {
		t.Fatalf("尺寸不符合预期：%dx%d", got.Width, got.Height)
	}

	f, err := os.Open(got.RasterPath)
	if err != nil {
		t.Fatalf("打开中间栅格失败：%v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("中间栅格应为 PNG：%v", err)
	}
	if cfg.Width != 900 || cfg.Height != 600 {
		t.Fatalf("中间栅格尺寸不符合预期：%dx%d", cfg.Width, cfg.Height)
	}
}

func TestNormalize_AspectRatioProperty(t *testing.T) {
	dir := t.TempDir()
	n := Normalizer{BoxSize: 90, Format: domain.FormatJPEG}
	for _, dim := range [][2]int{{400, 300}, {300, 400}, {1000, 300}, {91, 90}, {250, 250}} {
		src := filepath.Join(dir, "p.png")
		writePNG(t, src, dim[0], dim[1])

		got, err := n.Normalize(src, filepath.Join(dir, "tmp.jpg"))
		if err != nil {
			t.Fatalf("Normalize(%v) 失败：%v", dim, err)
		}
		if max(got.Width, got.Height) != 90 {
			t.Fatalf("%v：长边应等于 box，实际 %dx%d", dim, got.Width, got.Height)
		}
		// 短边按比例换算后取整：与精确值相差不超过 1px。
		long, short := max(dim[0], dim[1]), min(dim[0], dim[1])
		exact := 90 * float64(short) / float64(long)
		gotShort := min(got.Width, got.Height)
		if math.Abs(float64(gotShort)-exact) > 1 {
			t.Fatalf("%v：宽高比偏差过大 got=%dx%d exact_short=%f", dim, got.Width, got.Height, exact)
		}
		if (dim[0] >= dim[1]) != (got.Width >= got.Height) {
			t.Fatalf("%v：方向不应改变 got=%dx%d", dim, got.Width, got.Height)
		}
	}
}

func TestNormalize_NoUpscale(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	writeJPEG(t, src, 320, 200)

	got, err := Normalizer{BoxSize: 900, Format: domain.FormatPNG}.Normalize(src, filepath.Join(dir, "tmp.png"))
	if err != nil {
		t.Fatalf("Normalize 失败：%v", err)
	}
	if got.Width != 320 || got.Height != 200 {
		t.Fatalf("小图不应被放大：%dx%d", got.Width, got.Height)
	}
}

func TestNormalize_DecodeFailed(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.tif")
	if err := os.WriteFile(src, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}

	_, err := Normalizer{}.Normalize(src, filepath.Join(dir, "tmp.png"))
	if err == nil {
		t.Fatalf("期望解码失败")
	}
	if Stage(err) != "decode" {
		t.Fatalf("期望 stage=decode，实际 %q（%v）", Stage(err), err)
	}
}

func TestNormalize_EncodeFailed(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "p.png")
	writePNG(t, src, 10, 10)

	// 目标目录不存在：写出失败归为 encode 阶段。
	_, err := Normalizer{}.Normalize(src, filepath.Join(dir, "missing", "tmp.png"))
	if Stage(err) != "encode" {
		t.Fatalf("期望 stage=encode，实际 %q（%v）", Stage(err), err)
	}
}

func TestEncodeArtifact_JPEGAndVerify(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	b, err := EncodeArtifact(img, domain.FormatJPEG, 90)
	if err != nil {
		t.Fatalf("EncodeArtifact 失败：%v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(b)); err != nil {
		t.Fatalf("产物应为 JPEG：%v", err)
	}

	dir := t.TempDir()
	good := filepath.Join(dir, "_to_social.jpg")
	if err := os.WriteFile(good, b, 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if err := Verify(good); err != nil {
		t.Fatalf("完整产物不应校验失败：%v", err)
	}

	truncated := filepath.Join(dir, "_to_social.png")
	pb, err := EncodeArtifact(img, domain.FormatPNG, 0)
	if err != nil {
		t.Fatalf("EncodeArtifact png 失败：%v", err)
	}
	if err := os.WriteFile(truncated, pb[:len(pb)/2], 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if err := Verify(truncated); err == nil {
		t.Fatalf("截断产物应校验失败")
	}
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	return img
}

func writeTIFF(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, gradient(w, h), nil); err != nil {
		t.Fatalf("encode tiff 失败：%v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("写入 tiff 失败：%v", err)
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(w, h)); err != nil {
		t.Fatalf("encode png 失败：%v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("写入 png 失败：%v", err)
	}
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg 失败：%v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("写入 jpeg 失败：%v", err)
	}
}
