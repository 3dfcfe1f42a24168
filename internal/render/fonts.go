package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

type fontKey struct {
	family string // 小写
	bold   bool
}

type faceKey struct {
	font *opentype.Font
	size float64
}

// FontBook 持有从字体目录加载的字体，以及内置的 Go 字体作为兜底。
type FontBook struct {
	fonts    map[fontKey]*opentype.Font
	fallback map[bool]*opentype.Font
	skipped  []string

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

// LoadFonts 加载 dir 下的 .ttf / .otf。
//
// 目录不存在或不可读都不是错误：只使用内置字体（不可读时原因记录在 Skipped() 中）。
// 无法解析的字体文件会被跳过，同样记录在 Skipped() 中。
func LoadFonts(dir string) (*FontBook, error) {
	b := &FontBook{
		fonts: map[fontKey]*opentype.Font{},
		faces: map[faceKey]font.Face{},
	}
	if err := b.loadFallback(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(dir) == "" {
		return b, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		// 字体目录不可读时只使用内置字体。
		if !errors.Is(err, fs.ErrNotExist) {
			b.skipped = append(b.skipped, fmt.Sprintf("%s：读取字体目录失败：%v", dir, err))
		}
		return b, nil
	}

	var buf sfnt.Buffer
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		p := filepath.Join(dir, e.Name())
		f, err := parseFontFile(p)
		if err != nil {
			b.skipped = append(b.skipped, fmt.Sprintf("%s：%v", e.Name(), err))
			continue
		}
		family, err := f.Name(&buf, sfnt.NameIDFamily)
		if err != nil || strings.TrimSpace(family) == "" {
			b.skipped = append(b.skipped, fmt.Sprintf("%s：缺少字体族名", e.Name()))
			continue
		}
		sub, _ := f.Name(&buf, sfnt.NameIDSubfamily)
		k := fontKey{family: strings.ToLower(strings.TrimSpace(family)), bold: strings.Contains(strings.ToLower(sub), "bold")}
		// 同族同粗细的多个文件：按目录顺序保留第一个。
		if _, exists := b.fonts[k]; !exists {
			b.fonts[k] = f
		}
	}
	return b, nil
}

func parseFontFile(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return opentype.Parse(data)
}

func (b *FontBook) loadFallback() error {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return fmt.Errorf("加载内置字体失败：%w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return fmt.Errorf("加载内置字体失败：%w", err)
	}
	b.fallback = map[bool]*opentype.Font{false: regular, true: bold}
	return nil
}

// Families 返回已加载的字体族（小写、去重、排序）。
func (b *FontBook) Families() []string {
	seen := map[string]bool{}
	var out []string
	for k := range b.fonts {
		if !seen[k.family] {
			seen[k.family] = true
			out = append(out, k.family)
		}
	}
	sort.Strings(out)
	return out
}

// Skipped 返回加载时被跳过的字体文件（含原因）。
func (b *FontBook) Skipped() []string {
	return append([]string(nil), b.skipped...)
}

// Face 按 font-family 列表（逗号分隔，按顺序匹配）选择字体并返回指定字号的 Face。
// 找不到时回退到同族另一种粗细，最后回退到内置字体。
func (b *FontBook) Face(families string, bold bool, size float64) (font.Face, error) {
	f := b.lookup(families, bold)

	b.mu.Lock()
	defer b.mu.Unlock()

	k := faceKey{font: f, size: size}
	if face, ok := b.faces[k]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	b.faces[k] = face
	return face, nil
}

func (b *FontBook) lookup(families string, bold bool) *opentype.Font {
	for _, name := range strings.Split(families, ",") {
		name = strings.ToLower(strings.Trim(strings.TrimSpace(name), `"'`))
		if name == "" {
			continue
		}
		if f, ok := b.fonts[fontKey{family: name, bold: bold}]; ok {
			return f
		}
		if f, ok := b.fonts[fontKey{family: name, bold: !bold}]; ok {
			return f
		}
	}
	return b.fallback[bold]
}
