package render

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"image"
	"os"
	"text/template"

	"github.com/John-Robertt/socialcard/internal/domain"
	"github.com/John-Robertt/socialcard/internal/layout"
)

//go:embed templates/photo_to_social.svg.tmpl
var defaultTemplateText string

// 内置模板在包初始化时编译一次。
var defaultTemplate = template.Must(newTemplate("photo_to_social.svg").Parse(defaultTemplateText))

func newTemplate(name string) *template.Template {
	return template.New(name).Option("missingkey=error")
}

// Error 标记渲染失败的阶段：template（编译）/ bind / parse / raster。
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("render %s 失败：%v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTemplateError 判断 err 是否为模板编译失败（run 级错误）。
func IsTemplateError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Stage == "template"
}

// Options 是渲染器的进程级配置。
type Options struct {
	// TemplatePath 非空时替换内置模板。
	TemplatePath string
	// FontDir 是字体目录；不存在时使用内置字体。
	FontDir string
}

// Renderer 持有编译好的模板与字体。构造一次，按顺序渲染所有照片。
type Renderer struct {
	tmpl  *template.Template
	fonts *FontBook
}

// Input 是单张照片的渲染输入。
type Input struct {
	Image  domain.NormalizedImage
	Layout layout.Layout
	Meta   domain.PhotoMetadata
}

// Fields 是模板可用的命名字段（文本已转义）。
type Fields struct {
	Photo string

	PhotoWidth     int
	PhotoHeight    int
	PhotoTranslate int
	Border         int
	ImageWidth     int
	ImageHeight    int
	Line1Y         int
	Line2Y         int
	Line3Y         int
	Line1XR        int
	Line2X         int

	Date   string
	TextEn string
	TextFi string
	TextFr string
}

func New(opts Options) (*Renderer, error) {
	tmpl := defaultTemplate
	if opts.TemplatePath != "" {
		b, err := os.ReadFile(opts.TemplatePath)
		if err != nil {
			return nil, &Error{Stage: "template", Err: err}
		}
		t, err := newTemplate("photo_to_social.svg").Parse(string(b))
		if err != nil {
			return nil, &Error{Stage: "template", Err: err}
		}
		tmpl = t
	}

	fonts, err := LoadFonts(opts.FontDir)
	if err != nil {
		return nil, &Error{Stage: "fonts", Err: err}
	}
	return &Renderer{tmpl: tmpl, fonts: fonts}, nil
}

// Fonts 暴露字体表（用于运行日志）。
func (r *Renderer) Fonts() *FontBook { return r.fonts }

// Bind 把布局、路径与元数据映射到模板字段。
func Bind(in Input) Fields {
	l := in.Layout
	return Fields{
		Photo: sanitizeAttr(in.Image.RasterPath),

		PhotoWidth:     l.PhotoWidth,
		PhotoHeight:    l.PhotoHeight,
		PhotoTranslate: l.PhotoTranslate,
		Border:         l.Border,
		ImageWidth:     l.ImageWidth,
		ImageHeight:    l.ImageHeight,
		Line1Y:         l.Line1Y,
		Line2Y:         l.Line2Y,
		Line3Y:         l.Line3Y,
		Line1XR:        l.Line1XR,
		Line2X:         l.Line2X,

		Date:   Sanitize(DateOnly(in.Meta.DateTaken)),
		TextEn: Sanitize(in.Meta.Titles.En),
		TextFi: Sanitize(in.Meta.Titles.Fi),
		TextFr: Sanitize(in.Meta.Titles.Fr),
	}
}

// Markup 执行模板，返回填充后的 SVG 标记。
func (r *Renderer) Markup(in Input) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, Bind(in)); err != nil {
		return nil, &Error{Stage: "bind", Err: err}
	}
	return buf.Bytes(), nil
}

// Render 生成最终画布：模板 -> 渲染树 -> 像素。任何失败都是单张照片级别的错误。
func (r *Renderer) Render(in Input) (image.Image, error) {
	markup, err := r.Markup(in)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(markup)
	if err != nil {
		return nil, &Error{Stage: "parse", Err: err}
	}
	img, err := Rasterize(doc, r.fonts)
	if err != nil {
		return nil, &Error{Stage: "raster", Err: err}
	}
	return img, nil
}
