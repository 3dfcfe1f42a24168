package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/socialcard/internal/domain"
	"github.com/John-Robertt/socialcard/internal/infra/imgx"
	"github.com/John-Robertt/socialcard/internal/layout"
)

const (
	// FileName 是配置文件名（位于扫描根目录或 cwd）。
	FileName = "socialcard.yaml"

	// ErrCodeNotFound 表示无参运行但 cwd 下没有 socialcard.yaml。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示无参运行但配置文件缺少 path 字段。
	ErrCodeMissingPath = "config_missing_path"
)

const (
	DefaultFormat  = domain.FormatPNG
	DefaultFontDir = "fonts"
)

// CLIArgs 只包含 CLI 暴露的入口（path/format/dry-run），并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --dry-run=false 必须能覆盖 dry_run: true。
type CLIArgs struct {
	Path string

	Format    string
	FormatSet bool

	DryRun    bool
	DryRunSet bool
}

// FileConfig 对应 socialcard.yaml 的解析结构。
//
// 可以为 0 的整数字段用指针区分“未配置”与“显式配置为 0”。
type FileConfig struct {
	Path           string   `yaml:"path"`
	Format         string   `yaml:"format"`
	DryRun         *bool    `yaml:"dry_run"`
	BoxSize        int      `yaml:"box_size"`
	Border         *int     `yaml:"border"`
	LineHeight     *int     `yaml:"line_height"`
	MinWidth       *int     `yaml:"min_width"`
	JPEGQuality    int      `yaml:"jpeg_quality"`
	FontDir        string   `yaml:"font_dir"`
	Template       string   `yaml:"template"`
	SortCandidates bool     `yaml:"sort_candidates"`
	VerifyExisting bool     `yaml:"verify_existing"`
	ExcludeDirs    []string `yaml:"exclude_dirs"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path string

	Format domain.Format
	DryRun bool

	BoxSize     int
	Layout      layout.Params
	JPEGQuality int

	// FontDir / TemplatePath 已相对配置所在目录解析为绝对路径；TemplatePath 为空表示使用内置模板。
	FontDir      string
	TemplatePath string

	SortCandidates bool
	VerifyExisting bool
	ExcludeDirs    []string

	// ConfigPath 是实际读取到的配置文件；没有读取任何文件时为空。
	ConfigPath string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 path：尝试读取 <path>/socialcard.yaml（可选）
// 2) CLI 未提供 path：必须读取 <cwd>/socialcard.yaml（必选），且其中必须包含 path
//
// 覆盖优先级（固定）：
// - path：CLI path > config path
// - format：CLI --format > config > 默认 png
// - dry_run：CLI --dry-run/--dry-run=false > config > 默认 false
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if strings.TrimSpace(cli.Path) != "" {
		// CLI 给了 path：配置文件可选，位置固定在 <path>/socialcard.yaml。
		absPath := absCleanFrom(cwdAbs, cli.Path)
		cfgPath := filepath.Join(absPath, FileName)

		fc, exists, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			cfgPath = ""
		}
		return merge(absPath, absPath, cli, fc, cfgPath)
	}

	// CLI 没给 path：必须读取 <cwd>/socialcard.yaml，且其中必须包含 path。
	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Path) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	return merge(absCleanFrom(cwdAbs, fc.Path), cwdAbs, cli, fc, cfgPath)
}

// merge 合并并校验。base 是相对路径（font_dir / template）的解析基准：配置文件所在目录。
func merge(absPath, base string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	// format：CLI > config > 默认
	format := DefaultFormat
	rawFormat := fc.Format
	if cli.FormatSet {
		rawFormat = cli.Format
	}
	if cli.FormatSet || strings.TrimSpace(rawFormat) != "" {
		f, err := domain.ParseFormat(rawFormat)
		if err != nil {
			return EffectiveConfig{}, invalid("%v", err)
		}
		format = f
	}

	// dry_run：CLI > config > 默认 false
	dryRun := false
	if cli.DryRunSet {
		dryRun = cli.DryRun
	} else if fc.DryRun != nil {
		dryRun = *fc.DryRun
	}

	boxSize := fc.BoxSize
	if boxSize == 0 {
		boxSize = imgx.DefaultBoxSize
	}
	if boxSize < 0 {
		return EffectiveConfig{}, invalid("box_size 必须为正数：%d", boxSize)
	}

	quality := fc.JPEGQuality
	if quality == 0 {
		quality = imgx.DefaultJPEGQuality
	}
	if quality < 1 || quality > 100 {
		return EffectiveConfig{}, invalid("jpeg_quality 必须在 [1, 100] 内：%d", quality)
	}

	params := layout.Params{
		Border:     intOr(fc.Border, layout.DefaultBorder),
		LineHeight: intOr(fc.LineHeight, layout.DefaultLineHeight),
		MinWidth:   intOr(fc.MinWidth, layout.DefaultMinWidth),
	}
	if params.Border < 0 || params.LineHeight < 0 || params.MinWidth < 0 {
		return EffectiveConfig{}, invalid("border/line_height/min_width 不能为负数：%+v", params)
	}

	fontDir := strings.TrimSpace(fc.FontDir)
	if fontDir == "" {
		fontDir = DefaultFontDir
	}

	tmpl := ""
	if strings.TrimSpace(fc.Template) != "" {
		tmpl = absCleanFrom(base, fc.Template)
	}

	exclude := make([]string, 0, len(fc.ExcludeDirs))
	for _, d := range fc.ExcludeDirs {
		d = strings.Trim(strings.TrimSpace(d), `/\`)
		if d == "" {
			continue
		}
		exclude = append(exclude, d)
	}

	return EffectiveConfig{
		Path:           absPath,
		Format:         format,
		DryRun:         dryRun,
		BoxSize:        boxSize,
		Layout:         params,
		JPEGQuality:    quality,
		FontDir:        absCleanFrom(base, fontDir),
		TemplatePath:   tmpl,
		SortCandidates: fc.SortCandidates,
		VerifyExisting: fc.VerifyExisting,
		ExcludeDirs:    exclude,
		ConfigPath:     cfgPath,
	}, nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
