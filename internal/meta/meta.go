package meta

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/socialcard/internal/domain"
)

// FileName 是与源图同目录的元数据文件名。
const FileName = "i.json"

// LoadError 表示 i.json 读取失败 / JSON 非法 / 字段类型不符。
// 上层映射为 error_code=metadata_invalid（单张失败，不影响其他照片）。
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("读取元数据 %q 失败：%v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IncompleteError 表示 JSON 合法但有语言标题为空串。
// 这不是错误，而是“不具备生成条件”：上层记为 ineligible。
type IncompleteError struct {
	Path    string
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("元数据 %q 标题不完整：缺少 %s", e.Path, strings.Join(e.Missing, ", "))
}

func IsIncomplete(err error) bool {
	var e *IncompleteError
	return errors.As(err, &e)
}

// 字段用指针区分“缺失”与“空串”：缺失属于 schema 不符（LoadError），空串属于不完整。
type title struct {
	En *string `json:"en"`
	Fi *string `json:"fi"`
	Fr *string `json:"fr"`
}

type photoInfo struct {
	Title     *title  `json:"title"`
	DateTaken *string `json:"dateTaken"`
}

// PathFor 返回源图对应的 i.json 路径。
func PathFor(sourcePath string) string {
	return filepath.Join(filepath.Dir(sourcePath), FileName)
}

// Load 读取并校验源图旁边的 i.json。
//
// 返回：
// - *LoadError：文件缺失、JSON 非法、缺少 title/title.en|fi|fr/dateTaken 或类型不符
// - *IncompleteError：任一语言标题为空串
//
// 额外字段一律忽略。
func Load(sourcePath string) (domain.PhotoMetadata, error) {
	path := PathFor(sourcePath)
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.PhotoMetadata{}, &LoadError{Path: path, Err: err}
	}
	return Parse(path, b)
}

// Parse 与 Load 相同，但直接接收文件内容（path 只用于错误信息）。
func Parse(path string, b []byte) (domain.PhotoMetadata, error) {
	var pi photoInfo
	if err := json.Unmarshal(b, &pi); err != nil {
		return domain.PhotoMetadata{}, &LoadError{Path: path, Err: err}
	}
	if pi.Title == nil {
		return domain.PhotoMetadata{}, &LoadError{Path: path, Err: errors.New("缺少字段 title")}
	}
	if pi.DateTaken == nil {
		return domain.PhotoMetadata{}, &LoadError{Path: path, Err: errors.New("缺少字段 dateTaken")}
	}
	for _, f := range []struct {
		name string
		v    *string
	}{{"title.en", pi.Title.En}, {"title.fi", pi.Title.Fi}, {"title.fr", pi.Title.Fr}} {
		if f.v == nil {
			return domain.PhotoMetadata{}, &LoadError{Path: path, Err: fmt.Errorf("缺少字段 %s", f.name)}
		}
	}

	md := domain.PhotoMetadata{
		Titles: domain.Titles{
			En: *pi.Title.En,
			Fi: *pi.Title.Fi,
			Fr: *pi.Title.Fr,
		},
		DateTaken: *pi.DateTaken,
	}
	if missing := md.Titles.Missing(); len(missing) > 0 {
		return domain.PhotoMetadata{}, &IncompleteError{Path: path, Missing: missing}
	}
	return md, nil
}
