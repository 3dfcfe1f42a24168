package workdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/socialcard/internal/domain"
)

// Dir 是一次 run 独占的临时目录，用来放缩放后的中间栅格。
//
// 约束：
// - 整个 run 只复用一个固定文件名（tmp.png / tmp.jpg），因此只能顺序处理
// - dry-run：不创建目录（ReadOnly=true），任何写入路径请求都会被拒绝
type Dir struct {
	Root     string
	ReadOnly bool
}

var ErrReadOnly = errors.New("workdir: read-only")

// New 创建临时目录；base 为空时使用系统临时目录。
func New(base string, readOnly bool) (*Dir, error) {
	if readOnly {
		return &Dir{ReadOnly: true}, nil
	}
	root, err := os.MkdirTemp(strings.TrimSpace(base), "socialcard-")
	if err != nil {
		return nil, fmt.Errorf("创建临时目录失败：%w", err)
	}
	return &Dir{Root: root}, nil
}

// RasterPath 返回中间栅格路径。同一格式每次返回同一路径（覆盖写）。
func (d *Dir) RasterPath(f domain.Format) (string, error) {
	if d.ReadOnly {
		return "", ErrReadOnly
	}
	return filepath.Join(d.Root, "tmp"+f.Ext()), nil
}

// Close 删除临时目录及其内容。可重复调用。
func (d *Dir) Close() error {
	if d.ReadOnly || d.Root == "" {
		return nil
	}
	err := os.RemoveAll(d.Root)
	d.Root = ""
	return err
}
