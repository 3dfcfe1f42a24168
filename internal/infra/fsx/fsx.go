package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// 通过可替换的函数指针，让测试能稳定模拟 rename 失败。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径类型冲突（例如 _to_social.png 是一个目录）。
// 上层映射为 error_code=target_conflict。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// TempPrefix 返回 name 的临时文件前缀（前缀带 '.'，避免污染照片目录视图）。
func TempPrefix(name string) string {
	return "." + name + ".tmp-"
}

// IsTempFor 判断 entry 名是否是 name 的原子写入残留。
func IsTempFor(entry, name string) bool {
	return strings.HasPrefix(entry, TempPrefix(name))
}

// WriteFileAtomicNoOverwrite 在 dir 下原子写入 name（临时文件 + rename）。
//
// 产物按契约“永不覆盖”：目标已存在返回 os.ErrExist，目标是目录等返回 PathTypeConflictError。
// 临时文件与目标同目录，保证 rename 的原子性：中断只会留下 .tmp- 残留，不会留下截断的产物。
func WriteFileAtomicNoOverwrite(dir, name string, data []byte) error {
	dst := filepath.Join(filepath.Clean(dir), name)
	if err := checkTarget(dst); err != nil {
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		return os.ErrExist
	}
	return writeFileAtomic(dir, name, data, 0o644)
}

// WriteFileAtomicReplace 写入并覆盖同名文件（用于替换已损坏的产物、report 文件）。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	if err := checkTarget(filepath.Join(filepath.Clean(dir), name)); err != nil {
		return err
	}
	return writeFileAtomic(dir, name, data, 0o644)
}

// RemoveStaleTemps 删除 dir 下 name 的原子写入残留，返回删除的文件名。
// 删除失败不算错误（下一次写入会生成新的随机后缀）。
func RemoveStaleTemps(dir, name string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var removed []string
	for _, e := range entries {
		if e.IsDir() || !IsTempFor(e.Name(), name) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
			removed = append(removed, e.Name())
		}
	}
	return removed
}

func checkTarget(dst string) error {
	fi, err := os.Lstat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if fi.IsDir() {
		return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
	}
	if !fi.Mode().IsRegular() {
		return &PathTypeConflictError{Path: dst, Want: "regular file", Got: fi.Mode().Type().String()}
	}
	return nil
}

func writeFileAtomic(dir, name string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, TempPrefix(name)+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := renameFunc(tmpName, dst); err != nil {
		return err
	}

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(dir)

	// rename 成功后 defer 里的 Remove 只会得到 ENOENT。
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
