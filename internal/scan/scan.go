package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/John-Robertt/socialcard/internal/domain"
)

const (
	// SourceExt 是高分辨率源图的扩展名（大小写敏感）。
	SourceExt = ".tif"
	// FallbackName 是缺少 .tif 时直接在照片目录下查找的兜底文件。
	FallbackName = "photo.jpg"
)

type Options struct {
	// ExcludeDirs 是 root 下需要忽略的一级目录名（例如临时导入目录）。
	ExcludeDirs []string
	// SortCandidates=true 时多个 .tif 按路径排序后再取第一个。
	SortCandidates bool
}

// ScanCatalog 扫描 root 下的编号目录，并为每个目录选出源图。
//
// 规则（硬约束）：
// - 只看 root 的一级子目录，目录名必须能解析为无符号十进制整数
// - 在子目录树内递归查找扩展名恰好为 .tif 的文件；找到多个时告警并取第一个
// - 没有 .tif：兜底 <dir>/photo.jpg；仍没有则丢弃该目录（返回 missing_source issue）
// - 输出按 id 升序（同 id 按目录名），仅为了日志可复现
//
// 注意：扫描阶段只做 ReadDir/Stat，不读文件内容。
func ScanCatalog(root string, opts Options) ([]domain.CatalogEntry, []domain.ScanIssue, error) {
	root = filepath.Clean(root)
	dirents, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, err
	}

	excluded := buildExcluded(opts.ExcludeDirs)

	entries := make([]domain.CatalogEntry, 0, len(dirents))
	var issues []domain.ScanIssue
	for _, d := range dirents {
		name := d.Name()
		if _, skip := excluded[name]; skip {
			continue
		}
		id, ok := ParseID(name)
		if !ok {
			continue
		}
		dir := filepath.Join(root, name)
		if !isDir(dir) {
			continue
		}

		candidates := findSources(dir)
		if opts.SortCandidates {
			sort.Strings(candidates)
		}

		switch {
		case len(candidates) == 1:
			entries = append(entries, domain.CatalogEntry{ID: id, Dir: dir, SourcePath: candidates[0]})
		case len(candidates) > 1:
			issues = append(issues, domain.ScanIssue{
				ID:         id,
				Dir:        dir,
				Kind:       domain.IssueMultipleSources,
				Candidates: candidates,
			})
			order := "选择顺序依赖文件系统，不保证确定"
			if opts.SortCandidates {
				order = "已按路径排序取第一个"
			}
			entries = append(entries, domain.CatalogEntry{
				ID:         id,
				Dir:        dir,
				SourcePath: candidates[0],
				Warnings: []string{fmt.Sprintf("找到多个 %s（%d 个），使用 %s；%s",
					SourceExt, len(candidates), relOrAbs(dir, candidates[0]), order)},
			})
		default:
			fallback := filepath.Join(dir, FallbackName)
			if isFile(fallback) {
				entries = append(entries, domain.CatalogEntry{
					ID:         id,
					Dir:        dir,
					SourcePath: fallback,
					Warnings:   []string{fmt.Sprintf("缺少 %s，使用 %s", SourceExt, FallbackName)},
				})
				continue
			}
			issues = append(issues, domain.ScanIssue{ID: id, Dir: dir, Kind: domain.IssueMissingSource})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ID != entries[j].ID {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].Dir < entries[j].Dir
	})
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].ID < issues[j].ID })
	return entries, issues, nil
}

// ParseID 把目录名解析为照片编号："42"、"007" 合法；"abc"、"42x"、"+1"、"" 不合法。
func ParseID(name string) (domain.PhotoID, bool) {
	if name == "" {
		return 0, false
	}
	// base=10：拒绝符号位与 0x 前缀。
	n, err := strconv.ParseUint(name, 10, 64)
	if err != nil {
		return 0, false
	}
	return domain.PhotoID(n), true
}

// findSources 递归收集 dir 下的 .tif 文件（按 WalkDir 的遍历顺序）。
// 遍历错误不中断：读不了的子目录直接跳过。
func findSources(dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if d != nil && d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(d.Name()) != SourceExt {
			return nil
		}
		// 符号链接：以目标类型为准（指向目录的链接不算源图）。
		if d.Type()&fs.ModeSymlink != 0 && !isFile(path) {
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		out = append(out, path)
		return nil
	})
	return out
}

func buildExcluded(names []string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.Trim(strings.TrimSpace(n), `/\`)
		if n == "" {
			continue
		}
		m[n] = struct{}{}
	}
	return m
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

func relOrAbs(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}
