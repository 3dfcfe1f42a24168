package domain

// PhotoID 是照片目录名解析出的十进制编号（"007" => 7）。
type PhotoID uint64

// CatalogEntry 是扫描阶段的产物：一个编号目录 + 选中的源图。
//
// 约束：只由 scan 包创建，之后只读。
type CatalogEntry struct {
	ID         PhotoID
	Dir        string // 照片目录（绝对路径）
	SourcePath string // 选中的源图（.tif 或 photo.jpg）

	// Warnings 记录“可容忍但需要提示”的情况（例如找到多个 .tif）。
	Warnings []string
}

const (
	IssueMultipleSources = "multiple_sources"
	IssueMissingSource   = "missing_source"
)

// ScanIssue 描述扫描阶段发现的问题。
//
// Kind=missing_source 的目录不会产出 CatalogEntry；
// Kind=multiple_sources 仍会产出（取第一个），这里只用于提示。
type ScanIssue struct {
	ID         PhotoID
	Dir        string
	Kind       string
	Candidates []string
}
