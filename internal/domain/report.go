package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusGenerated  = "generated"
	StatusPlanned    = "planned"
	StatusSkipped    = "skipped"
	StatusIneligible = "ineligible"
	StatusFailed     = "failed"
)

const (
	ErrCodeMissingSource      = "missing_source"
	ErrCodeMetadataIncomplete = "metadata_incomplete"
	ErrCodeMetadataInvalid    = "metadata_invalid"
	ErrCodeDecodeFailed       = "decode_failed"
	ErrCodeEncodeFailed       = "encode_failed"
	ErrCodeRenderFailed       = "render_failed"
	ErrCodeTargetConflict     = "target_conflict"
	ErrCodeIOFailed           = "io_failed"
	ErrCodePanic              = "panic"
	ErrCodeCanceled           = "canceled"
	ErrCodeConfigNotFound     = "config_not_found"
	ErrCodeConfigInvalid      = "config_invalid"
	ErrCodeConfigMissingPath  = "config_missing_path"
	ErrCodeTemplateInvalid    = "template_invalid"
)

// RunReport 是对外稳定输出（--report 文件 / stdout JSON）的结构。
type RunReport struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Generated  int `json:"generated"`
	Planned    int `json:"planned"`
	Skipped    int `json:"skipped"`
	Ineligible int `json:"ineligible"`
	Failed     int `json:"failed"`
}

type ItemResult struct {
	ID     PhotoID `json:"id"`
	Dir    string  `json:"dir"`
	Source string  `json:"source"`
	Output string  `json:"output"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Warnings []string `json:"warnings"`

	// Width/Height 是最终产物的像素尺寸（仅 generated 时非零）。
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) items 稳定排序：按 id 升序，同 id 按 dir；dir=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a, b := r.Items[i], r.Items[j]
		if a.Dir == "" || b.Dir == "" {
			return a.Dir != "" && b.Dir == ""
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Dir < b.Dir
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusGenerated:
			s.Generated++
		case StatusPlanned:
			s.Planned++
		case StatusSkipped:
			s.Skipped++
		case StatusIneligible:
			s.Ineligible++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// RunLevelFailure 返回 run 级失败（dir 为空的合成条目，例如模板无效、根目录不可读）。
func (r RunReport) RunLevelFailure() (ItemResult, bool) {
	for _, it := range r.Items {
		if it.Dir == "" && it.Status == StatusFailed {
			return it, true
		}
	}
	return ItemResult{}, false
}

// MarshalJSON 保证 nil slice 输出为 []，避免下游区分 null 与空数组。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	a := Alias(r)
	a.Items = append(make([]ItemResult, 0, len(r.Items)), r.Items...)
	for i := range a.Items {
		if a.Items[i].Warnings == nil {
			a.Items[i].Warnings = []string{}
		}
	}
	return json.Marshal(a)
}
