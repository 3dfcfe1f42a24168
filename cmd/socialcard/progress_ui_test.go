package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/John-Robertt/socialcard/internal/config"
	"github.com/John-Robertt/socialcard/internal/domain"
)

func noColor(t *testing.T) {
	t.Helper()
	old := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = old })
}

func TestFormatItemLine(t *testing.T) {
	noColor(t)

	got := formatItemLine(3, 120, 42, domain.ItemResult{Status: domain.StatusGenerated, Width: 1100, Height: 920}, 1200*time.Millisecond)
	if got != "[3/120] [42] OK 1100x920 1.2s" {
		t.Fatalf("generated 行不符合预期：%q", got)
	}

	got = formatItemLine(4, 120, 7, domain.ItemResult{
		Status:    domain.StatusFailed,
		ErrorCode: domain.ErrCodeDecodeFailed,
		ErrorMsg:  "decode 失败",
	}, 0)
	if got != "[4/120] [7] FAIL decode_failed: decode 失败 0.0s" {
		t.Fatalf("failed 行不符合预期：%q", got)
	}
}

func TestProgressUI_PrintsPhasesItemsAndWarnings(t *testing.T) {
	noColor(t)

	var buf bytes.Buffer
	p := newProgressUI(&buf)
	p.OnStart(config.EffectiveConfig{Path: "/photos", Format: domain.FormatPNG, DryRun: true})
	p.OnPhaseDone("scan", map[string]any{"photos": 2, "missing_source": 1, "multiple_sources": 0}, time.Second)
	p.OnPhaseDone("exec", map[string]any{"total_items": 1}, 0)
	p.OnItemDone(1, 1, 9, domain.ItemResult{
		Status:   domain.StatusPlanned,
		Warnings: []string{"找到多个 .tif（2 个），使用 a.tif"},
	}, 0)

	out := buf.String()
	for _, want := range []string{
		"socialcard run (dry-run",
		"path: /photos",
		"扫描: photos=2 missing_source=1 multiple_sources=0 (1.0s)",
		"[1/1] [9] PLAN 0.0s",
		"  ! 找到多个 .tif",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
	if p.tickerStarted {
		t.Fatalf("最后一条完成后应停止 keepalive")
	}
}

func TestEmitReport_NoTTYWritesSingleJSON(t *testing.T) {
	rr := domain.RunReport{Path: "/photos", Items: []domain.ItemResult{{ID: 1, Dir: "1", Status: domain.StatusGenerated}}}
	rr.Finalize()

	var stdout, stderr bytes.Buffer
	emitReport(&stdout, &stderr, false, rr)

	var got domain.RunReport
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("stdout 不是合法 JSON：%v\n%s", err, stdout.String())
	}
	if got.Summary.Generated != 1 {
		t.Fatalf("summary 不符合预期：%+v", got.Summary)
	}
	if !strings.Contains(stderr.String(), "完成：generated=1 planned=0 skipped=0 ineligible=0 failed=0") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr.String())
	}
}

func TestEmitReport_TTYListsFailures(t *testing.T) {
	rr := domain.RunReport{Items: []domain.ItemResult{
		{ID: 5, Dir: "5", Status: domain.StatusFailed, ErrorCode: domain.ErrCodeMetadataInvalid, ErrorMsg: "bad json"},
		{Status: domain.StatusFailed, ErrorCode: domain.ErrCodeTemplateInvalid, ErrorMsg: "bad template"},
	}}
	rr.Finalize()

	var stdout, stderr bytes.Buffer
	emitReport(&stdout, &stderr, true, rr)
	if !strings.HasPrefix(stdout.String(), "完成：") {
		t.Fatalf("TTY 下 stdout 应为摘要：%q", stdout.String())
	}
	for _, want := range []string{"[5] metadata_invalid: bad json", "<run> template_invalid: bad template"} {
		if !strings.Contains(stderr.String(), want) {
			t.Fatalf("stderr 缺少 %q：%q", want, stderr.String())
		}
	}
}

func TestTruncate_RuneSafe(t *testing.T) {
	if got := truncate("照片处理失败原因很长", 6); got != "照片处..." {
		t.Fatalf("truncate 不符合预期：%q", got)
	}
}
