package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/John-Robertt/socialcard/internal/app/run"
	"github.com/John-Robertt/socialcard/internal/config"
	"github.com/John-Robertt/socialcard/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是一个“简洁版”的交互终端进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：大图缩放可能很慢，长时间无条目完成时定期输出一行
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total     int
	done      int
	generated int
	fail      int
	skip      int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "generate"
	if eff.DryRun {
		mode = "dry-run (不写入)"
	}

	fmt.Fprintf(p.w, "[%s] socialcard run (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  format: %s (产物 %s)\n", eff.Format, eff.Format.ArtifactName())
	fmt.Fprintf(p.w, "  box_size: %d  border: %d  line_height: %d  min_width: %d\n",
		eff.BoxSize, eff.Layout.Border, eff.Layout.LineHeight, eff.Layout.MinWidth,
	)
	if eff.Format == domain.FormatJPEG {
		fmt.Fprintf(p.w, "  jpeg_quality: %d\n", eff.JPEGQuality)
	}
	fmt.Fprintf(p.w, "  font_dir: %s\n", eff.FontDir)
	if eff.TemplatePath != "" {
		fmt.Fprintf(p.w, "  template: %s\n", eff.TemplatePath)
	}
	if len(eff.ExcludeDirs) > 0 {
		fmt.Fprintf(p.w, "  exclude_dirs: %s\n", strings.Join(eff.ExcludeDirs, ", "))
	}
	fmt.Fprintf(p.w, "  verify_existing: %s  sort_candidates: %s\n", onOff(eff.VerifyExisting), onOff(eff.SortCandidates))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "render":
		fmt.Fprintf(p.w, "模板: %v fonts=%d skipped_fonts=%d (%s)\n",
			fields["template"], intField(fields, "fonts"), intField(fields, "fonts_skipped"), formatShortDuration(dur),
		)
	case "scan":
		fmt.Fprintf(p.w, "扫描: photos=%d missing_source=%d multiple_sources=%d (%s)\n",
			intField(fields, "photos"), intField(fields, "missing_source"), intField(fields, "multiple_sources"), formatShortDuration(dur),
		)
	case "plan":
		fmt.Fprintf(p.w, "规划: items=%d need_render=%d replace=%d (%s)\n",
			intField(fields, "items"), intField(fields, "need_render"), intField(fields, "replace"), formatShortDuration(dur),
		)
	case "exec":
		p.total = intField(fields, "total_items")
		fmt.Fprintf(p.w, "执行: total_items=%d\n\n", p.total)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemDone(idx, total int, id domain.PhotoID, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total
	switch res.Status {
	case domain.StatusGenerated:
		p.generated++
	case domain.StatusFailed:
		p.fail++
	case domain.StatusSkipped, domain.StatusIneligible:
		p.skip++
	}

	fmt.Fprintln(p.w, formatItemLine(idx, total, id, res, dur))
	for _, w := range res.Warnings {
		fmt.Fprintf(p.w, "  %s %s\n", color.YellowString("!"), w)
	}

	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

// formatItemLine 生成每张照片的一行结果：[3/120] [42] OK 1.2s
func formatItemLine(idx, total int, id domain.PhotoID, res domain.ItemResult, dur time.Duration) string {
	head := fmt.Sprintf("[%d/%d] [%d] %s", idx, total, id, statusLabel(res.Status))
	switch res.Status {
	case domain.StatusFailed, domain.StatusIneligible:
		return fmt.Sprintf("%s %s: %s %s", head, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur))
	case domain.StatusSkipped:
		return fmt.Sprintf("%s (已存在 %s) %s", head, res.Output, formatShortDuration(dur))
	case domain.StatusGenerated:
		return fmt.Sprintf("%s %dx%d %s", head, res.Width, res.Height, formatShortDuration(dur))
	default:
		return fmt.Sprintf("%s %s", head, formatShortDuration(dur))
	}
}

func statusLabel(status string) string {
	switch status {
	case domain.StatusGenerated:
		return color.GreenString("OK")
	case domain.StatusPlanned:
		return color.CyanString("PLAN")
	case domain.StatusSkipped:
		return color.HiBlackString("SKIP")
	case domain.StatusIneligible:
		return color.YellowString("INELIGIBLE")
	case domain.StatusFailed:
		return color.RedString("FAIL")
	default:
		return strings.ToUpper(status)
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}
	stopCh := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d skip=%d elapsed=%s\n",
						p.done, p.total, p.generated, p.fail, p.skip, formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
