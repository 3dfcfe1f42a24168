package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/John-Robertt/socialcard/internal/app/planner"
	"github.com/John-Robertt/socialcard/internal/config"
	"github.com/John-Robertt/socialcard/internal/domain"
	"github.com/John-Robertt/socialcard/internal/infra/fsx"
	"github.com/John-Robertt/socialcard/internal/infra/imgx"
	"github.com/John-Robertt/socialcard/internal/infra/workdir"
	"github.com/John-Robertt/socialcard/internal/meta"
	"github.com/John-Robertt/socialcard/internal/render"
	"github.com/John-Robertt/socialcard/internal/scan"
)

// normalize 是缩放步骤的替换点（测试用它注入 panic / 失败）。
var normalize = func(n imgx.Normalizer, src, dst string) (domain.NormalizedImage, error) {
	return n.Normalize(src, dst)
}

// Execute 执行一次 run（dry-run/生成），并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为 item 级失败（单张失败不影响其他）。
func Execute(ctx context.Context, eff config.EffectiveConfig) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
//
// 照片严格顺序处理：整个 run 复用同一个中间栅格文件名。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Path:      eff.Path,
		Format:    string(eff.Format),
		DryRun:    eff.DryRun,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, 128),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	// 模板与字体在进程内只准备一次；失败属于 run 级错误。
	renderStarted := time.Now()
	renderer, err := render.New(render.Options{TemplatePath: eff.TemplatePath, FontDir: eff.FontDir})
	if err != nil {
		code := domain.ErrCodeIOFailed
		if render.IsTemplateError(err) {
			code = domain.ErrCodeTemplateInvalid
		}
		rr.Items = append(rr.Items, syntheticFailed(code, err.Error()))
		return finish()
	}
	if obs != nil {
		tmpl := "builtin"
		if eff.TemplatePath != "" {
			tmpl = eff.TemplatePath
		}
		obs.OnPhaseDone("render", map[string]any{
			"template":      tmpl,
			"fonts":         len(renderer.Fonts().Families()),
			"fonts_skipped": len(renderer.Fonts().Skipped()),
		}, time.Since(renderStarted))
	}

	wd, err := workdir.New("", eff.DryRun)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, err.Error()))
		return finish()
	}
	defer wd.Close()

	scanStarted := time.Now()
	entries, issues, err := scan.ScanCatalog(eff.Path, scan.Options{
		ExcludeDirs:    eff.ExcludeDirs,
		SortCandidates: eff.SortCandidates,
	})
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		return finish()
	}

	var missing, multiple int
	for _, is := range issues {
		switch is.Kind {
		case domain.IssueMissingSource:
			missing++
			rr.Items = append(rr.Items, missingSourceItem(eff.Path, is))
		case domain.IssueMultipleSources:
			// 对应条目已带 warning，这里只计数。
			multiple++
		}
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"photos":           len(entries),
			"missing_source":   missing,
			"multiple_sources": multiple,
		}, time.Since(scanStarted))
	}

	planStarted := time.Now()
	plans := make([]domain.EntryPlan, 0, len(entries))
	for _, e := range entries {
		st, err := planner.ReadOutState(e.Dir, eff.Format, eff.VerifyExisting)
		if err != nil {
			item := baseItem(eff, domain.EntryPlan{Entry: e})
			item.Status = domain.StatusFailed
			item.ErrorCode = domain.ErrCodeIOFailed
			item.ErrorMsg = fmt.Sprintf("读取照片目录失败：%v", err)
			rr.Items = append(rr.Items, item)
			continue
		}
		plans = append(plans, planner.PlanEntry(e, st))
	}
	planner.SortPlans(plans)

	if obs != nil {
		var needRender, replace int
		for _, p := range plans {
			if p.NeedRender {
				needRender++
			}
			if p.Replace {
				replace++
			}
		}
		obs.OnPhaseDone("plan", map[string]any{
			"items":       len(plans),
			"need_render": needRender,
			"replace":     replace,
		}, time.Since(planStarted))
		obs.OnPhaseDone("exec", map[string]any{
			"total_items": len(plans),
		}, 0)
	}

	for i, p := range plans {
		oneStarted := time.Now()
		var res domain.ItemResult
		if err := ctx.Err(); err != nil {
			res = baseItem(eff, p)
			res.Status = domain.StatusFailed
			res.ErrorCode = domain.ErrCodeCanceled
			res.ErrorMsg = fmt.Sprintf("运行已取消：%v", err)
		} else {
			res = execOne(eff, p, renderer, wd)
		}
		rr.Items = append(rr.Items, res)
		if obs != nil {
			obs.OnItemDone(i+1, len(plans), p.Entry.ID, res, time.Since(oneStarted))
		}
	}

	return finish()
}

// execOne 处理一张照片。任何失败（包括 panic）都收敛为 item 结果返回。
func execOne(eff config.EffectiveConfig, p domain.EntryPlan, r *render.Renderer, wd *workdir.Dir) (item domain.ItemResult) {
	item = baseItem(eff, p)

	defer func() {
		if v := recover(); v != nil {
			item.Status = domain.StatusFailed
			item.ErrorCode = domain.ErrCodePanic
			item.ErrorMsg = fmt.Sprintf("处理时发生 panic：%v", v)
			item.Width, item.Height = 0, 0
		}
	}()

	if !p.NeedRender {
		item.Status = domain.StatusSkipped
		return item
	}

	md, err := meta.Load(p.Entry.SourcePath)
	if err != nil {
		if meta.IsIncomplete(err) {
			item.Status = domain.StatusIneligible
			item.ErrorCode = domain.ErrCodeMetadataIncomplete
		} else {
			item.Status = domain.StatusFailed
			item.ErrorCode = domain.ErrCodeMetadataInvalid
		}
		item.ErrorMsg = err.Error()
		return item
	}

	// dry-run：到元数据校验为止；不缩放、不渲染、不写入。
	if eff.DryRun {
		item.Status = domain.StatusPlanned
		if p.Replace {
			item.Warnings = append(item.Warnings, "已有产物无法解码，将重新生成并覆盖")
		}
		return item
	}

	if len(p.StaleTemps) > 0 {
		if removed := fsx.RemoveStaleTemps(p.Entry.Dir, eff.Format.ArtifactName()); len(removed) > 0 {
			item.Warnings = append(item.Warnings, fmt.Sprintf("清理上次中断留下的临时文件 %d 个", len(removed)))
		}
	}

	rasterPath, err := wd.RasterPath(eff.Format)
	if err != nil {
		return fail(item, domain.ErrCodeIOFailed, err)
	}

	n := imgx.Normalizer{BoxSize: eff.BoxSize, Format: eff.Format, JPEGQuality: eff.JPEGQuality}
	img, err := normalize(n, p.Entry.SourcePath, rasterPath)
	if err != nil {
		if imgx.Stage(err) == "decode" {
			return fail(item, domain.ErrCodeDecodeFailed, err)
		}
		return fail(item, domain.ErrCodeEncodeFailed, err)
	}

	canvas, err := r.Render(render.Input{
		Image:  img,
		Layout: eff.Layout.Compute(img.Width, img.Height),
		Meta:   md,
	})
	if err != nil {
		return fail(item, domain.ErrCodeRenderFailed, err)
	}

	b, err := imgx.EncodeArtifact(canvas, eff.Format, eff.JPEGQuality)
	if err != nil {
		return fail(item, domain.ErrCodeEncodeFailed, err)
	}

	name := eff.Format.ArtifactName()
	if p.Replace {
		err = fsx.WriteFileAtomicReplace(p.Entry.Dir, name, b)
	} else {
		err = fsx.WriteFileAtomicNoOverwrite(p.Entry.Dir, name, b)
	}
	switch {
	case err == nil:
	case errors.Is(err, os.ErrExist):
		// 规划之后才出现的产物：同样遵守“永不覆盖”。
		item.Status = domain.StatusSkipped
		return item
	case fsx.IsPathTypeConflict(err):
		return fail(item, domain.ErrCodeTargetConflict, err)
	default:
		return fail(item, domain.ErrCodeIOFailed, fmt.Errorf("写入产物失败：%w", err))
	}

	bounds := canvas.Bounds()
	item.Status = domain.StatusGenerated
	item.Width, item.Height = bounds.Dx(), bounds.Dy()
	return item
}

func fail(item domain.ItemResult, code string, err error) domain.ItemResult {
	item.Status = domain.StatusFailed
	item.ErrorCode = code
	item.ErrorMsg = err.Error()
	return item
}

func baseItem(eff config.EffectiveConfig, p domain.EntryPlan) domain.ItemResult {
	e := p.Entry
	out := ""
	if e.Dir != "" {
		out = rel(eff.Path, filepath.Join(e.Dir, eff.Format.ArtifactName()))
	}
	return domain.ItemResult{
		ID:       e.ID,
		Dir:      rel(eff.Path, e.Dir),
		Source:   rel(eff.Path, e.SourcePath),
		Output:   out,
		Warnings: append([]string(nil), e.Warnings...),
	}
}

func missingSourceItem(root string, is domain.ScanIssue) domain.ItemResult {
	return domain.ItemResult{
		ID:        is.ID,
		Dir:       rel(root, is.Dir),
		Status:    domain.StatusIneligible,
		ErrorCode: domain.ErrCodeMissingSource,
		ErrorMsg:  fmt.Sprintf("目录内没有 %s 文件，也没有 %s", scan.SourceExt, scan.FallbackName),
	}
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}

// rel 尽量输出相对扫描根目录的路径；失败则输出原始路径（至少可追溯）。
func rel(root, p string) string {
	if p == "" {
		return ""
	}
	if r, err := filepath.Rel(root, p); err == nil {
		return r
	}
	return p
}
