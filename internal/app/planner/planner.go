package planner

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/John-Robertt/socialcard/internal/domain"
	"github.com/John-Robertt/socialcard/internal/infra/fsx"
	"github.com/John-Robertt/socialcard/internal/infra/imgx"
)

// ReadOutState 读取照片目录内产物的现状。
//
// 默认只做 ReadDir，不读文件内容；verify=true 时会完整解码一次已存在的产物，
// 用来识别被中断写入截断的文件。目录不存在返回空状态且不报错。
func ReadOutState(dir string, format domain.Format, verify bool) (domain.OutState, error) {
	name := format.ArtifactName()
	st := domain.OutState{
		Dir:          dir,
		ArtifactPath: filepath.Join(dir, name),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return domain.OutState{}, err
	}

	for _, e := range entries {
		switch {
		case e.Name() == name:
			// 同名目录不算“已生成”：写入阶段会报 target_conflict。
			if e.Type().IsRegular() {
				st.HasArtifact = true
			}
		case fsx.IsTempFor(e.Name(), name) && !e.IsDir():
			st.StaleTemps = append(st.StaleTemps, filepath.Join(dir, e.Name()))
		}
	}

	if st.HasArtifact && verify {
		if err := imgx.Verify(st.ArtifactPath); err != nil {
			st.ArtifactCorrupt = true
		}
	}
	return st, nil
}

// PlanEntry 基于 CatalogEntry + OutState 生成确定性的执行计划（不做任何写入）。
func PlanEntry(e domain.CatalogEntry, st domain.OutState) domain.EntryPlan {
	return domain.EntryPlan{
		Entry:      e,
		OutPath:    st.ArtifactPath,
		NeedRender: !st.HasArtifact || st.ArtifactCorrupt,
		Replace:    st.HasArtifact && st.ArtifactCorrupt,
		StaleTemps: st.StaleTemps,
	}
}

// SortPlans 让上层在需要时可显式保证稳定顺序（与扫描顺序一致：编号，再目录）。
func SortPlans(plans []domain.EntryPlan) {
	sort.SliceStable(plans, func(i, j int) bool {
		a, b := plans[i].Entry, plans[j].Entry
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Dir < b.Dir
	})
}
