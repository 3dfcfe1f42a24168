package planner

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/socialcard/internal/domain"
)

func TestReadOutState_MissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "42")
	st, err := ReadOutState(dir, domain.FormatPNG, false)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if st.HasArtifact || st.ArtifactPath != filepath.Join(dir, "_to_social.png") {
		t.Fatalf("状态不符合预期：%+v", st)
	}
}

func TestReadOutState_ArtifactAndStaleTemps(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "_to_social.png"), []byte("whatever"))
	write(t, filepath.Join(dir, "._to_social.png.tmp-123"), nil)
	write(t, filepath.Join(dir, "._to_social.jpg.tmp-9"), nil)

	st, err := ReadOutState(dir, domain.FormatPNG, false)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !st.HasArtifact || st.ArtifactCorrupt {
		t.Fatalf("未开启校验时只看存在性：%+v", st)
	}
	if len(st.StaleTemps) != 1 || filepath.Base(st.StaleTemps[0]) != "._to_social.png.tmp-123" {
		t.Fatalf("残留识别不符合预期：%v", st.StaleTemps)
	}

	// 另一种格式的产物互不影响。
	stj, err := ReadOutState(dir, domain.FormatJPEG, false)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if stj.HasArtifact {
		t.Fatalf("jpeg 产物不存在：%+v", stj)
	}
}

func TestReadOutState_VerifyDetectsCorrupt(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "_to_social.png"), []byte("truncated"))

	st, err := ReadOutState(dir, domain.FormatPNG, true)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !st.ArtifactCorrupt {
		t.Fatalf("期望识别为损坏：%+v", st)
	}
	p := PlanEntry(domain.CatalogEntry{ID: 1, Dir: dir}, st)
	if !p.NeedRender || !p.Replace {
		t.Fatalf("损坏产物应重新渲染并覆盖：%+v", p)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode 失败：%v", err)
	}
	write(t, filepath.Join(dir, "_to_social.png"), buf.Bytes())
	st, _ = ReadOutState(dir, domain.FormatPNG, true)
	if st.ArtifactCorrupt {
		t.Fatalf("完整产物不应被判为损坏")
	}
}

func TestReadOutState_ArtifactDirIsNotGenerated(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "_to_social.png"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	st, err := ReadOutState(dir, domain.FormatPNG, false)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if st.HasArtifact {
		t.Fatalf("同名目录不应视为已生成：%+v", st)
	}
}

func TestPlanEntry_SkipWhenArtifactExists(t *testing.T) {
	e := domain.CatalogEntry{ID: 7, Dir: "/p/7"}
	p := PlanEntry(e, domain.OutState{ArtifactPath: "/p/7/_to_social.png", HasArtifact: true})
	if p.NeedRender || p.Replace {
		t.Fatalf("产物已存在时不应渲染：%+v", p)
	}
	p = PlanEntry(e, domain.OutState{ArtifactPath: "/p/7/_to_social.png"})
	if !p.NeedRender || p.Replace || p.OutPath != "/p/7/_to_social.png" {
		t.Fatalf("计划不符合预期：%+v", p)
	}
}

func TestSortPlans(t *testing.T) {
	plans := []domain.EntryPlan{
		{Entry: domain.CatalogEntry{ID: 10, Dir: "/p/10"}},
		{Entry: domain.CatalogEntry{ID: 7, Dir: "/p/7"}},
		{Entry: domain.CatalogEntry{ID: 7, Dir: "/p/007"}},
	}
	SortPlans(plans)
	got := []string{plans[0].Entry.Dir, plans[1].Entry.Dir, plans[2].Entry.Dir}
	want := []string{"/p/007", "/p/7", "/p/10"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("排序不符合预期：%v", got)
		}
	}
}

func write(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
}
