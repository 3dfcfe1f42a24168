package meta

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Valid(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scan.tif")
	writeFile(t, filepath.Join(dir, FileName), `{
		"title": {"en": "Lake", "fi": "Järvi", "fr": "Lac"},
		"dateTaken": "2024-05-01T10:00:00Z",
		"position": [60.1, 24.9]
	}`)

	md, err := Load(src)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if md.Titles.En != "Lake" || md.Titles.Fi != "Järvi" || md.Titles.Fr != "Lac" {
		t.Fatalf("标题不符合预期：%+v", md.Titles)
	}
	if md.DateTaken != "2024-05-01T10:00:00Z" {
		t.Fatalf("dateTaken 不符合预期：%q", md.DateTaken)
	}
}

func TestLoad_IncompleteIsNotLoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), `{"title":{"en":"Lake","fi":"","fr":"Lac"},"dateTaken":"2024-05-01T10:00:00Z"}`)

	_, err := Load(filepath.Join(dir, "photo.jpg"))
	if !IsIncomplete(err) {
		t.Fatalf("期望 IncompleteError，实际：%T %v", err, err)
	}
	var le *LoadError
	if errors.As(err, &le) {
		t.Fatalf("不完整不应归类为 LoadError")
	}
	var ie *IncompleteError
	_ = errors.As(err, &ie)
	if len(ie.Missing) != 1 || ie.Missing[0] != "fi" {
		t.Fatalf("缺失语言不符合预期：%v", ie.Missing)
	}
}

func TestLoad_LoadErrors(t *testing.T) {
	cases := map[string]string{
		"malformed":        `{"title":`,
		"missing_title":    `{"dateTaken":"2024-05-01T10:00:00Z"}`,
		"missing_fr":       `{"title":{"en":"a","fi":"b"},"dateTaken":"x"}`,
		"missing_date":     `{"title":{"en":"a","fi":"b","fr":"c"}}`,
		"wrong_type":       `{"title":{"en":1,"fi":"b","fr":"c"},"dateTaken":"x"}`,
		"title_not_object": `{"title":"Lake","dateTaken":"x"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, FileName), body)
			_, err := Load(filepath.Join(dir, "a.tif"))
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("期望 LoadError，实际：%T %v", err, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "a.tif"))
	var le *LoadError
	if !errors.As(err, &le) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("期望包装 os.ErrNotExist 的 LoadError，实际：%T %v", err, err)
	}
}

func TestPathFor_UsesSourceDir(t *testing.T) {
	got := PathFor(filepath.Join("root", "42", "raw", "scan.tif"))
	want := filepath.Join("root", "42", "raw", FileName)
	if got != want {
		t.Fatalf("PathFor=%q，期望 %q", got, want)
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
