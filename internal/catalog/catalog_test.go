package catalog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/airi/internal/domain"
	"github.com/John-Robertt/airi/internal/libpath"
)

func newStore(base string) *Store {
	return &Store{
		FilePath: "./videos.json",
		Resolver: libpath.Resolver{BaseDir: base},
		Log:      zerolog.Nop(),
	}
}

func TestLoad_AbsentFileWritesDefault(t *testing.T) {
	base := t.TempDir()
	s := newStore(base)

	cat, err := s.Load()
	if err != nil {
		t.Fatalf("Load 失败：%v", err)
	}
	if cat.Version != domain.CurrentVersion {
		t.Fatalf("期望版本 %d，实际 %d", domain.CurrentVersion, cat.Version)
	}
	if len(cat.Targets) != 1 || cat.Targets[0].Root != "./Videos" {
		t.Fatalf("期望默认 target ./Videos，实际 %+v", cat.Targets)
	}
	if !reflect.DeepEqual(cat.Targets[0].IncludePatterns, DefaultIncludePatterns) {
		t.Fatalf("期望默认 include 模式，实际 %+v", cat.Targets[0].IncludePatterns)
	}

	// 默认目录必须已经落盘。
	if _, err := os.Stat(filepath.Join(base, "videos.json")); err != nil {
		t.Fatalf("默认目录未持久化：%v", err)
	}
}

func TestLoad_CorruptFileSelfHeals(t *testing.T) {
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "videos.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("写入损坏文件失败：%v", err)
	}

	s := newStore(base)
	cat, err := s.Load()
	if err != nil {
		t.Fatalf("Load 失败：%v", err)
	}
	if len(cat.Targets) != 1 || len(cat.Videos) != 0 {
		t.Fatalf("损坏目录应重置为默认：%+v", cat)
	}

	// 重置后的文件必须可以再次解析。
	raw, err := os.ReadFile(filepath.Join(base, "videos.json"))
	if err != nil {
		t.Fatalf("读取重置文件失败：%v", err)
	}
	var parsed domain.CatalogData
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("重置文件不可解析：%v", err)
	}
}

func TestLoad_DoesNotPruneMissingFiles(t *testing.T) {
	base := t.TempDir()
	seed := domain.CatalogData{
		Version: 1,
		Targets: []domain.TargetFolder{{Root: "./Videos"}},
		Videos: []domain.VideoEntry{{
			Path: "./Videos/gone.mp4",
			Meta: &domain.VideoMeta{Title: "Gone"},
		}},
	}
	raw, _ := json.Marshal(seed)
	if err := os.WriteFile(filepath.Join(base, "videos.json"), raw, 0o644); err != nil {
		t.Fatalf("写种子失败：%v", err)
	}

	cat, err := newStore(base).Load()
	if err != nil {
		t.Fatalf("Load 失败：%v", err)
	}
	if len(cat.Videos) != 1 {
		t.Fatalf("Load 不应裁剪缺失文件的条目：%+v", cat.Videos)
	}
}

func TestNormalize_RepairsEntries(t *testing.T) {
	mtime := time.Date(2024, 2, 3, 4, 5, 6, 0, time.FixedZone("X", 8*3600))
	cat := Normalize(&domain.CatalogData{
		Version: 0,
		Targets: []domain.TargetFolder{{Root: "  Videos\\Sub  ", IncludePatterns: []string{" *.mp4 ", ""}}},
		Videos: []domain.VideoEntry{
			{Path: "", Meta: &domain.VideoMeta{Title: "drop me"}},
			{Path: "./Videos/a.mp4", Meta: nil},
			{
				Path: "Videos\\b.mp4",
				Meta: &domain.VideoMeta{
					Title:  "  ",
					Actors: []string{" A ", "a", "B", ""},
					Tags:   []string{"x", "X"},
				},
				SizeBytes:       -5,
				LastModifiedUtc: mtime,
			},
		},
	})

	if cat.Version != domain.CurrentVersion {
		t.Fatalf("期望版本钳为 %d，实际 %d", domain.CurrentVersion, cat.Version)
	}
	if cat.Targets[0].Root != "./Videos/Sub" {
		t.Fatalf("期望根规范化为 ./Videos/Sub，实际 %q", cat.Targets[0].Root)
	}
	if !reflect.DeepEqual(cat.Targets[0].IncludePatterns, []string{"*.mp4"}) {
		t.Fatalf("include 模式应去空白：%+v", cat.Targets[0].IncludePatterns)
	}

	if len(cat.Videos) != 1 {
		t.Fatalf("残缺条目应剔除，期望剩 1 条，实际 %d", len(cat.Videos))
	}
	v := cat.Videos[0]
	if v.Path != "./Videos/b.mp4" {
		t.Fatalf("期望路径 ./Videos/b.mp4，实际 %q", v.Path)
	}
	if v.Meta.Title != domain.DefaultTitle {
		t.Fatalf("空标题应兜底为 %q，实际 %q", domain.DefaultTitle, v.Meta.Title)
	}
	if !reflect.DeepEqual(v.Meta.Actors, []string{"A", "B"}) {
		t.Fatalf("演员列表应去重保序：%+v", v.Meta.Actors)
	}
	if !reflect.DeepEqual(v.Meta.Tags, []string{"x"}) {
		t.Fatalf("标签应大小写不敏感去重：%+v", v.Meta.Tags)
	}
	if v.SizeBytes != 0 {
		t.Fatalf("负大小应归零，实际 %d", v.SizeBytes)
	}
	if v.LastModifiedUtc.Location() != time.UTC {
		t.Fatalf("修改时间应转为 UTC：%v", v.LastModifiedUtc)
	}
	if !v.CreatedUtc.Equal(v.LastModifiedUtc) {
		t.Fatalf("零值创建时间应取修改时间：%v", v.CreatedUtc)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	base := t.TempDir()
	s := newStore(base)

	date := domain.NewDateOnly(2024, 3, 15)
	orig := Normalize(&domain.CatalogData{
		Targets: []domain.TargetFolder{{Root: "./Videos", IncludePatterns: []string{"*.mp4"}}},
		Videos: []domain.VideoEntry{{
			Path: "./Videos/a.mp4",
			Meta: &domain.VideoMeta{
				Title:     "A",
				Date:      &date,
				Actors:    []string{"X"},
				Thumbnail: "./cache/a.jpg",
				Tags:      []string{"tag"},
			},
			SizeBytes:       42,
			LastModifiedUtc: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			CreatedUtc:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
	})
	if err := s.Save(orig); err != nil {
		t.Fatalf("Save 失败：%v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load 失败：%v", err)
	}
	if !reflect.DeepEqual(got, orig) {
		t.Fatalf("往返不一致：\n期望 %+v\n实际 %+v", orig, got)
	}
}

func TestSaveLoad_ByteIdempotentAndNoNullLists(t *testing.T) {
	base := t.TempDir()
	s := newStore(base)
	file := filepath.Join(base, "videos.json")

	// 种子刻意缺所有列表字段，解析后对应切片为 nil。
	seed := `{
	  "Version": 1,
	  "Targets": [{"Root": "./Videos"}],
	  "Videos": [{"Path": "./Videos/a.mp4", "Meta": {"Title": "A"}}]
	}`
	if err := os.WriteFile(file, []byte(seed), 0o644); err != nil {
		t.Fatalf("写种子失败：%v", err)
	}

	cat, err := s.Load()
	if err != nil {
		t.Fatalf("Load 失败：%v", err)
	}
	if err := s.Save(cat); err != nil {
		t.Fatalf("Save 失败：%v", err)
	}
	first, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("读取目录失败：%v", err)
	}

	// 列表字段必须序列化为 []，文件里不允许出现 null。
	if bytes.Contains(first, []byte("null")) {
		t.Fatalf("持久化目录含 null：\n%s", first)
	}

	// 加载→保存必须字节级幂等。
	again, err := s.Load()
	if err != nil {
		t.Fatalf("二次 Load 失败：%v", err)
	}
	if err := s.Save(again); err != nil {
		t.Fatalf("二次 Save 失败：%v", err)
	}
	second, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("二次读取目录失败：%v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("加载→保存不幂等：\n第一次 %s\n第二次 %s", first, second)
	}
}
