package diff

import (
	"testing"
	"time"

	"github.com/John-Robertt/airi/internal/domain"
)

func entry(path string, size int64, mtime time.Time) domain.VideoEntry {
	return domain.VideoEntry{
		Path:            path,
		Meta:            &domain.VideoMeta{Title: "t"},
		SizeBytes:       size,
		LastModifiedUtc: mtime,
	}
}

func snap(path string, size int64, mtime time.Time) domain.FileSnapshot {
	return domain.FileSnapshot{
		LibraryPath:  path,
		SizeBytes:    size,
		LastWriteUtc: mtime,
	}
}

func TestCompute_ClassifiesNewMissingUpdated(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	videos := []domain.VideoEntry{
		entry("./Videos/keep.mp4", 10, t0),
		entry("./Videos/gone.mp4", 10, t0),
		entry("./Videos/grown.mp4", 10, t0),
		entry("./Videos/touched.mp4", 10, t0),
	}
	snaps := []domain.FileSnapshot{
		snap("./Videos/keep.mp4", 10, t0),
		snap("./Videos/grown.mp4", 20, t0),
		snap("./Videos/touched.mp4", 10, t1),
		snap("./Videos/fresh.mp4", 5, t1),
	}

	res := Compute(snaps, videos)

	if len(res.NewFiles) != 1 || res.NewFiles[0].LibraryPath != "./Videos/fresh.mp4" {
		t.Fatalf("期望 1 个新文件 fresh.mp4，实际 %+v", res.NewFiles)
	}
	if len(res.MissingEntries) != 1 || res.MissingEntries[0].Path != "./Videos/gone.mp4" {
		t.Fatalf("期望 1 个缺失条目 gone.mp4，实际 %+v", res.MissingEntries)
	}
	if len(res.UpdatedEntries) != 2 {
		t.Fatalf("期望 2 个更新条目，实际 %d", len(res.UpdatedEntries))
	}
	if res.UpdatedEntries[0].Entry.Path != "./Videos/grown.mp4" ||
		res.UpdatedEntries[1].Entry.Path != "./Videos/touched.mp4" {
		t.Fatalf("更新条目应按扫描顺序：%+v", res.UpdatedEntries)
	}
}

func TestCompute_CaseInsensitiveIdentity(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	res := Compute(
		[]domain.FileSnapshot{snap("./Videos/ABC.mp4", 10, t0)},
		[]domain.VideoEntry{entry("./videos/abc.MP4", 10, t0)},
	)
	if len(res.NewFiles) != 0 || len(res.MissingEntries) != 0 || len(res.UpdatedEntries) != 0 {
		t.Fatalf("大小写差异不应产生任何变更：%+v", res)
	}
}

func TestCompute_DuplicateSnapshotFirstWins(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	res := Compute(
		[]domain.FileSnapshot{
			snap("./Videos/a.mp4", 10, t0),
			snap("./videos/A.MP4", 99, t0),
		},
		nil,
	)
	if len(res.NewFiles) != 1 || res.NewFiles[0].SizeBytes != 10 {
		t.Fatalf("同键快照应首个生效：%+v", res.NewFiles)
	}
}

func TestCompute_NoChanges(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res := Compute(
		[]domain.FileSnapshot{snap("./Videos/a.mp4", 10, t0)},
		[]domain.VideoEntry{entry("./Videos/a.mp4", 10, t0)},
	)
	if len(res.NewFiles)+len(res.MissingEntries)+len(res.UpdatedEntries) != 0 {
		t.Fatalf("不期望任何变更：%+v", res)
	}
}
