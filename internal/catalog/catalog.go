// Package catalog 负责目录文件（videos.json）的加载、规范化与原子保存。
//
// 目录是单一持久化真相：损坏时自愈为默认目录而不是让进程失败。
// 加载阶段不做文件存在性裁剪；缺失条目的去留由扫描周期决定。
package catalog

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/airi/internal/domain"
	"github.com/John-Robertt/airi/internal/infra/fsx"
	"github.com/John-Robertt/airi/internal/libpath"
)

// DefaultIncludePatterns 是默认目标目录的文件匹配模式。
var DefaultIncludePatterns = []string{"*.mp4", "*.mkv", "*.avi", "*.wmv"}

// DefaultTarget 返回默认目标目录（./Videos + 常见视频扩展名）。
func DefaultTarget() domain.TargetFolder {
	return domain.TargetFolder{
		Root:            "./Videos",
		IncludePatterns: append([]string(nil), DefaultIncludePatterns...),
	}
}

// Store 管理单个目录文件的读写。
type Store struct {
	// FilePath 是目录文件的库路径（通常 "./videos.json"）。
	FilePath string
	Resolver libpath.Resolver
	Log      zerolog.Logger
}

// Load 加载目录；文件缺失或损坏时落回默认目录并立即持久化。
//
// 不变量：返回的目录总是通过 Normalize 的（Version>=1、至少一个
// target、每条 video 的 Meta 非 nil 且 Title 非空）。
func (s *Store) Load() (*domain.CatalogData, error) {
	abs := s.Resolver.Abs(s.FilePath)

	raw, err := os.ReadFile(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		s.Log.Info().Str("file", abs).Msg("目录文件不存在，写入默认目录")
		cat := Normalize(&domain.CatalogData{})
		if err := s.Save(cat); err != nil {
			return nil, err
		}
		return cat, nil
	}

	var cat domain.CatalogData
	if err := json.Unmarshal(raw, &cat); err != nil {
		// 损坏的目录不值得让进程死掉：记录、重置、持久化。
		s.Log.Error().Str("file", abs).Err(err).Msg("目录文件损坏，重置为默认目录")
		fresh := Normalize(&domain.CatalogData{})
		if err := s.Save(fresh); err != nil {
			return nil, err
		}
		return fresh, nil
	}

	return Normalize(&cat), nil
}

// Save 规范化后原子写出目录（带缩进的 UTF-8 JSON）。
func (s *Store) Save(cat *domain.CatalogData) error {
	cat.Version = domain.CurrentVersion

	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return err
	}

	abs := s.Resolver.Abs(s.FilePath)
	dir, name := splitPath(abs)
	return fsx.WriteFileAtomicReplace(dir, name, data)
}

func splitPath(abs string) (dir, name string) {
	i := strings.LastIndexAny(abs, "/\\")
	if i < 0 {
		return ".", abs
	}
	return abs[:i], abs[i+1:]
}

// Normalize 把解析产物修复为满足不变量的目录。
//
// 规则：
// - Version < 1 钳为当前版本
// - 没有 target 时补默认 target；target 根路径规范化，模式去空白
// - Meta 为 nil 或路径空白的 video 直接剔除
// - Title 空白兜底 Untitled；Actors/Tags 去空白、去重（大小写不敏感，保序）
// - 时间统一 UTC；CreatedUtc 为零时取 LastModifiedUtc；SizeBytes < 0 归零
func Normalize(cat *domain.CatalogData) *domain.CatalogData {
	if cat.Version < 1 {
		cat.Version = domain.CurrentVersion
	}

	targets := cat.Targets[:0]
	for _, t := range cat.Targets {
		t.Root = libpath.Normalize(t.Root)
		if t.Root == "" {
			continue
		}
		t.IncludePatterns = cleanList(t.IncludePatterns)
		t.ExcludePatterns = cleanList(t.ExcludePatterns)
		if t.LastScanUtc != nil {
			u := t.LastScanUtc.UTC()
			t.LastScanUtc = &u
		}
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		targets = append(targets, DefaultTarget())
	}
	cat.Targets = targets

	videos := cat.Videos[:0]
	for _, v := range cat.Videos {
		v.Path = libpath.Normalize(v.Path)
		if v.Path == "" || v.Meta == nil {
			continue
		}
		normalizeMeta(v.Meta)
		if v.SizeBytes < 0 {
			v.SizeBytes = 0
		}
		v.LastModifiedUtc = v.LastModifiedUtc.UTC()
		v.CreatedUtc = v.CreatedUtc.UTC()
		if v.CreatedUtc.IsZero() {
			v.CreatedUtc = v.LastModifiedUtc
		}
		videos = append(videos, v)
	}
	if videos == nil {
		// 序列化为 [] 而不是 null。
		videos = []domain.VideoEntry{}
	}
	cat.Videos = videos

	return cat
}

func normalizeMeta(m *domain.VideoMeta) {
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		m.Title = domain.DefaultTitle
	}
	m.Actors = dedupList(m.Actors)
	m.Tags = dedupList(m.Tags)
	m.Thumbnail = libpath.Normalize(m.Thumbnail)
	m.Description = strings.TrimSpace(m.Description)
}

// cleanList 去空白项；结果保证非 nil（序列化为 [] 而不是 null）。
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// dedupList 去空白并按大小写不敏感去重，保留首次出现的顺序与写法。
// 结果保证非 nil。
func dedupList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}
