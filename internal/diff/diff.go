// Package diff 对比“目录内条目”与“扫描快照”，产出三类差异。
//
// 引擎是纯计算：不改目录、不做 I/O（除了委托 Scanner 取快照）。
// 差异的应用（增删改条目、入队补全）由上层 app 负责。
package diff

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/airi/internal/domain"
	"github.com/John-Robertt/airi/internal/libpath"
	"github.com/John-Robertt/airi/internal/scan"
)

// UpdatedFile 把变化的条目与其新快照成对返回。
type UpdatedFile struct {
	Entry    domain.VideoEntry
	Snapshot domain.FileSnapshot
}

// Result 是一轮 scan+diff 的完整产物。
//
// 顺序约定：NewFiles/UpdatedEntries 按扫描顺序，MissingEntries 按目录顺序。
type Result struct {
	Snapshots      []domain.FileSnapshot
	NewFiles       []domain.FileSnapshot
	MissingEntries []domain.VideoEntry
	UpdatedEntries []UpdatedFile
}

// Engine 把扫描与差异计算捆在一起。
type Engine struct {
	Scanner *scan.Scanner
	Log     zerolog.Logger
}

// Run 扫描 targets 并与 videos 求差。
//
// 身份键是 libpath.Key（大小写不敏感）；同键快照重复时首个生效。
// “已更新”的判据：大小不同，或修改时间不 Equal。
func (e *Engine) Run(ctx context.Context, targets []domain.TargetFolder, videos []domain.VideoEntry) (*Result, error) {
	snaps, err := e.Scanner.Scan(ctx, targets)
	if err != nil {
		return nil, err
	}
	return Compute(snaps, videos), nil
}

// Compute 在给定快照与条目上求差（无 I/O，便于直接测试）。
func Compute(snaps []domain.FileSnapshot, videos []domain.VideoEntry) *Result {
	res := &Result{Snapshots: snaps}

	byKey := make(map[string]domain.FileSnapshot, len(snaps))
	order := make([]string, 0, len(snaps))
	for _, s := range snaps {
		k := libpath.Key(s.LibraryPath)
		if _, dup := byKey[k]; dup {
			continue
		}
		byKey[k] = s
		order = append(order, k)
	}

	entryByKey := make(map[string]domain.VideoEntry, len(videos))
	for _, v := range videos {
		k := libpath.Key(v.Path)
		if _, dup := entryByKey[k]; dup {
			continue
		}
		entryByKey[k] = v
	}

	for _, k := range order {
		s := byKey[k]
		entry, ok := entryByKey[k]
		if !ok {
			res.NewFiles = append(res.NewFiles, s)
			continue
		}
		if entry.SizeBytes != s.SizeBytes || !entry.LastModifiedUtc.Equal(s.LastWriteUtc) {
			res.UpdatedEntries = append(res.UpdatedEntries, UpdatedFile{Entry: entry, Snapshot: s})
		}
	}

	for _, v := range videos {
		if _, ok := byKey[libpath.Key(v.Path)]; !ok {
			res.MissingEntries = append(res.MissingEntries, v)
		}
	}

	return res
}
