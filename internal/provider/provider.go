// Package provider 把“站点变化”限制在各元数据源内部；
// 补全流程只依赖统一的 Source 接口与稳定的 VideoMeta。
package provider

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/airi/internal/domain"
	"github.com/John-Robertt/airi/internal/libpath"
	"github.com/John-Robertt/airi/internal/translate"
)

// Result 是一次成功抓取的产物：结构化元数据 + 可选的缩略图字节。
type Result struct {
	Meta       domain.VideoMeta
	ThumbBytes []byte
	ThumbExt   string
}

// Source 是单个元数据源。
//
// 约束：
// - CanHandle 只看查询指纹，不发请求
// - Fetch 返回 (nil, nil) 表示“无结果”，与失败区分开
// - Fetch 不做缓存、不做重试、不做限速（网络策略由 httpx 统一实现）
type Source interface {
	Name() string
	CanHandle(query string) bool
	Fetch(ctx context.Context, query string) (*Result, error)
}

// Error 是元数据源阶段的可追溯错误。
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source=%s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ThumbSaver 把缩略图字节落盘并返回库路径。
type ThumbSaver interface {
	Save(data []byte, ext, key string) (string, error)
}

// Chain 按注册顺序尝试各元数据源，首个有结果的生效。
type Chain struct {
	Sources    []Source
	Thumbs     ThumbSaver
	Translate  translate.Service
	TargetLang string
	Log        zerolog.Logger
}

// Enrich 用查询结果补全条目，返回更新后的条目副本。
//
// 约束：
// - 查询先经 libpath.Code 规范化；空指纹直接返回 (nil, nil)
// - 单源失败记录后继续下一个源；只有 ctx 取消立即终止
// - 所有源都无结果时返回 (nil, nil)，不算失败
// - 合并规则：来源字段非空时覆盖，否则保留原值
func (c *Chain) Enrich(ctx context.Context, entry domain.VideoEntry, query string) (*domain.VideoEntry, error) {
	code := libpath.Code(query)
	if code == "" {
		return nil, nil
	}

	var res *Result
	for _, src := range c.Sources {
		if !src.CanHandle(code) {
			continue
		}

		r, err := src.Fetch(ctx, code)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &Error{Source: src.Name(), Err: err}
			}
			c.Log.Warn().Str("source", src.Name()).Str("code", code).Err(err).
				Msg("元数据源失败，尝试下一个")
			continue
		}
		if r != nil {
			c.Log.Info().Str("source", src.Name()).Str("code", code).Msg("元数据命中")
			res = r
			break
		}
	}
	if res == nil {
		return nil, nil
	}

	updated := entry
	meta := MergeMeta(entry.Meta, &res.Meta)

	if len(res.ThumbBytes) > 0 && c.Thumbs != nil {
		p, err := c.Thumbs.Save(res.ThumbBytes, res.ThumbExt, code)
		if err != nil {
			c.Log.Warn().Str("code", code).Err(err).Msg("缩略图落盘失败，保留原缩略图")
		} else {
			meta.Thumbnail = p
		}
	}

	if c.Translate != nil && c.Translate.Enabled() && meta.Description != "" {
		t, err := c.Translate.Translate(ctx, meta.Description, "", c.TargetLang)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
		} else {
			meta.Description = t
		}
	}

	updated.Meta = meta
	return &updated, nil
}

// MergeMeta 把 incoming 的非空字段并入 base，返回新的 VideoMeta。
// 两边都不被原地修改。
func MergeMeta(base, incoming *domain.VideoMeta) *domain.VideoMeta {
	out := domain.VideoMeta{}
	if base != nil {
		out = *base
		out.Actors = append([]string(nil), base.Actors...)
		out.Tags = append([]string(nil), base.Tags...)
	}
	if incoming == nil {
		return &out
	}

	if incoming.Title != "" {
		out.Title = incoming.Title
	}
	if incoming.Date != nil && !incoming.Date.IsZero() {
		d := *incoming.Date
		out.Date = &d
	}
	if len(incoming.Actors) > 0 {
		out.Actors = append([]string(nil), incoming.Actors...)
	}
	if incoming.Thumbnail != "" {
		out.Thumbnail = incoming.Thumbnail
	}
	if len(incoming.Tags) > 0 {
		out.Tags = append([]string(nil), incoming.Tags...)
	}
	if incoming.Description != "" {
		out.Description = incoming.Description
	}
	return &out
}
