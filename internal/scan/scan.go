// Package scan 把目标目录枚举为文件快照序列。
//
// 扫描是只读观测：不改目录、不触发抓取，只产出 FileSnapshot 给 diff 层。
package scan

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/airi/internal/domain"
	"github.com/John-Robertt/airi/internal/libpath"
)

// Scanner 遍历配置的目标目录并产出快照。
type Scanner struct {
	Resolver libpath.Resolver
	Log      zerolog.Logger
}

// Scan 枚举所有 target 下匹配的文件。
//
// 约束：
// - 根目录缺失/不可访问：记录后跳过该 target，不算失败
// - 子目录不可访问：跳过子树继续
// - 隐藏项（'.' 前缀的文件与目录）不进入结果
// - 每个条目（含目录）之间检查 ctx；取消时返回 ctx.Err() 与已收集的部分结果
// - 遍历顺序即 WalkDir 的字典序，保证结果可复现
func (s *Scanner) Scan(ctx context.Context, targets []domain.TargetFolder) ([]domain.FileSnapshot, error) {
	var out []domain.FileSnapshot

	for _, t := range targets {
		root := s.Resolver.Abs(t.Root)
		if root == "" {
			s.Log.Warn().Str("root", t.Root).Msg("目标根为空，跳过")
			continue
		}
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			s.Log.Warn().Str("root", root).Msg("目标根不存在或不是目录，跳过")
			continue
		}

		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				s.Log.Warn().Str("path", p).Err(walkErr).Msg("路径不可访问，跳过")
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}

			// 取消检查要在目录分支之前，纯目录子树也能及时停下。
			if err := ctx.Err(); err != nil {
				return err
			}

			name := d.Name()
			if d.IsDir() {
				if p != root && strings.HasPrefix(name, ".") {
					return fs.SkipDir
				}
				return nil
			}

			if strings.HasPrefix(name, ".") {
				return nil
			}
			if !matchName(name, t.IncludePatterns, t.ExcludePatterns) {
				return nil
			}

			fi, err := d.Info()
			if err != nil {
				s.Log.Warn().Str("path", p).Err(err).Msg("读取文件信息失败，跳过")
				return nil
			}

			rel, err := filepath.Rel(root, p)
			if err != nil {
				s.Log.Warn().Str("path", p).Err(err).Msg("计算相对路径失败，跳过")
				return nil
			}

			mtime := fi.ModTime().UTC()
			out = append(out, domain.FileSnapshot{
				LibraryPath:  libpath.Combine(t.Root, filepath.ToSlash(rel)),
				AbsPath:      p,
				SizeBytes:    fi.Size(),
				LastWriteUtc: mtime,
				// 文件创建时间没有可移植的读取方式，取修改时间兜底。
				CreatedUtc: mtime,
			})
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return out, err
			}
			s.Log.Warn().Str("root", root).Err(err).Msg("遍历目标失败，跳过剩余部分")
		}
	}
	return out, nil
}

// matchName 在裸文件名上求值 include/exclude glob。
//
// 规则：include 为空视为匹配所有；exclude 在 include 之后求值且优先；
// 匹配大小写不敏感；非法 pattern 视为不匹配。
func matchName(name string, include, exclude []string) bool {
	lower := strings.ToLower(name)

	included := len(include) == 0
	for _, pat := range include {
		if ok, _ := filepath.Match(strings.ToLower(strings.TrimSpace(pat)), lower); ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}

	for _, pat := range exclude {
		if ok, _ := filepath.Match(strings.ToLower(strings.TrimSpace(pat)), lower); ok {
			return false
		}
	}
	return true
}
