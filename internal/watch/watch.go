// Package watch 监听目标目录的文件系统事件，防抖后触发重扫。
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher 递归监听若干根目录。
//
// 约束：
// - fsnotify 不递归，新增子目录要在事件里补挂
// - 事件风暴用防抖窗口合并：窗口内的连续事件只触发一次 OnChange
// - OnChange 在 Watcher 自己的 goroutine 里调用
type Watcher struct {
	// Debounce 为零时取 2s。
	Debounce time.Duration
	// OnChange 在防抖窗口结束后调用一次。
	OnChange func(ctx context.Context)
	Log      zerolog.Logger
}

// Run 阻塞监听 roots，直到 ctx 取消。
//
// 不存在的根目录跳过（下一次配置变更/重启时再挂上）。
func (w *Watcher) Run(ctx context.Context, roots []string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	for _, root := range roots {
		if err := addRecursive(fsw, root); err != nil {
			w.Log.Warn().Str("root", root).Err(err).Msg("挂载监听失败，跳过")
		}
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	// 未触发时保持停摆的计时器。
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			// 新目录要补挂，否则其内部变更收不到。
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addRecursive(fsw, ev.Name); err != nil {
						w.Log.Warn().Str("dir", ev.Name).Err(err).Msg("补挂子目录失败")
					}
				}
			}
			w.Log.Debug().Str("event", ev.String()).Msg("文件系统事件")
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.Log.Warn().Err(err).Msg("监听错误")

		case <-timer.C:
			if w.OnChange != nil {
				w.OnChange(ctx)
			}
		}
	}
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return fsw.Add(p)
	})
}
