// Package enrich 实现去重的补全队列与单工作者排空循环。
//
// 队列只记路径，不碰目录：每个条目的实际补全由注入的 Process 完成。
package enrich

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/airi/internal/libpath"
)

// Queue 是路径的 FIFO 队列，按 libpath.Key 去重。
//
// 不变量：
// - 同一路径（大小写不敏感）最多排队一次；出队时解除去重标记
// - 任何时刻至多一个排空工作者在跑
// - 锁不跨 Process 调用持有
type Queue struct {
	// Process 补全单个条目。返回错误时记录并继续下一个。
	Process func(ctx context.Context, path string) error
	// OnFetching 在排空开始/结束时回调（可为 nil）。
	OnFetching func(active bool)
	Log        zerolog.Logger

	mu        sync.Mutex
	pending   []string
	scheduled map[string]struct{}
	running   bool
	wg        sync.WaitGroup
}

// Enqueue 把路径排入队尾；已在队列中时返回 false。
func (q *Queue) Enqueue(path string) bool {
	k := libpath.Key(path)
	if k == "" {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.scheduled == nil {
		q.scheduled = make(map[string]struct{})
	}
	if _, dup := q.scheduled[k]; dup {
		return false
	}
	q.scheduled[k] = struct{}{}
	q.pending = append(q.pending, path)
	return true
}

// Remove 把尚未出队的路径从队列中摘除；不在队列时返回 false。
func (q *Queue) Remove(path string) bool {
	k := libpath.Key(path)

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.scheduled[k]; !ok {
		return false
	}
	delete(q.scheduled, k)
	for i, p := range q.pending {
		if libpath.Key(p) == k {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	return true
}

// Len 返回当前排队数量。
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// RequestProcessing 确保有一个排空工作者在跑；已在跑时什么也不做。
func (q *Queue) RequestProcessing(ctx context.Context) {
	q.mu.Lock()
	if q.running || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	q.wg.Add(1)
	go q.drain(ctx)
}

// Wait 阻塞到当前排空循环退出（没有在跑时立即返回）。
func (q *Queue) Wait() { q.wg.Wait() }

func (q *Queue) drain(ctx context.Context) {
	defer q.wg.Done()
	if q.OnFetching != nil {
		q.OnFetching(true)
	}
	defer func() {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
		if q.OnFetching != nil {
			q.OnFetching(false)
		}
	}()

	for {
		if ctx.Err() != nil {
			q.Log.Info().Msg("补全循环被取消")
			return
		}

		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		path := q.pending[0]
		q.pending = q.pending[1:]
		// 出队即解除去重标记：处理期间同路径可再次入队。
		delete(q.scheduled, libpath.Key(path))
		q.mu.Unlock()

		if err := q.Process(ctx, path); err != nil {
			if ctx.Err() != nil {
				q.Log.Info().Str("path", path).Msg("补全被取消")
				return
			}
			q.Log.Warn().Str("path", path).Err(err).Msg("补全条目失败，继续下一个")
		}
	}
}
