package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestEnqueue_DeduplicatesCaseInsensitive(t *testing.T) {
	q := &Queue{Log: zerolog.Nop()}

	if !q.Enqueue("./Videos/a.mp4") {
		t.Fatalf("首次入队应成功")
	}
	if q.Enqueue("./videos/A.MP4") {
		t.Fatalf("同键路径不应重复入队")
	}
	if q.Len() != 1 {
		t.Fatalf("期望队长 1，实际 %d", q.Len())
	}
	if q.Enqueue("  ") {
		t.Fatalf("空白路径不应入队")
	}
}

func TestRemove(t *testing.T) {
	q := &Queue{Log: zerolog.Nop()}
	q.Enqueue("./Videos/a.mp4")
	q.Enqueue("./Videos/b.mp4")

	if !q.Remove("./VIDEOS/a.mp4") {
		t.Fatalf("摘除排队中的路径应成功")
	}
	if q.Remove("./Videos/a.mp4") {
		t.Fatalf("重复摘除应返回 false")
	}
	if q.Len() != 1 {
		t.Fatalf("期望队长 1，实际 %d", q.Len())
	}

	// 摘除后可再次入队。
	if !q.Enqueue("./Videos/a.mp4") {
		t.Fatalf("摘除后的路径应可重新入队")
	}
}

func TestDrain_ProcessesAllAndSurvivesFailures(t *testing.T) {
	var mu sync.Mutex
	var got []string
	var fetching []bool

	q := &Queue{
		Log: zerolog.Nop(),
		Process: func(_ context.Context, path string) error {
			mu.Lock()
			got = append(got, path)
			mu.Unlock()
			if path == "./Videos/bad.mp4" {
				return errors.New("boom")
			}
			return nil
		},
		OnFetching: func(active bool) {
			mu.Lock()
			fetching = append(fetching, active)
			mu.Unlock()
		},
	}

	q.Enqueue("./Videos/a.mp4")
	q.Enqueue("./Videos/bad.mp4")
	q.Enqueue("./Videos/b.mp4")

	q.RequestProcessing(context.Background())
	q.Wait()

	if len(got) != 3 {
		t.Fatalf("期望处理 3 条，实际 %v", got)
	}
	if got[0] != "./Videos/a.mp4" || got[2] != "./Videos/b.mp4" {
		t.Fatalf("应按 FIFO 顺序处理：%v", got)
	}
	if q.Len() != 0 {
		t.Fatalf("排空后队列应为空，实际 %d", q.Len())
	}
	if len(fetching) != 2 || !fetching[0] || fetching[1] {
		t.Fatalf("期望 fetching 先 true 后 false，实际 %v", fetching)
	}
}

func TestDrain_StopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	processed := 0
	q := &Queue{
		Log: zerolog.Nop(),
		Process: func(context.Context, string) error {
			mu.Lock()
			processed++
			mu.Unlock()
			cancel()
			return nil
		},
	}

	q.Enqueue("./Videos/a.mp4")
	q.Enqueue("./Videos/b.mp4")

	q.RequestProcessing(ctx)
	q.Wait()

	mu.Lock()
	defer mu.Unlock()
	if processed != 1 {
		t.Fatalf("取消后不应继续处理，实际处理 %d 条", processed)
	}
	if q.Len() != 1 {
		t.Fatalf("未处理的条目应留在队列，实际 %d", q.Len())
	}
}

func TestRequestProcessing_SingleWorker(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 2)

	q := &Queue{
		Log: zerolog.Nop(),
		Process: func(context.Context, string) error {
			started <- struct{}{}
			<-block
			return nil
		},
	}
	q.Enqueue("./Videos/a.mp4")

	q.RequestProcessing(context.Background())
	<-started

	// 工作者在跑时再次请求不应再起一个。
	q.Enqueue("./Videos/b.mp4")
	q.RequestProcessing(context.Background())

	select {
	case <-started:
		t.Fatalf("不应有第二个工作者同时处理")
	default:
	}

	close(block)
	q.Wait()
	// 第一个工作者会把 b 也排空。
	<-started
	if q.Len() != 0 {
		t.Fatalf("排空后队列应为空，实际 %d", q.Len())
	}
}
