package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/John-Robertt/airi/internal/domain"
	"github.com/John-Robertt/airi/internal/session"
)

// statusObserver 把应用事件逐行打到 stderr。
// 事件可能来自多个 goroutine，写入要串行化。
type statusObserver struct {
	mu sync.Mutex
	w  io.Writer
}

func newStatusObserver(w io.Writer) *statusObserver {
	return &statusObserver{w: w}
}

func (o *statusObserver) printf(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, format+"\n", args...)
}

func (o *statusObserver) OnStatus(msg string) {
	o.printf("%s", msg)
}

func (o *statusObserver) OnEntryChanged(path string, presence domain.Presence) {
	o.printf("%s  %s", presence, path)
}

func (o *statusObserver) OnFetching(active bool) {
	if active {
		o.printf("补全开始")
		return
	}
	o.printf("补全结束")
}

func (o *statusObserver) OnSessionState(state session.State) {
	o.printf("会话状态：%s", state)
}
