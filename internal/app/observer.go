package app

import (
	"github.com/John-Robertt/airi/internal/domain"
	"github.com/John-Robertt/airi/internal/session"
)

// Observer 用于把“状态变化/条目变化”从核心流程中解耦出来。
//
// 约束：
// - app 包只负责发事件，不做任何输出
// - Observer 的实现必须并发安全：事件可能来自多个 goroutine
type Observer interface {
	// OnStatus 报告人类可读的阶段信息（扫描完成、目录保存等）。
	OnStatus(msg string)
	// OnEntryChanged 在条目被新增/补全/标记缺失时调用。
	OnEntryChanged(path string, presence domain.Presence)
	// OnFetching 在补全循环开始/结束时调用。
	OnFetching(active bool)
	// OnSessionState 在浏览器会话状态变化时调用。
	OnSessionState(state session.State)
}

// NopObserver 是全空实现，观察者可只嵌入它并覆盖关心的事件。
type NopObserver struct{}

func (NopObserver) OnStatus(string)                        {}
func (NopObserver) OnEntryChanged(string, domain.Presence) {}
func (NopObserver) OnFetching(bool)                        {}
func (NopObserver) OnSessionState(session.State)           {}
