// Package session 管理手动补全用的浏览器会话。
//
// 会话是“租借”的浏览器：由这里启动、监控与回收。用户在浏览器里找到
// 正确的页面后，上层通过 Metadata/ThumbnailURL 把当前页面读回来。
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/John-Robertt/airi/internal/domain"
	"github.com/John-Robertt/airi/internal/translate"
)

// State 是会话的生命周期状态。
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// driver 是对浏览器的窄接口；测试用假实现替换。
type driver interface {
	Navigate(ctx context.Context, url string) error
	PageHTML(ctx context.Context) (string, error)
	OpenPages(ctx context.Context) (int, error)
	Close() error
}

// Manager 持有至多一个浏览器会话。
//
// 不变量：
// - 任何时刻至多一个会话；Start 在非 Stopped 状态下直接报错
// - 用户关掉所有浏览器页面后，监控循环回收会话并通知 OnClosed
// - 锁不跨浏览器调用持有
type Manager struct {
	// SeedURL 是会话启动后打开的首页。
	SeedURL string
	// OnClosed 在会话因任何原因结束时回调一次（可为 nil）。
	OnClosed   func()
	Translate  translate.Service
	TargetLang string
	Log        zerolog.Logger

	// newDriver 可在测试中替换；为空时启动真实浏览器。
	newDriver func(ctx context.Context) (driver, error)
	// monitorInterval 为零时取 1s。
	monitorInterval time.Duration

	mu          sync.Mutex
	state       State
	drv         driver
	monitorStop context.CancelFunc
}

// ErrSessionActive 表示已有会话在运行或启动中。
var ErrSessionActive = errors.New("session: 会话已在运行")

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start 启动浏览器并导航到 SeedURL。
//
// 启动失败时回收已创建的资源并退回 Stopped；成功后起监控循环。
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateStopped {
		m.mu.Unlock()
		return ErrSessionActive
	}
	m.state = StateStarting
	m.mu.Unlock()

	nd := m.newDriver
	if nd == nil {
		nd = newChromeDriver
	}

	drv, err := nd(ctx)
	if err != nil {
		m.mu.Lock()
		m.state = StateStopped
		m.mu.Unlock()
		return err
	}

	if err := drv.Navigate(ctx, m.SeedURL); err != nil {
		_ = drv.Close()
		m.mu.Lock()
		m.state = StateStopped
		m.mu.Unlock()
		return err
	}

	monCtx, monStop := context.WithCancel(context.Background())

	m.mu.Lock()
	m.drv = drv
	m.state = StateRunning
	m.monitorStop = monStop
	m.mu.Unlock()

	m.Log.Info().Str("seed", m.SeedURL).Msg("浏览器会话已启动")
	go m.monitor(monCtx, drv)
	return nil
}

// Navigate 把会话导航到 url；会话不可用时回收并返回 false。
func (m *Manager) Navigate(ctx context.Context, url string) bool {
	drv := m.current()
	if drv == nil {
		return false
	}
	if err := drv.Navigate(ctx, url); err != nil {
		if ctx.Err() == nil {
			m.Log.Warn().Str("url", url).Err(err).Msg("导航失败，回收会话")
			m.teardown(drv)
		}
		return false
	}
	return true
}

// Metadata 解析当前页面的元数据；页面无结果返回 (nil, nil)。
func (m *Manager) Metadata(ctx context.Context) (*domain.VideoMeta, error) {
	drv := m.current()
	if drv == nil {
		return nil, nil
	}

	html, err := drv.PageHTML(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		m.Log.Warn().Err(err).Msg("读取页面失败")
		return nil, nil
	}

	meta := ParseMetadata([]byte(html))
	if meta == nil {
		return nil, nil
	}

	if m.Translate != nil && m.Translate.Enabled() && meta.Description != "" && m.TargetLang != "" {
		t, err := m.Translate.Translate(ctx, meta.Description, "", m.TargetLang)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
		} else if strings.TrimSpace(t) != "" {
			meta.Description = t
		}
	}
	return meta, nil
}

// ThumbnailURL 提取当前页面的封面图地址；无封面返回 ""。
func (m *Manager) ThumbnailURL(ctx context.Context) (string, error) {
	drv := m.current()
	if drv == nil {
		return "", nil
	}

	html, err := drv.PageHTML(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		m.Log.Warn().Err(err).Msg("读取页面失败")
		return "", nil
	}
	return ParseThumbnailURL([]byte(html)), nil
}

// Stop 主动结束会话；没有会话时什么也不做。
func (m *Manager) Stop() {
	if drv := m.current(); drv != nil {
		m.teardown(drv)
	}
}

func (m *Manager) current() driver {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateRunning {
		return nil
	}
	return m.drv
}

// teardown 回收会话；drv 必须是当前会话（并发回收只有首个生效）。
func (m *Manager) teardown(drv driver) {
	m.mu.Lock()
	if m.drv != drv {
		m.mu.Unlock()
		return
	}
	m.drv = nil
	m.state = StateStopped
	stop := m.monitorStop
	m.monitorStop = nil
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	_ = drv.Close()
	m.Log.Info().Msg("浏览器会话已结束")
	if m.OnClosed != nil {
		m.OnClosed()
	}
}

// monitor 轮询打开的页面数；用户关掉所有页面即回收会话。
func (m *Manager) monitor(ctx context.Context, drv driver) {
	interval := m.monitorInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := drv.OpenPages(ctx)
			if err != nil || n == 0 {
				m.teardown(drv)
				return
			}
		}
	}
}

// chromeDriver 基于 chromedp 驱动一个有头浏览器。
type chromeDriver struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

func newChromeDriver(ctx context.Context) (driver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		// 会话是给用户手动操作的，必须有头。
		chromedp.Flag("headless", false),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tab, cancelTab := chromedp.NewContext(allocCtx)

	// 空 Run 确保浏览器真正拉起；失败时立刻回收。
	if err := chromedp.Run(tab); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, err
	}

	d := &chromeDriver{tab: tab, cancelTab: cancelTab, cancelAlloc: cancelAlloc}
	// 外部 ctx 取消时连带关闭浏览器。
	context.AfterFunc(ctx, func() { _ = d.Close() })
	return d, nil
}

func (d *chromeDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, chromedp.Navigate(url))
}

func (d *chromeDriver) PageHTML(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (d *chromeDriver) OpenPages(ctx context.Context) (int, error) {
	infos, err := chromedp.Targets(d.tab)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, info := range infos {
		if info.Type == "page" {
			n++
		}
	}
	return n, nil
}

func (d *chromeDriver) Close() error {
	d.cancelTab()
	d.cancelAlloc()
	return nil
}

// run 在 tab 上执行 actions，同时尊重调用方的 ctx。
func (d *chromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	stop := context.AfterFunc(ctx, func() { d.cancelTab() })
	defer stop()
	go func() { done <- chromedp.Run(d.tab, actions...) }()

	select {
	case err := <-done:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
