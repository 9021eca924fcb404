package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeDriver struct {
	mu       sync.Mutex
	navURLs  []string
	navErr   error
	html     string
	htmlErr  error
	pages    int
	pagesErr error
	closed   bool
}

func (f *fakeDriver) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navURLs = append(f.navURLs, url)
	return f.navErr
}

func (f *fakeDriver) PageHTML(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.html, f.htmlErr
}

func (f *fakeDriver) OpenPages(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages, f.pagesErr
}

func (f *fakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeDriver) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newTestManager(f *fakeDriver) *Manager {
	return &Manager{
		SeedURL:         "https://example.test/",
		Log:             zerolog.Nop(),
		newDriver:       func(context.Context) (driver, error) { return f, nil },
		monitorInterval: 5 * time.Millisecond,
	}
}

func TestStart_NavigatesSeedAndRejectsSecondSession(t *testing.T) {
	f := &fakeDriver{pages: 1}
	m := newTestManager(f)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start 失败：%v", err)
	}
	defer m.Stop()

	if m.State() != StateRunning {
		t.Fatalf("期望 Running，实际 %v", m.State())
	}
	if len(f.navURLs) != 1 || f.navURLs[0] != "https://example.test/" {
		t.Fatalf("启动后应导航到首页：%v", f.navURLs)
	}

	if err := m.Start(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("期望 ErrSessionActive，实际 %v", err)
	}
}

func TestStart_SeedNavigationFailureTearsDown(t *testing.T) {
	f := &fakeDriver{navErr: errors.New("boom"), pages: 1}
	m := newTestManager(f)

	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("首页导航失败时 Start 应报错")
	}
	if m.State() != StateStopped {
		t.Fatalf("失败后应退回 Stopped，实际 %v", m.State())
	}
	if !f.isClosed() {
		t.Fatalf("失败后应回收浏览器")
	}
}

func TestMonitor_TearsDownWhenAllPagesClosed(t *testing.T) {
	f := &fakeDriver{pages: 1}

	closed := make(chan struct{})
	m := newTestManager(f)
	m.OnClosed = func() { close(closed) }

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start 失败：%v", err)
	}

	f.mu.Lock()
	f.pages = 0
	f.mu.Unlock()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("监控循环应在页面归零后回收会话")
	}
	if m.State() != StateStopped || !f.isClosed() {
		t.Fatalf("回收后应为 Stopped 且浏览器已关闭")
	}
}

func TestNavigate_FatalErrorTearsDown(t *testing.T) {
	f := &fakeDriver{pages: 1}
	m := newTestManager(f)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start 失败：%v", err)
	}

	f.mu.Lock()
	f.navErr = errors.New("browser gone")
	f.mu.Unlock()

	if m.Navigate(context.Background(), "https://example.test/x") {
		t.Fatalf("导航失败应返回 false")
	}
	if m.State() != StateStopped {
		t.Fatalf("致命导航失败应回收会话，实际 %v", m.State())
	}
}

func TestMetadata_ParsesCurrentPage(t *testing.T) {
	f := &fakeDriver{pages: 1, html: `<div class="card mb-3"><div class="card-content">
<p class="subtitle is-6"><a href="/tag/2024/03/15">2024-03-15</a></p>
<div class="tags"><a class="tag">Drama</a></div>
<div class="panel"><a class="panel-block">Alice</a></div>
<div class="level">A short description</div>
</div></div>`}
	m := newTestManager(f)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start 失败：%v", err)
	}
	defer m.Stop()

	meta, err := m.Metadata(context.Background())
	if err != nil {
		t.Fatalf("Metadata 失败：%v", err)
	}
	if meta == nil {
		t.Fatalf("期望解析出元数据")
	}
	if meta.Date == nil || meta.Date.String() != "2024-03-15" {
		t.Fatalf("期望日期 2024-03-15，实际 %v", meta.Date)
	}
	if len(meta.Actors) != 1 || meta.Actors[0] != "Alice" {
		t.Fatalf("期望演员 [Alice]，实际 %+v", meta.Actors)
	}
	if meta.Description != "A short description" {
		t.Fatalf("期望描述，实际 %q", meta.Description)
	}
}

func TestMetadata_WithoutSessionIsNoResult(t *testing.T) {
	m := newTestManager(&fakeDriver{})
	meta, err := m.Metadata(context.Background())
	if err != nil || meta != nil {
		t.Fatalf("无会话时应返回 (nil, nil)，实际 (%+v, %v)", meta, err)
	}
}

func TestStop_Idempotent(t *testing.T) {
	f := &fakeDriver{pages: 1}
	m := newTestManager(f)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start 失败：%v", err)
	}

	m.Stop()
	m.Stop()
	if m.State() != StateStopped || !f.isClosed() {
		t.Fatalf("Stop 后应为 Stopped 且浏览器已关闭")
	}
}
