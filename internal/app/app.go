// Package app 把扫描、差异、目录与补全编排成完整的应用流程。
//
// 目录数据只有一个持有者：App 的互斥锁保护 cat 的读改写；
// 所有持久化都走 Store.Save 的原子写。
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/airi/internal/catalog"
	"github.com/John-Robertt/airi/internal/diff"
	"github.com/John-Robertt/airi/internal/domain"
	"github.com/John-Robertt/airi/internal/enrich"
	"github.com/John-Robertt/airi/internal/libpath"
	"github.com/John-Robertt/airi/internal/provider"
	"github.com/John-Robertt/airi/internal/session"
)

// ThumbSaver 把缩略图字节落盘并返回库路径。
type ThumbSaver interface {
	Save(data []byte, ext, key string) (string, error)
}

// App 是应用的编排核心。
//
// 不变量：
// - cat 的任何读改写都在 mu 内；锁不跨网络 I/O 持有
// - 条目更新是替换式的（按 libpath.Key 定位后整条换掉）
type App struct {
	Store       *catalog.Store
	Engine      *diff.Engine
	Chain       *provider.Chain
	Queue       *enrich.Queue
	Session     *session.Manager
	ImageClient *http.Client
	Thumbs      ThumbSaver

	// KeepMissing 为 true 时，扫描后保留文件已缺失的条目。
	KeepMissing bool
	// SearchURL 是会话式补全的搜索地址前缀（末尾拼接指纹）。
	SearchURL string

	Obs Observer
	Log zerolog.Logger

	mu  sync.Mutex
	cat *domain.CatalogData
}

// ScanSummary 是一轮扫描周期的变更统计。
type ScanSummary struct {
	New     int
	Updated int
	Missing int
}

func (s ScanSummary) String() string {
	return fmt.Sprintf("new=%d updated=%d missing=%d", s.New, s.Updated, s.Missing)
}

func (a *App) obs() Observer {
	if a.Obs == nil {
		return NopObserver{}
	}
	return a.Obs
}

// Init 加载目录并接线补全队列与会话回调。必须在其他操作之前调用。
func (a *App) Init() error {
	cat, err := a.Store.Load()
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.cat = cat
	a.mu.Unlock()
	a.obs().OnStatus(fmt.Sprintf("目录已加载：%d 条", len(cat.Videos)))

	a.Queue.Process = a.processOne
	a.Queue.OnFetching = func(active bool) { a.obs().OnFetching(active) }
	if a.Session != nil {
		a.Session.OnClosed = func() { a.obs().OnSessionState(session.StateStopped) }
	}
	return nil
}

// ScanCycle 执行一轮“扫描 -> 求差 -> 应用 -> 持久化”，
// 并把新条目排入补全队列。
//
// 缺失条目默认从目录剔除（KeepMissing=true 时保留）；
// 已更新条目只刷新文件属性，元数据原样保留。
func (a *App) ScanCycle(ctx context.Context) (ScanSummary, error) {
	a.obs().OnStatus("扫描开始")

	a.mu.Lock()
	targets := append([]domain.TargetFolder(nil), a.cat.Targets...)
	videos := append([]domain.VideoEntry(nil), a.cat.Videos...)
	a.mu.Unlock()

	res, err := a.Engine.Run(ctx, targets, videos)
	if err != nil {
		return ScanSummary{}, err
	}

	sum := ScanSummary{
		New:     len(res.NewFiles),
		Updated: len(res.UpdatedEntries),
		Missing: len(res.MissingEntries),
	}

	missing := make(map[string]struct{}, len(res.MissingEntries))
	for _, e := range res.MissingEntries {
		missing[libpath.Key(e.Path)] = struct{}{}
		a.obs().OnEntryChanged(e.Path, domain.PresenceMissing)
	}

	updated := make(map[string]domain.FileSnapshot, len(res.UpdatedEntries))
	for _, u := range res.UpdatedEntries {
		updated[libpath.Key(u.Entry.Path)] = u.Snapshot
	}

	now := time.Now().UTC()

	a.mu.Lock()
	kept := a.cat.Videos[:0]
	for _, v := range a.cat.Videos {
		k := libpath.Key(v.Path)
		if _, gone := missing[k]; gone && !a.KeepMissing {
			continue
		}
		if snap, ok := updated[k]; ok {
			v.SizeBytes = snap.SizeBytes
			v.LastModifiedUtc = snap.LastWriteUtc
			v.CreatedUtc = snap.CreatedUtc
		}
		kept = append(kept, v)
	}
	a.cat.Videos = kept

	for _, snap := range res.NewFiles {
		a.cat.Videos = append(a.cat.Videos, entryFromSnapshot(snap))
	}

	for i := range a.cat.Targets {
		t := now
		a.cat.Targets[i].LastScanUtc = &t
	}

	err = a.Store.Save(a.cat)
	a.mu.Unlock()
	if err != nil {
		return sum, err
	}

	for _, u := range res.UpdatedEntries {
		a.obs().OnEntryChanged(u.Entry.Path, domain.PresenceAvailable)
	}
	for _, snap := range res.NewFiles {
		a.obs().OnEntryChanged(snap.LibraryPath, domain.PresenceAvailable)
		a.Queue.Enqueue(snap.LibraryPath)
	}

	a.obs().OnStatus("扫描完成：" + sum.String())
	a.Queue.RequestProcessing(ctx)
	return sum, nil
}

// entryFromSnapshot 用占位元数据创建新条目；标题先取裸文件名。
func entryFromSnapshot(snap domain.FileSnapshot) domain.VideoEntry {
	title := strings.TrimSpace(libpath.Stem(snap.LibraryPath))
	if title == "" {
		title = domain.DefaultTitle
	}
	return domain.VideoEntry{
		Path: snap.LibraryPath,
		Meta: &domain.VideoMeta{
			Title:     title,
			Thumbnail: libpath.Normalize(domain.PlaceholderThumbnail),
		},
		SizeBytes:       snap.SizeBytes,
		LastModifiedUtc: snap.LastWriteUtc,
		CreatedUtc:      snap.CreatedUtc,
	}
}

// processOne 补全单个条目并持久化。由补全队列调用。
func (a *App) processOne(ctx context.Context, p string) error {
	entry, ok := a.findEntry(p)
	if !ok {
		// 条目可能在排队期间被扫描周期剔除。
		return nil
	}

	updated, err := a.Chain.Enrich(ctx, entry, enrichQuery(entry))
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}

	if err := a.replaceEntry(*updated); err != nil {
		return err
	}
	a.obs().OnEntryChanged(updated.Path, domain.PresenceAvailable)
	return nil
}

// enrichQuery 选择补全用的查询文本：有意义的标题优先，否则裸文件名。
func enrichQuery(entry domain.VideoEntry) string {
	if entry.Meta != nil {
		t := strings.TrimSpace(entry.Meta.Title)
		if t != "" && t != domain.DefaultTitle {
			return t
		}
	}
	return libpath.Stem(entry.Path)
}

// EnrichOne 立即补全单个条目（先从队列摘除，避免重复处理）。
func (a *App) EnrichOne(ctx context.Context, path string) error {
	a.Queue.Remove(path)
	return a.processOne(ctx, path)
}

// ApplyMetadataEdit 整体替换条目的元数据并持久化。
func (a *App) ApplyMetadataEdit(path string, meta domain.VideoMeta) error {
	entry, ok := a.findEntry(path)
	if !ok {
		return fmt.Errorf("条目不存在：%s", path)
	}
	if strings.TrimSpace(meta.Title) == "" {
		meta.Title = domain.DefaultTitle
	}
	entry.Meta = &meta
	if err := a.replaceEntry(entry); err != nil {
		return err
	}
	a.obs().OnEntryChanged(entry.Path, domain.PresenceAvailable)
	return nil
}

// StartSession 启动浏览器会话。
func (a *App) StartSession(ctx context.Context) error {
	a.obs().OnSessionState(session.StateStarting)
	if err := a.Session.Start(ctx); err != nil {
		a.obs().OnSessionState(session.StateStopped)
		return err
	}
	a.obs().OnSessionState(session.StateRunning)
	return nil
}

// StopSession 结束浏览器会话。
func (a *App) StopSession() { a.Session.Stop() }

// FetchMissingViaSession 用浏览器会话批量补全元数据不完整的条目。
//
// “不完整”的判据：缩略图为空或仍是占位图。会话中途被用户关掉时
// 停止剩余条目；每个条目补全成功后立即持久化。
func (a *App) FetchMissingViaSession(ctx context.Context) error {
	a.mu.Lock()
	var todo []domain.VideoEntry
	for _, v := range a.cat.Videos {
		if metaIncomplete(v.Meta) {
			todo = append(todo, v)
		}
	}
	a.mu.Unlock()

	for _, entry := range todo {
		if err := ctx.Err(); err != nil {
			return err
		}

		q := libpath.Code(enrichQuery(entry))
		if q == "" {
			continue
		}

		if !a.Session.Navigate(ctx, a.SearchURL+url.PathEscape(q)) {
			a.Log.Info().Msg("会话不可用，停止批量补全")
			return nil
		}

		meta, err := a.Session.Metadata(ctx)
		if err != nil {
			return err
		}
		thumbURL, err := a.Session.ThumbnailURL(ctx)
		if err != nil {
			return err
		}
		if meta == nil && thumbURL == "" {
			a.Log.Info().Str("path", entry.Path).Msg("页面无结果，跳过")
			continue
		}

		merged := provider.MergeMeta(entry.Meta, meta)
		if thumbURL != "" {
			if p, err := a.downloadThumb(ctx, thumbURL, q); err != nil {
				if ctx.Err() != nil {
					return err
				}
				a.Log.Warn().Str("url", thumbURL).Err(err).Msg("缩略图下载失败，保留原图")
			} else {
				merged.Thumbnail = p
			}
		}

		entry.Meta = merged
		if err := a.replaceEntry(entry); err != nil {
			return err
		}
		a.obs().OnEntryChanged(entry.Path, domain.PresenceAvailable)
	}
	return nil
}

func (a *App) downloadThumb(ctx context.Context, u, key string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := a.ImageClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("GET %s：状态码 %d", u, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	ext := ""
	if parsed, err := url.Parse(u); err == nil {
		ext = path.Ext(parsed.Path)
	}
	return a.Thumbs.Save(b, ext, key)
}

// metaIncomplete 判断元数据是否还需要补全。
func metaIncomplete(m *domain.VideoMeta) bool {
	if m == nil {
		return true
	}
	thumb := libpath.Key(m.Thumbnail)
	return thumb == "" || thumb == libpath.Key(domain.PlaceholderThumbnail)
}

// TargetRoots 返回当前所有目标目录的根（库路径形态）。
func (a *App) TargetRoots() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]string, 0, len(a.cat.Targets))
	for _, t := range a.cat.Targets {
		out = append(out, t.Root)
	}
	return out
}

// Summary 返回目录概况的状态行。
func (a *App) Summary() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := len(a.cat.Videos)
	missing := 0
	for _, v := range a.cat.Videos {
		if metaIncomplete(v.Meta) {
			missing++
		}
	}
	return fmt.Sprintf("%d videos, %d missing metadata", total, missing)
}

func (a *App) findEntry(p string) (domain.VideoEntry, bool) {
	k := libpath.Key(p)

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, v := range a.cat.Videos {
		if libpath.Key(v.Path) == k {
			return v, true
		}
	}
	return domain.VideoEntry{}, false
}

// replaceEntry 按路径键整条替换条目并持久化；条目已不存在时静默丢弃。
func (a *App) replaceEntry(entry domain.VideoEntry) error {
	k := libpath.Key(entry.Path)

	a.mu.Lock()
	defer a.mu.Unlock()
	for i, v := range a.cat.Videos {
		if libpath.Key(v.Path) == k {
			a.cat.Videos[i] = entry
			return a.Store.Save(a.cat)
		}
	}
	return nil
}
