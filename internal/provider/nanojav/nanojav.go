// Package nanojav 实现 NanoJav 搜索页的抓取与解析。
//
// NanoJav 的搜索结果页自带完整卡片（标题/日期/演员/标签/封面），
// 不需要进入详情页，单次请求即可产出元数据。
package nanojav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/airi/internal/domain"
	"github.com/John-Robertt/airi/internal/provider"
)

// Source 实现 NanoJav 的元数据源。
//
// 约束：
// - 搜索 URL：<base>/jav/search/?q=<code>
// - Parse 必须是纯函数：相同 HTML => 相同输出
// - 缩略图用独立的 image client 下载（代理策略与页面抓取不同）
type Source struct {
	// BaseURL 为空时使用默认的 https://www.nanojav.com。
	BaseURL     string
	Client      *http.Client
	ImageClient *http.Client
}

func (Source) Name() string { return "nanojav" }

// CanHandle 对任何非空指纹都返回 true（NanoJav 是通用兜底源）。
func (Source) CanHandle(query string) bool {
	return strings.TrimSpace(query) != ""
}

func (s Source) baseURL() string {
	u := strings.TrimSpace(s.BaseURL)
	if u == "" {
		return "https://www.nanojav.com"
	}
	return strings.TrimRight(u, "/")
}

// Fetch 抓取搜索页并解析首个结果卡片；有封面时顺带下载缩略图。
func (s Source) Fetch(ctx context.Context, query string) (*provider.Result, error) {
	if s.Client == nil {
		return nil, errors.New("http client 不能为空")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query 不能为空")
	}

	searchURL := s.baseURL() + "/jav/search/?q=" + url.QueryEscape(query)
	html, err := fetchURL(ctx, s.Client, searchURL)
	if err != nil {
		return nil, err
	}

	meta, imageURL, err := Parse(html, query)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, nil
	}

	res := &provider.Result{Meta: *meta}
	if imageURL != "" {
		ic := s.ImageClient
		if ic == nil {
			ic = s.Client
		}
		b, err := fetchURL(ctx, ic, imageURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			// 缩略图失败不拖垮整次抓取。
		} else {
			res.ThumbBytes = b
			res.ThumbExt = extFromURL(imageURL)
		}
	}
	return res, nil
}

// Parse 解析搜索页 HTML 的首个结果卡片。
//
// 无结果返回 (nil, "", nil)；标题缺失时回退为查询本身。
func Parse(html []byte, query string) (*domain.VideoMeta, string, error) {
	if len(html) == 0 {
		return nil, "", errors.New("html 为空")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, "", err
	}

	card := doc.Find("div.mb-5").First()
	if card.Length() == 0 {
		return nil, "", nil
	}

	title := normSpace(card.Find("div.card-content h3.title a").First().Text())
	if title == "" {
		title = strings.TrimSpace(query)
	}

	imageURL := ""
	if src, ok := card.Find("img.cover").First().Attr("src"); ok {
		imageURL = strings.TrimSpace(src)
	}

	var actors []string
	doc.Find("div.mb-2.buttons.are-small a").Each(func(_ int, a *goquery.Selection) {
		if v := normSpace(a.Text()); v != "" {
			actors = append(actors, v)
		}
	})

	var tags []string
	card.Find("div.card-content div.tags a").Each(func(_ int, a *goquery.Selection) {
		if v := normSpace(a.Text()); v != "" {
			tags = append(tags, v)
		}
	})

	meta := &domain.VideoMeta{
		Title:  title,
		Date:   findReleaseDate(card),
		Actors: actors,
		Tags:   tags,
	}
	return meta, imageURL, nil
}

// findReleaseDate 在卡片的 subtitle 段落里找 "Release Date" 标签并解析其余文本。
func findReleaseDate(card *goquery.Selection) *domain.DateOnly {
	var out *domain.DateOnly
	card.Find("div.card-content p.subtitle").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		label := p.Find("span.has-text-info").First()
		if label.Length() == 0 ||
			!strings.Contains(strings.ToLower(normSpace(label.Text())), "release date") {
			return true
		}

		raw := normSpace(p.Text())
		lt := normSpace(label.Text())
		if lt != "" && strings.HasPrefix(strings.ToLower(raw), strings.ToLower(lt)) {
			raw = strings.TrimSpace(raw[len(lt):])
		}
		raw = strings.TrimSpace(strings.TrimPrefix(raw, ":"))

		if d, ok := parseDate(raw); ok {
			out = &d
			return false
		}
		return true
	})
	return out
}

var dateLayouts = []string{
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"01/02/2006",
}

func parseDate(s string) (domain.DateOnly, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.DateOnly{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.DateOnlyFromTime(t), true
		}
	}
	return domain.DateOnly{}, false
}

func fetchURL(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s：状态码 %d", u, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func extFromURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return path.Ext(parsed.Path)
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
