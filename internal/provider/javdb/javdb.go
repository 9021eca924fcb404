// Package javdb 实现 JavDB 的页面抓取与 HTML 解析。
package javdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/airi/internal/domain"
	"github.com/John-Robertt/airi/internal/provider"
)

// Source 实现 JavDB 的元数据源。
//
// 约束：
// - JavDB 需要先搜索再进入详情页（不能直接拼详情 URL）
// - 只处理 "字母段+数字段" 形态的指纹（搜索需要带连字符的番号）
// - Parse 系列必须是纯函数
type Source struct {
	// BaseURL 允许指定 JavDB 的可用域名（例如 javdb565.com），用于绕过区域不可达。
	// 为空时使用默认的 https://javdb.com。
	BaseURL     string
	Client      *http.Client
	ImageClient *http.Client
}

func (Source) Name() string { return "javdb" }

// 可还原为番号的指纹：字母段 + 数字段。
var codeRE = regexp.MustCompile(`^([A-Z]+)([0-9]+)$`)

// CanHandle 只接受能还原为 "ABC-123" 形态的指纹。
func (Source) CanHandle(query string) bool {
	return codeRE.MatchString(strings.TrimSpace(query))
}

// dashed 把 "ABC123" 还原为 JavDB 搜索用的 "ABC-123"。
func dashed(query string) string {
	m := codeRE.FindStringSubmatch(strings.TrimSpace(query))
	if m == nil {
		return ""
	}
	return m[1] + "-" + m[2]
}

func (s Source) baseURL() string {
	u := strings.TrimSpace(s.BaseURL)
	if u == "" {
		return "https://javdb.com"
	}
	return strings.TrimRight(u, "/")
}

// Fetch 先搜索再进入详情页：
// <base>/search?q=<ABC-123>&f=all
func (s Source) Fetch(ctx context.Context, query string) (*provider.Result, error) {
	if s.Client == nil {
		return nil, errors.New("http client 不能为空")
	}
	code := dashed(query)
	if code == "" {
		return nil, fmt.Errorf("指纹无法还原为番号：%q", query)
	}

	base := s.baseURL()
	searchHTML, err := fetchURL(ctx, s.Client, base+"/search?q="+url.QueryEscape(code)+"&f=all")
	if err != nil {
		return nil, err
	}

	href, err := FindDetailHref(searchHTML, code)
	if err != nil {
		return nil, err
	}
	if href == "" {
		return nil, nil
	}

	detailHTML, err := fetchURL(ctx, s.Client, resolveURL(base+"/", href))
	if err != nil {
		return nil, err
	}

	meta, coverURL, err := ParseDetail(detailHTML)
	if err != nil {
		return nil, err
	}

	res := &provider.Result{Meta: *meta}
	if coverURL != "" {
		ic := s.ImageClient
		if ic == nil {
			ic = s.Client
		}
		cover := resolveURL(base+"/", coverURL)
		b, err := fetchURL(ctx, ic, cover)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			// 封面失败不拖垮整次抓取。
		} else {
			res.ThumbBytes = b
			res.ThumbExt = extFromURL(cover)
		}
	}
	return res, nil
}

// FindDetailHref 在搜索结果里找番号完全匹配的详情页链接；无匹配返回 ""。
func FindDetailHref(searchHTML []byte, code string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(searchHTML))
	if err != nil {
		return "", err
	}

	want := strings.ToUpper(strings.TrimSpace(code))
	href := ""
	doc.Find("div.movie-list div.item a.box").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		got := strings.ToUpper(strings.TrimSpace(sel.Find("div.video-title strong").First().Text()))
		if got != want {
			return true
		}
		if h, ok := sel.Attr("href"); ok {
			href = strings.TrimSpace(h)
		}
		return false
	})
	return href, nil
}

// ParseDetail 把详情页 HTML 解析为元数据与封面 URL。
//
// JavDB 的标题有时显示中文翻译（current-title），同时提供隐藏的 origin-title；
// 优先取原标题。goquery 不执行 CSS，display:none 的文本照样可读。
func ParseDetail(html []byte) (*domain.VideoMeta, string, error) {
	if len(html) == 0 {
		return nil, "", errors.New("html 为空")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, "", err
	}

	title := normSpace(doc.Find("h2.title span.origin-title").First().Text())
	if title == "" {
		title = normSpace(doc.Find("h2.title strong.current-title").First().Text())
	}

	var (
		release string
		actors  []string
		tags    []string
	)
	doc.Find("nav.movie-panel-info .panel-block").Each(func(_ int, sel *goquery.Selection) {
		switch normHeader(sel.Find("strong").First().Text()) {
		case "日期", "Date":
			release = strings.TrimSpace(sel.Find("span.value").First().Text())
		case "演員", "演员", "Actor", "Actors", "Actress", "Cast":
			sel.Find("span.value a").Each(func(_ int, a *goquery.Selection) {
				actors = append(actors, strings.TrimSpace(a.Text()))
			})
		case "類別", "类别", "Tag", "Tags", "Genre", "Genres", "Category", "Categories":
			sel.Find("span.value a").Each(func(_ int, a *goquery.Selection) {
				tags = append(tags, strings.TrimSpace(a.Text()))
			})
		}
	})

	coverURL := ""
	if href, ok := doc.Find(".column-video-cover a[data-fancybox='gallery']").First().Attr("href"); ok {
		coverURL = strings.TrimSpace(href)
	}
	if coverURL == "" {
		if src, ok := doc.Find(".column-video-cover img.video-cover").First().Attr("src"); ok {
			coverURL = strings.TrimSpace(src)
		}
	}

	meta := &domain.VideoMeta{
		Title:  title,
		Actors: normList(actors),
		Tags:   normList(tags),
	}
	if d, err := domain.ParseDateOnly(release); err == nil {
		meta.Date = &d
	}
	return meta, coverURL, nil
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

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}

func extFromURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return path.Ext(parsed.Path)
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

func normHeader(s string) string {
	s = normSpace(s)
	s = strings.TrimSuffix(s, ":")
	s = strings.TrimSuffix(s, "：")
	return strings.TrimSpace(s)
}

func normList(in []string) []string {
	m := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := m[s]; ok {
			continue
		}
		m[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
