package session

import (
	"bytes"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/airi/internal/domain"
)

// 页面解析是纯函数：输入 HTML，输出元数据。浏览器交互都在 Manager 里。
//
// 选择器对应 141Jav 搜索结果页的首个卡片：
// div.card.mb-3 > div.card-content（日期/标签/演员/描述），img.image（封面）。

// ParseMetadata 解析页面首个结果卡片；无卡片返回 nil。
func ParseMetadata(html []byte) *domain.VideoMeta {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}

	content := doc.Find("div.card.mb-3 div.card-content").First()
	if content.Length() == 0 {
		return nil
	}

	var tags []string
	content.Find("div.tags a.tag").Each(func(_ int, a *goquery.Selection) {
		tags = append(tags, a.Text())
	})
	var actors []string
	content.Find("div.panel a.panel-block").Each(func(_ int, a *goquery.Selection) {
		actors = append(actors, a.Text())
	})

	description := ""
	content.Find(".level").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v := strings.TrimSpace(s.Text()); v != "" {
			description = v
			return false
		}
		return true
	})

	return &domain.VideoMeta{
		Date:        extractReleaseDate(content),
		Tags:        dedupTexts(tags),
		Actors:      dedupTexts(actors),
		Description: description,
	}
}

// ParseThumbnailURL 提取卡片封面图地址；依次尝试 src、data-src、srcset。
func ParseThumbnailURL(html []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}

	img := doc.Find("div.card.mb-3 img.image").First()
	if img.Length() == 0 {
		return ""
	}

	if src, ok := img.Attr("src"); ok && strings.TrimSpace(src) != "" {
		return strings.TrimSpace(src)
	}
	if src, ok := img.Attr("data-src"); ok && strings.TrimSpace(src) != "" {
		return strings.TrimSpace(src)
	}
	if srcset, ok := img.Attr("srcset"); ok {
		for _, tok := range strings.FieldsFunc(srcset, func(r rune) bool {
			return r == ' ' || r == ','
		}) {
			if strings.HasPrefix(strings.ToLower(tok), "http") {
				return tok
			}
		}
	}
	return ""
}

var hrefDateRE = regexp.MustCompile(`(\d{4})/(\d{2})/(\d{2})`)

// extractReleaseDate 从 subtitle 里取日期：优先链接 href 的 yyyy/MM/dd 段，
// 其次元素文本。
func extractReleaseDate(content *goquery.Selection) *domain.DateOnly {
	sub := content.Find("p.subtitle.is-6").First()
	if sub.Length() == 0 {
		return nil
	}

	target := sub
	if a := sub.Find("a").First(); a.Length() > 0 {
		target = a
	}

	if href, ok := target.Attr("href"); ok {
		if m := hrefDateRE.FindStringSubmatch(href); m != nil {
			if d, err := domain.ParseDateOnly(m[1] + "-" + m[2] + "-" + m[3]); err == nil {
				return &d
			}
		}
	}

	text := strings.TrimSpace(target.Text())
	for _, layout := range []string{"2006-01-02", "Jan 2, 2006", "January 2, 2006", "2 Jan 2006"} {
		if t, err := time.Parse(layout, text); err == nil {
			d := domain.DateOnlyFromTime(t)
			return &d
		}
	}
	return nil
}

// dedupTexts 去空白并按大小写不敏感去重，保留首次出现的顺序。
func dedupTexts(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}
