// Package translate 定义文本翻译的窄接口与 DeepL 实现。
//
// 翻译是锦上添花：普通失败降级为返回原文，只有取消会向上传播。
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// Service 是描述翻译的最小接口。
type Service interface {
	// Enabled 报告服务是否已配置（未配置时上层直接跳过翻译）。
	Enabled() bool
	// Translate 把 text 译为 targetLang；sourceLang 为空表示自动检测。
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Disabled 是未配置翻译时的空实现：原样返回输入。
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}

// DeepL 调用 DeepL v2 REST 接口。
//
// 约束：普通失败（网络、非 2xx、解析）返回原文且 err 为 nil；
// ctx 取消原样传播；targetLang 为空是调用错误。
type DeepL struct {
	AuthKey string
	Client  *http.Client
	Log     zerolog.Logger

	// BaseURL 覆盖接口地址（测试用）；为空时按 AuthKey 推导。
	BaseURL string
}

func (d *DeepL) Enabled() bool {
	return strings.TrimSpace(d.AuthKey) != ""
}

func (d *DeepL) endpoint() string {
	if d.BaseURL != "" {
		return strings.TrimRight(d.BaseURL, "/") + "/v2/translate"
	}
	// free 套餐的 key 以 ":fx" 结尾，走独立域名。
	if strings.HasSuffix(d.AuthKey, ":fx") {
		return "https://api-free.deepl.com/v2/translate"
	}
	return "https://api.deepl.com/v2/translate"
}

func (d *DeepL) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(targetLang) == "" {
		return text, errors.New("translate: target_lang 不能为空")
	}
	if strings.TrimSpace(text) == "" || !d.Enabled() {
		return text, nil
	}

	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", targetLang)
	if sourceLang != "" {
		form.Set("source_lang", sourceLang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint(),
		strings.NewReader(form.Encode()))
	if err != nil {
		return text, nil
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.AuthKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return text, ctx.Err()
		}
		d.Log.Warn().Err(err).Msg("翻译请求失败，保留原文")
		return text, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.Log.Warn().Int("status", resp.StatusCode).Msg("翻译接口返回非 2xx，保留原文")
		return text, nil
	}

	var body struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || len(body.Translations) == 0 {
		d.Log.Warn().Err(err).Msg("翻译响应不可解析，保留原文")
		return text, nil
	}

	out := strings.TrimSpace(body.Translations[0].Text)
	if out == "" {
		return text, nil
	}
	return out, nil
}
