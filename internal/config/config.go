// Package config 负责 airi.json 的发现、解析、合并与最小规范化。
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 airi.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示无参运行但配置文件缺少 path 字段。
	ErrCodeMissingPath = "config_missing_path"
)

const (
	// DefaultCatalogFile 是目录文件相对 path 的默认位置。
	DefaultCatalogFile = "videos.json"
	// DefaultSeedURL 是自动化会话启动后导航的默认种子地址。
	DefaultSeedURL = "https://www.141jav.com/"
	// DefaultWatchDebounce 是 watch 模式下事件去抖的默认间隔。
	DefaultWatchDebounce = 2 * time.Second
)

// DefaultProviders 是元数据源链的默认顺序。
var DefaultProviders = []string{"nanojav", "javdb"}

// CLIArgs 只包含 CLI 暴露的入口参数，并保留“是否显式指定”的信息。
type CLIArgs struct {
	Path string

	LogLevel    string
	LogLevelSet bool
}

// FileConfig 对应 airi.json 的解析结构。
type FileConfig struct {
	Path        string   `json:"path"`
	CatalogFile string   `json:"catalog_file"`
	Providers   []string `json:"providers"`

	Proxy      *ProxyConfig `json:"proxy"`
	ImageProxy bool         `json:"image_proxy"`

	// KeepMissing=true 时，扫描发现文件缺失的条目仅标记不删除（调试/外置盘场景）。
	KeepMissing bool `json:"keep_missing"`

	SeedURL      string `json:"seed_url"`
	JavDBBaseURL string `json:"javdb_base_url"`

	Translation *TranslationConfig `json:"translation"`

	WatchDebounceMs int `json:"watch_debounce_ms"`

	LogLevel string `json:"log_level"`
	LogJSON  bool   `json:"log_json"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

type TranslationConfig struct {
	DeepLAuthKey string `json:"deepl_auth_key"`
	TargetLang   string `json:"target_lang"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置。
// 实现层直接消费，不再做二次默认/优先级判断。
type EffectiveConfig struct {
	Path        string // 绝对路径：库基准目录（BaseDir）
	CatalogFile string // 绝对路径：目录 JSON 文件

	Providers  []string
	ProxyURL   string
	ImageProxy bool

	KeepMissing bool

	SeedURL      string
	JavDBBaseURL string

	DeepLAuthKey string
	TargetLang   string

	WatchDebounce time.Duration

	LogLevel string
	LogJSON  bool
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 path：尝试读取 <path>/airi.json（可选）
// 2) CLI 未提供 path：必须读取 <cwd>/airi.json（必选），且其中必须包含 path
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if strings.TrimSpace(cli.Path) != "" {
		absPath := absCleanFrom(cwdAbs, cli.Path)
		cfgPath := filepath.Join(absPath, "airi.json")

		fc, _, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		return merge(absPath, cli, fc, cfgPath)
	}

	cfgPath := filepath.Join(cwdAbs, "airi.json")
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Path) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	absPath := absCleanFrom(cwdAbs, fc.Path)
	return merge(absPath, cli, fc, cfgPath)
}

func merge(absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	providers, err := normalizeProviders(fc.Providers)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("proxy.url 无效：%w", err)}
		}
	}
	if fc.ImageProxy && proxyURL == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("image_proxy=true 但 proxy.url 为空")}
	}

	seedURL := strings.TrimSpace(fc.SeedURL)
	if seedURL == "" {
		seedURL = DefaultSeedURL
	}
	if err := validateHTTPURL("seed_url", seedURL); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	javdbBaseURL := strings.TrimSpace(fc.JavDBBaseURL)
	if javdbBaseURL != "" {
		if err := validateHTTPURL("javdb_base_url", javdbBaseURL); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}

	catalogFile := strings.TrimSpace(fc.CatalogFile)
	if catalogFile == "" {
		catalogFile = DefaultCatalogFile
	}
	catalogAbs := absCleanFrom(absPath, catalogFile)

	var authKey, targetLang string
	if fc.Translation != nil {
		authKey = strings.TrimSpace(fc.Translation.DeepLAuthKey)
		targetLang = strings.TrimSpace(fc.Translation.TargetLang)
	}
	if authKey != "" && targetLang == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("配置了 deepl_auth_key 但缺少 target_lang")}
	}

	debounce := DefaultWatchDebounce
	if fc.WatchDebounceMs > 0 {
		debounce = time.Duration(fc.WatchDebounceMs) * time.Millisecond
	}

	// log level：CLI > config > 默认 info。
	logLevel := fc.LogLevel
	if cli.LogLevelSet {
		logLevel = cli.LogLevel
	}

	return EffectiveConfig{
		Path:          absPath,
		CatalogFile:   catalogAbs,
		Providers:     providers,
		ProxyURL:      proxyURL,
		ImageProxy:    fc.ImageProxy,
		KeepMissing:   fc.KeepMissing,
		SeedURL:       seedURL,
		JavDBBaseURL:  javdbBaseURL,
		DeepLAuthKey:  authKey,
		TargetLang:    targetLang,
		WatchDebounce: debounce,
		LogLevel:      logLevel,
		LogJSON:       fc.LogJSON,
	}, nil
}

func normalizeProviders(in []string) ([]string, error) {
	if len(in) == 0 {
		return append([]string(nil), DefaultProviders...), nil
	}

	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			return nil, fmt.Errorf("providers 含空项")
		}
		switch p {
		case "nanojav", "javdb":
		default:
			return nil, fmt.Errorf("未知 provider：%q（允许 nanojav/javdb）", p)
		}
		if _, ok := seen[p]; ok {
			return nil, fmt.Errorf("重复的 provider：%q", p)
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
