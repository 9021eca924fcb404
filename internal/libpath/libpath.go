// Package libpath 定义“库路径”的规范化规则与文件名指纹（CODE）。
//
// 库路径是目录的稳定身份键：正斜杠分隔、相对路径统一带 "./" 前缀、
// 比较时大小写不敏感。所有出入目录的路径都必须先经过这里。
package libpath

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Normalize 把任意用户输入/扫描产物规范化为库路径形态。
//
// 规则：
// - 去首尾空白；反斜杠统一为 '/'
// - 绝对路径、"./"、"../" 开头的输入保持原前缀
// - 其余相对路径补 "./" 前缀
// - 空白输入返回 ""
func Normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}

	n := strings.ReplaceAll(p, "\\", "/")
	if filepath.IsAbs(p) || strings.HasPrefix(n, "/") ||
		strings.HasPrefix(n, "./") || strings.HasPrefix(n, "../") {
		return n
	}
	return "./" + strings.TrimLeft(n, "/")
}

// Combine 把 target 根与相对路径拼为库路径（结果已 Normalize）。
func Combine(root, rel string) string {
	root = strings.TrimSpace(root)
	rel = strings.TrimSpace(rel)
	if root == "" {
		return Normalize(rel)
	}
	if rel == "" {
		return Normalize(root)
	}
	n := Normalize(root)
	return n + "/" + strings.Trim(strings.ReplaceAll(rel, "\\", "/"), "/")
}

// Key 返回用于 map/比较的身份键：Normalize 后统一小写。
// 目录内所有按路径索引的结构（diff、队列、条目查找）都用 Key。
func Key(p string) string {
	return strings.ToLower(Normalize(p))
}

// Stem 返回库路径的裸文件名（去扩展名），用于默认标题与兜底查询。
func Stem(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// Resolver 把库路径解析为进程内的绝对路径。
//
// BaseDir 由上层显式注入（通常是配置里的 path），不依赖任何进程级单例。
type Resolver struct {
	BaseDir string
}

// Abs 解析库路径为 clean + absolute 的本地路径。
//
// - 绝对路径直接 Clean
// - "./" 前缀先剥掉，再相对 BaseDir 解析
// - 空白输入返回 ""
func (r Resolver) Abs(libraryPath string) string {
	libraryPath = strings.TrimSpace(libraryPath)
	if libraryPath == "" {
		return ""
	}

	native := filepath.FromSlash(strings.ReplaceAll(libraryPath, "\\", "/"))
	if filepath.IsAbs(native) {
		return filepath.Clean(native)
	}

	trimmed := strings.TrimPrefix(libraryPath, "./")
	return filepath.Clean(filepath.Join(r.BaseDir, filepath.FromSlash(trimmed)))
}

// 允许的编号惯例：字母开头的字母数字段，经分隔符连接，以数字段收尾。
// 覆盖 ABC-123 / FC2-PPV-12345 / s-cute 999 这类形态。
var idRE = regexp.MustCompile(`(?i)\b[a-z][a-z0-9]*(?:[\s._-]+[a-z0-9]+)*[\s._-]+[0-9]{2,7}\b`)

// Code 把标题/文件名规范化为字母数字指纹，用作搜索查询与缓存键。
//
// 识别出编号惯例时取其字母数字段拼接并大写（"FC2-PPV-12345" => "FC2PPV12345"）；
// 否则退化为“只保留字母与数字”并大写。空白输入返回 ""。
func Code(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if m := idRE.FindString(s); m != "" {
		return keepAlnumUpper(m)
	}
	return keepAlnumUpper(s)
}

func keepAlnumUpper(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		}
	}
	return b.String()
}
