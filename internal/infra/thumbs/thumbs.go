// Package thumbs 是缩略图字节仓：key→文件的薄映射，落在 <BaseDir>/cache/ 下。
package thumbs

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/John-Robertt/airi/internal/infra/fsx"
	"github.com/John-Robertt/airi/internal/libpath"
)

// ErrEmptyPayload 表示调用方传入了空字节：这是调用错误，不重试。
var ErrEmptyPayload = errors.New("thumbs: 缩略图字节不能为空")

// Store 管理缩略图文件的写入与命名。
//
// 约束：
// - 文件名 = 清洗后的 key + UTC 时间戳 + 规范化扩展名（避免覆盖历史缩略图）
// - 返回相对 BaseDir 的库路径（"./cache/..."），供目录直接引用
type Store struct {
	BaseDir string

	// now 可在测试中替换，保证文件名可预测。
	now func() time.Time
}

func New(baseDir string) *Store {
	return &Store{
		BaseDir: strings.TrimSpace(baseDir),
		now:     time.Now,
	}
}

// Save 写入缩略图字节并返回其库路径。
func (s *Store) Save(data []byte, ext, key string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyPayload
	}

	now := s.now
	if now == nil {
		// 零值 Store 也要能用，不强制经过 New。
		now = time.Now
	}
	ts := now().UTC()
	name := sanitizeKey(key) + "_" + ts.Format("20060102_150405") +
		fmt.Sprintf("%03d", ts.Nanosecond()/int(time.Millisecond)) + normalizeExt(ext)

	dir := s.BaseDir + "/cache"
	if err := fsx.WriteFileAtomicReplace(dir, name, data); err != nil {
		return "", err
	}
	return libpath.Normalize("cache/" + name), nil
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.ToLower(ext)
}

// sanitizeKey 只保留字母数字，其余替换为 '_'；空白 key 兜底为 "thumb"。
func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "thumb"
	}

	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
