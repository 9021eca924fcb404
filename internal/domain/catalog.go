package domain

import (
	"time"
)

// CurrentVersion 是持久化目录文件的当前 schema 版本。
const CurrentVersion = 1

const (
	// DefaultTitle 是标题规范化后的兜底值（标题不允许为空）。
	DefaultTitle = "Untitled"
	// PlaceholderThumbnail 是新条目的占位缩略图（相对库路径）。
	PlaceholderThumbnail = "resources/noimage.jpg"
)

// TargetFolder 描述一个受管目标目录。
//
// 约束：
// - IncludePatterns/ExcludePatterns 是有序 glob 列表（只匹配裸文件名）
// - include 为空视为“匹配所有”；exclude 在 include 之后求值且优先
// - LastScanUtc 仅由扫描周期写入（成功的 scan+apply 之后统一盖章）
type TargetFolder struct {
	Root            string     `json:"Root"`
	IncludePatterns []string   `json:"IncludePatterns"`
	ExcludePatterns []string   `json:"ExcludePatterns"`
	LastScanUtc     *time.Time `json:"LastScanUtc,omitempty"`
}

// VideoMeta 是条目的结构化元数据。
//
// 不变量：规范化之后 Title 永远非空（兜底为 Untitled）。
type VideoMeta struct {
	Title       string    `json:"Title"`
	Date        *DateOnly `json:"Date,omitempty"`
	Actors      []string  `json:"Actors"`
	Thumbnail   string    `json:"Thumbnail"`
	Tags        []string  `json:"Tags"`
	Description string    `json:"Description"`
}

// VideoEntry 是目录内的一条视频记录。
//
// 身份是规范化后的 Path（大小写不敏感比较）；替换式更新，不做字段级原地修改。
// Meta 在解析阶段允许为 nil（用于剔除残缺记录）；规范化之后必为非 nil。
type VideoEntry struct {
	Path            string     `json:"Path"`
	Meta            *VideoMeta `json:"Meta"`
	SizeBytes       int64      `json:"SizeBytes"`
	LastModifiedUtc time.Time  `json:"LastModifiedUtc"`
	CreatedUtc      time.Time  `json:"CreatedUtc"`
}

// CatalogData 是完整的持久化目录。
//
// 不变量：Version >= 1；至少一个 target；每条 video 的 Meta 非 nil。
type CatalogData struct {
	Version int            `json:"Version"`
	Targets []TargetFolder `json:"Targets"`
	Videos  []VideoEntry   `json:"Videos"`
}

// FileSnapshot 是一次扫描观测到的文件快照（临时数据，不落盘）。
type FileSnapshot struct {
	LibraryPath  string
	AbsPath      string
	SizeBytes    int64
	LastWriteUtc time.Time
	CreatedUtc   time.Time
}

// Presence 描述条目对应文件的在场状态（仅用于对外通知，不持久化）。
type Presence int

const (
	PresenceAvailable Presence = iota
	PresenceMissing
)

func (p Presence) String() string {
	switch p {
	case PresenceAvailable:
		return "available"
	case PresenceMissing:
		return "missing"
	default:
		return "unknown"
	}
}
