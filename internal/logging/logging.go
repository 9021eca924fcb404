// Package logging 集中构造进程唯一的 zerolog.Logger。
// 各组件通过构造函数显式接收 logger，不读取任何包级全局。
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New 按配置构造 logger。
//
// - level：trace/debug/info/warn/error（无法识别时退回 info）
// - jsonOut=false 时输出人读的 console 形态；true 时输出原始 JSON 行
// - 一律写到 stderr：stdout 留给命令自身的输出契约
func New(level string, jsonOut bool) zerolog.Logger {
	var w io.Writer = os.Stderr
	if !jsonOut {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}

	lvl := parseLevel(level)
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "", "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
