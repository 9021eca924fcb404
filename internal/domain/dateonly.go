package domain

import (
	"bytes"
	"fmt"
	"time"
)

const dateOnlyLayout = "2006-01-02"

// DateOnly 是只含年月日的日期，JSON 形态固定为 "yyyy-MM-dd"。
// 缺失时序列化为字段省略（配合 *DateOnly + omitempty），而不是 null。
type DateOnly struct {
	t time.Time
}

func NewDateOnly(year int, month time.Month, day int) DateOnly {
	return DateOnly{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOnlyFromTime 截掉时分秒，只保留日期部分（按 UTC）。
func DateOnlyFromTime(t time.Time) DateOnly {
	u := t.UTC()
	return NewDateOnly(u.Year(), u.Month(), u.Day())
}

// ParseDateOnly 解析 "yyyy-MM-dd"。
func ParseDateOnly(s string) (DateOnly, error) {
	t, err := time.Parse(dateOnlyLayout, s)
	if err != nil {
		return DateOnly{}, err
	}
	return DateOnly{t: t.UTC()}, nil
}

func (d DateOnly) Time() time.Time { return d.t }

func (d DateOnly) IsZero() bool { return d.t.IsZero() }

func (d DateOnly) String() string { return d.t.Format(dateOnlyLayout) }

func (d DateOnly) Equal(o DateOnly) bool { return d.t.Equal(o.t) }

func (d DateOnly) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", d.String())), nil
}

func (d *DateOnly) UnmarshalJSON(b []byte) error {
	// 容忍 null：视为零值（上层规范化时会剔除）。
	if bytes.Equal(b, []byte("null")) {
		*d = DateOnly{}
		return nil
	}
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("日期必须是 %q 形式的字符串", dateOnlyLayout)
	}
	parsed, err := ParseDateOnly(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
