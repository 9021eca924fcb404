package libpath

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Videos/sample.mp4", "./Videos/sample.mp4"},
		{"./Videos/sample.mp4", "./Videos/sample.mp4"},
		{"../Videos/sample.mp4", "../Videos/sample.mp4"},
		{"  Videos/sample.mp4  ", "./Videos/sample.mp4"},
		{`Videos\nested\sample.mp4`, "./Videos/nested/sample.mp4"},
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Fatalf("Normalize(%q)：期望 %q，实际 %q", c.in, c.want, got)
		}
	}
}

func TestNormalize_PreservesRootedPath(t *testing.T) {
	rooted := filepath.Join(t.TempDir(), "sample.mp4")
	want := strings.ReplaceAll(rooted, "\\", "/")
	if got := Normalize(rooted); got != want {
		t.Fatalf("绝对路径只应替换分隔符：期望 %q，实际 %q", want, got)
	}
}

func TestCombine(t *testing.T) {
	got := Combine("./Videos", filepath.Join("nested", "sample.mp4"))
	if got != "./Videos/nested/sample.mp4" {
		t.Fatalf("Combine 结果不符：%q", got)
	}
	if got := Combine("", "sample.mp4"); got != "./sample.mp4" {
		t.Fatalf("root 为空应退化为 Normalize(rel)：%q", got)
	}
	if got := Combine("./Videos", ""); got != "./Videos" {
		t.Fatalf("rel 为空应退化为 Normalize(root)：%q", got)
	}
}

func TestKey_CaseInsensitive(t *testing.T) {
	if Key("./Videos/ABC-123.MP4") != Key("videos/abc-123.mp4") {
		t.Fatalf("Key 必须大小写不敏感且前缀归一")
	}
}

func TestResolver_Abs(t *testing.T) {
	base := t.TempDir()
	r := Resolver{BaseDir: base}

	got := r.Abs("./Videos/sample.mp4")
	want := filepath.Join(base, "Videos", "sample.mp4")
	if got != want {
		t.Fatalf("相对库路径应相对 BaseDir 解析：期望 %q，实际 %q", want, got)
	}

	abs := filepath.Join(base, "x.mp4")
	if got := r.Abs(abs); got != abs {
		t.Fatalf("绝对路径应原样 Clean：%q", got)
	}
	if got := r.Abs("  "); got != "" {
		t.Fatalf("空白输入应返回空串：%q", got)
	}
}

func TestStem(t *testing.T) {
	if got := Stem("./Videos/nested/ABC-123.mp4"); got != "ABC-123" {
		t.Fatalf("Stem 期望 ABC-123，实际 %q", got)
	}
}

func TestCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"FC2-PPV-12345", "FC2PPV12345"},
		{"abp-123", "ABP123"},
		{"  s-cute  999 ", "SCUTE999"},
		{"CAWD 895", "CAWD895"},
		{"Some Movie Title", "SOMEMOVIETITLE"},
		{"", ""},
		{"!!!", ""},
	}
	for _, c := range cases {
		if got := Code(c.in); got != c.want {
			t.Fatalf("Code(%q)：期望 %q，实际 %q", c.in, c.want, got)
		}
	}
}
