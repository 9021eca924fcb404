package fsx

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomicReplace_CreatesAndOverwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	if err := WriteFileAtomicReplace(dir, "a.json", []byte("v1")); err != nil {
		t.Fatalf("首次写入失败：%v", err)
	}
	if err := WriteFileAtomicReplace(dir, "a.json", []byte("v2")); err != nil {
		t.Fatalf("覆盖写入失败：%v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "a.json"))
	if err != nil {
		t.Fatalf("读取失败：%v", err)
	}
	if string(b) != "v2" {
		t.Fatalf("期望 v2，实际 %q", b)
	}
}

func TestWriteFileAtomicReplace_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	if err := WriteFileAtomicReplace(dir, "a.json", []byte("x")); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.json" {
		t.Fatalf("目录里不应残留临时文件：%v", entries)
	}
}
