package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/ashwinyue/next-kb/internal/kberrors"
)

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"utf8", []byte("hello 世界"), "hello 世界"},
		{"utf8 with bom", append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello")...), "hello"},
		// "中文" 的 GBK/GB18030 编码
		{"gb18030", []byte{0xD6, 0xD0, 0xCE, 0xC4}, "中文"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeText(tt.data)
			if err != nil {
				t.Fatalf("decodeText() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("decodeText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeText_ArbitraryBytesNeverFail(t *testing.T) {
	// 任意字节序列最终由 Latin-1 兜底，不应报错
	data := []byte{0xFF, 0x00, 0xFE, 0x80, 0x81}
	got, err := decodeText(data)
	if err != nil {
		t.Fatalf("decodeText() error = %v", err)
	}
	if got == "" {
		t.Error("decodeText() returned empty string for non-empty input")
	}
}

func TestParseCSV(t *testing.T) {
	csvData := "name,role\nalice,admin\nbob,viewer\n"
	got, err := parseCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("parseCSV() error = %v", err)
	}
	want := "name: alice, role: admin\nname: bob, role: viewer"
	if got != want {
		t.Errorf("parseCSV() = %q, want %q", got, want)
	}
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	got, err := parseCSV(strings.NewReader("col1,col2\n"))
	if err != nil {
		t.Fatalf("parseCSV() error = %v", err)
	}
	if got != "col1, col2" {
		t.Errorf("parseCSV() = %q, want header row", got)
	}
}

func TestParse_Text(t *testing.T) {
	got, err := Parse(context.Background(), "notes.txt", "text/plain", strings.NewReader("some notes"), Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got != "some notes" {
		t.Errorf("Parse() = %q, want %q", got, "some notes")
	}
}

func TestParse_UnsupportedType(t *testing.T) {
	_, err := Parse(context.Background(), "archive.tar.gz", "", strings.NewReader("x"), Options{})
	if err == nil {
		t.Fatal("Parse() should reject unsupported file type")
	}
	if !kberrors.IsKind(err, kberrors.KindParse) {
		t.Errorf("Parse() error kind = %v, want parse", kberrors.KindOf(err))
	}
}

type fakeVision struct {
	text string
	err  error
}

func (f *fakeVision) ExtractText(_ context.Context, _, _ string, _ []byte) (string, error) {
	return f.text, f.err
}

func TestParse_ImageWithoutVision(t *testing.T) {
	_, err := Parse(context.Background(), "scan.png", "image/png", strings.NewReader("binary"), Options{})
	if err == nil {
		t.Fatal("Parse() should reject images without a vision model")
	}
	if !kberrors.IsKind(err, kberrors.KindParse) {
		t.Errorf("Parse() error kind = %v, want parse", kberrors.KindOf(err))
	}
}

func TestParse_ImageWithVision(t *testing.T) {
	opts := Options{Vision: &fakeVision{text: "# 提取的标题\n正文内容"}, VisionModel: "gpt-4o"}
	got, err := Parse(context.Background(), "scan.png", "image/png", strings.NewReader("binary"), opts)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !strings.Contains(got, "提取的标题") {
		t.Errorf("Parse() = %q, want vision output", got)
	}
}
