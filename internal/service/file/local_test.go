package file

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestLocalStorage_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}

	path, err := storage.Save(ctx, &SaveRequest{
		KnowledgeBaseID: 42,
		FileName:        "report.pdf",
		ContentType:     "application/pdf",
		Size:            4,
		Reader:          strings.NewReader("%PDF"),
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.HasPrefix(path, "kb_42/") {
		t.Errorf("Save() path = %q, want kb_42/ prefix", path)
	}
	if !strings.HasSuffix(path, ".pdf") {
		t.Errorf("Save() path = %q, want original extension kept", path)
	}

	rc, err := storage.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	content, _ := io.ReadAll(rc)
	rc.Close()
	if string(content) != "%PDF" {
		t.Errorf("Get() content = %q, want %%PDF", content)
	}

	if err := storage.Delete(ctx, path); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := storage.Get(ctx, path); err == nil {
		t.Error("Get() after Delete should fail")
	}
	// 重复删除应幂等成功
	if err := storage.Delete(ctx, path); err != nil {
		t.Errorf("Delete() twice error = %v, want nil", err)
	}
}
