package files

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hydrozen/leakwatch/internal/errors"
)

func newRepo(t *testing.T) (*ImageRepo, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := NewImageRepository(FileConfig{BasePath: dir, PublicBaseURL: "http://localhost:8080/images/"})
	if err != nil {
		t.Fatalf("NewImageRepository: %v", err)
	}
	return repo, dir
}

func TestUploadWritesFileAndReturnsURL(t *testing.T) {
	repo, dir := newRepo(t)

	url, err := repo.Upload(context.Background(), "leakage-reports/usr_1/1700000000000.jpg", "image/jpeg", strings.NewReader("jpegdata"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "http://localhost:8080/images/leakage-reports/usr_1/1700000000000.jpg" {
		t.Errorf("url = %q", url)
	}
	data, err := os.ReadFile(filepath.Join(dir, "leakage-reports", "usr_1", "1700000000000.jpg"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "jpegdata" {
		t.Errorf("content = %q", data)
	}
}

func TestUploadNeverOverwrites(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	if _, err := repo.Upload(ctx, "a/b.png", "image/png", strings.NewReader("1")); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	_, err := repo.Upload(ctx, "a/b.png", "image/png", strings.NewReader("2"))
	if !errors.IsDuplicate(err) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestUploadRejectsTraversal(t *testing.T) {
	repo, _ := newRepo(t)
	for _, name := range []string{"", "../etc/passwd", "a/../../b.png"} {
		if _, err := repo.Upload(context.Background(), name, "image/png", strings.NewReader("x")); !errors.IsValidation(err) {
			t.Errorf("name %q: expected validation error, got %v", name, err)
		}
	}
}

func TestUploadCancelled(t *testing.T) {
	repo, _ := newRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := repo.Upload(ctx, "a/c.png", "image/png", strings.NewReader("x")); !errors.IsUpload(err) {
		t.Fatalf("expected upload error, got %v", err)
	}
}
