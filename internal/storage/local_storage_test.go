package storage

import (
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	ls, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	return ls
}

func TestSaveAndOpenFile(t *testing.T) {
	ls := newTestStorage(t)

	content := "fake video bytes"
	filename, err := ls.SaveFile(strings.NewReader(content), FileInfo{
		Filename:    "movie.mp4",
		ContentType: "video/mp4",
		Size:        int64(len(content)),
	})
	if err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	if filepath.Ext(filename) != ".mp4" {
		t.Errorf("stored filename %q lost its extension", filename)
	}
	if filename == "movie.mp4" {
		t.Error("stored filename should not reuse the upload's name")
	}

	f, err := ls.OpenFile(filename)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(got) != content {
		t.Errorf("stored content = %q, want %q", got, content)
	}
}

func TestSaveFileDefaultsExtension(t *testing.T) {
	ls := newTestStorage(t)

	filename, err := ls.SaveFile(strings.NewReader("x"), FileInfo{Filename: "noext"})
	if err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	if filepath.Ext(filename) != ".mp4" {
		t.Errorf("stored filename %q, want a default .mp4 extension", filename)
	}
}

func TestDeleteFile(t *testing.T) {
	ls := newTestStorage(t)

	filename, err := ls.SaveFile(strings.NewReader("x"), FileInfo{Filename: "movie.mp4"})
	if err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	if err := ls.DeleteFile(filename); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if _, err := ls.OpenFile(filename); err == nil {
		t.Fatal("opened a deleted file")
	}
}

func TestPathTraversalRejected(t *testing.T) {
	ls := newTestStorage(t)

	if _, err := ls.OpenFile("../../etc/passwd"); err == nil {
		t.Error("OpenFile accepted a traversal path")
	}
	if err := ls.DeleteFile("../../etc/passwd"); err == nil {
		t.Error("DeleteFile accepted a traversal path")
	}
}

func TestFilePathStaysUnderBase(t *testing.T) {
	base := t.TempDir()
	ls, err := NewLocalStorage(base)
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	if got := ls.FilePath("clip.mp4"); got != filepath.Join(base, "clip.mp4") {
		t.Errorf("FilePath = %q", got)
	}
}
