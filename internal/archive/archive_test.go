package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func makeAlbum(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Artist - Album")
	if err := os.MkdirAll(filepath.Join(dir, "CD1"), 0o750); err != nil {
		t.Fatalf("ошибка создания директории: %v", err)
	}
	files := map[string]string{
		"track01.flac":     "aaaa",
		"cover.jpg":        "bb",
		"CD1/track02.flac": "cccccc",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("ошибка записи файла: %v", err)
		}
	}
	return dir
}

// TestCreateZip проверяет упаковку директории с сохранением структуры.
func TestCreateZip(t *testing.T) {
	album := makeAlbum(t)
	dest := filepath.Join(t.TempDir(), "album.zip")

	if err := CreateZip(album, dest); err != nil {
		t.Fatalf("ошибка упаковки: %v", err)
	}

	r, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("ошибка открытия архива: %v", err)
	}
	defer r.Close()

	names := make(map[string]bool)
	for _, f := range r.File {
		names[f.Name] = true
	}

	want := []string{
		"Artist - Album/track01.flac",
		"Artist - Album/cover.jpg",
		"Artist - Album/CD1/track02.flac",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("в архиве отсутствует %s (найдено: %v)", name, names)
		}
	}
}

// TestCreateZip_MissingSource проверяет ошибку для несуществующей директории.
func TestCreateZip_MissingSource(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "x.zip")
	if err := CreateZip(filepath.Join(t.TempDir(), "nope"), dest); err == nil {
		t.Fatal("ожидалась ошибка для несуществующей директории")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("архив не должен быть создан")
	}
}

// TestFolderSize проверяет подсчёт суммарного размера.
func TestFolderSize(t *testing.T) {
	album := makeAlbum(t)
	size, err := FolderSize(album)
	if err != nil {
		t.Fatalf("ошибка подсчёта размера: %v", err)
	}
	if size != 12 {
		t.Errorf("размер: ожидалось 12, получено %d", size)
	}
}

// TestFormatSize проверяет человекочитаемое форматирование.
func TestFormatSize(t *testing.T) {
	cases := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tc := range cases {
		if got := FormatSize(tc.size); got != tc.want {
			t.Errorf("FormatSize(%d): ожидалось %s, получено %s", tc.size, tc.want, got)
		}
	}
}
