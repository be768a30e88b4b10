package downloader

import (
	"os"
	"path/filepath"
	"testing"
)

// makeTree создаёт директорию с файлами для теста.
func makeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("ошибка создания директории: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("ошибка записи файла: %v", err)
		}
	}
}

// TestMoveToLibrary проверяет перемещение директории с префиксом.
func TestMoveToLibrary(t *testing.T) {
	tmp := t.TempDir()
	lib := t.TempDir()

	src := filepath.Join(tmp, "Artist - Album")
	makeTree(t, src, map[string]string{
		"track01.opus": "data",
		"cover.jpg":    "img",
	})

	dest, err := MoveToLibrary(src, lib, "[YT] ")
	if err != nil {
		t.Fatalf("ошибка перемещения: %v", err)
	}

	want := filepath.Join(lib, "[YT] Artist - Album")
	if dest != want {
		t.Errorf("путь назначения: ожидалось %s, получено %s", want, dest)
	}

	if _, err := os.Stat(filepath.Join(dest, "track01.opus")); err != nil {
		t.Errorf("файл не перемещён: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("исходная директория должна быть удалена")
	}
}

// TestMoveToLibrary_Overwrite проверяет перезапись существующей директории.
func TestMoveToLibrary_Overwrite(t *testing.T) {
	tmp := t.TempDir()
	lib := t.TempDir()

	existing := filepath.Join(lib, "Album")
	makeTree(t, existing, map[string]string{"old.mp3": "old"})

	src := filepath.Join(tmp, "Album")
	makeTree(t, src, map[string]string{"new.flac": "new"})

	dest, err := MoveToLibrary(src, lib, "")
	if err != nil {
		t.Fatalf("ошибка перемещения: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "old.mp3")); !os.IsNotExist(err) {
		t.Error("старое содержимое должно быть удалено")
	}
	if _, err := os.Stat(filepath.Join(dest, "new.flac")); err != nil {
		t.Errorf("новое содержимое отсутствует: %v", err)
	}
}

// TestCountAudioFiles проверяет подсчёт аудиофайлов по расширениям.
func TestCountAudioFiles(t *testing.T) {
	dir := t.TempDir()
	makeTree(t, dir, map[string]string{
		"a.flac":        "x",
		"b.mp3":         "x",
		"c.OPUS":        "x", // регистр расширения не важен
		"sub/d.ogg":     "x",
		"sub/e.m4a":     "x",
		"cover.jpg":     "x",
		"notes.txt":     "x",
		"sub/video.mp4": "x",
	})

	if got := CountAudioFiles(dir); got != 5 {
		t.Errorf("количество аудиофайлов: ожидалось 5, получено %d", got)
	}
}

// TestSnapshotAndNewDirs проверяет определение созданных директорий
// разностью снимков.
func TestSnapshotAndNewDirs(t *testing.T) {
	dir := t.TempDir()
	makeTree(t, dir, map[string]string{"existing/a.mp3": "x"})

	before := SnapshotDirs(dir)
	if !before["existing"] {
		t.Fatal("снимок должен содержать existing")
	}

	makeTree(t, dir, map[string]string{"created/b.mp3": "x"})

	created := NewDirs(dir, before)
	if len(created) != 1 {
		t.Fatalf("ожидалась одна новая директория, получено %d", len(created))
	}
	if filepath.Base(created[0]) != "created" {
		t.Errorf("ожидалась директория created, получено %s", created[0])
	}
}

// TestNewDirs_Empty проверяет отсутствие новых директорий.
func TestNewDirs_Empty(t *testing.T) {
	dir := t.TempDir()
	before := SnapshotDirs(dir)
	if got := NewDirs(dir, before); len(got) != 0 {
		t.Errorf("ожидался пустой результат, получено %v", got)
	}
}
