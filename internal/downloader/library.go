// library.go — перемещение результатов скачивания в библиотеку
// и вспомогательные операции над директориями.
package downloader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// audioExtensions — расширения файлов, считающихся аудио.
var audioExtensions = map[string]bool{
	".flac": true,
	".mp3":  true,
	".opus": true,
	".ogg":  true,
	".m4a":  true,
	".wav":  true,
}

// MoveToLibrary перемещает директорию src в libraryDir, добавляя prefix
// к имени. Существующая директория с тем же именем перезаписывается.
// Возвращает путь к директории в библиотеке.
func MoveToLibrary(src, libraryDir, prefix string) (string, error) {
	folderName := prefix + filepath.Base(src)
	dest := filepath.Join(libraryDir, folderName)

	if _, err := os.Stat(dest); err == nil {
		if err := os.RemoveAll(dest); err != nil {
			return "", fmt.Errorf("не удалось удалить существующую директорию %s: %w", dest, err)
		}
	}

	if err := os.Rename(src, dest); err != nil {
		// Rename не работает между файловыми системами — копируем вручную
		if copyErr := copyTree(src, dest); copyErr != nil {
			return "", fmt.Errorf("не удалось переместить %s в библиотеку: %w", src, copyErr)
		}
		if rmErr := os.RemoveAll(src); rmErr != nil {
			return "", fmt.Errorf("директория скопирована, но исходная не удалена: %w", rmErr)
		}
	}

	return dest, nil
}

// CountAudioFiles возвращает количество аудиофайлов в директории (рекурсивно).
func CountAudioFiles(folder string) int {
	count := 0
	_ = filepath.WalkDir(folder, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && audioExtensions[strings.ToLower(filepath.Ext(path))] {
			count++
		}
		return nil
	})
	return count
}

// SnapshotDirs возвращает множество имён поддиректорий dir.
// Используется вместе с NewDirs для определения директорий, созданных
// внешним инструментом. Эвристика корректна только потому, что воркер
// очереди гарантирует эксклюзивное использование временной директории
// одной задачей: параллельные записи исказили бы разность множеств.
func SnapshotDirs(dir string) map[string]bool {
	snapshot := make(map[string]bool)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return snapshot
	}
	for _, e := range entries {
		if e.IsDir() {
			snapshot[e.Name()] = true
		}
	}
	return snapshot
}

// NewDirs возвращает поддиректории dir, отсутствовавшие в снимке before.
func NewDirs(dir string, before map[string]bool) []string {
	var result []string
	entries, err := os.ReadDir(dir)
	if err != nil {
		return result
	}
	for _, e := range entries {
		if e.IsDir() && !before[e.Name()] {
			result = append(result, filepath.Join(dir, e.Name()))
		}
	}
	return result
}

// copyTree рекурсивно копирует директорию src в dest.
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.Create(target)
		if err != nil {
			return err
		}

		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}
