// Пакет archive — упаковка директорий библиотеки в zip для раздачи.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CreateZip упаковывает директорию srcDir в zip-архив destPath.
// Пути внутри архива начинаются с имени директории. При ошибке
// частично записанный архив удаляется.
func CreateZip(srcDir, destPath string) error {
	info, err := os.Stat(srcDir)
	if err != nil {
		return fmt.Errorf("директория недоступна: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("путь %s не является директорией", srcDir)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("не удалось создать архив: %w", err)
	}

	if err := writeZip(out, srcDir); err != nil {
		out.Close()
		_ = os.Remove(destPath)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(destPath)
		return err
	}
	return nil
}

func writeZip(out io.Writer, srcDir string) error {
	zw := zip.NewWriter(out)

	// Имена в архиве относительны родителю srcDir:
	// "Album/track.flac", а не "track.flac"
	parent := filepath.Dir(srcDir)

	err := filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Deflate

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("ошибка упаковки %s: %w", srcDir, err)
	}

	return zw.Close()
}

// FolderSize возвращает суммарный размер файлов директории в байтах.
func FolderSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// FormatSize возвращает человекочитаемое представление размера.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
