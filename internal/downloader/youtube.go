// youtube.go — адаптер скачивания аудио с YouTube через yt-dlp.
package downloader

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bigkaa/musicdrop/internal/domain/model"
)

// destinationRe — строка yt-dlp вида "[download] Destination: <путь>".
var destinationRe = regexp.MustCompile(`\[download\] Destination: (.+)`)

// YouTubeDownloader — адаптер YouTube (yt-dlp, аудио в opus).
type YouTubeDownloader struct {
	runner      *CommandRunner
	downloadDir string
	libraryDir  string
	logger      *slog.Logger
}

// NewYouTubeDownloader создаёт адаптер YouTube.
func NewYouTubeDownloader(runner *CommandRunner, downloadDir, libraryDir string, logger *slog.Logger) *YouTubeDownloader {
	return &YouTubeDownloader{
		runner:      runner,
		downloadDir: downloadDir,
		libraryDir:  libraryDir,
		logger:      logger.With(slog.String("component", "youtube_downloader")),
	}
}

// ServiceName возвращает имя сервиса.
func (d *YouTubeDownloader) ServiceName() string { return "YouTube" }

// FolderPrefix возвращает префикс директорий в библиотеке.
func (d *YouTubeDownloader) FolderPrefix() string { return YouTubePrefix }

// Download скачивает аудио по URL. Директория результата определяется
// из вывода yt-dlp (явный контракт); при неудаче — сканированием
// временной директории.
func (d *YouTubeDownloader) Download(ctx context.Context, url string) (*model.DownloadResult, error) {
	// Шаблон вывода: "<плейлист|канал> - <название>/<название>.<расширение>"
	outputTemplate := filepath.Join(
		d.downloadDir,
		"%(playlist_title,channel)s - %(title)s",
		"%(title)s.%(ext)s",
	)

	playlistFlag := "--no-playlist"
	if strings.Contains(url, "list=") {
		playlistFlag = "--yes-playlist"
	}

	args := []string{
		"--extractor-args", "youtube:player_client=android,web",
		"--extract-audio",
		"--audio-format", "opus",
		"--audio-quality", "0",
		"--embed-thumbnail",
		"--embed-metadata",
		"--output", outputTemplate,
		playlistFlag,
		url,
	}

	stdout, stderr, err := d.runner.Run(ctx, "", "yt-dlp", args...)
	if err != nil {
		detail := strings.TrimSpace(stderr)
		if detail == "" {
			detail = strings.TrimSpace(stdout)
		}
		if detail == "" {
			detail = err.Error()
		}
		return &model.DownloadResult{
			Success: false,
			Message: "Скачивание не удалось",
			Error:   detail,
		}, nil
	}

	folder := d.findDownloadedFolder(stdout)
	if folder == "" {
		return &model.DownloadResult{
			Success: true,
			Message: "Скачивание завершено (директория не определена)",
		}, nil
	}

	// Обложка cover.jpg для библиотеки
	d.generateCover(ctx, url, folder)

	fileCount := CountAudioFiles(folder)
	dest, err := MoveToLibrary(folder, d.libraryDir, d.FolderPrefix())
	if err != nil {
		return nil, err
	}

	return &model.DownloadResult{
		Success:    true,
		Message:    "Скачивание завершено: " + filepath.Base(dest),
		FolderPath: dest,
		FileCount:  fileCount,
	}, nil
}

// findDownloadedFolder определяет директорию результата по выводу yt-dlp.
// Fallback — первая поддиректория временной директории (см. SnapshotDirs
// про допущение эксклюзивности).
func (d *YouTubeDownloader) findDownloadedFolder(output string) string {
	if m := destinationRe.FindStringSubmatch(output); m != nil {
		parent := filepath.Dir(strings.TrimSpace(m[1]))
		if info, err := os.Stat(parent); err == nil && info.IsDir() {
			return parent
		}
	}

	entries, err := os.ReadDir(d.downloadDir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() {
			return filepath.Join(d.downloadDir, e.Name())
		}
	}
	return ""
}

// generateCover сохраняет миниатюру ролика как cover.jpg в директории folder.
// Ошибки не фатальны: обложка — вспомогательный артефакт.
func (d *YouTubeDownloader) generateCover(ctx context.Context, url, folder string) {
	coverPath := filepath.Join(folder, "cover.jpg")
	if _, err := os.Stat(coverPath); err == nil {
		return
	}

	args := []string{
		"--extractor-args", "youtube:player_client=android,web",
		"--skip-download",
		"--write-thumbnail",
		"--convert-thumbnails", "jpg",
		"--output", filepath.Join(folder, "cover"),
		"--no-playlist",
		url,
	}

	_, stderr, err := d.runner.Run(ctx, "", "yt-dlp", args...)
	if err != nil {
		d.logger.Warn("Не удалось получить миниатюру",
			slog.String("url", url),
			slog.String("error", strings.TrimSpace(stderr)),
		)
		return
	}

	// yt-dlp может создать cover.jpg.jpg или cover.webp — приводим к cover.jpg
	matches, _ := filepath.Glob(filepath.Join(folder, "cover*.jpg"))
	for _, m := range matches {
		if filepath.Base(m) != "cover.jpg" {
			_ = os.Rename(m, coverPath)
			break
		}
	}
	webp, _ := filepath.Glob(filepath.Join(folder, "cover*.webp"))
	for _, m := range webp {
		_ = os.Rename(m, coverPath)
		break
	}

	d.logger.Info("Обложка сохранена", slog.String("path", coverPath))
}
