// qobuz.go — адаптер скачивания с Qobuz через qobuz-dl.
//
// Единственный адаптер с политикой повторов: фиксированное количество
// попыток (MD_MAX_RETRIES). Это осознанная асимметрия, настраиваемая
// per-adapter, а не общая политика слоя очереди.
package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bigkaa/musicdrop/internal/domain/model"
)

// QobuzDownloader — адаптер Qobuz (qobuz-dl, hi-res без префикса).
type QobuzDownloader struct {
	runner      *CommandRunner
	downloadDir string
	libraryDir  string
	// maxRetries — количество попыток скачивания
	maxRetries int
	logger     *slog.Logger
}

// NewQobuzDownloader создаёт адаптер Qobuz с фиксированным количеством попыток.
func NewQobuzDownloader(runner *CommandRunner, downloadDir, libraryDir string, maxRetries int, logger *slog.Logger) *QobuzDownloader {
	return &QobuzDownloader{
		runner:      runner,
		downloadDir: downloadDir,
		libraryDir:  libraryDir,
		maxRetries:  maxRetries,
		logger:      logger.With(slog.String("component", "qobuz_downloader")),
	}
}

// ServiceName возвращает имя сервиса.
func (d *QobuzDownloader) ServiceName() string { return "Qobuz" }

// FolderPrefix возвращает префикс директорий в библиотеке.
// Hi-res загрузки размещаются без префикса.
func (d *QobuzDownloader) FolderPrefix() string { return "" }

// Download скачивает релиз по URL, повторяя попытки до maxRetries.
// Созданные директории определяются разностью снимков (см. SnapshotDirs).
func (d *QobuzDownloader) Download(ctx context.Context, url string) (*model.DownloadResult, error) {
	before := SnapshotDirs(d.downloadDir)

	var lastDetail string
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		args := []string{
			"dl", url,
			"--directory", d.downloadDir,
			"--quality", "27", // максимальное качество (24bit/192kHz)
			"--embed-art",
			"--no-interactive",
		}

		stdout, stderr, err := d.runner.Run(ctx, "", "qobuz-dl", args...)
		if err == nil {
			return d.collectResult(before)
		}

		lastDetail = strings.TrimSpace(stderr)
		if lastDetail == "" {
			lastDetail = strings.TrimSpace(stdout)
		}
		if lastDetail == "" {
			lastDetail = err.Error()
		}

		d.logger.Warn("Попытка скачивания не удалась",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", d.maxRetries),
			slog.String("error", lastDetail),
		)
	}

	return &model.DownloadResult{
		Success: false,
		Message: fmt.Sprintf("Скачивание не удалось (после %d попыток)", d.maxRetries),
		Error:   lastDetail,
	}, nil
}

// collectResult перемещает созданные директории в библиотеку.
func (d *QobuzDownloader) collectResult(before map[string]bool) (*model.DownloadResult, error) {
	newFolders := NewDirs(d.downloadDir, before)
	for _, folder := range newFolders {
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

	return &model.DownloadResult{
		Success: true,
		Message: "Скачивание завершено (директория не определена)",
	}, nil
}
