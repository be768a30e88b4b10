// spotify.go — адаптер скачивания музыки из Spotify через spotdl.
package downloader

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bigkaa/musicdrop/internal/domain/model"
)

// SpotifyDownloader — адаптер Spotify (spotdl, opus 320k).
type SpotifyDownloader struct {
	runner      *CommandRunner
	downloadDir string
	libraryDir  string
	logger      *slog.Logger
}

// NewSpotifyDownloader создаёт адаптер Spotify.
func NewSpotifyDownloader(runner *CommandRunner, downloadDir, libraryDir string, logger *slog.Logger) *SpotifyDownloader {
	return &SpotifyDownloader{
		runner:      runner,
		downloadDir: downloadDir,
		libraryDir:  libraryDir,
		logger:      logger.With(slog.String("component", "spotify_downloader")),
	}
}

// ServiceName возвращает имя сервиса.
func (d *SpotifyDownloader) ServiceName() string { return "Spotify" }

// FolderPrefix возвращает префикс директорий в библиотеке.
func (d *SpotifyDownloader) FolderPrefix() string { return SpotifyPrefix }

// Download скачивает треки по URL. Созданные директории определяются
// разностью снимков временной директории до и после запуска.
func (d *SpotifyDownloader) Download(ctx context.Context, url string) (*model.DownloadResult, error) {
	before := SnapshotDirs(d.downloadDir)

	// Шаблон вывода: "{артист} - {альбом}/{название}.{расширение}"
	outputTemplate := filepath.Join(d.downloadDir, "{artist} - {album}", "{title}.{output-ext}")

	args := []string{
		"download", url,
		"--output", outputTemplate,
		"--format", "opus",
		"--bitrate", "320k",
		"--headless",
		"--print-errors",
	}

	stdout, stderr, err := d.runner.Run(ctx, "", "spotdl", args...)
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

	newFolders := NewDirs(d.downloadDir, before)
	if len(newFolders) == 0 {
		return &model.DownloadResult{
			Success: true,
			Message: "Скачивание завершено (директория не определена)",
		}, nil
	}

	var moved []string
	var firstDest string
	totalFiles := 0
	for _, folder := range newFolders {
		fileCount := CountAudioFiles(folder)
		dest, err := MoveToLibrary(folder, d.libraryDir, d.FolderPrefix())
		if err != nil {
			return nil, err
		}
		totalFiles += fileCount
		moved = append(moved, filepath.Base(dest))
		if firstDest == "" {
			firstDest = dest
		}
	}

	return &model.DownloadResult{
		Success:    true,
		Message:    "Скачивание завершено: " + strings.Join(moved, ", "),
		FolderPath: firstDest,
		FileCount:  totalFiles,
	}, nil
}
