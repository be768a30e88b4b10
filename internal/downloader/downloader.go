// Пакет downloader — адаптеры скачивания контента по сервисам.
// Каждый адаптер вызывает внешний инструмент (yt-dlp, spotdl, qobuz-dl),
// перемещает результат из временной директории в библиотеку и возвращает
// DownloadResult. Общие операции (запуск команд, перемещение в библиотеку,
// подсчёт аудиофайлов) вынесены в отдельные утилиты и композируются,
// а не наследуются.
package downloader

import (
	"context"
	"errors"

	"github.com/bigkaa/musicdrop/internal/domain/model"
)

// Префиксы директорий в библиотеке по сервисам.
const (
	// YouTubePrefix — префикс директорий YouTube-загрузок.
	YouTubePrefix = "[YT] "
	// SpotifyPrefix — префикс директорий Spotify-загрузок.
	SpotifyPrefix = "[SP] "
)

// ErrProcessTimeout — внешний процесс превысил таймаут и был принудительно завершён.
var ErrProcessTimeout = errors.New("процесс превысил таймаут и был завершён")

// Downloader — контракт адаптера скачивания одного сервиса.
type Downloader interface {
	// ServiceName возвращает отображаемое имя сервиса.
	ServiceName() string
	// FolderPrefix возвращает префикс директорий в библиотеке
	// (пустая строка — без префикса).
	FolderPrefix() string
	// Download скачивает контент по URL во временную директорию
	// и перемещает результат в библиотеку. Ошибки инструмента
	// возвращаются внутри DownloadResult; error — только для
	// внутренних сбоев адаптера.
	Download(ctx context.Context, url string) (*model.DownloadResult, error)
}
