// token.go — токены одноразовых ссылок на скачивание.
package fileserver

import (
	"sync"
	"time"
)

// DownloadToken — выданный токен раздачи файла.
// Счётчик скачиваний защищён собственным мьютексом: погашение токена
// не блокирует общую таблицу токенов.
type DownloadToken struct {
	// ID — значение токена (UUID), часть URL
	ID string
	// FilePath — абсолютный путь к раздаваемому файлу
	FilePath string
	// FileName — имя файла для Content-Disposition
	FileName string
	// CreatedAt — момент выдачи
	CreatedAt time.Time
	// ExpiresAt — момент истечения срока действия
	ExpiresAt time.Time
	// MaxDownloads — максимальное количество скачиваний
	MaxDownloads int

	mu sync.Mutex
	// downloadCount — количество выполненных скачиваний
	downloadCount int
}

// IsExpired сообщает, истёк ли срок действия токена.
func (t *DownloadToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsExhausted сообщает, исчерпан ли лимит скачиваний.
func (t *DownloadToken) IsExhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.downloadCount >= t.MaxDownloads
}

// IsValid сообщает, действителен ли токен (не истёк и не исчерпан).
func (t *DownloadToken) IsValid() bool {
	return !t.IsExpired() && !t.IsExhausted()
}

// RemainingDownloads возвращает количество оставшихся скачиваний.
func (t *DownloadToken) RemainingDownloads() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	remaining := t.MaxDownloads - t.downloadCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Redeem атомарно погашает одно скачивание. Возвращает количество
// оставшихся скачиваний и признак успеха; false означает, что лимит
// уже исчерпан и скачивание не разрешено.
func (t *DownloadToken) Redeem() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.downloadCount >= t.MaxDownloads {
		return 0, false
	}
	t.downloadCount++
	return t.MaxDownloads - t.downloadCount, true
}
