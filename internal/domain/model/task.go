// Пакет model — доменные модели musicdrop.
package model

import (
	"time"

	"github.com/bigkaa/musicdrop/internal/urlclass"
)

// TaskStatus — статус задачи скачивания.
type TaskStatus string

const (
	// StatusPending — задача ожидает в очереди.
	StatusPending TaskStatus = "pending"
	// StatusRunning — задача выполняется воркером.
	StatusRunning TaskStatus = "running"
	// StatusCompleted — задача завершена успешно.
	StatusCompleted TaskStatus = "completed"
	// StatusFailed — задача завершена с ошибкой.
	StatusFailed TaskStatus = "failed"
)

// Terminal сообщает, является ли статус финальным.
// Переходы из финальных статусов запрещены.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition проверяет допустимость перехода статуса.
// Допустимые переходы: pending → running → {completed, failed}.
func (s TaskStatus) CanTransition(to TaskStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusRunning
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// DownloadResult — результат одного вызова адаптера скачивания.
type DownloadResult struct {
	// Success — завершилось ли скачивание успешно
	Success bool `json:"success"`
	// Message — человекочитаемое описание результата
	Message string `json:"message"`
	// FolderPath — директория с результатом в библиотеке.
	// Заполняется только при Success и когда адаптер смог определить директорию.
	FolderPath string `json:"folder_path,omitempty"`
	// FileCount — количество аудиофайлов в результате
	FileCount int `json:"file_count"`
	// Error — детали ошибки (при неуспехе)
	Error string `json:"error,omitempty"`
}

// Task — одна задача скачивания в очереди.
// Мутируется только воркером очереди; остальные компоненты
// работают со снимками (Clone).
type Task struct {
	// ID — уникальный идентификатор задачи (UUID), неизменяемый
	ID string `json:"id"`
	// URL — исходная ссылка на контент
	URL string `json:"url"`
	// Service — сервис, определённый классификатором
	Service urlclass.ServiceType `json:"service"`
	// RequesterID — идентификатор запросившего пользователя
	RequesterID string `json:"requester_id"`
	// ChannelID — идентификатор канала назначения
	ChannelID string `json:"channel_id"`
	// Status — текущий статус жизненного цикла
	Status TaskStatus `json:"status"`
	// Result — результат выполнения. Заполнен тогда и только тогда,
	// когда Status ∈ {completed, failed}.
	Result *DownloadResult `json:"result,omitempty"`
	// CreatedAt — момент постановки в очередь
	CreatedAt time.Time `json:"created_at"`
	// StartedAt — момент начала выполнения
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt — момент завершения
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// MessageRef — внешняя ссылка на сообщение прогресса (опционально)
	MessageRef string `json:"message_ref,omitempty"`
}

// Clone возвращает копию задачи для безопасного чтения вне воркера.
func (t *Task) Clone() *Task {
	c := *t
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	if t.StartedAt != nil {
		ts := *t.StartedAt
		c.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return &c
}
