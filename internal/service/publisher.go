// publisher.go — публикация результатов скачивания.
//
// Завершённая задача с директорией в библиотеке упаковывается в zip.
// Небольшие архивы (до AttachmentLimit) помечаются для отправки
// вложением, для остальных выдаётся одноразовая ссылка сервера раздачи.
package service

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bigkaa/musicdrop/internal/archive"
	"github.com/bigkaa/musicdrop/internal/domain/model"
	"github.com/bigkaa/musicdrop/internal/fileserver"
)

// LinkCreator — выдаёт одноразовые ссылки на файлы.
type LinkCreator interface {
	CreateLink(filePath string) (*fileserver.DownloadToken, string, error)
}

// Delivery — способ доставки результата пользователю.
type Delivery struct {
	// ArchivePath — путь к созданному zip-архиву
	ArchivePath string
	// Size — размер архива в байтах
	Size int64
	// SizeHuman — человекочитаемый размер
	SizeHuman string
	// AsAttachment — архив достаточно мал для отправки вложением
	AsAttachment bool
	// Link — одноразовая ссылка (пусто при AsAttachment)
	Link string
}

// Publisher — сервис публикации результатов.
type Publisher struct {
	links LinkCreator
	// stagingDir — директория для создаваемых архивов
	stagingDir      string
	attachmentLimit int64
	logger          *slog.Logger
}

// NewPublisher создаёт сервис публикации.
func NewPublisher(links LinkCreator, stagingDir string, attachmentLimit int64, logger *slog.Logger) *Publisher {
	return &Publisher{
		links:           links,
		stagingDir:      stagingDir,
		attachmentLimit: attachmentLimit,
		logger:          logger.With(slog.String("component", "publisher")),
	}
}

// Publish упаковывает результат задачи и выбирает способ доставки.
// Применима только к успешно завершённым задачам с известной директорией.
func (p *Publisher) Publish(task *model.Task) (*Delivery, error) {
	if task.Status != model.StatusCompleted || task.Result == nil {
		return nil, fmt.Errorf("задача %s не завершена успешно", task.ID)
	}
	if task.Result.FolderPath == "" {
		return nil, fmt.Errorf("задача %s не содержит директории результата", task.ID)
	}

	archivePath := filepath.Join(p.stagingDir, filepath.Base(task.Result.FolderPath)+".zip")
	if err := archive.CreateZip(task.Result.FolderPath, archivePath); err != nil {
		return nil, fmt.Errorf("упаковка результата: %w", err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("архив недоступен: %w", err)
	}

	delivery := &Delivery{
		ArchivePath: archivePath,
		Size:        info.Size(),
		SizeHuman:   archive.FormatSize(info.Size()),
	}

	if info.Size() <= p.attachmentLimit {
		delivery.AsAttachment = true
		p.logger.Info("Результат публикуется вложением",
			slog.String("task_id", task.ID),
			slog.String("archive", archivePath),
			slog.String("size", delivery.SizeHuman),
		)
		return delivery, nil
	}

	_, link, err := p.links.CreateLink(archivePath)
	if err != nil {
		_ = os.Remove(archivePath)
		return nil, fmt.Errorf("выдача ссылки: %w", err)
	}
	delivery.Link = link

	p.logger.Info("Результат публикуется по ссылке",
		slog.String("task_id", task.ID),
		slog.String("archive", archivePath),
		slog.String("size", delivery.SizeHuman),
		slog.String("link", link),
	)
	return delivery, nil
}
