// main.go — точка входа musicdrop.
// Собирает компоненты: конфигурация, логгер, адаптеры скачивания,
// очередь задач, сервер раздачи, публикация результатов, мониторинг
// зависимостей. Останавливается по SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bigkaa/musicdrop/internal/config"
	"github.com/bigkaa/musicdrop/internal/domain/model"
	"github.com/bigkaa/musicdrop/internal/downloader"
	"github.com/bigkaa/musicdrop/internal/fileserver"
	"github.com/bigkaa/musicdrop/internal/queue"
	"github.com/bigkaa/musicdrop/internal/service"
	"github.com/bigkaa/musicdrop/internal/urlclass"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("musicdrop запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Рабочие директории
	if err := cfg.EnsureDirectories(); err != nil {
		logger.Error("Ошибка подготовки директорий", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Сервер раздачи файлов
	fs := fileserver.New(cfg, logger)
	if err := fs.Start(ctx); err != nil {
		logger.Error("Ошибка запуска сервера раздачи", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Публикация результатов (zip + ссылка/вложение)
	publisher := service.NewPublisher(fs, cfg.UploadDir, cfg.AttachmentLimit, logger)

	// 6. Адаптеры скачивания
	runner := downloader.NewCommandRunner(cfg.CommandTimeout, cfg.FFmpegPath, logger)

	manager := queue.NewManager(cfg.QueueMaxSize, cfg.HistorySize, cfg.HistoryTTL, logger)
	manager.Register(urlclass.ServiceYouTube,
		downloader.NewYouTubeDownloader(runner, cfg.DownloadDir, cfg.LibraryDir, logger))
	manager.Register(urlclass.ServiceSpotify,
		downloader.NewSpotifyDownloader(runner, cfg.DownloadDir, cfg.LibraryDir, logger))
	manager.Register(urlclass.ServiceQobuz,
		downloader.NewQobuzDownloader(runner, cfg.DownloadDir, cfg.LibraryDir, cfg.MaxRetries, logger))

	// 7. Публикация завершённых задач через подписчика очереди
	manager.SetProgressFunc(func(task *model.Task) {
		if task.Status != model.StatusCompleted {
			return
		}
		if task.Result == nil || task.Result.FolderPath == "" {
			return
		}
		delivery, err := publisher.Publish(task)
		if err != nil {
			logger.Error("Ошибка публикации результата",
				slog.String("task_id", task.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		if delivery.AsAttachment {
			logger.Info("Результат готов к отправке вложением",
				slog.String("task_id", task.ID),
				slog.String("archive", delivery.ArchivePath),
			)
		}
	})

	// 8. Очередь задач
	manager.Start(ctx)

	// 9. Мониторинг публичного URL (только если туннель настроен)
	var dephealth *service.DephealthService
	if cfg.PublicBaseURL != "" {
		hostname, _ := os.Hostname()
		dephealth, err = service.NewDephealthService(
			"musicdrop-"+hostname,
			cfg.DephealthGroup,
			cfg.DephealthDepName,
			cfg.PublicBaseURL,
			cfg.DephealthCheckInterval,
			logger,
		)
		if err != nil {
			logger.Error("Ошибка инициализации dephealth", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := dephealth.Start(ctx); err != nil {
			logger.Error("Ошибка запуска dephealth", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.Info("musicdrop запущен",
		slog.String("addr", fs.Addr()),
		slog.String("base_url", fs.BaseURL()),
	)

	// 10. Ожидание сигнала завершения
	<-ctx.Done()
	logger.Info("Получен сигнал завершения, останавливаемся...")

	// 11. Упорядоченная остановка: очередь, мониторинг, сервер раздачи
	manager.Stop()
	if dephealth != nil {
		dephealth.Stop()
	}
	fs.Stop()

	logger.Info("musicdrop остановлен")
}
