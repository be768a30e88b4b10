// Пакет config — загрузка и валидация конфигурации musicdrop
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации musicdrop.
type Config struct {
	// Порт HTTP-сервера раздачи файлов
	Port int
	// Публичный базовый URL раздачи (выдаётся туннелем, опционально)
	PublicBaseURL string
	// Директория временных загрузок внешних инструментов
	DownloadDir string
	// Директория музыкальной библиотеки (финальное размещение)
	LibraryDir string
	// Директория для файлов, принятых через POST /upload
	UploadDir string
	// Максимальный размер очереди задач
	QueueMaxSize int
	// Количество попыток скачивания для Qobuz-адаптера
	MaxRetries int
	// Таймаут выполнения внешней команды (yt-dlp, spotdl, qobuz-dl)
	CommandTimeout time.Duration
	// Время жизни ссылки на скачивание
	LinkTTL time.Duration
	// Максимальное количество скачиваний по одной ссылке
	LinkMaxDownloads int
	// Порог размера: меньше — вложение, больше — ссылка (байты)
	AttachmentLimit int64
	// Максимальный размер принимаемого файла на /upload (байты)
	UploadMaxSize int64
	// Секрет авторизации /upload (пустой — авторизация отключена)
	UploadToken string
	// Интервал фоновой чистки недействительных токенов
	SweepInterval time.Duration
	// Задержка удаления токена после последнего скачивания
	CleanupDelay time.Duration
	// Размер истории завершённых задач
	HistorySize int
	// Время жизни записи в истории завершённых задач
	HistoryTTL time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Путь к ffmpeg (директория или исполняемый файл), добавляется в PATH
	FFmpegPath string
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Имя зависимости (публичного URL) в метриках topologymetrics
	DephealthDepName string
	// Интервал проверки доступности публичного URL
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// MD_PORT — порт HTTP-сервера раздачи (по умолчанию 8090)
	cfg.Port, err = getEnvInt("MD_PORT", 8090)
	if err != nil {
		return nil, fmt.Errorf("MD_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("MD_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// MD_PUBLIC_BASE_URL — публичный базовый URL (опционально)
	cfg.PublicBaseURL = strings.TrimRight(getEnvDefault("MD_PUBLIC_BASE_URL", ""), "/")

	// MD_DOWNLOAD_DIR — временная директория загрузок (по умолчанию ./downloads)
	cfg.DownloadDir = getEnvDefault("MD_DOWNLOAD_DIR", "./downloads")

	// MD_LIBRARY_DIR — директория библиотеки (по умолчанию ./library)
	cfg.LibraryDir = getEnvDefault("MD_LIBRARY_DIR", "./library")

	// MD_UPLOAD_DIR — директория принятых файлов (по умолчанию ./uploads)
	cfg.UploadDir = getEnvDefault("MD_UPLOAD_DIR", "./uploads")

	// MD_QUEUE_MAX_SIZE — размер очереди (по умолчанию 100)
	cfg.QueueMaxSize, err = getEnvInt("MD_QUEUE_MAX_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("MD_QUEUE_MAX_SIZE: %w", err)
	}
	if cfg.QueueMaxSize <= 0 {
		return nil, fmt.Errorf("MD_QUEUE_MAX_SIZE: значение должно быть положительным")
	}

	// MD_MAX_RETRIES — попытки Qobuz-адаптера (по умолчанию 3)
	cfg.MaxRetries, err = getEnvInt("MD_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("MD_MAX_RETRIES: %w", err)
	}
	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("MD_MAX_RETRIES: значение должно быть >= 1")
	}

	// MD_COMMAND_TIMEOUT — таймаут внешней команды (по умолчанию 30m)
	cfg.CommandTimeout, err = getEnvDuration("MD_COMMAND_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MD_COMMAND_TIMEOUT: %w", err)
	}

	// MD_LINK_TTL — время жизни ссылки (по умолчанию 24h)
	cfg.LinkTTL, err = getEnvDuration("MD_LINK_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("MD_LINK_TTL: %w", err)
	}

	// MD_LINK_MAX_DOWNLOADS — лимит скачиваний по ссылке (по умолчанию 3)
	cfg.LinkMaxDownloads, err = getEnvInt("MD_LINK_MAX_DOWNLOADS", 3)
	if err != nil {
		return nil, fmt.Errorf("MD_LINK_MAX_DOWNLOADS: %w", err)
	}
	if cfg.LinkMaxDownloads <= 0 {
		return nil, fmt.Errorf("MD_LINK_MAX_DOWNLOADS: значение должно быть положительным")
	}

	// MD_ATTACHMENT_LIMIT — порог вложение/ссылка (по умолчанию 10 MB)
	cfg.AttachmentLimit, err = getEnvInt64("MD_ATTACHMENT_LIMIT", 10*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("MD_ATTACHMENT_LIMIT: %w", err)
	}

	// MD_UPLOAD_MAX_SIZE — лимит размера upload (по умолчанию 100 MB)
	cfg.UploadMaxSize, err = getEnvInt64("MD_UPLOAD_MAX_SIZE", 100*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("MD_UPLOAD_MAX_SIZE: %w", err)
	}
	if cfg.UploadMaxSize <= 0 {
		return nil, fmt.Errorf("MD_UPLOAD_MAX_SIZE: значение должно быть положительным")
	}

	// MD_UPLOAD_TOKEN — секрет авторизации upload (опционально)
	cfg.UploadToken = strings.TrimSpace(getEnvDefault("MD_UPLOAD_TOKEN", ""))

	// MD_SWEEP_INTERVAL — интервал чистки токенов (по умолчанию 1h)
	cfg.SweepInterval, err = getEnvDuration("MD_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("MD_SWEEP_INTERVAL: %w", err)
	}

	// MD_CLEANUP_DELAY — задержка удаления после последнего скачивания (по умолчанию 60s)
	cfg.CleanupDelay, err = getEnvDuration("MD_CLEANUP_DELAY", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MD_CLEANUP_DELAY: %w", err)
	}

	// MD_HISTORY_SIZE — размер истории задач (по умолчанию 100)
	cfg.HistorySize, err = getEnvInt("MD_HISTORY_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("MD_HISTORY_SIZE: %w", err)
	}
	if cfg.HistorySize <= 0 {
		return nil, fmt.Errorf("MD_HISTORY_SIZE: значение должно быть положительным")
	}

	// MD_HISTORY_TTL — время жизни записи истории (по умолчанию 24h)
	cfg.HistoryTTL, err = getEnvDuration("MD_HISTORY_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("MD_HISTORY_TTL: %w", err)
	}

	// MD_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("MD_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MD_SHUTDOWN_TIMEOUT: %w", err)
	}

	// MD_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("MD_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("MD_LOG_LEVEL: %w", err)
	}

	// MD_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("MD_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("MD_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// MD_FFMPEG_PATH — путь к ffmpeg (опционально)
	cfg.FFmpegPath = getEnvDefault("MD_FFMPEG_PATH", "")

	// MD_DEPHEALTH_GROUP — имя группы в метриках topologymetrics (по умолчанию "musicdrop")
	cfg.DephealthGroup = getEnvDefault("MD_DEPHEALTH_GROUP", "musicdrop")

	// MD_DEPHEALTH_DEP_NAME — имя зависимости в метриках (по умолчанию "public-url")
	cfg.DephealthDepName = getEnvDefault("MD_DEPHEALTH_DEP_NAME", "public-url")

	// MD_DEPHEALTH_CHECK_INTERVAL — интервал проверки публичного URL (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("MD_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MD_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// EnsureDirectories создаёт рабочие директории, если они не существуют.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DownloadDir, c.LibraryDir, c.UploadDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
		}
	}
	return nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
