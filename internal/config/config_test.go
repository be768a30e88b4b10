package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

// clearMDEnvVars очищает все переменные окружения MD_* для чистого теста
// и возвращает функцию восстановления.
func clearMDEnvVars(t *testing.T) func() {
	t.Helper()
	keys := []string{
		"MD_PORT", "MD_PUBLIC_BASE_URL", "MD_DOWNLOAD_DIR", "MD_LIBRARY_DIR",
		"MD_UPLOAD_DIR", "MD_QUEUE_MAX_SIZE", "MD_MAX_RETRIES",
		"MD_COMMAND_TIMEOUT", "MD_LINK_TTL", "MD_LINK_MAX_DOWNLOADS",
		"MD_ATTACHMENT_LIMIT", "MD_UPLOAD_MAX_SIZE", "MD_UPLOAD_TOKEN",
		"MD_SWEEP_INTERVAL", "MD_CLEANUP_DELAY", "MD_HISTORY_SIZE",
		"MD_HISTORY_TTL", "MD_SHUTDOWN_TIMEOUT", "MD_LOG_LEVEL",
		"MD_LOG_FORMAT", "MD_FFMPEG_PATH", "MD_DEPHEALTH_GROUP",
		"MD_DEPHEALTH_DEP_NAME", "MD_DEPHEALTH_CHECK_INTERVAL",
	}
	originals := make(map[string]string)
	origSet := make(map[string]bool)
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			originals[k] = v
			origSet[k] = true
		}
		os.Unsetenv(k)
	}
	return func() {
		for _, k := range keys {
			if origSet[k] {
				os.Setenv(k, originals[k])
			} else {
				os.Unsetenv(k)
			}
		}
	}
}

// TestLoad_Defaults проверяет значения по умолчанию.
func TestLoad_Defaults(t *testing.T) {
	cleanup := clearMDEnvVars(t)
	defer cleanup()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Port != 8090 {
		t.Errorf("Port: ожидалось 8090, получено %d", cfg.Port)
	}
	if cfg.QueueMaxSize != 100 {
		t.Errorf("QueueMaxSize: ожидалось 100, получено %d", cfg.QueueMaxSize)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries: ожидалось 3, получено %d", cfg.MaxRetries)
	}
	if cfg.CommandTimeout != 30*time.Minute {
		t.Errorf("CommandTimeout: ожидалось 30m, получено %s", cfg.CommandTimeout)
	}
	if cfg.LinkTTL != 24*time.Hour {
		t.Errorf("LinkTTL: ожидалось 24h, получено %s", cfg.LinkTTL)
	}
	if cfg.LinkMaxDownloads != 3 {
		t.Errorf("LinkMaxDownloads: ожидалось 3, получено %d", cfg.LinkMaxDownloads)
	}
	if cfg.AttachmentLimit != 10*1024*1024 {
		t.Errorf("AttachmentLimit: ожидалось 10 MB, получено %d", cfg.AttachmentLimit)
	}
	if cfg.SweepInterval != time.Hour {
		t.Errorf("SweepInterval: ожидалось 1h, получено %s", cfg.SweepInterval)
	}
	if cfg.CleanupDelay != 60*time.Second {
		t.Errorf("CleanupDelay: ожидалось 60s, получено %s", cfg.CleanupDelay)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel: ожидалось info, получено %v", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat: ожидалось json, получено %s", cfg.LogFormat)
	}
	if cfg.UploadToken != "" {
		t.Errorf("UploadToken: ожидалась пустая строка, получено %q", cfg.UploadToken)
	}
}

// TestLoad_Overrides проверяет чтение значений из окружения.
func TestLoad_Overrides(t *testing.T) {
	cleanup := clearMDEnvVars(t)
	defer cleanup()

	os.Setenv("MD_PORT", "9000")
	os.Setenv("MD_PUBLIC_BASE_URL", "https://files.example.com/")
	os.Setenv("MD_QUEUE_MAX_SIZE", "5")
	os.Setenv("MD_LINK_TTL", "2h")
	os.Setenv("MD_LINK_MAX_DOWNLOADS", "1")
	os.Setenv("MD_UPLOAD_TOKEN", "  secret  ")
	os.Setenv("MD_LOG_LEVEL", "debug")
	os.Setenv("MD_LOG_FORMAT", "text")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Port: ожидалось 9000, получено %d", cfg.Port)
	}
	// Завершающий слэш должен быть убран
	if cfg.PublicBaseURL != "https://files.example.com" {
		t.Errorf("PublicBaseURL: ожидалось без завершающего слэша, получено %q", cfg.PublicBaseURL)
	}
	if cfg.QueueMaxSize != 5 {
		t.Errorf("QueueMaxSize: ожидалось 5, получено %d", cfg.QueueMaxSize)
	}
	if cfg.LinkTTL != 2*time.Hour {
		t.Errorf("LinkTTL: ожидалось 2h, получено %s", cfg.LinkTTL)
	}
	if cfg.LinkMaxDownloads != 1 {
		t.Errorf("LinkMaxDownloads: ожидалось 1, получено %d", cfg.LinkMaxDownloads)
	}
	// Секрет должен быть обрезан от пробелов
	if cfg.UploadToken != "secret" {
		t.Errorf("UploadToken: ожидалось \"secret\", получено %q", cfg.UploadToken)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel: ожидалось debug, получено %v", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat: ожидалось text, получено %s", cfg.LogFormat)
	}
}

// TestLoad_InvalidValues проверяет ошибки валидации.
func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"некорректный порт", "MD_PORT", "abc"},
		{"порт вне диапазона", "MD_PORT", "70000"},
		{"нулевая очередь", "MD_QUEUE_MAX_SIZE", "0"},
		{"отрицательные попытки", "MD_MAX_RETRIES", "0"},
		{"некорректная длительность", "MD_LINK_TTL", "sometime"},
		{"нулевой лимит скачиваний", "MD_LINK_MAX_DOWNLOADS", "0"},
		{"нулевой лимит upload", "MD_UPLOAD_MAX_SIZE", "0"},
		{"некорректный уровень логов", "MD_LOG_LEVEL", "verbose"},
		{"некорректный формат логов", "MD_LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := clearMDEnvVars(t)
			defer cleanup()

			os.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("ожидалась ошибка для %s=%q", tt.key, tt.value)
			}
		})
	}
}

// TestEnsureDirectories проверяет создание рабочих директорий.
func TestEnsureDirectories(t *testing.T) {
	cleanup := clearMDEnvVars(t)
	defer cleanup()

	base := t.TempDir()
	os.Setenv("MD_DOWNLOAD_DIR", base+"/dl")
	os.Setenv("MD_LIBRARY_DIR", base+"/lib")
	os.Setenv("MD_UPLOAD_DIR", base+"/up")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("ошибка загрузки конфигурации: %v", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ошибка создания директорий: %v", err)
	}

	for _, dir := range []string{cfg.DownloadDir, cfg.LibraryDir, cfg.UploadDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("директория %s не создана: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("путь %s не является директорией", dir)
		}
	}
}
