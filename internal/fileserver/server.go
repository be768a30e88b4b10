// Пакет fileserver — HTTP-сервер раздачи файлов по одноразовым ссылкам.
//
// Сервер выдаёт токен-ссылки на файлы (CreateLink), раздаёт файлы по
// GET /download/{token} с лимитом скачиваний и TTL, сообщает о
// действительности ссылки по GET /info/{token} и принимает файлы по
// POST /upload. Недействительные токены убирает фоновая чистка.
package fileserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/musicdrop/internal/api/middleware"
	"github.com/bigkaa/musicdrop/internal/config"
)

// Причины недействительности ссылки в ответе /info/{token}.
const (
	ReasonNotFound  = "not_found"
	ReasonExpired   = "expired"
	ReasonExhausted = "exhausted"
)

// DownloadCallback — подписчик события скачивания. Вызывается после
// успешной отдачи файла в отдельной горутине.
type DownloadCallback func(token *DownloadToken, remaining int)

// FileServer — сервер раздачи файлов по одноразовым ссылкам.
type FileServer struct {
	cfg    *config.Config
	logger *slog.Logger

	httpServer *http.Server
	listener   net.Listener

	mu     sync.RWMutex
	tokens map[string]*DownloadToken

	callback DownloadCallback

	started bool
	cancel  context.CancelFunc
	bgCtx   context.Context
	// wg — фоновые горутины: serve, чистка, отложенные удаления, callbacks
	wg sync.WaitGroup
}

// New создаёт сервер раздачи.
func New(cfg *config.Config, logger *slog.Logger) *FileServer {
	fs := &FileServer{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "fileserver")),
		tokens: make(map[string]*DownloadToken),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	router.Get("/download/{token}", fs.handleDownload)
	router.Get("/info/{token}", fs.handleInfo)
	router.Post("/upload", fs.handleUpload)
	router.Get("/health/live", fs.handleHealthLive)
	router.Get("/health/ready", fs.handleHealthReady)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	fs.httpServer = &http.Server{
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return fs
}

// Start запускает HTTP-сервер и фоновую чистку токенов.
// Слушающий сокет открывается синхронно: после возврата сервер
// принимает соединения.
func (fs *FileServer) Start(ctx context.Context) error {
	fs.mu.Lock()
	if fs.started {
		fs.mu.Unlock()
		return nil
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", fs.cfg.Port))
	if err != nil {
		fs.mu.Unlock()
		return fmt.Errorf("не удалось открыть порт %d: %w", fs.cfg.Port, err)
	}
	fs.listener = listener
	fs.started = true

	bgCtx, cancel := context.WithCancel(ctx)
	fs.cancel = cancel
	fs.bgCtx = bgCtx
	fs.mu.Unlock()

	fs.wg.Add(1)
	go func() {
		defer fs.wg.Done()
		if err := fs.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			fs.logger.Error("Ошибка HTTP-сервера", slog.String("error", err.Error()))
		}
	}()

	fs.wg.Add(1)
	go fs.sweepLoop(bgCtx)

	fs.logger.Info("Сервер раздачи запущен",
		slog.String("addr", listener.Addr().String()),
		slog.Duration("link_ttl", fs.cfg.LinkTTL),
		slog.Int("max_downloads", fs.cfg.LinkMaxDownloads),
	)
	return nil
}

// Stop останавливает сервер: graceful shutdown HTTP, остановка фона,
// аннулирование всех выданных токенов. Повторный вызов безопасен.
func (fs *FileServer) Stop() {
	fs.mu.Lock()
	if !fs.started {
		fs.mu.Unlock()
		return
	}
	fs.started = false
	cancel := fs.cancel
	fs.mu.Unlock()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), fs.cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := fs.httpServer.Shutdown(shutdownCtx); err != nil {
		fs.logger.Error("Ошибка при graceful shutdown", slog.String("error", err.Error()))
	}

	if cancel != nil {
		cancel()
	}
	fs.wg.Wait()

	// Все выданные ссылки становятся недействительными,
	// их файлы удаляются: временные архивы не переживают остановку
	fs.mu.Lock()
	remaining := make([]*DownloadToken, 0, len(fs.tokens))
	for _, token := range fs.tokens {
		remaining = append(remaining, token)
	}
	fs.tokens = make(map[string]*DownloadToken)
	fs.mu.Unlock()
	middleware.ActiveLinks.Set(0)

	for _, token := range remaining {
		if err := os.Remove(token.FilePath); err != nil && !os.IsNotExist(err) {
			fs.logger.Warn("Не удалось удалить файл токена при остановке",
				slog.String("token", token.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	fs.logger.Info("Сервер раздачи остановлен", slog.Int("invalidated_tokens", len(remaining)))
}

// Addr возвращает фактический адрес слушающего сокета
// (полезно при порте 0).
func (fs *FileServer) Addr() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.listener == nil {
		return ""
	}
	return fs.listener.Addr().String()
}

// BaseURL возвращает базовый URL раздачи: публичный, если настроен,
// иначе локальный адрес сервера.
func (fs *FileServer) BaseURL() string {
	if fs.cfg.PublicBaseURL != "" {
		return fs.cfg.PublicBaseURL
	}
	return fmt.Sprintf("http://localhost:%d", fs.cfg.Port)
}

// CreateLink выдаёт токен на скачивание файла filePath со значениями
// TTL и лимита из конфигурации. Возвращает токен и полный URL ссылки.
func (fs *FileServer) CreateLink(filePath string) (*DownloadToken, string, error) {
	return fs.CreateLinkWith(filePath, "", 0)
}

// CreateLinkWith выдаёт токен с переопределёнными параметрами:
// displayName — отображаемое имя файла (пустое — имя из пути),
// maxDownloads — лимит скачиваний (0 — значение из конфигурации).
func (fs *FileServer) CreateLinkWith(filePath, displayName string, maxDownloads int) (*DownloadToken, string, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("файл недоступен: %w", err)
	}
	if info.IsDir() {
		return nil, "", fmt.Errorf("путь %s является директорией", filePath)
	}

	if displayName == "" {
		displayName = filepath.Base(filePath)
	}
	if maxDownloads <= 0 {
		maxDownloads = fs.cfg.LinkMaxDownloads
	}

	token := &DownloadToken{
		ID:           uuid.NewString(),
		FilePath:     filePath,
		FileName:     displayName,
		CreatedAt:    time.Now(),
		ExpiresAt:    time.Now().Add(fs.cfg.LinkTTL),
		MaxDownloads: maxDownloads,
	}

	fs.mu.Lock()
	fs.tokens[token.ID] = token
	active := len(fs.tokens)
	fs.mu.Unlock()
	middleware.ActiveLinks.Set(float64(active))

	link := fs.BaseURL() + "/download/" + token.ID

	fs.logger.Info("Ссылка выдана",
		slog.String("token", token.ID),
		slog.String("file", token.FileName),
		slog.Time("expires_at", token.ExpiresAt),
	)
	return token, link, nil
}

// InvalidateToken аннулирует токен и удаляет связанный файл.
// Идемпотентен: возвращает false, если токен уже отсутствовал.
func (fs *FileServer) InvalidateToken(id string) bool {
	fs.mu.Lock()
	token, ok := fs.tokens[id]
	if ok {
		delete(fs.tokens, id)
	}
	active := len(fs.tokens)
	fs.mu.Unlock()
	if !ok {
		return false
	}
	middleware.ActiveLinks.Set(float64(active))

	if err := os.Remove(token.FilePath); err != nil && !os.IsNotExist(err) {
		fs.logger.Warn("Не удалось удалить файл токена",
			slog.String("token", id),
			slog.String("error", err.Error()),
		)
	}
	fs.logger.Info("Токен аннулирован", slog.String("token", id))
	return true
}

// SetDownloadCallback устанавливает подписчика событий скачивания.
// Вызывается до Start.
func (fs *FileServer) SetDownloadCallback(fn DownloadCallback) {
	fs.callback = fn
}

// lookup возвращает токен по идентификатору.
func (fs *FileServer) lookup(id string) (*DownloadToken, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	token, ok := fs.tokens[id]
	return token, ok
}

// handleDownload отдаёт файл по токену. Ошибки — краткий plain text:
// 404 — токен неизвестен или файл отсутствует, 410 — ссылка истекла
// или лимит скачиваний исчерпан. Недействительный токен аннулируется
// сразу, не дожидаясь фоновой чистки.
func (fs *FileServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "token")

	token, ok := fs.lookup(id)
	if !ok {
		middleware.DownloadsTotal.WithLabelValues("not_found").Inc()
		http.Error(w, "ссылка не найдена", http.StatusNotFound)
		return
	}

	if token.IsExpired() {
		middleware.DownloadsTotal.WithLabelValues("expired").Inc()
		fs.InvalidateToken(id)
		http.Error(w, "срок действия ссылки истёк", http.StatusGone)
		return
	}

	// Погашение атомарно: при параллельных запросах лимит не превышается.
	// Исчерпанный токен остаётся в таблице до отложенной чистки
	// (её планирует запрос, погасивший последнее скачивание), чтобы
	// все проигравшие параллельные запросы получили 410, а не 404.
	remaining, ok := token.Redeem()
	if !ok {
		middleware.DownloadsTotal.WithLabelValues("exhausted").Inc()
		http.Error(w, "лимит скачиваний исчерпан", http.StatusGone)
		return
	}

	f, err := os.Open(token.FilePath)
	if err != nil {
		fs.logger.Error("Файл токена недоступен",
			slog.String("token", id),
			slog.String("path", token.FilePath),
			slog.String("error", err.Error()),
		)
		middleware.DownloadsTotal.WithLabelValues("missing_file").Inc()
		fs.removeToken(id)
		http.Error(w, "файл недоступен", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		middleware.DownloadsTotal.WithLabelValues("missing_file").Inc()
		http.Error(w, "файл недоступен", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Content-Disposition", contentDisposition(token.FileName))
	w.Header().Set("X-Downloads-Remaining", strconv.Itoa(remaining))

	if _, err := io.Copy(w, f); err != nil {
		fs.logger.Warn("Отдача файла прервана",
			slog.String("token", id),
			slog.String("error", err.Error()),
		)
	}

	middleware.DownloadsTotal.WithLabelValues("success").Inc()
	fs.logger.Info("Файл отдан",
		slog.String("token", id),
		slog.String("file", token.FileName),
		slog.Int("remaining", remaining),
	)

	if fs.callback != nil {
		fs.wg.Add(1)
		go func() {
			defer fs.wg.Done()
			fs.callback(token, remaining)
		}()
	}

	// Последнее скачивание: токен и файл удаляются с задержкой,
	// чтобы повторный клик по ссылке получил внятный 410, а не 404
	if remaining == 0 {
		fs.scheduleCleanup(id)
	}
}

// handleInfo сообщает о действительности ссылки без её погашения.
func (fs *FileServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "token")

	type infoResponse struct {
		Valid              bool   `json:"valid"`
		Reason             string `json:"reason,omitempty"`
		FileName           string `json:"file_name,omitempty"`
		RemainingDownloads int    `json:"remaining_downloads,omitempty"`
		ExpiresAt          string `json:"expires_at,omitempty"`
	}

	token, ok := fs.lookup(id)
	if !ok {
		writeJSON(w, http.StatusOK, infoResponse{Valid: false, Reason: ReasonNotFound})
		return
	}
	if token.IsExpired() {
		writeJSON(w, http.StatusOK, infoResponse{Valid: false, Reason: ReasonExpired})
		return
	}
	if token.IsExhausted() {
		writeJSON(w, http.StatusOK, infoResponse{Valid: false, Reason: ReasonExhausted})
		return
	}

	writeJSON(w, http.StatusOK, infoResponse{
		Valid:              true,
		FileName:           token.FileName,
		RemainingDownloads: token.RemainingDownloads(),
		ExpiresAt:          token.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (fs *FileServer) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (fs *FileServer) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	fs.mu.RLock()
	ready := fs.started
	fs.mu.RUnlock()
	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "stopping"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// scheduleCleanup удаляет токен и файл спустя CleanupDelay.
// При остановке сервера удаление выполняется немедленно.
func (fs *FileServer) scheduleCleanup(id string) {
	fs.mu.RLock()
	ctx := fs.bgCtx
	fs.mu.RUnlock()

	fs.wg.Add(1)
	go func() {
		defer fs.wg.Done()
		timer := time.NewTimer(fs.cfg.CleanupDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
		fs.InvalidateToken(id)
	}()
}

// removeToken удаляет токен без удаления файла.
func (fs *FileServer) removeToken(id string) {
	fs.mu.Lock()
	delete(fs.tokens, id)
	active := len(fs.tokens)
	fs.mu.Unlock()
	middleware.ActiveLinks.Set(float64(active))
}

// sweepLoop периодически убирает истёкшие и исчерпанные токены.
func (fs *FileServer) sweepLoop(ctx context.Context) {
	defer fs.wg.Done()

	ticker := time.NewTicker(fs.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fs.SweepOnce()
		}
	}
}

// SweepOnce выполняет один проход чистки недействительных токенов.
// Возвращает количество убранных токенов.
func (fs *FileServer) SweepOnce() int {
	fs.mu.Lock()
	var stale []*DownloadToken
	for id, token := range fs.tokens {
		if !token.IsValid() {
			stale = append(stale, token)
			delete(fs.tokens, id)
		}
	}
	active := len(fs.tokens)
	fs.mu.Unlock()
	middleware.ActiveLinks.Set(float64(active))

	for _, token := range stale {
		if err := os.Remove(token.FilePath); err != nil && !os.IsNotExist(err) {
			fs.logger.Warn("Чистка: не удалось удалить файл",
				slog.String("token", token.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	middleware.SweepRunsTotal.Inc()
	middleware.SweepInvalidatedTotal.Add(float64(len(stale)))

	if len(stale) > 0 {
		fs.logger.Info("Чистка токенов завершена", slog.Int("removed", len(stale)))
	}
	return len(stale)
}

// contentDisposition формирует заголовок Content-Disposition.
// Всегда передаются оба параметра: ASCII-запасное имя в filename
// и RFC 5987 (UTF-8, процентное кодирование) в filename*.
func contentDisposition(name string) string {
	ascii := make([]rune, 0, len(name))
	for _, r := range name {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			ascii = append(ascii, '_')
		} else {
			ascii = append(ascii, r)
		}
	}

	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`,
		string(ascii), rfc5987Encode(name))
}

// rfc5987Encode кодирует строку по RFC 5987: без изменений остаются
// только attr-char (буквы, цифры и !#$&+-.^_`|~), остальные байты —
// процентное кодирование.
func rfc5987Encode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case strings.IndexByte("!#$&+-.^_`|~", c) >= 0:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// writeJSON сериализует v в ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError возвращает ошибку в JSON-формате.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// ActiveTokens возвращает количество действительных токенов.
func (fs *FileServer) ActiveTokens() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	count := 0
	for _, token := range fs.tokens {
		if token.IsValid() {
			count++
		}
	}
	return count
}
