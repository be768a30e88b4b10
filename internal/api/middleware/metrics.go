// metrics.go — Prometheus HTTP метрики сервера раздачи.
// Регистрирует метрики: md_http_requests_total, md_http_request_duration_seconds.
// Бизнес-метрики очереди и ссылок регистрируются в соответствующих пакетах.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "md_http_requests_total",
			Help: "Общее количество HTTP-запросов к серверу раздачи",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "md_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к серверу раздачи в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики ссылок (обновляются из сервера раздачи)
var (
	// ActiveLinks — текущее количество выданных токенов (gauge).
	ActiveLinks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "md_tokens_active",
			Help: "Текущее количество выданных токенов скачивания",
		},
	)

	// DownloadsTotal — количество скачиваний по результатам.
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "md_downloads_total",
			Help: "Общее количество обращений к ссылкам скачивания",
		},
		[]string{"result"},
	)

	// UploadsTotal — количество загрузок по результатам.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "md_uploads_total",
			Help: "Общее количество загрузок файлов",
		},
		[]string{"result"},
	)

	// SweepRunsTotal — количество запусков фоновой чистки токенов.
	SweepRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "md_sweep_runs_total",
			Help: "Общее количество запусков чистки токенов",
		},
	)

	// SweepInvalidatedTotal — количество токенов, убранных чисткой.
	SweepInvalidatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "md_sweep_invalidated_total",
			Help: "Общее количество токенов, аннулированных чисткой",
		},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем токен на {token} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет значение токена в пути на {token} для
// предотвращения взрывного роста кардинальности метрик.
// /download/a1b2c3d4-... → /download/{token}
func normalizePath(path string) string {
	switch {
	case path == "/health/live",
		path == "/health/ready",
		path == "/metrics",
		path == "/upload":
		return path
	case strings.HasPrefix(path, "/download/"):
		return "/download/{token}"
	case strings.HasPrefix(path, "/info/"):
		return "/info/{token}"
	}
	return path
}
