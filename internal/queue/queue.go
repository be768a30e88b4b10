// Пакет queue — очередь задач скачивания с единственным воркером.
//
// Задачи выполняются строго последовательно в порядке поступления (FIFO).
// Последовательность — инвариант, на который опираются адаптеры:
// временная директория скачивания в каждый момент используется
// не более чем одной задачей.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/musicdrop/internal/domain/model"
	"github.com/bigkaa/musicdrop/internal/downloader"
	"github.com/bigkaa/musicdrop/internal/urlclass"
)

// Ошибки постановки задачи в очередь.
var (
	// ErrUnsupportedURL — ссылка не распознана ни одним сервисом.
	ErrUnsupportedURL = fmt.Errorf("ссылка не поддерживается")
	// ErrQueueFull — очередь заполнена до максимального размера.
	ErrQueueFull = fmt.Errorf("очередь заполнена")
	// ErrNotStarted — менеджер не запущен.
	ErrNotStarted = fmt.Errorf("очередь не запущена")
)

// Метрики очереди.
var (
	metricQueuePending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "md_queue_pending",
		Help: "Количество задач, ожидающих в очереди.",
	})
	metricTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "md_tasks_total",
		Help: "Количество завершённых задач по сервисам и результатам.",
	}, []string{"service", "result"})
	metricTaskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "md_task_duration_seconds",
		Help:    "Длительность выполнения задачи скачивания.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

// ProgressFunc — подписчик изменений статуса задачи. Вызывается
// синхронно из воркера при переходе в running и в финальный статус;
// получает копию задачи. Паника подписчика не прерывает воркер.
type ProgressFunc func(task *model.Task)

// Manager — менеджер очереди задач скачивания.
type Manager struct {
	// maxSize — максимальное количество задач в очереди
	maxSize int

	downloaders map[urlclass.ServiceType]downloader.Downloader
	progress    ProgressFunc

	tasks chan *model.Task

	mu      sync.Mutex
	pending []*model.Task
	current *model.Task
	// history — завершённые задачи, ограничены по количеству и TTL
	history *expirable.LRU[string, *model.Task]

	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	logger *slog.Logger
}

// NewManager создаёт менеджер очереди. Задачи принимаются только
// после Start.
func NewManager(maxSize, historySize int, historyTTL time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		maxSize:     maxSize,
		downloaders: make(map[urlclass.ServiceType]downloader.Downloader),
		tasks:       make(chan *model.Task, maxSize),
		history:     expirable.NewLRU[string, *model.Task](historySize, nil, historyTTL),
		logger:      logger.With(slog.String("component", "queue")),
	}
}

// Register регистрирует адаптер скачивания для сервиса.
// Задачи незарегистрированных сервисов завершаются со статусом failed.
func (m *Manager) Register(service urlclass.ServiceType, d downloader.Downloader) {
	m.downloaders[service] = d
}

// SetProgressFunc устанавливает подписчика изменений статуса.
// Вызывается до Start.
func (m *Manager) SetProgressFunc(fn ProgressFunc) {
	m.progress = fn
}

// Submit классифицирует ссылку и ставит задачу в очередь.
// Возвращает задачу и человекочитаемое сообщение о постановке.
// Ошибки: ErrUnsupportedURL, ErrQueueFull, ErrNotStarted.
func (m *Manager) Submit(url, requesterID, channelID, messageRef string) (*model.Task, string, error) {
	service := urlclass.Classify(url)
	if service == urlclass.ServiceUnknown {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedURL, url)
	}

	task := &model.Task{
		ID:          uuid.NewString(),
		URL:         url,
		Service:     service,
		RequesterID: requesterID,
		ChannelID:   channelID,
		Status:      model.StatusPending,
		CreatedAt:   time.Now(),
		MessageRef:  messageRef,
	}

	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil, "", ErrNotStarted
	}

	// Неблокирующая отправка: переполненный канал означает,
	// что очередь достигла максимального размера.
	select {
	case m.tasks <- task:
	default:
		m.mu.Unlock()
		return nil, "", fmt.Errorf("%w (максимум %d задач)", ErrQueueFull, m.maxSize)
	}

	m.pending = append(m.pending, task)
	position := len(m.pending)
	if m.current != nil {
		position++
	}
	// Снимок берётся под мьютексом: воркер может начать мутировать
	// задачу сразу после отправки в канал
	snapshot := task.Clone()
	m.mu.Unlock()

	metricQueuePending.Set(float64(len(m.tasks)))

	m.logger.Info("Задача добавлена в очередь",
		slog.String("task_id", task.ID),
		slog.String("service", urlclass.ServiceName(service)),
		slog.Int("position", position),
	)

	message := fmt.Sprintf("Добавлено в очередь: %s, позиция %d", urlclass.ServiceName(service), position)
	return snapshot, message, nil
}

// Start запускает воркер очереди. Повторный вызов игнорируется.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	workerCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.worker(workerCtx)

	m.logger.Info("Воркер очереди запущен", slog.Int("max_size", m.maxSize))
}

// Stop останавливает воркер и дожидается завершения текущей задачи.
// Ожидающие задачи не выполняются. Повторный вызов безопасен.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	m.logger.Info("Воркер очереди остановлен")
}

// worker — единственный потребитель канала задач.
func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-m.tasks:
			m.process(ctx, task)
		}
	}
}

// process выполняет одну задачу: переводит её в running, вызывает
// адаптер и фиксирует финальный статус. Паники адаптера и ошибки
// не прерывают воркер.
func (m *Manager) process(ctx context.Context, task *model.Task) {
	m.mu.Lock()
	m.dequeue(task)
	m.current = task
	now := time.Now()
	task.Status = model.StatusRunning
	task.StartedAt = &now
	m.mu.Unlock()

	metricQueuePending.Set(float64(len(m.tasks)))
	m.notify(task)

	m.logger.Info("Задача запущена",
		slog.String("task_id", task.ID),
		slog.String("service", urlclass.ServiceName(task.Service)),
		slog.String("url", task.URL),
	)

	result := m.runTask(ctx, task)

	m.mu.Lock()
	done := time.Now()
	task.CompletedAt = &done
	task.Result = result
	if result.Success {
		task.Status = model.StatusCompleted
	} else {
		task.Status = model.StatusFailed
	}
	m.current = nil
	m.history.Add(task.ID, task)
	m.mu.Unlock()

	metricTasksTotal.WithLabelValues(urlclass.ServiceName(task.Service), string(task.Status)).Inc()
	metricTaskDuration.Observe(done.Sub(*task.StartedAt).Seconds())

	m.notify(task)

	m.logger.Info("Задача завершена",
		slog.String("task_id", task.ID),
		slog.String("status", string(task.Status)),
		slog.Duration("elapsed", done.Sub(*task.StartedAt)),
	)
}

// runTask вызывает адаптер сервиса с защитой от паник.
func (m *Manager) runTask(ctx context.Context, task *model.Task) (result *model.DownloadResult) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Паника в адаптере скачивания",
				slog.String("task_id", task.ID),
				slog.Any("panic", r),
			)
			result = &model.DownloadResult{
				Success: false,
				Message: "Внутренняя ошибка загрузчика",
				Error:   fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	d, ok := m.downloaders[task.Service]
	if !ok {
		return &model.DownloadResult{
			Success: false,
			Message: "Нет доступного загрузчика",
			Error:   fmt.Sprintf("сервис %s не имеет зарегистрированного загрузчика", urlclass.ServiceName(task.Service)),
		}
	}

	res, err := d.Download(ctx, task.URL)
	if err != nil {
		return &model.DownloadResult{
			Success: false,
			Message: "Скачивание не удалось",
			Error:   err.Error(),
		}
	}
	return res
}

// notify синхронно вызывает подписчика с копией задачи.
// Паника подписчика логируется и подавляется.
func (m *Manager) notify(task *model.Task) {
	if m.progress == nil {
		return
	}

	m.mu.Lock()
	snapshot := task.Clone()
	m.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Паника в подписчике прогресса",
				slog.String("task_id", task.ID),
				slog.Any("panic", r),
			)
		}
	}()
	m.progress(snapshot)
}

// dequeue удаляет задачу из списка ожидающих. Вызывается под m.mu.
func (m *Manager) dequeue(task *model.Task) {
	for i, t := range m.pending {
		if t.ID == task.ID {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}

// QueueInfo возвращает снимок очереди: копии ожидающих задач
// в порядке постановки и копию текущей задачи (nil, если воркер простаивает).
func (m *Manager) QueueInfo() ([]*model.Task, *model.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := make([]*model.Task, 0, len(m.pending))
	for _, t := range m.pending {
		pending = append(pending, t.Clone())
	}

	var current *model.Task
	if m.current != nil {
		current = m.current.Clone()
	}
	return pending, current
}

// QueueStatus возвращает краткую сводку состояния очереди.
func (m *Manager) QueueStatus() string {
	pending, current := m.QueueInfo()

	if current == nil && len(pending) == 0 {
		return "Очередь пуста"
	}
	if current == nil {
		return fmt.Sprintf("В очереди: %d", len(pending))
	}
	return fmt.Sprintf("Выполняется: %s (%s), в очереди: %d",
		urlclass.ServiceName(current.Service), current.URL, len(pending))
}

// History возвращает копии завершённых задач (от старых к новым).
func (m *Manager) History() []*model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	values := m.history.Values()
	result := make([]*model.Task, 0, len(values))
	for _, t := range values {
		result = append(result, t.Clone())
	}
	return result
}
