package service

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bigkaa/musicdrop/internal/domain/model"
	"github.com/bigkaa/musicdrop/internal/fileserver"
)

type fakeLinks struct {
	created []string
	err     error
}

func (f *fakeLinks) CreateLink(filePath string) (*fileserver.DownloadToken, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	f.created = append(f.created, filePath)
	return &fileserver.DownloadToken{ID: "tok"}, "http://example/download/tok", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func completedTask(t *testing.T, content string) *model.Task {
	t.Helper()
	folder := filepath.Join(t.TempDir(), "Artist - Album")
	if err := os.MkdirAll(folder, 0o750); err != nil {
		t.Fatalf("ошибка создания директории: %v", err)
	}
	if err := os.WriteFile(filepath.Join(folder, "track.flac"), []byte(content), 0o600); err != nil {
		t.Fatalf("ошибка записи файла: %v", err)
	}
	return &model.Task{
		ID:     "task-1",
		Status: model.StatusCompleted,
		Result: &model.DownloadResult{Success: true, FolderPath: folder},
	}
}

// TestPublish_Link проверяет выдачу ссылки для большого архива.
func TestPublish_Link(t *testing.T) {
	links := &fakeLinks{}
	p := NewPublisher(links, t.TempDir(), 1, discardLogger())

	delivery, err := p.Publish(completedTask(t, strings.Repeat("a", 4096)))
	if err != nil {
		t.Fatalf("ошибка публикации: %v", err)
	}
	if delivery.AsAttachment {
		t.Error("большой архив не должен публиковаться вложением")
	}
	if delivery.Link != "http://example/download/tok" {
		t.Errorf("ссылка: %q", delivery.Link)
	}
	if len(links.created) != 1 || links.created[0] != delivery.ArchivePath {
		t.Errorf("ссылка должна быть выдана на архив: %v", links.created)
	}
	if _, err := os.Stat(delivery.ArchivePath); err != nil {
		t.Errorf("архив должен существовать: %v", err)
	}
}

// TestPublish_Attachment проверяет публикацию маленького архива вложением.
func TestPublish_Attachment(t *testing.T) {
	links := &fakeLinks{}
	p := NewPublisher(links, t.TempDir(), 1024*1024, discardLogger())

	delivery, err := p.Publish(completedTask(t, "tiny"))
	if err != nil {
		t.Fatalf("ошибка публикации: %v", err)
	}
	if !delivery.AsAttachment {
		t.Error("маленький архив должен публиковаться вложением")
	}
	if delivery.Link != "" {
		t.Errorf("вложение не должно иметь ссылки: %q", delivery.Link)
	}
	if len(links.created) != 0 {
		t.Errorf("ссылка не должна выдаваться: %v", links.created)
	}
}

// TestPublish_NotCompleted проверяет отказ для незавершённых задач.
func TestPublish_NotCompleted(t *testing.T) {
	p := NewPublisher(&fakeLinks{}, t.TempDir(), 1024, discardLogger())

	task := &model.Task{ID: "task-2", Status: model.StatusFailed}
	if _, err := p.Publish(task); err == nil {
		t.Fatal("ожидалась ошибка для незавершённой задачи")
	}

	noFolder := &model.Task{
		ID:     "task-3",
		Status: model.StatusCompleted,
		Result: &model.DownloadResult{Success: true},
	}
	if _, err := p.Publish(noFolder); err == nil {
		t.Fatal("ожидалась ошибка для задачи без директории")
	}
}
