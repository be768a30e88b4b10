// upload.go — приём файлов по POST /upload.
//
// Авторизация — общий секрет (MD_UPLOAD_TOKEN), принимаемый в
// Authorization: Bearer, заголовке X-Upload-Token или query-параметре
// token. Сравнение секретов выполняется за константное время.
// Пустой секрет отключает авторизацию.
package fileserver

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/musicdrop/internal/api/middleware"
)

// ErrInvalidFilename — имя файла содержит недопустимые элементы.
var ErrInvalidFilename = errors.New("недопустимое имя файла")

// handleUpload принимает файл multipart/form-data (поле file) и
// сохраняет его в директорию загрузок. Лимит размера применяется
// дважды: по заголовку Content-Length и по фактически принятым байтам.
func (fs *FileServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !fs.authorizeUpload(r) {
		middleware.UploadsTotal.WithLabelValues("unauthorized").Inc()
		writeError(w, http.StatusUnauthorized, "требуется авторизация")
		return
	}

	// Первая проверка лимита — по заявленному размеру
	if r.ContentLength > fs.cfg.UploadMaxSize {
		middleware.UploadsTotal.WithLabelValues("too_large").Inc()
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("размер превышает лимит %d байт", fs.cfg.UploadMaxSize))
		return
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		middleware.UploadsTotal.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusUnsupportedMediaType, "ожидается multipart/form-data")
		return
	}

	reader, err := r.MultipartReader()
	if err != nil {
		middleware.UploadsTotal.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, "некорректное multipart-тело")
		return
	}

	part, err := nextFilePart(reader)
	if err != nil {
		middleware.UploadsTotal.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, "поле file не найдено")
		return
	}
	defer part.Close()

	fileName, err := sanitizeFilename(part.FileName())
	if err != nil {
		middleware.UploadsTotal.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	storedName := uuid.NewString() + "_" + fileName
	destPath := filepath.Join(fs.cfg.UploadDir, storedName)

	size, err := fs.storeUpload(destPath, part)
	if err != nil {
		if errors.Is(err, errUploadTooLarge) {
			middleware.UploadsTotal.WithLabelValues("too_large").Inc()
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("размер превышает лимит %d байт", fs.cfg.UploadMaxSize))
			return
		}
		fs.logger.Error("Ошибка сохранения файла",
			slog.String("file", fileName),
			slog.String("error", err.Error()),
		)
		middleware.UploadsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "не удалось сохранить файл")
		return
	}

	middleware.UploadsTotal.WithLabelValues("success").Inc()
	fs.logger.Info("Файл принят",
		slog.String("file", fileName),
		slog.String("stored_name", storedName),
		slog.Int64("size", size),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"uploaded":    true,
		"file_name":   fileName,
		"stored_name": storedName,
		"size":        size,
	})
}

// authorizeUpload проверяет секрет запроса за константное время.
func (fs *FileServer) authorizeUpload(r *http.Request) bool {
	secret := fs.cfg.UploadToken
	if secret == "" {
		return true
	}

	presented := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		presented = strings.TrimPrefix(auth, "Bearer ")
	} else if h := r.Header.Get("X-Upload-Token"); h != "" {
		presented = h
	} else {
		presented = r.URL.Query().Get("token")
	}

	return subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) == 1
}

// errUploadTooLarge — фактический размер превысил лимит при приёме.
var errUploadTooLarge = errors.New("превышен лимит размера")

// storeUpload записывает поток src в destPath, контролируя лимит
// размера по фактически принятым байтам. При превышении лимита или
// ошибке частично записанный файл удаляется.
func (fs *FileServer) storeUpload(destPath string, src io.Reader) (int64, error) {
	out, err := os.Create(destPath)
	if err != nil {
		return 0, err
	}

	// Вторая проверка лимита — по фактическим байтам:
	// Content-Length может отсутствовать или лгать
	limited := io.LimitReader(src, fs.cfg.UploadMaxSize+1)
	size, err := io.Copy(out, limited)
	if err != nil {
		out.Close()
		_ = os.Remove(destPath)
		return 0, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(destPath)
		return 0, err
	}
	if size > fs.cfg.UploadMaxSize {
		_ = os.Remove(destPath)
		return 0, errUploadTooLarge
	}

	return size, nil
}

// nextFilePart возвращает первую часть multipart-тела с полем file.
func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

// sanitizeFilename проверяет имя файла из multipart-заголовка.
// Отвергаются разделители путей, NUL, двоеточие и имена "." и "..":
// имя используется как компонент пути в директории загрузок.
func sanitizeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	if strings.ContainsAny(name, "/\\:\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return name, nil
}
