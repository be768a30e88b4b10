package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestRequestLogger_RedactsToken проверяет, что секрет из
// query-параметра token не попадает в журнал, а путь со значением
// токена логируется нормализованным.
func TestRequestLogger_RedactsToken(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/upload?token=super-secret&x=1", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Contains(out, "super-secret") {
		t.Errorf("секрет не должен попадать в журнал: %s", out)
	}
	if !strings.Contains(out, "token=%2A%2A%2A") && !strings.Contains(out, "token=***") {
		t.Errorf("параметр token должен быть отредактирован: %s", out)
	}

	buf.Reset()
	req = httptest.NewRequest(http.MethodGet, "/download/a1b2c3d4-e5f6-7890-abcd-ef1234567890", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out = buf.String()
	if strings.Contains(out, "a1b2c3d4") {
		t.Errorf("значение токена не должно попадать в журнал: %s", out)
	}
	if !strings.Contains(out, "/download/{token}") {
		t.Errorf("путь должен быть нормализован: %s", out)
	}
}

// TestRequestLogger_Levels проверяет эскалацию уровня по статус-коду.
func TestRequestLogger_Levels(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{http.StatusOK, `"level":"INFO"`},
		{http.StatusGone, `"level":"WARN"`},
		{http.StatusInternalServerError, `"level":"ERROR"`},
	}

	for _, tc := range cases {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/info/x", nil))

		if !strings.Contains(buf.String(), tc.level) {
			t.Errorf("статус %d: ожидался уровень %s, журнал: %s", tc.status, tc.level, buf.String())
		}
	}
}
