// command.go — запуск внешних инструментов скачивания.
// Процесс выполняется с таймаутом: по его истечении процесс
// принудительно завершается (kill), а вызов возвращает ErrProcessTimeout.
package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// CommandRunner — исполнитель внешних команд с таймаутом.
type CommandRunner struct {
	// timeout — максимальное время выполнения одной команды
	timeout time.Duration
	// ffmpegPath — путь к ffmpeg (директория или исполняемый файл),
	// добавляется в начало PATH дочернего процесса
	ffmpegPath string
	logger     *slog.Logger
}

// NewCommandRunner создаёт исполнитель внешних команд.
func NewCommandRunner(timeout time.Duration, ffmpegPath string, logger *slog.Logger) *CommandRunner {
	return &CommandRunner{
		timeout:    timeout,
		ffmpegPath: ffmpegPath,
		logger:     logger.With(slog.String("component", "command_runner")),
	}
}

// Run выполняет команду name с аргументами args в рабочей директории dir
// (пустая строка — текущая). Возвращает stdout и stderr процесса.
// При ненулевом коде выхода возвращает ошибку с кодом; при превышении
// таймаута процесс убивается и возвращается ErrProcessTimeout.
func (r *CommandRunner) Run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	// Проверяем наличие исполняемого файла заранее, чтобы вернуть
	// понятное сообщение вместо ошибки запуска.
	if _, err := exec.LookPath(name); err != nil {
		return "", "", fmt.Errorf("команда %q не найдена в PATH: установите её и убедитесь, что %s --version выполняется", name, name)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = dir
	cmd.Env = r.buildEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	// Таймаут: CommandContext уже убил процесс (SIGKILL)
	if runCtx.Err() == context.DeadlineExceeded {
		r.logger.Warn("Внешняя команда превысила таймаут",
			slog.String("command", name),
			slog.Duration("timeout", r.timeout),
		)
		return stdout.String(), stderr.String(),
			fmt.Errorf("%w: %s (таймаут %s)", ErrProcessTimeout, name, r.timeout)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(),
				fmt.Errorf("команда %s завершилась с кодом %d", name, exitErr.ExitCode())
		}
		return stdout.String(), stderr.String(),
			fmt.Errorf("ошибка запуска команды %s: %w", name, err)
	}

	r.logger.Debug("Внешняя команда выполнена",
		slog.String("command", name),
		slog.Duration("elapsed", elapsed),
	)

	return stdout.String(), stderr.String(), nil
}

// buildEnv возвращает окружение дочернего процесса.
// Если настроен ffmpegPath, его директория добавляется в начало PATH.
func (r *CommandRunner) buildEnv() []string {
	env := os.Environ()
	if r.ffmpegPath == "" {
		return env
	}

	ffmpegDir := r.ffmpegPath
	if info, err := os.Stat(r.ffmpegPath); err == nil && !info.IsDir() {
		ffmpegDir = filepath.Dir(r.ffmpegPath)
	}

	path := os.Getenv("PATH")
	env = append(env, "PATH="+ffmpegDir+string(os.PathListSeparator)+path)
	return env
}
