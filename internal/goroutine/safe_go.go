package goroutine

import (
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/otp-chat-gateway/internal/logger"
)

// Runner запускает фоновые задачи так, чтобы panic в задаче не ронял процесс.
type Runner struct {
	log func() *logrus.Logger
}

// NewRunner создаёт Runner с заданным логгером. nil означает logger.Log на момент вызова.
func NewRunner(log *logrus.Logger) *Runner {
	if log == nil {
		return &Runner{log: func() *logrus.Logger { return logger.Log }}
	}
	return &Runner{log: func() *logrus.Logger { return log }}
}

// Go запускает fn в отдельной горутине. name попадает в лог при panic.
func (r *Runner) Go(name string, fn func()) {
	go r.run(name, fn)
}

func (r *Runner) run(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log().WithFields(logrus.Fields{
				"task":  name,
				"panic": rec,
				"stack": string(debug.Stack()),
			}).Error("goroutine: panic в фоновой задаче")
		}
	}()
	fn()
}

var defaultRunner = NewRunner(nil)

// SafeGo запускает fn через глобальный Runner.
func SafeGo(name string, fn func()) {
	defaultRunner.Go(name, fn)
}
