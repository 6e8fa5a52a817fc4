package goroutine

import (
	"context"
	"log"
	"runtime/debug"

	"github.com/au-lex/safeqly-backend/internal/logger"
)

// SafeGo запускает фоновую горутину с перехватом panic. Используется
// для побочных задач вроде отправки писем, падение которых не должно
// ронять обработку запроса.
func SafeGo(fn func()) {
	go func() {
		defer recoverPanic()
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и перехватом panic.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer recoverPanic()
		fn(ctx)
	}()
}

func recoverPanic() {
	r := recover()
	if r == nil {
		return
	}

	if logger.Log != nil {
		logger.Log.WithFields(map[string]interface{}{
			"panic": r,
			"stack": string(debug.Stack()),
		}).Error("goroutine: перехвачен panic")
		return
	}
	log.Printf("goroutine: panic: %v\n%s", r, debug.Stack())
}
