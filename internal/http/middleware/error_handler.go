package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/au-lex/safeqly-backend/internal/logger"
	"github.com/au-lex/safeqly-backend/internal/repository"
)

// ErrorHandler обрабатывает ошибки централизованно.
// Маскирует внутренние ошибки и возвращает понятные сообщения клиенту.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		if len(c.Errors) > 0 {
			err := c.Errors.Last()

			statusCode := http.StatusInternalServerError
			message := "внутренняя ошибка сервера"

			if logger.Log != nil {
				logger.Log.WithFields(logrus.Fields{
					"error":  err.Error(),
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				}).Error("Request error")
			}

			switch {
			case errors.Is(err.Err, repository.ErrUserNotFound):
				statusCode = http.StatusNotFound
				message = "пользователь не найден"
			case errors.Is(err.Err, repository.ErrEscrowNotFound):
				statusCode = http.StatusNotFound
				message = "сделка не найдена"
			case errors.Is(err.Err, repository.ErrDisputeNotFound):
				statusCode = http.StatusNotFound
				message = "спор не найден"
			case errors.Is(err.Err, repository.ErrTransactionNotFound):
				statusCode = http.StatusNotFound
				message = "транзакция не найдена"
			case errors.Is(err.Err, repository.ErrInsufficientFunds):
				statusCode = http.StatusUnprocessableEntity
				message = "недостаточно средств на балансе"
			case errors.Is(err.Err, repository.ErrInvalidEscrowStatus):
				statusCode = http.StatusConflict
				message = "операция недоступна в текущем статусе сделки"
			case errors.Is(err.Err, repository.ErrDisputeAlreadyExists):
				statusCode = http.StatusConflict
				message = "по этой сделке уже открыт активный спор"
			case errors.Is(err.Err, repository.ErrDisputeAlreadyResolved):
				statusCode = http.StatusConflict
				message = "спор уже разрешён"
			case err.Error() != "":
				errStr := err.Error()
				if !containsInternalKeywords(errStr) {
					message = errStr
					if contains(errStr, "неверный") || contains(errStr, "невалид") || contains(errStr, "должн") {
						statusCode = http.StatusBadRequest
					} else if contains(errStr, "недоступн") || contains(errStr, "запрещ") || contains(errStr, "только") {
						statusCode = http.StatusForbidden
					} else if contains(errStr, "не найден") {
						statusCode = http.StatusNotFound
					}
				}
			}

			c.JSON(statusCode, gin.H{"error": message})
		}
	}
}

// containsInternalKeywords проверяет, содержит ли строка ключевые слова внутренних ошибок.
func containsInternalKeywords(s string) bool {
	keywords := []string{
		"sql:",
		"database",
		"connection",
		"timeout",
		"internal",
		"panic",
		"runtime",
	}

	for _, keyword := range keywords {
		if contains(s, keyword) {
			return true
		}
	}
	return false
}

// contains проверяет, содержит ли строка подстроку (case-insensitive).
func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
