package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Log — глобальный структурированный логгер приложения.
var Log *logrus.Logger

// Init настраивает логгер. В development логи пишутся текстом с
// отметками времени, в остальных окружениях JSON для агрегаторов.
func Init(level string, development bool) {
	Log = logrus.New()
	Log.SetLevel(parseLevel(level, development))

	if development {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	Log.SetFormatter(&logrus.JSONFormatter{})
}

func parseLevel(level string, development bool) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err == nil {
		return parsed
	}
	if development {
		return logrus.DebugLevel
	}
	return logrus.InfoLevel
}
