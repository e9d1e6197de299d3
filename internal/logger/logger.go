package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log: общий логгер приложения. До вызова Init пишет в stderr с уровнем Info.
var Log = logrus.New()

// Init инициализирует структурированный логгер.
func Init(level string) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	Log.SetOutput(os.Stdout)
	// JSON для production, text включается через SetTextFormatter
	Log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{logrus.FieldKeyMsg: "message"},
	})
}

// SetTextFormatter устанавливает текстовый формат логов (для development).
func SetTextFormatter() {
	if Log != nil {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}

// Job возвращает запись лога с контекстом заказа.
func Job(jobID any) *logrus.Entry {
	return Log.WithField("job_id", jobID)
}

// Payment возвращает запись лога с контекстом платёжного события.
func Payment(event, reference string) *logrus.Entry {
	return Log.WithFields(logrus.Fields{
		"event":     event,
		"reference": reference,
	})
}
