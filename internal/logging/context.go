package logging

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
)

type contextKey struct{}

func WithLogData(ctx context.Context, logData *LogData) context.Context {
	return context.WithValue(ctx, contextKey{}, logData)
}

// GetLogData returns the request LogData, or nil outside a logged request.
func GetLogData(ctx context.Context) *LogData {
	logData, _ := ctx.Value(contextKey{}).(*LogData)
	return logData
}

// RequestLogger is router middleware that attaches a LogData to every request and
// emits one summary line when the request completes.
func RequestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logData := NewLogData(log)
			logData.AddData("method", req.Method)
			logData.AddData("path", req.URL.Path)

			endTimer := logData.AddTiming("duration")
			next.ServeHTTP(w, req.WithContext(WithLogData(req.Context(), logData)))
			endTimer()

			logData.Log().Info("Request.Complete")
		})
	}
}
