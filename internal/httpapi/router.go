package httpapi

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"timed-quiz/internal/metrics"
	"timed-quiz/internal/quiz"
)

const maxLoggedBodyBytes = 512

type RouterConfig struct {
	Checks  map[string]HealthCheck
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func NewRouter(service *quiz.Service, cfg RouterConfig) http.Handler {
	api := NewAPI(service, cfg.Checks, cfg.Logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/quizzes/{quiz_id}/attempts/validate", api.HandleValidateStart)
	mux.HandleFunc("/quizzes/{quiz_id}/attempts", api.HandleStartAttempt)
	mux.HandleFunc("/quizzes/{quiz_id}/history", api.HandleHistory)
	mux.HandleFunc("/attempts/{attempt_id}", api.HandleGetAttempt)
	mux.HandleFunc("/attempts/{attempt_id}/answers", api.HandleSubmitAnswer)
	mux.HandleFunc("/attempts/{attempt_id}/finish", api.HandleFinishAttempt)
	mux.HandleFunc("/healthz", api.HandleHealth)
	mux.Handle("/metrics", cfg.Metrics.Handler())

	return logRequests(api.log, mux)
}

// statusRecorder captures the status and a bounded prefix of the body for
// request logging.
type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	maxLogBytes  int
	logBody      bytes.Buffer
	truncated    bool
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if room := r.maxLogBytes - r.logBody.Len(); room > 0 {
		if len(p) > room {
			r.logBody.Write(p[:room])
			r.truncated = true
		} else {
			r.logBody.Write(p)
		}
	} else if len(p) > 0 {
		r.truncated = true
	}

	written, err := r.ResponseWriter.Write(p)
	r.bytesWritten += written
	return written, err
}

func logRequests(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			maxLogBytes:    maxLoggedBodyBytes,
		}

		next.ServeHTTP(recorder, r)

		attrs := []any{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", recorder.statusCode),
			slog.Int("bytes", recorder.bytesWritten),
			slog.Duration("duration", time.Since(started)),
		}
		switch {
		case recorder.statusCode >= http.StatusInternalServerError:
			attrs = append(attrs, slog.String("body", recorder.logBody.String()), slog.Bool("truncated", recorder.truncated))
			log.Error("http request", attrs...)
		case recorder.statusCode >= http.StatusBadRequest:
			attrs = append(attrs, slog.String("body", recorder.logBody.String()))
			log.Warn("http request", attrs...)
		default:
			log.Debug("http request", attrs...)
		}
	})
}
