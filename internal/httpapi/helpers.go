package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"timed-quiz/internal/quiz"
)

// UserIDHeader carries the caller's identity, set by the authenticating proxy.
const UserIDHeader = "X-User-ID"

const maxBodyBytes = 64 << 10

var errMissingUserID = errors.New(UserIDHeader + " header is required")

func userIDFrom(r *http.Request) (string, error) {
	userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if userID == "" {
		return "", errMissingUserID
	}
	return userID, nil
}

func statusFor(err error) int {
	switch quiz.KindOf(err) {
	case quiz.ErrNotFound:
		return http.StatusNotFound
	case quiz.ErrForbidden:
		return http.StatusForbidden
	case quiz.ErrConflict:
		return http.StatusConflict
	case quiz.ErrExpired:
		return http.StatusGone
	case quiz.ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.log.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		writeJSON(w, status, errorResponse{Error: "request failed"})
		return
	}
	writeJSON(w, status, errorResponse{Error: quiz.MessageOf(err), Details: quiz.DetailsOf(err)})
}

func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter, allowedMethod string) {
	w.Header().Set("Allow", allowedMethod)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
