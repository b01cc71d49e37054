package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const healthTimeout = 2 * time.Second

func (a *API) HandleValidateStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if a.service == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "quiz service unavailable"})
		return
	}

	userID, err := userIDFrom(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}

	plan, err := a.service.ValidateStart(r.Context(), r.PathValue("quiz_id"), userID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (a *API) HandleStartAttempt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if a.service == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "quiz service unavailable"})
		return
	}

	userID, err := userIDFrom(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}

	result, err := a.service.Start(r.Context(), r.PathValue("quiz_id"), userID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) HandleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	attemptID, ok := a.authorizeAttempt(w, r)
	if !ok {
		return
	}

	var request submitAnswerRequest
	if err := decodeJSON(r, &request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if strings.TrimSpace(request.QuestionID) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question_id is required"})
		return
	}

	result, err := a.service.SubmitAnswer(r.Context(), attemptID, strings.TrimSpace(request.QuestionID), request.SelectedOptionIDs)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) HandleFinishAttempt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	attemptID, ok := a.authorizeAttempt(w, r)
	if !ok {
		return
	}

	attempt, err := a.service.Finish(r.Context(), attemptID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (a *API) HandleGetAttempt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	attemptID, ok := a.authorizeAttempt(w, r)
	if !ok {
		return
	}

	view, err := a.service.GetAttempt(r.Context(), attemptID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if a.service == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "quiz service unavailable"})
		return
	}

	userID, err := userIDFrom(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}

	history, err := a.service.GetHistory(r.Context(), userID, r.PathValue("quiz_id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	response := healthResponse{Status: "ok", Checks: make(map[string]string, len(a.checks))}
	status := http.StatusOK
	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			response.Checks[name] = err.Error()
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Checks[name] = "ok"
	}
	writeJSON(w, status, response)
}

// authorizeAttempt resolves the attempt id from the path and makes sure the
// caller owns it. It writes the error response itself.
func (a *API) authorizeAttempt(w http.ResponseWriter, r *http.Request) (string, bool) {
	if a.service == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "quiz service unavailable"})
		return "", false
	}

	userID, err := userIDFrom(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return "", false
	}

	attemptID := strings.TrimSpace(r.PathValue("attempt_id"))
	if err := a.service.CheckOwner(r.Context(), attemptID, userID); err != nil {
		a.writeServiceError(w, r, err)
		return "", false
	}
	return attemptID, true
}
